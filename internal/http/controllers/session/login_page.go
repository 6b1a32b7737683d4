package session

import "html/template"

// Página de login del IDP. Misma carta visual que el resto de las
// superficies HTML: card centrada, gradiente de marca, CSP con nonce.
const loginPageHTML = `<!doctype html>
<html lang="es">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <meta name="color-scheme" content="light dark">
  <title>Aerogate • Login</title>
  <style nonce="{{.Nonce}}">
    :root{
      --brand1:#10b6b6;
      --brand2:#60a5fa;
      --bg:#f5f9fc;
      --card:#ffffff;
      --text:#0f172a;
      --muted:#64748b;
      --danger:#dc2626;
      --radius:16px;
      --shadow:0 10px 30px rgba(2,132,199,.15);
    }
    *{box-sizing:border-box}
    html,body{height:100%}
    body{
      margin:0;
      font-family: system-ui,-apple-system,Segoe UI,Roboto,Arial,sans-serif;
      color:var(--text);
      background:
        radial-gradient(60% 60% at 100% 0%, rgba(96,165,250,.25) 0%, transparent 60%),
        radial-gradient(50% 50% at 0% 100%, rgba(16,182,182,.25) 0%, transparent 60%),
        var(--bg);
      display:grid;
      place-items:center;
      padding:24px;
    }
    .card{
      width:min(420px, 95vw);
      background:var(--card);
      border-radius:var(--radius);
      box-shadow:var(--shadow);
      overflow:hidden;
    }
    .brand{
      display:flex;
      align-items:center;
      gap:12px;
      padding:18px 20px;
      background:linear-gradient(120deg,var(--brand1),var(--brand2));
      color:#fff;
    }
    .logo{
      width:36px;height:36px;border-radius:10px;
      display:grid;place-items:center;
      background:rgba(255,255,255,.2);
      font-weight:700;
      user-select:none;
    }
    .brand h1{margin:0;font-size:18px;font-weight:700;letter-spacing:.4px}
    .content{padding:22px}
    .error{
      background:#fef2f2;border:1px solid #fecaca;color:var(--danger);
      border-radius:10px;padding:10px 12px;margin:0 0 14px 0;font-size:14px;
    }
    label{display:block;font-size:13px;font-weight:600;color:var(--muted);margin:0 0 6px 2px}
    input[type=text], input[type=password]{
      width:100%;padding:10px 12px;margin-bottom:14px;
      border:1px solid #dfeefd;border-radius:10px;font-size:15px;
      background:#f7fbff;outline:none;
    }
    input:focus{border-color:var(--brand2)}
    button{
      width:100%;appearance:none;border:0;border-radius:10px;
      padding:11px 14px;font-weight:600;font-size:15px;cursor:pointer;
      background:linear-gradient(120deg,var(--brand1),var(--brand2));
      color:#fff;
    }
    button:active{transform:translateY(1px)}
    footer{
      padding:12px 20px;color:#7b8aa0;font-size:12px;background:#f7fbff;
      border-top:1px solid #eaf2fb;text-align:center;
    }
  </style>
</head>
<body>
  <div class="card" role="region" aria-label="Inicio de sesión">
    <header class="brand">
      <div class="logo" aria-hidden="true">AG</div>
      <h1>Aerogate</h1>
    </header>
    <section class="content">
      {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
      <form method="post" action="/idp/login">
        <input type="hidden" name="next" value="{{.Next}}">
        <label for="username">Usuario</label>
        <input type="text" id="username" name="username" value="{{.Username}}" autocomplete="username" autofocus required>
        <label for="password">Contraseña</label>
        <input type="password" id="password" name="password" autocomplete="current-password" required>
        <button type="submit">Iniciar sesión</button>
      </form>
    </section>
    <footer>Aerogate IDP</footer>
  </div>
</body>
</html>`

var loginTpl = template.Must(template.New("login").Parse(loginPageHTML))

type loginPageData struct {
	Nonce    string
	Next     string
	Username string
	Error    string
}
