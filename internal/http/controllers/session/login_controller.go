// Package session expone el login interactivo del IDP: formulario HTML,
// POST de credenciales y logout. Es la única superficie del servicio que
// habla con un navegador en vez de JSON.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	httpx "github.com/dropDatabas3/aerogate/internal/http"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	svc "github.com/dropDatabas3/aerogate/internal/http/services/session"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// LoginController maneja GET y POST /idp/login.
type LoginController struct {
	sessions svc.Service
}

// NewLoginController crea el controller.
func NewLoginController(s svc.Service) *LoginController {
	return &LoginController{sessions: s}
}

// ShowLogin maneja GET /idp/login?next=<url>.
func (c *LoginController) ShowLogin(w http.ResponseWriter, r *http.Request) {
	next := sanitizeNext(r.URL.Query().Get("next"))
	c.renderForm(w, http.StatusOK, loginPageData{Next: next})
}

// Login maneja POST /idp/login (form: username, password, next).
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.login"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid form data"))
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	// next viaja en query (redirect desde authorize) o en el hidden del
	// formulario; siempre se sanitiza antes de usarlo.
	next := r.URL.Query().Get("next")
	if next == "" {
		next = r.PostForm.Get("next")
	}
	next = sanitizeNext(next)

	res, err := c.sessions.Login(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingUsername),
			errors.Is(err, svc.ErrMissingPassword),
			errors.Is(err, svc.ErrInvalidCredentials):
			httpx.RecordLogin("failure")
			c.renderForm(w, http.StatusUnauthorized, loginPageData{
				Next:     next,
				Username: username,
				Error:    "Usuario o contraseña incorrectos.",
			})
		default:
			log.Error("login failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal)
		}
		return
	}

	httpx.RecordLogin("success")
	http.SetCookie(w, c.sessions.BuildSessionCookie(res.SessionID, res.ExpiresAt))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, next, http.StatusFound)
}

func (c *LoginController) renderForm(w http.ResponseWriter, status int, data loginPageData) {
	data.Nonce = randNonce(16)

	csp := "default-src 'self'; " +
		"img-src 'self' data:; " +
		"style-src 'self' 'nonce-" + data.Nonce + "'; " +
		"base-uri 'self'; " +
		"frame-ancestors 'none'"

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Security-Policy", csp)
	w.WriteHeader(status)
	_ = loginTpl.Execute(w, data)
}

func randNonce(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// sanitizeNext acota el destino post-login a rutas relativas del mismo
// origen. Cualquier cosa con esquema, host o forma de protocol-relative
// ("//evil", "/\evil") colapsa a "/".
func sanitizeNext(next string) string {
	if next == "" {
		return "/"
	}
	if !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
