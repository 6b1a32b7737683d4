// Package e2e levanta el servicio completo en memoria y lo ejercita por
// HTTP real: router y services de producción, repositorios en memoria en
// lugar de Postgres y upstreams falsos (LLM, RAG, OCR) detrás de
// httptest. Ningún test de este paquete toca la red ni disco compartido.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/aerogate/internal/blobcache"
	"github.com/dropDatabas3/aerogate/internal/cache"
	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	adminctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/admin"
	apictrl "github.com/dropDatabas3/aerogate/internal/http/controllers/api"
	healthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/oauth"
	sessionctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/session"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
	"github.com/dropDatabas3/aerogate/internal/http/router"
	adminsvc "github.com/dropDatabas3/aerogate/internal/http/services/admin"
	oauthsvc "github.com/dropDatabas3/aerogate/internal/http/services/oauth"
	sessionsvc "github.com/dropDatabas3/aerogate/internal/http/services/session"
	jwtx "github.com/dropDatabas3/aerogate/internal/jwt"
	"github.com/dropDatabas3/aerogate/internal/llm"
	"github.com/dropDatabas3/aerogate/internal/ocr"
	"github.com/dropDatabas3/aerogate/internal/rag"
	"github.com/dropDatabas3/aerogate/internal/rate"
	"github.com/dropDatabas3/aerogate/internal/security/password"
)

const (
	adminToken = "e2e-admin-token"
	jwtSecret  = "e2e-secret-0123456789abcdef"
	issuerURL  = "http://idp.e2e"
	passSalt   = "e2e-salt"
)

// ─── Repositorios en memoria ───

type memUsers struct {
	mu     sync.Mutex
	seq    int64
	byID   map[int64]repository.User
	byName map[string]int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]repository.User), byName: make(map[string]int64)}
}

func (m *memUsers) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[in.Username]; ok {
		return nil, repository.ErrConflict
	}
	m.seq++
	u := repository.User{
		ID:           m.seq,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Email:        in.Email,
		Name:         in.Name,
		CreatedAt:    time.Now(),
	}
	m.byID[u.ID] = u
	m.byName[u.Username] = u.ID
	return &u, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := m.byID[id]
	return &u, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id int64, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	m.byID[id] = u
	return nil
}

type memClients struct {
	mu sync.Mutex
	m  map[string]repository.Client
}

func newMemClients() *memClients {
	return &memClients{m: make(map[string]repository.Client)}
}

func (c *memClients) Upsert(_ context.Context, client repository.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.m[client.ClientID]; ok {
		client.CreatedAt = prev.CreatedAt
	} else {
		client.CreatedAt = time.Now()
	}
	c.m[client.ClientID] = client
	return nil
}

func (c *memClients) Get(_ context.Context, clientID string) (*repository.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.m[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cl, nil
}

type memSessions struct {
	mu sync.Mutex
	m  map[string]repository.Session
}

func newMemSessions() *memSessions {
	return &memSessions{m: make(map[string]repository.Session)}
}

func (s *memSessions) Create(_ context.Context, session repository.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[session.SessionID] = session
	return nil
}

func (s *memSessions) Resolve(_ context.Context, sessionID string) (*repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.m, sessionID)
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (s *memSessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
	return nil
}

func (s *memSessions) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for id, sess := range s.m {
		if now.After(sess.ExpiresAt) {
			delete(s.m, id)
			n++
		}
	}
	return n, nil
}

type memCodes struct {
	mu sync.Mutex
	m  map[string]repository.AuthCode
}

func newMemCodes() *memCodes {
	return &memCodes{m: make(map[string]repository.AuthCode)}
}

func (c *memCodes) Create(_ context.Context, code repository.AuthCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[code.Code] = code
	return nil
}

func (c *memCodes) Consume(_ context.Context, code string) (*repository.AuthCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ac, ok := c.m[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(c.m, code)
	return &ac, nil
}

func (c *memCodes) DeleteExpired(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := time.Now()
	for k, ac := range c.m {
		if now.After(ac.ExpiresAt) {
			delete(c.m, k)
			n++
		}
	}
	return n, nil
}

// ─── Upstreams falsos ───

// fakeUpstream atiende los tres contratos upstream en un solo servidor:
// mensajes del gateway LLM (que también usa el cliente RAG), el listado
// de documentos y el par register/getOcrResult del OCR.
type fakeUpstream struct {
	srv *httptest.Server

	mu            sync.Mutex
	translation   string
	searchJSON    string
	ocrPages      []map[string]any
	messageCalls  int
	docCalls      int
	registerCalls int
	resultCalls   int
}

func newFakeUpstream() *fakeUpstream {
	up := &fakeUpstream{
		translation: "油圧ラインを確認してください",
		searchJSON: `{"result":{"search_result":{` +
			`"0":{"content":"text_ja: 油圧ポンプを交換\ntext_en: Replace the hydraulic pump","search_score":0.95},` +
			`"1":{"content":"text_ja: 弁を点検\ntext_en: Inspect the valve","score":0.61}}}}`,
		ocrPages: []map[string]any{{"page": 1, "text": "請求書 2025-08"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", up.handleMessage)
	mux.HandleFunc("/api/message/document/list", up.handleDocumentList)
	mux.HandleFunc("/wf/api/fullocr/v2/register", up.handleOCRRegister)
	mux.HandleFunc("/wf/api/fullocr/v2/getOcrResult", up.handleOCRResult)
	up.srv = httptest.NewServer(mux)
	return up
}

func (u *fakeUpstream) handleMessage(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.messageCalls++
	content := u.translation
	u.mu.Unlock()

	// message_id + choices sirve a ambos consumidores: el cliente LLM lee
	// el contenido, el cliente RAG solo el message_id.
	body, _ := json.Marshal(map[string]any{
		"message_id": "msg-1",
		"choices":    []map[string]any{{"message": map[string]any{"content": content}}},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (u *fakeUpstream) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.docCalls++
	body := u.searchJSON
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func (u *fakeUpstream) handleOCRRegister(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.registerCalls++
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"id":"job-1"}`))
}

func (u *fakeUpstream) handleOCRResult(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.resultCalls++
	pages := u.ocrPages
	u.mu.Unlock()

	body, _ := json.Marshal(map[string]any{"status": "done", "results": pages})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (u *fakeUpstream) counts() (message, doc, register, result int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.messageCalls, u.docCalls, u.registerCalls, u.resultCalls
}

func (u *fakeUpstream) setTranslation(s string) {
	u.mu.Lock()
	u.translation = s
	u.mu.Unlock()
}

// ─── Entorno ───

type envOptions struct {
	limiter    rate.Limiter
	gatekeeper mw.GatekeeperOptions
}

type env struct {
	t   *testing.T
	srv *httptest.Server
	up  *fakeUpstream

	users    *memUsers
	sessions *memSessions
}

func newEnv(t *testing.T) *env { return newEnvWith(t, envOptions{}) }

func newEnvWith(t *testing.T, opts envOptions) *env {
	t.Helper()

	up := newFakeUpstream()
	t.Cleanup(up.srv.Close)

	users := newMemUsers()
	clients := newMemClients()
	sessions := newMemSessions()
	codes := newMemCodes()

	hasher := &password.LegacySHA256{Salt: passSalt}
	issuer := jwtx.NewIssuer(issuerURL, jwtSecret, 30*time.Minute)
	store := cache.NewMemory("e2e:", time.Minute)

	sessionSvc := sessionsvc.New(sessionsvc.Deps{
		Users:    users,
		Sessions: sessions,
		Hasher:   hasher,
		TTL:      time.Hour,
	})
	oauthSvc := oauthsvc.New(oauthsvc.Deps{
		Clients: clients,
		Codes:   codes,
		Users:   users,
		Issuer:  issuer,
		CodeTTL: 5 * time.Minute,
	})
	adminSvc := adminsvc.New(adminsvc.Deps{Users: users, Clients: clients, Hasher: hasher})

	httpc := &http.Client{Timeout: 5 * time.Second}
	llmClient := llm.New(httpc, store, llm.Config{
		BaseURL:       up.srv.URL,
		APIKey:        "e2e-key",
		ModelKey:      "1",
		PluginKey:     "plug-1",
		MaxConcurrent: 3,
		CacheTTL:      time.Minute,
	})
	ragClient := rag.New(httpc, store, rag.Config{
		BaseURL:       up.srv.URL,
		APIKey:        "e2e-key",
		ModelKey:      "1",
		PluginKey:     "plug-1",
		MaxConcurrent: 3,
		CacheTTL:      time.Minute,
	})
	ocrClient := ocr.New(httpc, ocr.Config{
		BaseURL:      up.srv.URL,
		APIKey:       "e2e-ocr-key",
		PollInterval: time.Millisecond,
		PollTimeout:  5 * time.Second,
	})

	blobs, err := blobcache.New(t.TempDir())
	require.NoError(t, err)

	handler := router.New(router.Deps{
		Health:    healthctrl.NewController(nil, store),
		Login:     sessionctrl.NewLoginController(sessionSvc),
		Logout:    sessionctrl.NewLogoutController(sessionSvc),
		Register:  adminctrl.NewRegisterController(adminSvc),
		Authorize: oauthctrl.NewAuthorizeController(oauthSvc, sessionSvc),
		Token:     oauthctrl.NewTokenController(oauthSvc),
		Userinfo:  oauthctrl.NewUserinfoController(oauthSvc),

		Config:    apictrl.NewConfigController(),
		Translate: apictrl.NewTranslateController(llmClient, ragClient),
		Search:    apictrl.NewSearchController(ragClient),
		Normalize: apictrl.NewNormalizeController(llmClient),
		Document:  apictrl.NewDocumentController(ocrClient, blobs),

		Verifier:   issuer,
		Gatekeeper: opts.gatekeeper,
		AdminToken: adminToken,
		Limiter:    opts.limiter,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &env{t: t, srv: srv, up: up, users: users, sessions: sessions}
}

// ─── Helpers HTTP ───

// noRedirect no sigue redirects: los tests afirman sobre cada Location.
var noRedirect = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	Timeout:       10 * time.Second,
}

func (e *env) do(req *http.Request) *http.Response {
	e.t.Helper()
	resp, err := noRedirect.Do(req)
	require.NoError(e.t, err)
	return resp
}

func (e *env) get(path string, cookies ...*http.Cookie) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(e.t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

func (e *env) postForm(path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

func (e *env) adminPost(path string, body any) *http.Response {
	e.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(string(raw)))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	return e.do(req)
}

func (e *env) apiJSON(method, path string, body any, bearer string) *http.Response {
	e.t.Helper()
	var rd *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = strings.NewReader(string(raw))
	} else {
		rd = strings.NewReader("")
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return e.do(req)
}

func (e *env) decode(resp *http.Response, out any) {
	e.t.Helper()
	defer resp.Body.Close()
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
}

// ─── Flujos compuestos ───

// provision da de alta usuario y client vía los endpoints administrativos
// y devuelve el id del usuario.
func (e *env) provision(username, pass, clientID, secret, redirect string) int64 {
	e.t.Helper()

	resp := e.adminPost("/idp/register_user", map[string]string{
		"username": username,
		"password": pass,
		"email":    username + "@example.com",
		"name":     "Usuario " + username,
	})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var u struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	e.decode(resp, &u)
	require.Equal(e.t, username, u.Username)

	resp = e.adminPost("/idp/register_client", map[string]string{
		"client_id":     clientID,
		"client_secret": secret,
		"redirect_uri":  redirect,
	})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	return u.ID
}

// login postea credenciales y devuelve la cookie de sesión.
func (e *env) login(username, pass, next string) *http.Cookie {
	e.t.Helper()

	resp := e.postForm("/idp/login", url.Values{
		"username": {username},
		"password": {pass},
		"next":     {next},
	})
	resp.Body.Close()
	require.Equal(e.t, http.StatusFound, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == "aerogate_session" && c.Value != "" {
			return c
		}
	}
	e.t.Fatal("login did not set a session cookie")
	return nil
}

// authorize corre GET /oauth/authorize con sesión y devuelve code y state
// extraídos del redirect al client.
func (e *env) authorize(cookie *http.Cookie, clientID, redirect, state string) (code, gotState string) {
	e.t.Helper()

	q := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirect},
		"response_type": {"code"},
		"state":         {state},
	}
	resp := e.get("/oauth/authorize?"+q.Encode(), cookie)
	resp.Body.Close()
	require.Equal(e.t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(e.t, err)
	return loc.Query().Get("code"), loc.Query().Get("state")
}

// exchange canjea el código en POST /oauth/token.
func (e *env) exchange(code, clientID, secret, redirect string) *http.Response {
	e.t.Helper()
	return e.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {secret},
		"redirect_uri":  {redirect},
	})
}

// bearerToken corre el flujo completo (provision, login, authorize,
// exchange) y devuelve un access token listo para usar contra /api.
func (e *env) bearerToken(username string) string {
	e.t.Helper()

	e.provision(username, "secret123", "client-"+username, "s3cret", "https://app.example/cb")
	cookie := e.login(username, "secret123", "/")
	code, _ := e.authorize(cookie, "client-"+username, "https://app.example/cb", "st")

	resp := e.exchange(code, "client-"+username, "s3cret", "https://app.example/cb")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	e.decode(resp, &tok)
	require.NotEmpty(e.t, tok.AccessToken)
	return tok.AccessToken
}
