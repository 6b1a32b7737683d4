// Package router define las rutas HTTP del servicio y arma el handler
// raíz. La cadena global (request id, logging, métricas, recover, CORS)
// corre sobre todas las rutas; los gates específicos (admin token,
// gatekeeper de /api, rate limit de login/token) se aplican por grupo.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/aerogate/internal/http"
	adminctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/admin"
	apictrl "github.com/dropDatabas3/aerogate/internal/http/controllers/api"
	healthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/oauth"
	sessionctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/session"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
	"github.com/dropDatabas3/aerogate/internal/rate"
)

// Deps agrupa los controllers y la configuración transversal del router.
type Deps struct {
	// IDP
	Health    *healthctrl.Controller
	Login     *sessionctrl.LoginController
	Logout    *sessionctrl.LogoutController
	Register  *adminctrl.RegisterController
	Authorize *oauthctrl.AuthorizeController
	Token     *oauthctrl.TokenController
	Userinfo  *oauthctrl.UserinfoController

	// Gateway
	Config    *apictrl.ConfigController
	Translate *apictrl.TranslateController
	Search    *apictrl.SearchController
	Normalize *apictrl.NormalizeController
	Document  *apictrl.DocumentController

	// Seguridad transversal
	Verifier   mw.TokenVerifier
	Gatekeeper mw.GatekeeperOptions
	AdminToken string
	Limiter    rate.Limiter // nil desactiva el rate limit

	// Observabilidad. Nil omite la ruta /metrics.
	Metrics http.Handler

	// CORS
	CORSAllowedOrigins []string
	CORSAllowAll       bool
}

// New arma el handler raíz del servicio.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		httpx.WithMetrics,
		mw.WithRecover(),
		mw.WithCORS(deps.CORSAllowedOrigins, deps.CORSAllowAll),
	)

	// 404/405 en el mismo wire format que el resto de la API.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Salud y metadata
	r.Get("/", deps.Health.Root)
	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	RegisterIDPRoutes(r, IDPRouterDeps{
		Login:   deps.Login,
		Logout:  deps.Logout,
		Limiter: deps.Limiter,
	})
	RegisterOAuthRoutes(r, OAuthRouterDeps{
		Authorize: deps.Authorize,
		Token:     deps.Token,
		Userinfo:  deps.Userinfo,
		Limiter:   deps.Limiter,
	})
	RegisterAdminRoutes(r, AdminRouterDeps{
		Register:   deps.Register,
		AdminToken: deps.AdminToken,
	})
	RegisterAPIRoutes(r, APIRouterDeps{
		Config:     deps.Config,
		Translate:  deps.Translate,
		Search:     deps.Search,
		Normalize:  deps.Normalize,
		Document:   deps.Document,
		Verifier:   deps.Verifier,
		Gatekeeper: deps.Gatekeeper,
	})

	return r
}
