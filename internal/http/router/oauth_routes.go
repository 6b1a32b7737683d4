package router

import (
	"github.com/go-chi/chi/v5"

	oauthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
	"github.com/dropDatabas3/aerogate/internal/rate"
)

// OAuthRouterDeps dependencias de las rutas del flujo authorization code.
type OAuthRouterDeps struct {
	Authorize *oauthctrl.AuthorizeController
	Token     *oauthctrl.TokenController
	Userinfo  *oauthctrl.UserinfoController
	Limiter   rate.Limiter
}

// RegisterOAuthRoutes registra authorize/token/userinfo. El exchange de
// token comparte el rate limit por IP con el login: son los dos puntos
// donde un atacante puede adivinar credenciales.
func RegisterOAuthRoutes(r chi.Router, deps OAuthRouterDeps) {
	throttle := mw.WithRateLimit(deps.Limiter, mw.IPRateKey)

	r.Group(func(r chi.Router) {
		r.Get("/oauth/authorize", deps.Authorize.Authorize)
		r.With(throttle).Post("/oauth/token", deps.Token.Token)
		r.Get("/oauth/userinfo", deps.Userinfo.Userinfo)
	})
}
