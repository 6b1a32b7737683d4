package router

import (
	"github.com/go-chi/chi/v5"

	sessionctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/session"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
	"github.com/dropDatabas3/aerogate/internal/rate"
)

// IDPRouterDeps dependencias de las rutas de sesión del IDP.
type IDPRouterDeps struct {
	Login   *sessionctrl.LoginController
	Logout  *sessionctrl.LogoutController
	Limiter rate.Limiter
}

// RegisterIDPRoutes registra login/logout. El POST de login va con rate
// limit por IP; el GET del formulario y el logout quedan libres.
func RegisterIDPRoutes(r chi.Router, deps IDPRouterDeps) {
	throttle := mw.WithRateLimit(deps.Limiter, mw.IPRateKey)

	r.Group(func(r chi.Router) {
		r.Get("/idp/login", deps.Login.ShowLogin)
		r.With(throttle).Post("/idp/login", deps.Login.Login)
		r.Post("/idp/logout", deps.Logout.Logout)
	})
}
