package router

import (
	"github.com/go-chi/chi/v5"

	adminctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/admin"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
)

// AdminRouterDeps dependencias de las rutas administrativas.
type AdminRouterDeps struct {
	Register   *adminctrl.RegisterController
	AdminToken string
}

// RegisterAdminRoutes registra el alta de usuarios y clients. Todo el
// grupo va detrás del token de admin; con token vacío el middleware
// rechaza siempre.
func RegisterAdminRoutes(r chi.Router, deps AdminRouterDeps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdminToken(deps.AdminToken))

		r.Post("/idp/register_user", deps.Register.RegisterUser)
		r.Post("/idp/register_client", deps.Register.RegisterClient)
	})
}
