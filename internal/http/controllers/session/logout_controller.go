package session

import (
	"net/http"

	svc "github.com/dropDatabas3/aerogate/internal/http/services/session"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// LogoutController maneja POST /idp/logout.
type LogoutController struct {
	sessions svc.Service
}

// NewLogoutController crea el controller.
func NewLogoutController(s svc.Service) *LogoutController {
	return &LogoutController{sessions: s}
}

// Logout invalida la sesión del navegador y expira la cookie. Siempre
// redirige al login, haya o no sesión que borrar.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(c.sessions.CookieName()); err == nil && cookie.Value != "" {
		if err := c.sessions.Logout(ctx, cookie.Value); err != nil {
			// El storage falló pero la cookie igual se expira: la sesión
			// huérfana vence sola por TTL.
			logger.From(ctx).With(
				logger.Layer("controller"),
				logger.Op("session.logout"),
			).Warn("session delete failed", logger.Err(err))
		}
	}

	http.SetCookie(w, c.sessions.ClearSessionCookie())
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, "/idp/login", http.StatusFound)
}
