package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// RequireAdminToken protege los endpoints de provisioning. Compara
// X-Admin-Token contra el valor configurado en tiempo constante. Sin
// token configurado los endpoints quedan deshabilitados: todo 403.
func RequireAdminToken(adminToken string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Token")

			if adminToken == "" || got == "" ||
				subtle.ConstantTimeCompare([]byte(got), []byte(adminToken)) != 1 {
				logger.From(r.Context()).With(
					logger.Layer("middleware"),
					logger.Component("admin"),
				).Warn("admin token rejected")
				httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("admin token mismatch"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
