package middlewares

import (
	"net/http"
	"strings"
)

// WithCORS maneja CORS para los orígenes permitidos. allowAll habilita
// cualquier origen (modo desarrollo); con allowlist vacía y allowAll en
// false no se emite ningún header CORS.
func WithCORS(allowed []string, allowAll bool) Middleware {
	trim := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }

	alist := make([]string, 0, len(allowed))
	for _, v := range allowed {
		if t := trim(v); t != "" {
			alist = append(alist, t)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := trim(r.Header.Get("Origin"))
			allowedOrigin := ""

			if allowAll && origin != "" {
				allowedOrigin = origin
			} else {
				for _, a := range alist {
					if origin != "" && strings.EqualFold(origin, a) {
						allowedOrigin = origin
						break
					}
				}
			}

			// Vary para caches/proxies
			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if allowedOrigin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Token")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, WWW-Authenticate, Location")
				h.Set("Access-Control-Max-Age", "600") // preflight cache 10 min
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
