package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/rate"
)

// RateKeyFunc genera la clave de rate limiting para un request.
type RateKeyFunc func(r *http.Request) string

// IPRateKey agrupa por IP del cliente. Detrás de un proxy usa el primer
// hop de X-Forwarded-For.
func IPRateKey(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return strings.TrimSpace(strings.SplitN(xf, ",", 2)[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRateLimit limita hits por clave sobre los endpoints sensibles
// (login, token). Un error del limiter deja pasar el request: perder
// Redis no puede tirar el login abajo.
func WithRateLimit(limiter rate.Limiter, keyFunc RateKeyFunc) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFunc == nil {
		keyFunc = IPRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable",
					logger.Op("ratelimit"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				logger.From(r.Context()).Warn("rate limit exceeded",
					logger.Op("ratelimit"),
					logger.Path(r.URL.Path),
					logger.Int("hits", int(res.CurrentHits)),
				)
				httperrors.WriteError(w, httperrors.ErrRateLimited)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
