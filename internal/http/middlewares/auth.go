package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// TokenVerifier valida un access token y devuelve sus claims.
// Lo implementa jwt.Issuer.
type TokenVerifier interface {
	Verify(token string) (map[string]any, error)
}

// GatekeeperOptions controla los modos de admisión del gatekeeper.
// Ambos flags vienen apagados por defecto: sin credencial ⇒ 401.
type GatekeeperOptions struct {
	// TrustProxyHeaders acepta X-Forwarded-User / X-Forwarded-Email como
	// identidad cuando NO hay bearer token. Solo para despliegues detrás
	// de un proxy perimetral que autentica él mismo; nunca habilitar con
	// el puerto expuesto directo.
	TrustProxyHeaders bool

	// AllowAnonymous admite requests sin credencial con una identidad
	// placeholder de desarrollo.
	AllowAnonymous bool
}

// anonymous es la identidad placeholder del modo AllowAnonymous.
var anonymous = Identity{
	Subject: "local",
	Email:   "local@example.com",
	Name:    "Local User",
}

// RequireAuth es el gatekeeper de /api: resuelve la identidad del request
// o corta con 401. Un bearer presente SIEMPRE se verifica; un token
// inválido nunca se admite, ni con AllowAnonymous activo.
//
// Orden de resolución:
//  1. Authorization: Bearer <jwt>  → verificar firma/expiración.
//  2. (solo TrustProxyHeaders) X-Forwarded-User / X-Forwarded-Email.
//  3. (solo AllowAnonymous) identidad placeholder.
//  4. 401 con challenge WWW-Authenticate.
func RequireAuth(verifier TokenVerifier, opts GatekeeperOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))

			if ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				raw := strings.TrimSpace(ah[len("Bearer "):])

				claims, err := verifier.Verify(raw)
				if err != nil {
					logger.From(r.Context()).Warn("bearer token rejected",
						logger.Op("gatekeeper"), logger.Err(err))
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
					httperrors.WriteError(w, httperrors.ErrInvalidToken)
					return
				}

				id := Identity{
					Subject: claimString(claims, "sub"),
					Email:   claimString(claims, "email"),
					Name:    claimString(claims, "name"),
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if opts.TrustProxyHeaders {
				user := strings.TrimSpace(r.Header.Get("X-Forwarded-User"))
				email := strings.TrimSpace(r.Header.Get("X-Forwarded-Email"))
				if user != "" || email != "" {
					id := Identity{Subject: user, Email: email, Name: user}
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
			}

			if opts.AllowAnonymous {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), anonymous)))
				return
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("missing bearer token"))
		})
	}
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
