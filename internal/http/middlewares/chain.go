// Package middlewares contiene los middlewares HTTP de aerogate: request id,
// logging, recover, CORS y el gatekeeper de autenticación que protege /api.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler.
type Middleware func(http.Handler) http.Handler
