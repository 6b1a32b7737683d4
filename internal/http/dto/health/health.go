// Package health contiene DTOs para endpoints de estado.
package health

// RootResponse representa la respuesta de GET /.
type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// HealthResponse representa la respuesta de GET /healthz.
type HealthResponse struct {
	Status string `json:"status"` // "healthy" | "degraded"
}

// ReadyResponse representa la respuesta de GET /readyz, que además
// verifica las dependencias (base de datos, cache).
type ReadyResponse struct {
	Status     string            `json:"status"` // "ready" | "degraded"
	Components map[string]string `json:"components,omitempty"`
}
