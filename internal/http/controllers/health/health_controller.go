// Package health expone los endpoints de estado: raíz informativa,
// liveness plano y readiness con chequeo de dependencias.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/cache"
	dto "github.com/dropDatabas3/aerogate/internal/http/dto/health"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
)

// Version del servicio; se reporta en GET /.
const Version = "1.0.0"

// Controller maneja /, /healthz y /readyz.
type Controller struct {
	pool  *pgxpool.Pool
	cache cache.Client
}

// NewController crea el controller. pool y cache pueden ser nil; en ese
// caso el readiness los reporta como deshabilitados.
func NewController(pool *pgxpool.Pool, c cache.Client) *Controller {
	return &Controller{pool: pool, cache: c}
}

// Root maneja GET /.
func (c *Controller) Root(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.RootResponse{
		Status:  "ok",
		Message: "Aerogate identity provider & document gateway",
		Version: Version,
	})
}

// Live maneja GET /healthz: responde mientras el proceso atienda.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "healthy"})
}

// Ready maneja GET /readyz: verifica storage y cache con timeout corto.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string, 2)
	healthy := true

	if c.pool != nil {
		if err := c.pool.Ping(ctx); err != nil {
			components["db"] = "error: " + err.Error()
			healthy = false
		} else {
			components["db"] = "ok"
		}
	} else {
		components["db"] = "disabled"
	}

	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			components["cache"] = "error: " + err.Error()
			healthy = false
		} else {
			components["cache"] = "ok"
		}
	} else {
		components["cache"] = "disabled"
	}

	status := "ready"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	httperrors.WriteJSON(w, code, dto.ReadyResponse{
		Status:     status,
		Components: components,
	})
}
