package api

import (
	"net/http"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/api"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
)

// ConfigController maneja GET /api/config.
type ConfigController struct{}

// NewConfigController crea el controller.
func NewConfigController() *ConfigController {
	return &ConfigController{}
}

// FrontendConfig expone la configuración no-secreta del frontend. Hoy el
// objeto va vacío: el frontend trae sus defaults y este endpoint existe
// para poder empujar overrides sin redeploy.
func (c *ConfigController) FrontendConfig(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.ConfigResponse{
		FrontendConfig: map[string]any{},
	})
}
