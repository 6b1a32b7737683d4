package api

import (
	"net/http"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/api"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// NormalizeController maneja POST /api/normalize.
type NormalizeController struct {
	llm Normalizer
}

// NewNormalizeController crea el controller.
func NewNormalizeController(llm Normalizer) *NormalizeController {
	return &NormalizeController{llm: llm}
}

// Normalize reescribe katakana como hiragana/kanji vía LLM. Igual que en
// /api/translate, un fallo del upstream degrada al texto original en vez
// de romper el flujo del cliente.
func (c *NormalizeController) Normalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.normalize"))

	var req dto.NormalizeRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	normalized, err := c.llm.Normalize(ctx, req.Text)
	if err != nil {
		log.Warn("normalize failed, falling back to original text", logger.Err(err))
		normalized = req.Text
	}
	if normalized == "" {
		normalized = req.Text
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.NormalizeResponse{Normalized: normalized})
}
