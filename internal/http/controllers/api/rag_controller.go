package api

import (
	"net/http"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/api"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/rag"
)

// SearchController maneja POST /api/rag.
type SearchController struct {
	rag Searcher
}

// NewSearchController crea el controller.
func NewSearchController(rag Searcher) *SearchController {
	return &SearchController{rag: rag}
}

// Search busca documentos similares y los devuelve en el formato que el
// frontend espera: body.text (japonés), body.data_source (inglés) y el
// score bajo _score. A diferencia de /api/translate, acá un fallo del
// upstream sí es un error: el resultado ES la respuesta.
func (c *SearchController) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.rag"))

	var req dto.RAGRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	res, err := c.rag.Search(ctx, req.Text, true)
	if err != nil {
		log.Error("rag search failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrBadGateway.WithDetail("RAG search failed"))
		return
	}

	results := make([]dto.RAGResult, 0, len(res.Result.SearchResult))
	for _, item := range res.Items() {
		ja, en := rag.ParseContentFields(item.Content)
		results = append(results, dto.RAGResult{
			Body:  dto.RAGResultBody{Text: ja, DataSource: en},
			Score: item.BestScore(),
		})
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.RAGResponse{Result: results})
}
