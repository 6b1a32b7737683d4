package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/api"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/rag"
)

// Parámetros del batch, calibrados contra los rate limits del upstream:
// hasta 3 items en vuelo con una pausa corta antes de cada uno; lotes
// grandes se parten en chunks con respiro entre chunk y chunk.
const (
	batchConcurrency = 3
	batchItemDelay   = 50 * time.Millisecond
	batchChunkAfter  = 15
	batchChunkSize   = 8
	batchChunkPause  = 300 * time.Millisecond
)

// TranslateController maneja POST /api/translate y /api/translate_batch.
type TranslateController struct {
	llm Translator
	rag Searcher
}

// NewTranslateController crea el controller.
func NewTranslateController(llm Translator, rag Searcher) *TranslateController {
	return &TranslateController{llm: llm, rag: rag}
}

// Translate traduce un texto: busca muestras similares vía RAG, arma el
// prompt (o usa el que mandó el cliente) y llama al LLM. Si cualquier
// paso falla devuelve el texto original — la UI prefiere texto sin
// traducir antes que un error.
func (c *TranslateController) Translate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.translate"))

	var req dto.TranslateRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	useCache := !req.ForceRefresh
	translation := c.translateOne(ctx, req.Text, req.Prompt, useCache)
	if translation == "" {
		log.Warn("translation fell back to source text")
		translation = req.Text
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.TranslateResponse{Translation: translation})
}

// TranslateBatch traduce varios textos preservando el orden. Cada item
// corre el mismo pipeline que Translate; los fallos individuales caen al
// texto original sin afectar al resto.
func (c *TranslateController) TranslateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.translate_batch"))

	var req dto.TranslateBatchRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	useCache := !req.ForceRefresh
	log.Info("batch translation started", logger.Count(len(req.Texts)))

	sem := semaphore.NewWeighted(batchConcurrency)
	out := make([]string, len(req.Texts))

	worker := func(i int, text string) {
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i] = text
			return
		}
		defer sem.Release(1)

		sleepCtx(ctx, batchItemDelay)
		if translated := c.translateOne(ctx, text, "", useCache); translated != "" {
			out[i] = translated
			return
		}
		out[i] = text
	}

	runChunk := func(start, end int) {
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				worker(i, req.Texts[i])
			}(i)
		}
		wg.Wait()
	}

	if len(req.Texts) > batchChunkAfter {
		for start := 0; start < len(req.Texts); start += batchChunkSize {
			end := min(start+batchChunkSize, len(req.Texts))
			runChunk(start, end)
			if end < len(req.Texts) {
				sleepCtx(ctx, batchChunkPause)
			}
		}
	} else {
		runChunk(0, len(req.Texts))
	}

	log.Info("batch translation finished", logger.Count(len(out)))
	httperrors.WriteJSON(w, http.StatusOK, dto.TranslateBatchResponse{Translations: out})
}

// translateOne corre el pipeline RAG→prompt→LLM para un texto. Devuelve
// "" cuando no consiguió traducción.
func (c *TranslateController) translateOne(ctx context.Context, text, customPrompt string, useCache bool) string {
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.translate"))

	samples := map[string]string{}
	res, err := c.rag.Search(ctx, text, useCache)
	if err != nil {
		// sin muestras la traducción sale igual, solo menos afinada
		log.Warn("rag search failed, translating without samples", logger.Err(err))
	} else {
		samples = rag.ExtractSamples(res)
	}

	prompt := customPrompt
	if prompt == "" {
		prompt = c.llm.BuildPrompt(text, samples)
	}

	translated, err := c.llm.Translate(ctx, prompt, useCache)
	if err != nil {
		log.Warn("translation failed", logger.Err(err))
		return ""
	}
	return translated
}
