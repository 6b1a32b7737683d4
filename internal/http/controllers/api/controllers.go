// Package api expone los endpoints del gateway documental: traducción
// asistida por RAG, normalización, búsqueda vectorial, OCR de PDFs y
// gestión del cache de archivos. Todos viven bajo /api y pasan por el
// gatekeeper de sesión/token.
package api

import (
	"context"
	"time"

	"github.com/dropDatabas3/aerogate/internal/blobcache"
	"github.com/dropDatabas3/aerogate/internal/rag"
)

// Translator traduce prompts completos contra el gateway LLM.
type Translator interface {
	Translate(ctx context.Context, prompt string, useCache bool) (string, error)
	BuildPrompt(targetText string, samples map[string]string) string
}

// Normalizer convierte katakana a hiragana/kanji.
type Normalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// Searcher consulta la base vectorial.
type Searcher interface {
	Search(ctx context.Context, text string, useCache bool) (*rag.SearchResult, error)
}

// OCRProcessor corre el OCR completo de un PDF.
type OCRProcessor interface {
	ProcessPDF(ctx context.Context, content []byte, filename string) ([]map[string]any, error)
}

// BlobStore es el cache de PDFs y resultados OCR.
type BlobStore interface {
	SavePDF(content []byte, filename string) (string, error)
	GetOCR(fileHash string) (*blobcache.Entry, error)
	SaveOCR(fileHash string, entry *blobcache.Entry) error
	List(limit int) ([]blobcache.FileInfo, error)
	Cleanup(olderThan time.Duration) (int, error)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
