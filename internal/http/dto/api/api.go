// Package api contiene los DTOs del gateway: traducción, RAG, OCR y
// gestión de archivos. Los nombres de campo replican el contrato que el
// frontend ya consume.
package api

// TranslateRequest traduce un texto individual.
type TranslateRequest struct {
	Text         string `json:"text"`
	Prompt       string `json:"prompt,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// TranslateResponse es la traducción resultante.
type TranslateResponse struct {
	Translation string `json:"translation"`
}

// TranslateBatchRequest traduce varios textos preservando el orden.
type TranslateBatchRequest struct {
	Texts        []string `json:"texts"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

// TranslateBatchResponse: translations[i] corresponde a texts[i].
type TranslateBatchResponse struct {
	Translations []string `json:"translations"`
}

// RAGRequest busca documentos similares al texto.
type RAGRequest struct {
	Text string `json:"text"`
}

// RAGResult es un resultado de búsqueda en el formato que espera el
// frontend: body.text (japonés), body.data_source (inglés) y el score.
type RAGResult struct {
	Body  RAGResultBody `json:"body"`
	Score float64       `json:"_score"`
}

type RAGResultBody struct {
	Text       string `json:"text"`
	DataSource string `json:"data_source"`
}

// RAGResponse es la lista de resultados formateados.
type RAGResponse struct {
	Result []RAGResult `json:"result"`
}

// NormalizeRequest normaliza un texto (katakana → hiragana/kanji).
type NormalizeRequest struct {
	Text string `json:"text"`
}

// NormalizeResponse es el texto normalizado.
type NormalizeResponse struct {
	Normalized string `json:"normalized"`
}

// OCRResponse es la respuesta de POST /api/upload-pdf.
type OCRResponse struct {
	OCRData          []map[string]any `json:"ocr_data"`
	CacheHit         bool             `json:"cache_hit"`
	Message          string           `json:"message,omitempty"`
	ProcessingTimeMS float64          `json:"processing_time_ms,omitempty"`
}

// FileInfo describe un PDF cacheado.
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// FilesResponse lista los PDFs cacheados.
type FilesResponse struct {
	Files []FileInfo `json:"files"`
}

// CleanupResponse reporta la limpieza de archivos viejos.
type CleanupResponse struct {
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

// ConfigResponse expone la configuración no-secreta para el frontend.
type ConfigResponse struct {
	FrontendConfig map[string]any `json:"frontend_config"`
}
