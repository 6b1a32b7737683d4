package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/aerogate/internal/blobcache"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	dto "github.com/dropDatabas3/aerogate/internal/http/dto/api"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

const (
	// maxUploadBytes limita el body de /api/upload-pdf. Manuales grandes
	// escaneados rondan los 20-30MB.
	maxUploadBytes = 50 << 20

	defaultCleanupDays = 90
	listFilesLimit     = 50
)

// DocumentController maneja el ciclo de vida de PDFs: upload+OCR con
// cache por hash de contenido, listado y limpieza de archivos viejos.
type DocumentController struct {
	ocr   OCRProcessor
	blobs BlobStore
}

// NewDocumentController crea el controller.
func NewDocumentController(ocr OCRProcessor, blobs BlobStore) *DocumentController {
	return &DocumentController{ocr: ocr, blobs: blobs}
}

// UploadPDF recibe un PDF por multipart, lo pasa por OCR y devuelve el
// resultado. El contenido se hashea primero: si ya procesamos ese mismo
// archivo la respuesta sale del cache sin tocar el upstream.
func (c *DocumentController) UploadPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("api.upload_pdf"))
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httperrors.WriteError(w, httperrors.ErrPayloadTooLarge.WithDetail("PDF exceeds the upload limit"))
			return
		}
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("only PDF files are supported"))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("failed to read uploaded file", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}

	fileHash := blobcache.HashContent(content)
	log = log.With(logger.String("file_hash", fileHash))

	if cached, err := c.blobs.GetOCR(fileHash); err == nil {
		httpx.RecordCacheLookup("ocr", "hit")
		ms := elapsedMS(start)
		log.Info("ocr cache hit", logger.Int("pages", len(cached.Results)))
		httperrors.WriteJSON(w, http.StatusOK, dto.OCRResponse{
			OCRData:          cached.Results,
			CacheHit:         true,
			Message:          fmt.Sprintf("キャッシュヒット！ 高速処理完了 (%.1fms)", ms),
			ProcessingTimeMS: ms,
		})
		return
	} else if !errors.Is(err, blobcache.ErrNotFound) {
		// Entrada corrupta o disco con problemas: se reprocesa como miss.
		log.Warn("ocr cache read failed", logger.Err(err))
	}
	httpx.RecordCacheLookup("ocr", "miss")

	filename := header.Filename
	if filename == "" {
		filename = "uploaded.pdf"
	}

	if _, err := c.blobs.SavePDF(content, filename); err != nil {
		log.Error("failed to store pdf", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}

	results, err := c.ocr.ProcessPDF(ctx, content, filename)
	if err != nil {
		log.Error("ocr processing failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrBadGateway.WithDetail("OCR processing failed"))
		return
	}

	entry := &blobcache.Entry{Results: results, FileHash: fileHash, Filename: filename}
	if err := c.blobs.SaveOCR(fileHash, entry); err != nil {
		log.Error("failed to store ocr result", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}

	ms := elapsedMS(start)
	log.Info("ocr completed", logger.Int("pages", len(results)))
	httperrors.WriteJSON(w, http.StatusOK, dto.OCRResponse{
		OCRData:          results,
		CacheHit:         false,
		Message:          fmt.Sprintf("新規OCR処理完了 (%.1fms) - 次回は高速キャッシュ利用", ms),
		ProcessingTimeMS: ms,
	})
}

// MyFiles lista los PDFs cacheados, más recientes primero.
func (c *DocumentController) MyFiles(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("api.my_files"))

	files, err := c.blobs.List(listFilesLimit)
	if err != nil {
		log.Error("failed to list files", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}

	out := make([]dto.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, dto.FileInfo{
			Name:         f.Name,
			Size:         f.Size,
			LastModified: f.LastModified.UTC().Format(time.RFC3339),
		})
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.FilesResponse{Files: out})
}

// CleanupOldFiles borra PDFs y resultados OCR con más de days_old días
// (default 90). days_old negativo se rechaza: con cutoff en el futuro la
// limpieza arrasaría con todo el cache.
func (c *DocumentController) CleanupOldFiles(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("api.cleanup_old_files"))

	days := defaultCleanupDays
	if raw := r.URL.Query().Get("days_old"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("days_old must be a non-negative integer"))
			return
		}
		days = n
	}

	deleted, err := c.blobs.Cleanup(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Error("cleanup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}

	log.Info("old files cleaned up", logger.Int("days_old", days), logger.Int("deleted", deleted))
	httperrors.WriteJSON(w, http.StatusOK, dto.CleanupResponse{
		DeletedCount: deleted,
		Message:      fmt.Sprintf("%d日以上前のファイルを%d個削除しました", days, deleted),
	})
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
