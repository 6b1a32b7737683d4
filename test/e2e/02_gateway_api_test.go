package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
)

// 02 - Gateway documental detrás del gatekeeper: traducción con cache,
// búsqueda RAG, normalización y ciclo de vida de PDFs.
func Test_02_GatekeeperModes(t *testing.T) {
	t.Run("bearer requerido por default", func(t *testing.T) {
		e := newEnv(t)

		resp := e.apiJSON(http.MethodGet, "/api/config", nil, "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

		token := e.bearerToken("gateuser")
		r2 := e.apiJSON(http.MethodGet, "/api/config", nil, token)
		require.Equal(t, http.StatusOK, r2.StatusCode)
		var out struct {
			FrontendConfig map[string]any `json:"frontend_config"`
		}
		e.decode(r2, &out)
		assert.NotNil(t, out.FrontendConfig)
	})

	t.Run("identidad forwardeada por el proxy", func(t *testing.T) {
		e := newEnvWith(t, envOptions{gatekeeper: mw.GatekeeperOptions{TrustProxyHeaders: true}})

		req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/config", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-User", "proxyuser")
		resp := e.do(req)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("modo anónimo abre el gate", func(t *testing.T) {
		e := newEnvWith(t, envOptions{gatekeeper: mw.GatekeeperOptions{AllowAnonymous: true}})

		resp := e.apiJSON(http.MethodGet, "/api/config", nil, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func Test_02_TranslateWithCache(t *testing.T) {
	e := newEnv(t)
	token := e.bearerToken("translator")
	e.up.setTranslation("確認してください")

	baseMsg, baseDoc, _, _ := e.up.counts()

	// Primera traducción: consulta RAG (mensaje + documentos) y LLM.
	resp := e.apiJSON(http.MethodPost, "/api/translate", map[string]any{"text": "Please check"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Translation string `json:"translation"`
	}
	e.decode(resp, &out)
	assert.Equal(t, "確認してください", out.Translation)

	msg, doc, _, _ := e.up.counts()
	assert.Equal(t, baseMsg+2, msg, "rag query + llm translate")
	assert.Equal(t, baseDoc+1, doc)

	// Repetir el mismo texto sale del cache sin tocar el upstream.
	r2 := e.apiJSON(http.MethodPost, "/api/translate", map[string]any{"text": "Please check"}, token)
	require.Equal(t, http.StatusOK, r2.StatusCode)
	r2.Body.Close()
	msg2, doc2, _, _ := e.up.counts()
	assert.Equal(t, msg, msg2)
	assert.Equal(t, doc, doc2)

	// force_refresh puentea el cache.
	r3 := e.apiJSON(http.MethodPost, "/api/translate", map[string]any{
		"text":          "Please check",
		"force_refresh": true,
	}, token)
	require.Equal(t, http.StatusOK, r3.StatusCode)
	r3.Body.Close()
	msg3, doc3, _, _ := e.up.counts()
	assert.Equal(t, msg+2, msg3)
	assert.Equal(t, doc+1, doc3)
}

func Test_02_TranslateBatchKeepsOrder(t *testing.T) {
	e := newEnv(t)
	token := e.bearerToken("batcher")
	e.up.setTranslation("翻訳済み")

	resp := e.apiJSON(http.MethodPost, "/api/translate_batch", map[string]any{
		"texts": []string{"one", "two", "three"},
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Translations []string `json:"translations"`
	}
	e.decode(resp, &out)
	require.Len(t, out.Translations, 3)
	for _, tr := range out.Translations {
		assert.Equal(t, "翻訳済み", tr)
	}
}

func Test_02_RAGSearchMapping(t *testing.T) {
	e := newEnv(t)
	token := e.bearerToken("searcher")

	resp := e.apiJSON(http.MethodPost, "/api/rag", map[string]any{"text": "ポンプ"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result []struct {
			Body struct {
				Text       string `json:"text"`
				DataSource string `json:"data_source"`
			} `json:"body"`
			Score float64 `json:"_score"`
		} `json:"result"`
	}
	e.decode(resp, &out)
	require.Len(t, out.Result, 2)

	// El orden respeta la key numérica del upstream, no el orden del mapa.
	assert.Equal(t, "油圧ポンプを交換", out.Result[0].Body.Text)
	assert.Equal(t, "Replace the hydraulic pump", out.Result[0].Body.DataSource)
	assert.InDelta(t, 0.95, out.Result[0].Score, 1e-9)

	assert.Equal(t, "弁を点検", out.Result[1].Body.Text)
	assert.InDelta(t, 0.61, out.Result[1].Score, 1e-9)
}

func Test_02_Normalize(t *testing.T) {
	e := newEnv(t)
	token := e.bearerToken("normalizer")
	e.up.setTranslation("確認")

	resp := e.apiJSON(http.MethodPost, "/api/normalize", map[string]any{"text": "カクニン"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Normalized string `json:"normalized"`
	}
	e.decode(resp, &out)
	assert.Equal(t, "確認", out.Normalized)
}

func Test_02_PDFLifecycle(t *testing.T) {
	e := newEnv(t)
	token := e.bearerToken("uploader")

	pdfBytes := []byte("%PDF-1.4 contenido de prueba")

	upload := func() *http.Response {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="manual.pdf"`)
		h.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(pdfBytes)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/upload-pdf", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return e.do(req)
	}

	t.Run("primer upload corre el OCR", func(t *testing.T) {
		resp := upload()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			OCRData  []map[string]any `json:"ocr_data"`
			CacheHit bool             `json:"cache_hit"`
		}
		e.decode(resp, &out)
		assert.False(t, out.CacheHit)
		require.Len(t, out.OCRData, 1)
		assert.Equal(t, float64(1), out.OCRData[0]["page"])
		assert.Equal(t, "請求書 2025-08", out.OCRData[0]["text"])

		_, _, register, result := e.up.counts()
		assert.Equal(t, 1, register)
		assert.GreaterOrEqual(t, result, 1)
	})

	t.Run("mismo contenido es cache hit", func(t *testing.T) {
		resp := upload()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			OCRData  []map[string]any `json:"ocr_data"`
			CacheHit bool             `json:"cache_hit"`
			Message  string           `json:"message"`
		}
		e.decode(resp, &out)
		assert.True(t, out.CacheHit)
		require.Len(t, out.OCRData, 1)
		assert.NotEmpty(t, out.Message)

		_, _, register, _ := e.up.counts()
		assert.Equal(t, 1, register, "cache hit must not re-register the job")
	})

	t.Run("listado muestra el archivo", func(t *testing.T) {
		resp := e.apiJSON(http.MethodGet, "/api/my-files", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Files []struct {
				Name         string `json:"name"`
				Size         int64  `json:"size"`
				LastModified string `json:"last_modified"`
			} `json:"files"`
		}
		e.decode(resp, &out)
		require.Len(t, out.Files, 1)
		assert.True(t, strings.HasSuffix(out.Files[0].Name, "_manual.pdf"), "name: %s", out.Files[0].Name)
		assert.Equal(t, int64(len(pdfBytes)), out.Files[0].Size)
		assert.NotEmpty(t, out.Files[0].LastModified)
	})

	t.Run("tipo de archivo equivocado es 400", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="nota.txt"`)
		h.Set("Content-Type", "text/plain")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write([]byte("no soy un pdf"))
		require.NoError(t, w.Close())

		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/upload-pdf", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp := e.do(req)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("days_old negativo es 400", func(t *testing.T) {
		resp := e.apiJSON(http.MethodDelete, "/api/cleanup-old-files?days_old=-1", nil, token)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("cleanup borra pdf y resultado", func(t *testing.T) {
		resp := e.apiJSON(http.MethodDelete, "/api/cleanup-old-files?days_old=0", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			DeletedCount int    `json:"deleted_count"`
			Message      string `json:"message"`
		}
		e.decode(resp, &out)
		assert.Equal(t, 2, out.DeletedCount, "pdf + json del OCR")
		assert.NotEmpty(t, out.Message)

		r2 := e.apiJSON(http.MethodGet, "/api/my-files", nil, token)
		require.Equal(t, http.StatusOK, r2.StatusCode)
		var after struct {
			Files []any `json:"files"`
		}
		e.decode(r2, &after)
		assert.Empty(t, after.Files)
	})
}
