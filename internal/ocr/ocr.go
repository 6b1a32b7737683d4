// Package ocr integra el servicio de lectura completa (全文読取) de DX
// Suite: registro del PDF como job asíncrono y polling hasta que el OCR
// termina. El resultado por página se trata como JSON opaco del upstream.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	httpx "github.com/dropDatabas3/aerogate/internal/http"
	"github.com/dropDatabas3/aerogate/internal/llm"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// Config parametriza el cliente DX Suite.
type Config struct {
	BaseURL string
	APIKey  string
	// PollInterval separa las consultas de estado; PollTimeout corta el
	// job si el OCR nunca termina.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client es el cliente del OCR. Seguro para uso concurrente.
type Client struct {
	httpc *http.Client
	cfg   Config
}

// New crea el cliente. httpc nil usa un cliente con timeout de 60s.
func New(httpc *http.Client, cfg Config) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	return &Client{httpc: httpc, cfg: cfg}
}

// Page es una página del resultado OCR. El esquema lo define DX Suite y
// el gateway lo reenvía sin interpretar.
type Page = map[string]any

// ErrJobTimeout indica que el OCR no terminó dentro del PollTimeout.
var ErrJobTimeout = errors.New("ocr: job did not complete in time")

// ProcessPDF registra el PDF y espera el resultado completo.
func (c *Client) ProcessPDF(ctx context.Context, content []byte, filename string) ([]Page, error) {
	log := logger.From(ctx).With(
		logger.Layer("gateway"),
		logger.Component("ocr"),
		logger.Op("ProcessPDF"),
	)

	jobID, err := c.register(ctx, content, filename)
	if err != nil {
		log.Error("ocr register failed", logger.Err(err))
		return nil, err
	}
	log.Info("ocr job registered", logger.String("job_id", jobID))

	pages, err := c.waitForResult(ctx, jobID)
	if err != nil {
		log.Error("ocr job failed", logger.String("job_id", jobID), logger.Err(err))
		return nil, err
	}
	log.Info("ocr job done", logger.String("job_id", jobID), logger.Count(len(pages)))
	return pages, nil
}

func (c *Client) register(ctx context.Context, content []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part := make(textproto.MIMEHeader)
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	part.Set("Content-Type", "application/pdf")
	fw, err := mw.CreatePart(part)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(content); err != nil {
		return "", err
	}

	// concatenate apagado: una entrada de resultado por página.
	for field, value := range map[string]string{
		"concatenate":         "0",
		"characterExtraction": "1",
		"tableExtraction":     "1",
	} {
		if err := mw.WriteField(field, value); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.registerURL(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		httpx.RecordUpstream("ocr", "error")
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpx.RecordUpstream("ocr", "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr: register status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		httpx.RecordUpstream("ocr", "error")
		return "", fmt.Errorf("ocr: decode register response: %w", err)
	}
	if out.ID == "" {
		httpx.RecordUpstream("ocr", "error")
		return "", errors.New("ocr: register response missing job id")
	}
	return out.ID, nil
}

func (c *Client) waitForResult(ctx context.Context, jobID string) ([]Page, error) {
	deadline := time.Now().Add(c.cfg.PollTimeout)

	for time.Now().Before(deadline) {
		status, pages, err := c.fetchResult(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status {
		case "done":
			httpx.RecordUpstream("ocr", "ok")
			return pages, nil
		case "error":
			httpx.RecordUpstream("ocr", "error")
			return nil, errors.New("ocr: job reported error")
		case "inprogress":
			if err := sleepCtx(ctx, c.cfg.PollInterval); err != nil {
				return nil, err
			}
		default:
			httpx.RecordUpstream("ocr", "error")
			return nil, fmt.Errorf("ocr: unexpected job status %q", status)
		}
	}
	httpx.RecordUpstream("ocr", "error")
	return nil, ErrJobTimeout
}

func (c *Client) fetchResult(ctx context.Context, jobID string) (string, []Page, error) {
	u := c.resultURL() + "?" + url.Values{"id": {jobID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		httpx.RecordUpstream("ocr", "error")
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpx.RecordUpstream("ocr", "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("ocr: result status %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		Status  string `json:"status"`
		Results []Page `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		httpx.RecordUpstream("ocr", "error")
		return "", nil, fmt.Errorf("ocr: decode result: %w", err)
	}
	return out.Status, out.Results, nil
}

func (c *Client) registerURL() string {
	return llm.NormalizeBaseURL(c.cfg.BaseURL) + "/wf/api/fullocr/v2/register"
}

func (c *Client) resultURL() string {
	return llm.NormalizeBaseURL(c.cfg.BaseURL) + "/wf/api/fullocr/v2/getOcrResult"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
