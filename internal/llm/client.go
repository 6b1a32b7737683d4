// Package llm habla con el gateway de generación (SoftBank生成AIパッケージ)
// para traducción y normalización de texto. Maneja rate limits del
// upstream (429/503), reintentos con backoff exponencial, un semáforo de
// concurrencia y cache de resultados por prompt.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/dropDatabas3/aerogate/internal/cache"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	tokens "github.com/dropDatabas3/aerogate/internal/security/token"
)

// Header de autenticación del gateway.
const apiKeyHeader = "thirdai-openai-api-key"

// Config parametriza el cliente. Los defaults los aplica New.
type Config struct {
	BaseURL string
	APIKey  string
	// ModelKey identifica el modelo en el gateway ("1", "2", ...).
	ModelKey string
	// PluginKey habilita el plugin RAG en las traducciones. Vacío ⇒ el
	// payload no lleva plugin_id.
	PluginKey       string
	Temperature     float64
	TopP            float64
	MaxConcurrent   int
	RequestDelay    time.Duration
	CustomPrompt    string
	NormalizePrompt string
	CacheTTL        time.Duration
}

// Client es el cliente HTTP hacia el gateway LLM. Seguro para uso
// concurrente.
type Client struct {
	httpc *http.Client
	cache cache.Client
	cfg   Config
	sem   *semaphore.Weighted

	// Ventana del backoff exponencial entre intentos.
	retryMin time.Duration
	retryMax time.Duration
}

// New crea el cliente. httpc nil usa un cliente con timeout de 60s;
// store nil desactiva el cache.
func New(httpc *http.Client, store cache.Client, cfg Config) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Client{
		httpc:    httpc,
		cache:    store,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		retryMin: 2 * time.Second,
		retryMax: 60 * time.Second,
	}
}

// Translate manda el prompt al gateway y devuelve la traducción limpia.
// El cache se consulta antes de pedir un slot del semáforo; el delay
// post-request corre dentro del slot para espaciar las salidas reales.
func (c *Client) Translate(ctx context.Context, prompt string, useCache bool) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("gateway"),
		logger.Component("llm"),
		logger.Op("Translate"),
	)

	key := translateCacheKey(prompt)
	if useCache && c.cache != nil {
		if v, err := c.cache.Get(ctx, key); err == nil && v != "" {
			httpx.RecordCacheLookup("translate", "hit")
			log.Debug("translation cache hit")
			return v, nil
		}
		httpx.RecordCacheLookup("translate", "miss")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	raw, err := c.send(ctx, prompt, true)
	if err != nil {
		log.Error("translation failed", logger.Err(err))
		return "", err
	}

	result := CleanResult(raw)

	if useCache && c.cache != nil && result != "" {
		if err := c.cache.Set(ctx, key, result, c.cfg.CacheTTL); err != nil {
			log.Warn("failed to cache translation", logger.Err(err))
		}
	}

	c.pause(ctx)
	return result, nil
}

// Normalize convierte katakana a hiragana/kanji. Un solo intento, sin
// plugin RAG, sin cache: es un paso interactivo de la UI y el caller ya
// tiene fallback al texto original.
func (c *Client) Normalize(ctx context.Context, text string) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("gateway"),
		logger.Component("llm"),
		logger.Op("Normalize"),
	)

	prompt := c.cfg.NormalizePrompt
	if prompt == "" {
		prompt = DefaultNormalizePrompt
	}
	prompt = strings.ReplaceAll(prompt, "{targetText}", text)

	raw, err := c.sendOnce(ctx, prompt, false)
	if err != nil {
		log.Error("normalization failed", logger.Err(err))
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// send ejecuta sendOnce con reintentos: backoff exponencial 2s→60s,
// máximo 3 intentos. Un 429/503 impone su propia espera vía RetryAfter.
func (c *Client) send(ctx context.Context, prompt string, withPlugin bool) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryMin
	b.MaxInterval = c.retryMax
	b.Multiplier = 2

	return backoff.Retry(ctx, func() (string, error) {
		return c.sendOnce(ctx, prompt, withPlugin)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Language    string        `json:"language"`
	PluginID    string        `json:"plugin_id,omitempty"`
}

type messageResponse struct {
	MessageID string `json:"message_id"`
	Choices   []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) sendOnce(ctx context.Context, prompt string, withPlugin bool) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("gateway"),
		logger.Component("llm"),
		logger.Op("send"),
	)

	payload := messageRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Model:       c.cfg.ModelKey,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		Language:    "ja",
	}
	if withPlugin && c.cfg.PluginKey != "" {
		payload.PluginID = c.cfg.PluginKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL(), bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		httpx.RecordUpstream("llm", "error")
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		httpx.RecordUpstream("llm", "throttled")
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), 60) + 1 + rand.IntN(5)
		log.Warn("rate limited by llm upstream", logger.Int("wait_seconds", wait))
		return "", backoff.RetryAfter(wait)

	case resp.StatusCode == http.StatusServiceUnavailable:
		httpx.RecordUpstream("llm", "error")
		log.Warn("llm upstream unavailable, backing off")
		return "", backoff.RetryAfter(10 + 1 + rand.IntN(3))

	case resp.StatusCode != http.StatusOK:
		httpx.RecordUpstream("llm", "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("llm upstream error",
			logger.Status(resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return "", fmt.Errorf("llm: upstream status %d", resp.StatusCode)
	}

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		httpx.RecordUpstream("llm", "error")
		return "", backoff.Permanent(fmt.Errorf("llm: decode response: %w", err))
	}
	if out.MessageID == "" {
		httpx.RecordUpstream("llm", "error")
		return "", backoff.Permanent(errors.New("llm: response missing message_id"))
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		// El gateway contesta síncrono; sin choices no hay nada que
		// esperar del otro lado.
		httpx.RecordUpstream("llm", "error")
		return "", backoff.Permanent(errors.New("llm: response missing content"))
	}

	httpx.RecordUpstream("llm", "ok")
	return out.Choices[0].Message.Content, nil
}

func (c *Client) messageURL() string {
	return NormalizeBaseURL(c.cfg.BaseURL) + "/api/message"
}

// pause espacia requests consecutivos sin bloquear el shutdown.
func (c *Client) pause(ctx context.Context) {
	if c.cfg.RequestDelay <= 0 {
		return
	}
	t := time.NewTimer(c.cfg.RequestDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func translateCacheKey(prompt string) string {
	return "tr:" + tokens.SHA256Hex(prompt)
}

// NormalizeBaseURL deja la base sin slash final y con esquema https si
// no trae ninguno.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimRight(raw, "/")
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

func parseRetryAfter(header string, fallback int) int {
	if header == "" {
		return fallback
	}
	if n, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && n >= 0 {
		return n
	}
	return fallback
}
