// Package rag consulta la base vectorial del gateway de generación para
// recuperar pares de traducción similares al texto de entrada. El flujo
// es en dos pasos: mandar el texto como mensaje con plugin RAG y después
// pedir la lista de documentos asociada al message_id.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dropDatabas3/aerogate/internal/cache"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	"github.com/dropDatabas3/aerogate/internal/llm"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	tokens "github.com/dropDatabas3/aerogate/internal/security/token"
)

const apiKeyHeader = "thirdai-openai-api-key"

// Config parametriza el cliente RAG.
type Config struct {
	BaseURL  string
	APIKey   string
	ModelKey string
	// PluginKey identifica la base vectorial. Vacío ⇒ Search devuelve un
	// resultado vacío sin tocar el upstream.
	PluginKey     string
	MaxConcurrent int
	RequestDelay  time.Duration
	CacheTTL      time.Duration
}

// Client es el cliente de búsqueda vectorial. Seguro para uso concurrente.
type Client struct {
	httpc *http.Client
	cache cache.Client
	cfg   Config
	sem   *semaphore.Weighted
}

// New crea el cliente. httpc nil usa un cliente con timeout de 60s;
// store nil desactiva el cache.
func New(httpc *http.Client, store cache.Client, cfg Config) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &Client{
		httpc: httpc,
		cache: store,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// SearchResult es la respuesta del endpoint de documentos. Las keys de
// SearchResult son índices como strings ("0", "1", ...).
type SearchResult struct {
	Result struct {
		SearchResult map[string]SearchItem `json:"search_result"`
	} `json:"result"`
}

// SearchItem es un documento recuperado. Content viene como texto plano
// con los campos text_ja/text_en embebidos.
type SearchItem struct {
	Content       string  `json:"content"`
	SearchScore   float64 `json:"search_score"`
	RerankerScore float64 `json:"reranker_score"`
	Score         float64 `json:"score"`
}

// BestScore elige el primer score no nulo en el orden en que el upstream
// los fue agregando entre versiones.
func (it SearchItem) BestScore() float64 {
	if it.SearchScore != 0 {
		return it.SearchScore
	}
	if it.RerankerScore != 0 {
		return it.RerankerScore
	}
	return it.Score
}

// Empty reporta si la búsqueda no trajo documentos.
func (r *SearchResult) Empty() bool {
	return r == nil || len(r.Result.SearchResult) == 0
}

// Items devuelve los documentos ordenados por su key numérica. El
// upstream manda el ranking como objeto con índices string, así que el
// orden de iteración del mapa no sirve.
func (r *SearchResult) Items() []SearchItem {
	if r == nil {
		return nil
	}
	m := r.Result.SearchResult
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})

	items := make([]SearchItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, m[k])
	}
	return items
}

// Search ejecuta la búsqueda vectorial. Un rate limit del upstream espera
// el Retry-After y devuelve error sin reintentar: el caller decide si el
// resultado era imprescindible.
func (c *Client) Search(ctx context.Context, text string, useCache bool) (*SearchResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("gateway"),
		logger.Component("rag"),
		logger.Op("Search"),
	)

	key := searchCacheKey(text)
	if useCache && c.cache != nil {
		if v, err := c.cache.Get(ctx, key); err == nil && v != "" {
			var cached SearchResult
			if err := json.Unmarshal([]byte(v), &cached); err == nil {
				httpx.RecordCacheLookup("rag", "hit")
				log.Debug("rag cache hit")
				return &cached, nil
			}
		}
		httpx.RecordCacheLookup("rag", "miss")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if c.cfg.PluginKey == "" {
		log.Warn("rag plugin key not configured, skipping search")
		return &SearchResult{}, nil
	}

	messageID, err := c.sendQuery(ctx, log, text)
	if err != nil {
		return nil, err
	}

	result, err := c.fetchDocuments(ctx, log, messageID)
	if err != nil {
		return nil, err
	}

	if useCache && c.cache != nil {
		if b, err := json.Marshal(result); err == nil {
			if err := c.cache.Set(ctx, key, string(b), c.cfg.CacheTTL); err != nil {
				log.Warn("failed to cache rag result", logger.Err(err))
			}
		}
	}

	c.pause(ctx)
	return result, nil
}

type queryRequest struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	PluginID string        `json:"plugin_id"`
	Language string        `json:"language"`
	// save_result hace que el gateway persista los documentos para el
	// fetch posterior por message_id.
	SaveResult bool `json:"save_result"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryResponse struct {
	MessageID string `json:"message_id"`
}

func (c *Client) sendQuery(ctx context.Context, log *zap.Logger, text string) (string, error) {
	payload := queryRequest{
		Messages:   []chatMessage{{Role: "user", Content: text}},
		Model:      c.cfg.ModelKey,
		PluginID:   c.cfg.PluginKey,
		Language:   "ja",
		SaveResult: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messageURL(), strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		httpx.RecordUpstream("rag", "error")
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		httpx.RecordUpstream("rag", "throttled")
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), 30)
		log.Warn("rate limited by rag upstream", logger.Int("wait_seconds", wait))
		c.sleep(ctx, time.Duration(wait)*time.Second)
		return "", errors.New("rag: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		httpx.RecordUpstream("rag", "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("rag query failed",
			logger.Status(resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return "", fmt.Errorf("rag: upstream status %d", resp.StatusCode)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		httpx.RecordUpstream("rag", "error")
		return "", fmt.Errorf("rag: decode response: %w", err)
	}
	if out.MessageID == "" {
		httpx.RecordUpstream("rag", "error")
		return "", errors.New("rag: response missing message_id")
	}
	return out.MessageID, nil
}

func (c *Client) fetchDocuments(ctx context.Context, log *zap.Logger, messageID string) (*SearchResult, error) {
	u := c.documentListURL() + "?" + url.Values{"message_id": {messageID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		httpx.RecordUpstream("rag", "error")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		// El gateway responde 400 cuando el mensaje no generó documentos.
		var errBody struct {
			Error struct {
				ErrorCode string `json:"error_code"`
				Message   string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		log.Warn("rag search returned no documents",
			logger.String("error_code", errBody.Error.ErrorCode),
			logger.String("message", errBody.Error.Message),
		)
		httpx.RecordUpstream("rag", "ok")
		return &SearchResult{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		httpx.RecordUpstream("rag", "error")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("rag document fetch failed",
			logger.Status(resp.StatusCode),
			logger.String("body", string(snippet)),
		)
		return nil, fmt.Errorf("rag: document list status %d", resp.StatusCode)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		httpx.RecordUpstream("rag", "error")
		return nil, fmt.Errorf("rag: decode document list: %w", err)
	}
	httpx.RecordUpstream("rag", "ok")
	return &result, nil
}

// ParseContentFields separa el content plano de un documento en sus
// partes text_ja y text_en. text_en corre hasta el final del texto.
func ParseContentFields(content string) (textJA, textEN string) {
	const jaTag = "text_ja:"
	const enTag = "text_en:"

	jaIdx := strings.Index(content, jaTag)
	enIdx := strings.Index(content, enTag)
	if jaIdx >= 0 && enIdx >= 0 {
		if start := jaIdx + len(jaTag); start <= enIdx {
			textJA = strings.TrimSpace(content[start:enIdx])
		}
	}
	if enIdx >= 0 {
		textEN = strings.TrimSpace(content[enIdx+len(enTag):])
	}
	return textJA, textEN
}

// ExtractSamples arma el mapa sampleN_ja/sampleN_en (N=1..5) que consume
// el prompt de traducción, a partir de los 5 mejores documentos.
func ExtractSamples(res *SearchResult) map[string]string {
	samples := make(map[string]string)
	for n, item := range res.Items() {
		if n >= 5 {
			break
		}
		ja, en := ParseContentFields(item.Content)
		samples[fmt.Sprintf("sample%d_ja", n+1)] = ja
		samples[fmt.Sprintf("sample%d_en", n+1)] = en
	}
	return samples
}

func (c *Client) messageURL() string {
	return llm.NormalizeBaseURL(c.cfg.BaseURL) + "/api/message"
}

func (c *Client) documentListURL() string {
	return llm.NormalizeBaseURL(c.cfg.BaseURL) + "/api/message/document/list"
}

func (c *Client) pause(ctx context.Context) {
	if c.cfg.RequestDelay > 0 {
		c.sleep(ctx, c.cfg.RequestDelay)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func searchCacheKey(text string) string {
	return "rag:" + tokens.SHA256Hex(text)
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
