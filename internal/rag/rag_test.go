package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/aerogate/internal/cache"
)

const docListBody = `{
	"result": {
		"search_result": {
			"0": {"content": "text_ja: 左主脚を点検\n\ntext_en: Inspect left main gear", "search_score": 12.5},
			"1": {"content": "text_ja: 油圧漏れ確認\n\ntext_en: Check hydraulic leak", "reranker_score": 8.1}
		}
	}
}`

func newUpstream(t *testing.T, docList string) (*httptest.Server, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var sends, fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/message":
			sends.Add(1)
			w.Write([]byte(`{"message_id":"m-1"}`))
		case "/api/message/document/list":
			fetches.Add(1)
			assert.Equal(t, "m-1", r.URL.Query().Get("message_id"))
			w.Write([]byte(docList))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return srv, &sends, &fetches
}

func newTestClient(upstream string, cfg Config) *Client {
	cfg.BaseURL = upstream
	if cfg.ModelKey == "" {
		cfg.ModelKey = "1"
	}
	return New(&http.Client{Timeout: 5 * time.Second}, cache.NewMemory("test:", time.Minute), cfg)
}

func TestSearchTwoStepFlow(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/message":
			assert.Equal(t, "k-1", r.Header.Get("thirdai-openai-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte(`{"message_id":"m-1"}`))
		case "/api/message/document/list":
			w.Write([]byte(docListBody))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k-1", ModelKey: "3", PluginKey: "plug"})
	res, err := c.Search(context.Background(), "主脚の点検", true)
	require.NoError(t, err)

	msgs := got["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "主脚の点検", first["content"])
	assert.Equal(t, "3", got["model"])
	assert.Equal(t, "plug", got["plugin_id"])
	assert.Equal(t, "ja", got["language"])
	assert.Equal(t, true, got["save_result"])
	// la consulta de búsqueda no lleva knobs de sampling
	_, hasTemp := got["temperature"]
	assert.False(t, hasTemp)

	require.False(t, res.Empty())
	require.Len(t, res.Result.SearchResult, 2)
	assert.Contains(t, res.Result.SearchResult["0"].Content, "Inspect left main gear")
	assert.Equal(t, 12.5, res.Result.SearchResult["0"].BestScore())
	assert.Equal(t, 8.1, res.Result.SearchResult["1"].BestScore())
}

func TestSearchSkipsWithoutPluginKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k"})
	res, err := c.Search(context.Background(), "texto", true)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearchCachesResult(t *testing.T) {
	srv, sends, fetches := newUpstream(t, docListBody)
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})

	res1, err := c.Search(context.Background(), "mismo texto", true)
	require.NoError(t, err)
	res2, err := c.Search(context.Background(), "mismo texto", true)
	require.NoError(t, err)

	assert.Equal(t, int32(1), sends.Load())
	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, res1.Result.SearchResult["0"].Content, res2.Result.SearchResult["0"].Content)
}

func TestSearchBypassesCacheWhenDisabled(t *testing.T) {
	srv, sends, _ := newUpstream(t, docListBody)
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})

	_, err := c.Search(context.Background(), "texto", false)
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "texto", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), sends.Load())
}

func TestSearchNoDocumentsIsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/message":
			w.Write([]byte(`{"message_id":"m-1"}`))
		case "/api/message/document/list":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"error_code":"NO_RESULT","message":"no documents"}}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})
	res, err := c.Search(context.Background(), "texto raro", true)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestSearchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})
	_, err := c.Search(context.Background(), "texto", true)
	require.Error(t, err)
}

func TestSearchRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})
	_, err := c.Search(context.Background(), "texto", true)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "un 429 no se reintenta")
}

func TestSearchMissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, Config{APIKey: "k", PluginKey: "plug"})
	_, err := c.Search(context.Background(), "texto", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message_id")
}

func TestParseContentFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantJA  string
		wantEN  string
	}{
		{
			name:    "both fields",
			content: "text_ja: 左翼の点検\n\ntext_en: Inspect left wing\n",
			wantJA:  "左翼の点検",
			wantEN:  "Inspect left wing",
		},
		{
			name:    "en runs to end of content",
			content: "text_ja: 確認\ntext_en: Check line one\nline two",
			wantJA:  "確認",
			wantEN:  "Check line one\nline two",
		},
		{
			name:    "only en",
			content: "text_en: English only",
			wantJA:  "",
			wantEN:  "English only",
		},
		{
			name:    "only ja yields nothing",
			content: "text_ja: 日本語のみ",
			wantJA:  "",
			wantEN:  "",
		},
		{
			name:    "empty",
			content: "",
			wantJA:  "",
			wantEN:  "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ja, en := ParseContentFields(tc.content)
			assert.Equal(t, tc.wantJA, ja)
			assert.Equal(t, tc.wantEN, en)
		})
	}
}

func TestExtractSamplesNumericOrderAndCap(t *testing.T) {
	res := &SearchResult{}
	res.Result.SearchResult = map[string]SearchItem{}
	for _, k := range []string{"0", "1", "2", "10", "3", "4", "5"} {
		res.Result.SearchResult[k] = SearchItem{
			Content: fmt.Sprintf("text_ja: ja-%s\ntext_en: en-%s", k, k),
		}
	}

	samples := ExtractSamples(res)
	require.Len(t, samples, 10)

	// orden numérico: 0,1,2,3,4 — el "10" no entra antes que el "2"
	assert.Equal(t, "ja-0", samples["sample1_ja"])
	assert.Equal(t, "en-0", samples["sample1_en"])
	assert.Equal(t, "ja-3", samples["sample4_ja"])
	assert.Equal(t, "ja-4", samples["sample5_ja"])
	_, has := samples["sample6_ja"]
	assert.False(t, has)
}

func TestExtractSamplesNilResult(t *testing.T) {
	assert.Empty(t, ExtractSamples(nil))
	assert.Empty(t, ExtractSamples(&SearchResult{}))
}

func TestItemsNumericOrder(t *testing.T) {
	res := &SearchResult{}
	res.Result.SearchResult = map[string]SearchItem{
		"10": {Content: "c10"},
		"2":  {Content: "c2"},
		"0":  {Content: "c0"},
	}

	items := res.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "c0", items[0].Content)
	assert.Equal(t, "c2", items[1].Content)
	assert.Equal(t, "c10", items[2].Content)

	assert.Nil(t, (*SearchResult)(nil).Items())
}

func TestBestScoreFallbackChain(t *testing.T) {
	assert.Equal(t, 3.0, SearchItem{SearchScore: 3, RerankerScore: 2, Score: 1}.BestScore())
	assert.Equal(t, 2.0, SearchItem{RerankerScore: 2, Score: 1}.BestScore())
	assert.Equal(t, 1.0, SearchItem{Score: 1}.BestScore())
	assert.Equal(t, 0.0, SearchItem{}.BestScore())
}
