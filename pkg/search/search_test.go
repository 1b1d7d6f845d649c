package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/config"
)

func TestGoogleSearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		assert.Equal(t, "cse-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "CRISPR cardiac", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("num"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"CRISPR  in\nthe heart","link":"https://a.example/1","snippet":"first"},
			{"title":"no link"},
			{"title":"Second","link":"https://a.example/2","snippet":"second"},
			{"title":"Third","link":"https://a.example/3"}
		]}`))
	}))
	defer server.Close()

	s := NewGoogleSearcher("key-1", "cse-1", time.Second)
	s.endpoint = server.URL

	results, err := s.Search(context.Background(), "CRISPR cardiac", 2)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "CRISPR in the heart", URL: "https://a.example/1", Snippet: "first"},
		{Title: "Second", URL: "https://a.example/2", Snippet: "second"},
	}, results)
}

func TestGoogleSearcher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	s := NewGoogleSearcher("k", "c", time.Second)
	s.endpoint = server.URL

	_, err := s.Search(context.Background(), "x", 3)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "quota exceeded", statusErr.Message)
}

func TestSerpAPISearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "serp-key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"Result","link":"https://b.example","snippet":"s"}]}`))
	}))
	defer server.Close()

	s := NewSerpAPISearcher("serp-key", time.Second)
	s.endpoint = server.URL

	results, err := s.Search(context.Background(), "grants", 3)
	require.NoError(t, err)
	assert.Equal(t, []Result{{Title: "Result", URL: "https://b.example", Snippet: "s"}}, results)
}

func TestSerpAPISearcher_ErrorInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer server.Close()

	s := NewSerpAPISearcher("bad", time.Second)
	s.endpoint = server.URL

	_, err := s.Search(context.Background(), "grants", 3)
	assert.ErrorContains(t, err, "Invalid API key")
}

const ddgPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example">Ad</a>
</div>
<div class="result results_links">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fc.example%2Fpaper&rut=abc">Gene <b>editing</b> paper</a>
  <a class="result__snippet">About gene editing</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://d.example/page">Direct link</a>
</div>
<div class="result results_links">
  <a class="result__a" href="javascript:void(0)">Bad</a>
</div>
</body></html>`

func TestDuckDuckGoSearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "gene editing", r.PostForm.Get("q"))
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer server.Close()

	s := NewDuckDuckGoSearcher(time.Second)
	s.endpoint = server.URL

	results, err := s.Search(context.Background(), "gene editing", 5)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "Gene editing paper", URL: "https://c.example/paper", Snippet: "About gene editing"},
		{Title: "Direct link", URL: "https://d.example/page"},
	}, results)
}

type countingSearcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSearcher) Name() string { return "counting" }

func (s *countingSearcher) Search(_ context.Context, term string, _ int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []Result{{Title: term, URL: "https://x.example/" + term}}, nil
}

func TestCachedSearcher(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	backend := &countingSearcher{}
	s := NewCachedSearcher(backend, store, time.Hour, zap.NewNop())

	first, err := s.Search(context.Background(), "crispr", 3)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), "  CRISPR ", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.calls)
	hits, misses := s.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, "counting", s.Name())
}

func TestCachedSearcher_ErrorsNotCached(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	backend := &countingSearcher{err: errors.New("down")}
	s := NewCachedSearcher(backend, store, time.Hour, zap.NewNop())

	_, err = s.Search(context.Background(), "x", 3)
	assert.Error(t, err)
	_, err = s.Search(context.Background(), "x", 3)
	assert.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, err := NewMemoryStore(2)
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(context.Background(), "k", []Result{{URL: "u"}}, time.Minute))
	_, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SearchConfig
		want string
	}{
		{"none", config.SearchConfig{}, "none"},
		{"google needs cse id", config.SearchConfig{GoogleAPIKey: "k"}, "none"},
		{"google", config.SearchConfig{GoogleAPIKey: "k", GoogleCSEID: "c", SerpAPIKey: "s"}, "google"},
		{"serpapi", config.SearchConfig{SerpAPIKey: "s", EnableDuckDuckGo: true}, "serpapi"},
		{"duckduckgo", config.SearchConfig{EnableDuckDuckGo: true}, "duckduckgo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&tt.cfg, nil, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
			assert.Equal(t, tt.want == "none", IsNoop(s))
		})
	}
}
