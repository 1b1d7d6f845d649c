// Package search looks up web pages related to a question. Backends are
// Google Custom Search, SerpAPI and DuckDuckGo's HTML endpoint; results can
// be cached in Redis or in process.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher runs a web search for a term and returns at most n results.
type Searcher interface {
	Search(ctx context.Context, term string, n int) ([]Result, error)
	Name() string
}

var (
	_ Searcher = (*GoogleSearcher)(nil)
	_ Searcher = (*SerpAPISearcher)(nil)
	_ Searcher = (*DuckDuckGoSearcher)(nil)
	_ Searcher = (*CachedSearcher)(nil)
	_ Searcher = NoopSearcher{}
)

// NoopSearcher returns no results. It is used when no backend is configured.
type NoopSearcher struct{}

func (NoopSearcher) Search(context.Context, string, int) ([]Result, error) { return nil, nil }
func (NoopSearcher) Name() string                                          { return "none" }

// IsNoop reports whether s never returns results.
func IsNoop(s Searcher) bool {
	_, ok := s.(NoopSearcher)
	return ok
}

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s search failed: HTTP %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s search failed: HTTP %d", e.Backend, e.StatusCode)
}

const maxResponseBytes = 2 << 20

// userAgent is sent to backends that reject requests without one.
const userAgent = "Mozilla/5.0 (compatible; grantgraph/1.0)"

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// fetch performs the request and returns the body of a 2xx response.
func fetch(client *http.Client, req *http.Request, backend string, errMessage func([]byte) string) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s search request: %w", backend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s search read body: %w", backend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if errMessage != nil {
			msg = errMessage(body)
		}
		return nil, &StatusError{Backend: backend, StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clampResults(n int) int {
	switch {
	case n <= 0:
		return 3
	case n > 10:
		return 10
	}
	return n
}
