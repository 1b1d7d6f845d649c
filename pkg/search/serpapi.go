package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPISearcher queries Google through SerpAPI.
type SerpAPISearcher struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewSerpAPISearcher(apiKey string, timeout time.Duration) *SerpAPISearcher {
	return &SerpAPISearcher{
		apiKey:   apiKey,
		endpoint: serpAPIEndpoint,
		client:   newHTTPClient(timeout),
	}
}

func (s *SerpAPISearcher) Name() string { return "serpapi" }

func (s *SerpAPISearcher) Search(ctx context.Context, term string, n int) ([]Result, error) {
	n = clampResults(n)
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("api_key", s.apiKey)
	q.Set("q", term)
	q.Set("num", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi search request: %w", err)
	}
	body, err := fetch(s.client, req, s.Name(), func(b []byte) string {
		return gjson.GetBytes(b, "error").String()
	})
	if err != nil {
		return nil, err
	}
	// SerpAPI reports some failures with a 200 and an error field.
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return nil, fmt.Errorf("serpapi search failed: %s", msg)
	}

	var results []Result
	gjson.GetBytes(body, "organic_results").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("link").String()
		if link != "" {
			results = append(results, Result{
				Title:   clean(item.Get("title").String()),
				URL:     link,
				Snippet: clean(item.Get("snippet").String()),
			})
		}
		return len(results) < n
	})
	return results, nil
}
