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

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleSearcher queries the Google Custom Search JSON API.
type GoogleSearcher struct {
	apiKey   string
	cseID    string
	endpoint string
	client   *http.Client
}

// NewGoogleSearcher creates a Custom Search client.
func NewGoogleSearcher(apiKey, cseID string, timeout time.Duration) *GoogleSearcher {
	return &GoogleSearcher{
		apiKey:   apiKey,
		cseID:    cseID,
		endpoint: googleEndpoint,
		client:   newHTTPClient(timeout),
	}
}

func (s *GoogleSearcher) Name() string { return "google" }

func (s *GoogleSearcher) Search(ctx context.Context, term string, n int) ([]Result, error) {
	n = clampResults(n)
	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("cx", s.cseID)
	q.Set("q", term)
	q.Set("num", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google search request: %w", err)
	}
	body, err := fetch(s.client, req, s.Name(), func(b []byte) string {
		return gjson.GetBytes(b, "error.message").String()
	})
	if err != nil {
		return nil, err
	}

	var results []Result
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
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
