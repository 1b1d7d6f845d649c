package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoSearcher scrapes DuckDuckGo's HTML results page. It needs no
// credentials.
type DuckDuckGoSearcher struct {
	endpoint string
	client   *http.Client
}

func NewDuckDuckGoSearcher(timeout time.Duration) *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		endpoint: duckDuckGoEndpoint,
		client:   newHTTPClient(timeout),
	}
}

func (s *DuckDuckGoSearcher) Name() string { return "duckduckgo" }

func (s *DuckDuckGoSearcher) Search(ctx context.Context, term string, n int) ([]Result, error) {
	form := url.Values{}
	form.Set("q", term)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := fetch(s.client, req, s.Name(), nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo parse results: %w", err)
	}

	n = clampResults(n)
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		results = append(results, Result{
			Title:   clean(link.Text()),
			URL:     target,
			Snippet: clean(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < n
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
