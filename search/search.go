// Package search implements content:search nodes: run a web search and
// return a short text summary of the top results. It reuses fetcher's
// HTTP client shape (same timeout/redirect handling) but parses the
// result page's DOM with goquery instead of converting the whole page to
// markdown, since only the result titles/snippets are wanted.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Searcher queries a configurable search endpoint's HTML result page,
// implementing nodes.Searcher.
type Searcher struct {
	// Endpoint is a search URL template with a single %s for the
	// url-escaped query (e.g. a self-hosted SearXNG instance's
	// "https://searx.example/search?q=%s&format=html").
	Endpoint string
	Timeout  time.Duration
	client   *http.Client
}

func New(endpoint string) *Searcher {
	return &Searcher{Endpoint: endpoint, Timeout: 15 * time.Second, client: &http.Client{}}
}

// Search fetches the endpoint for query and extracts up to 5 result
// titles and snippets, formatted as a markdown list (spec.md §4.5
// content:search).
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	if s.Endpoint == "" {
		return "", fmt.Errorf("search: no endpoint configured")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := fmt.Sprintf(s.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("search: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("search: parse results: %w", err)
	}

	var b strings.Builder
	count := 0
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find("a").First().Text())
		snippet := strings.TrimSpace(sel.Find(".content, p").First().Text())
		if title == "" {
			return true
		}
		fmt.Fprintf(&b, "- %s", title)
		if snippet != "" {
			fmt.Fprintf(&b, ": %s", snippet)
		}
		b.WriteString("\n")
		count++
		return count < 5
	})

	if count == 0 {
		return "No results found.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
