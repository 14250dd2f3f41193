// Package fetcher implements the behavior behind content:http nodes:
// fetch a URL and convert its HTML body to markdown, sanitizing untrusted
// markup first. Grounded on leofalp-aigo's webfetch tool
// (providers/tool/webfetch/webfetch.go) — same redirect/timeout/size-limit
// shape, converted to the nodes.Fetcher interface instead of a typed
// tool-call input/output pair.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/DeabLabs/cannoli-sub001/nodes"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "cannoli-fetch/1.0"
	MaxBodySize      = 10 * 1024 * 1024
	maxRedirects     = 10
)

// Fetcher fetches a URL and returns sanitized markdown, implementing
// nodes.Fetcher.
type Fetcher struct {
	Timeout   time.Duration
	UserAgent string

	client  *http.Client
	sanitize *bluemonday.Policy
}

func New() *Fetcher {
	return &Fetcher{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				ForceAttemptHTTP2:     true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (>%d)", maxRedirects)
				}
				return nil
			},
		},
		sanitize: bluemonday.UGCPolicy(),
	}
}

// Fetch retrieves url via GET with the fetcher's own defaults, implementing
// nodes.Fetcher's simple form.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchWithOptions(ctx, url, nodes.FetchOptions{})
}

// FetchWithOptions retrieves url (adding https:// if the scheme is
// missing), following redirects, capping the response body at MaxBodySize,
// sanitizing the HTML, and converting it to markdown; a JSON or text/plain
// response is returned verbatim, unsanitized. opts.Method defaults
// to GET and opts.Timeout to f.Timeout when left zero, so an http node's
// resolved config (nodes.httpConfig) maps onto this directly.
func (f *Fetcher) FetchWithOptions(ctx context.Context, url string, opts nodes.FetchOptions) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("fetcher: empty url")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if opts.Body != "" {
		bodyReader = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return "", fmt.Errorf("fetcher: build request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := f.client
	client.Timeout = timeout

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetcher: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetcher: unexpected status %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("fetcher: read body: %w", err)
	}
	if len(body) > MaxBodySize {
		return "", fmt.Errorf("fetcher: response exceeds %d bytes", MaxBodySize)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "text/plain") {
		return string(body), nil
	}

	clean := f.sanitize.SanitizeBytes(body)
	md, err := htmltomarkdown.ConvertString(string(clean))
	if err != nil {
		return "", fmt.Errorf("fetcher: html to markdown: %w", err)
	}
	return md, nil
}
