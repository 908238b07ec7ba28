// Package page provides access to rendered station pages. Extraction code
// depends only on the Browser interface; any engine able to produce HTML for
// a URL can back it.
package page

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Browser loads station pages. Implementations are reused sequentially
// across stations within a cycle; they are not safe for concurrent use.
type Browser interface {
	// Open navigates to url and returns the loaded page.
	Open(ctx context.Context, url string) (*Page, error)

	// Close releases the underlying resources.
	Close() error
}

// Page is one loaded document.
type Page struct {
	url string
	doc *goquery.Document
}

// URL returns the address the page was loaded from.
func (p *Page) URL() string {
	return p.url
}

// First returns the trimmed text of the first non-empty match among the
// given selectors, in order. Empty string when nothing matches.
func (p *Page) First(selectors ...string) string {
	for _, sel := range selectors {
		text := ""
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := strings.TrimSpace(s.Text())
			if t == "" {
				return true
			}
			text = t
			return false
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// Each visits every element matching selector.
func (p *Page) Each(selector string, fn func(s *goquery.Selection)) {
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(s)
	})
}

// Text returns the full rendered text of the page body.
func (p *Page) Text() string {
	return p.doc.Find("body").Text()
}

// Config holds HTTPBrowser settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// Settle is an extra pause after each navigation; station pages update
	// shortly after load and a fetch fired too early sees stale markup.
	Settle time.Duration
}

// HTTPBrowser fetches pages over plain HTTP. One shared client and handle
// serve all stations in a cycle.
type HTTPBrowser struct {
	client    *http.Client
	userAgent string
	settle    time.Duration
}

// NewHTTP creates an HTTP-backed browser.
func NewHTTP(cfg Config) *HTTPBrowser {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPBrowser{
		client:    &http.Client{Timeout: timeout},
		userAgent: ua,
		settle:    cfg.Settle,
	}
}

// Open fetches url and parses the response body.
func (b *HTTPBrowser) Open(ctx context.Context, url string) (*Page, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	if b.settle > 0 {
		select {
		case <-time.After(b.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Page{url: url, doc: doc}, nil
}

// Close is a no-op for the HTTP implementation.
func (b *HTTPBrowser) Close() error {
	return nil
}

// FromHTML builds a Page from raw HTML. Used by tests and by renderer-backed
// Browser implementations that produce markup out of band.
func FromHTML(url, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{url: url, doc: doc}, nil
}
