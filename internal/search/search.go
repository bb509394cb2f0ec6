// Package search discovers scan targets by querying web search engines.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/0x6d61/sqlif/internal/transport"
)

// ErrUnsupportedEngine is returned for engine names outside the supported set.
var ErrUnsupportedEngine = errors.New("search: unsupported engine")

// DefaultPageTimeout bounds each results-page request.
const DefaultPageTimeout = 30 * time.Second

// pageHeaders are sent with every results-page request. Engines serve
// stripped-down or captcha pages to clients that omit them.
var pageHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// Result holds the links found by a search.
type Result struct {
	// URLs are absolute http(s) result links, deduplicated, in page order.
	URLs []string
	// Blocked is set when the engine answered with a ban or captcha page.
	Blocked bool
}

// Doer sends a low-level HTTP request. transport.DefaultClient implements it.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Searcher runs queries against the supported engines.
type Searcher struct {
	client      Doer
	baseURLs    map[string]string
	pageTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithBaseURL points an engine at a different results endpoint.
func WithBaseURL(engineName, baseURL string) Option {
	return func(s *Searcher) {
		s.baseURLs[strings.ToLower(engineName)] = baseURL
	}
}

// WithPageTimeout sets the per-page request timeout.
func WithPageTimeout(d time.Duration) Option {
	return func(s *Searcher) {
		s.pageTimeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = l
	}
}

// NewSearcher creates a Searcher that sends its requests through client.
func NewSearcher(client Doer, opts ...Option) *Searcher {
	s := &Searcher{
		client:      client,
		baseURLs:    make(map[string]string),
		pageTimeout: DefaultPageTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Supported returns the supported engine names, sorted.
func Supported() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name (case-insensitive) is a supported engine.
func IsSupported(name string) bool {
	_, ok := engines[strings.ToLower(name)]
	return ok
}

// Search queries engineName for up to pages result pages. It stops early
// when a page yields no new links or the engine blocks the client. Links
// collected before a request failure are returned along with the error.
func (s *Searcher) Search(ctx context.Context, engineName, query string, pages int) (Result, error) {
	var res Result

	newEngine, ok := engines[strings.ToLower(engineName)]
	if !ok {
		return res, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engineName)
	}
	e := newEngine()
	if base, ok := s.baseURLs[e.name]; ok {
		e.baseURL = base
	}
	if pages < 1 {
		pages = 1
	}

	seen := make(map[string]bool)
	for page := 0; page < pages; page++ {
		pageURL := e.pageURL(query, page)
		resp, err := s.client.Do(ctx, &transport.Request{
			Method:  http.MethodGet,
			URL:     pageURL,
			Headers: pageHeaders,
			Timeout: s.pageTimeout,
		})
		if err != nil {
			return res, fmt.Errorf("search: %s page %d: %w", e.name, page+1, err)
		}

		body := resp.BodyString()
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests || e.blocked(body) {
			s.logger.Warn("search engine blocked the request", "engine", e.name, "status", resp.StatusCode, "page", page+1)
			res.Blocked = true
			return res, nil
		}

		links, err := extractLinks(e, pageURL, resp.Body)
		if err != nil {
			return res, fmt.Errorf("search: %s page %d: %w", e.name, page+1, err)
		}

		added := 0
		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			res.URLs = append(res.URLs, link)
			added++
		}
		s.logger.Debug("search page parsed", "engine", e.name, "page", page+1, "links", added)
		if added == 0 {
			break
		}
	}

	return res, nil
}

// extractLinks parses a results page and returns the absolute http(s)
// destination of every result anchor.
func extractLinks(e *engine, pageURL string, body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	var links []string
	doc.Find(e.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := base.Parse(e.unwrap(href))
		if err != nil {
			return
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		links = append(links, ref.String())
	})
	return links, nil
}
