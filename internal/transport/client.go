package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is the User-Agent sent when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows; U; Windows NT 6.0;) AppleWebKit/534.13 (KHTML, like Gecko) Chrome/53.0.2345.233 Safari/534"

// ErrClientClosed is reported for requests issued after Close.
var ErrClientClosed = errors.New("transport: client closed")

// Client is the interface the scan pipeline uses to talk to targets. Get and
// Post never return an error value: any failure is carried in the Result so a
// single unreachable payload cannot abort its siblings.
type Client interface {
	// Get sends a GET request. params, when non-nil, are merged into the
	// URL's query string.
	Get(ctx context.Context, rawURL string, params url.Values) Result

	// Post sends a form-encoded POST request with data as the body.
	Post(ctx context.Context, rawURL string, data Encoder) Result
}

// Encoder produces an application/x-www-form-urlencoded body.
// url.Values satisfies it.
type Encoder interface {
	Encode() string
}

// TransportStats holds aggregate statistics for the transport client.
type TransportStats struct {
	TotalRequests  int64
	FailedRequests int64
	TotalDuration  time.Duration
	AvgDuration    time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
type ClientOptions struct {
	// Timeout bounds every individual request.
	Timeout time.Duration
	// UserAgent is sent on every request unless RandomUserAgent is set.
	UserAgent string
	// RandomUserAgent picks a User-Agent from the built-in pool per request.
	RandomUserAgent bool
	// ProxyURL is the proxy URL (HTTP or SOCKS5).
	ProxyURL string
	// FollowRedirects controls whether redirects are followed.
	FollowRedirects bool
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// MaxRPS is the maximum requests per second (0 = unlimited).
	MaxRPS float64
}

// DefaultClient is the shared HTTP client for a scan run. The underlying
// connection pool is built on first use and released by Close. It is safe
// for concurrent use.
type DefaultClient struct {
	opts    ClientOptions
	proxy   *url.URL
	limiter *rate.Limiter

	once       sync.Once
	httpClient *http.Client
	initErr    error

	mu              sync.RWMutex
	closed          bool
	totalRequests   int64
	failedRequests  int64
	totalDurationNs int64
}

// Compile-time check that DefaultClient implements Client.
var _ Client = (*DefaultClient)(nil)

// NewClient creates a new DefaultClient with the given options. The proxy URL
// is validated here; the connection pool itself is created lazily.
func NewClient(opts ClientOptions) (*DefaultClient, error) {
	dc := &DefaultClient{opts: opts}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL: missing scheme or host")
		}
		dc.proxy = proxyURL
	}

	if opts.MaxRPS > 0 {
		dc.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}

	return dc, nil
}

// init builds the pooled *http.Client exactly once.
func (c *DefaultClient) init() (*http.Client, error) {
	c.once.Do(func() {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: c.opts.InsecureSkipVerify,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 16,
		}
		if c.proxy != nil {
			transport.Proxy = http.ProxyURL(c.proxy)
		}

		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			c.initErr = fmt.Errorf("creating cookie jar: %w", err)
			return
		}

		client := &http.Client{
			Transport: transport,
			Timeout:   c.opts.Timeout,
			Jar:       jar,
		}
		if !c.opts.FollowRedirects {
			client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
		}
		c.httpClient = client
	})
	return c.httpClient, c.initErr
}

// Get sends a GET request and reports the body or the failure.
func (c *DefaultClient) Get(ctx context.Context, rawURL string, params url.Values) Result {
	target, err := withParams(rawURL, params)
	if err != nil {
		return c.fail(err)
	}
	return c.result(c.Do(ctx, &Request{Method: http.MethodGet, URL: target}))
}

// Post sends a form-encoded POST request and reports the body or the failure.
func (c *DefaultClient) Post(ctx context.Context, rawURL string, data Encoder) Result {
	req := &Request{
		Method:      http.MethodPost,
		URL:         rawURL,
		ContentType: "application/x-www-form-urlencoded",
	}
	if data != nil {
		req.Body = data.Encode()
	}
	return c.result(c.Do(ctx, req))
}

func (c *DefaultClient) result(resp *Response, err error) Result {
	if err != nil {
		return c.fail(err)
	}
	return Result{Body: resp.BodyString(), StatusCode: resp.StatusCode}
}

func (c *DefaultClient) fail(err error) Result {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
	return Result{Err: err}
}

// Do sends an HTTP request and returns the response. It applies rate
// limiting, timing measurement, custom headers and the per-request timeout.
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClientClosed
	}

	base, err := c.init()
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, ErrClientClosed
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		switch {
		case c.opts.RandomUserAgent:
			httpReq.Header.Set("User-Agent", RandomUserAgent())
		case c.opts.UserAgent != "":
			httpReq.Header.Set("User-Agent", c.opts.UserAgent)
		}
	}

	// A timeout override works on a shallow copy so the shared pool and
	// cookie jar are still used.
	httpClient := base
	if req.Timeout > 0 {
		cc := *base
		cc.Timeout = req.Timeout
		httpClient = &cc
	}

	start := time.Now()
	httpResp, err := httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentLength: httpResp.ContentLength,
		Duration:      duration,
		URL:           httpResp.Request.URL.String(),
		Protocol:      fmt.Sprintf("HTTP/%d.%d", httpResp.ProtoMajor, httpResp.ProtoMinor),
	}

	c.mu.Lock()
	c.totalRequests++
	c.totalDurationNs += duration.Nanoseconds()
	c.mu.Unlock()

	return resp, nil
}

// Close releases pooled connections. Requests issued afterwards fail with
// ErrClientClosed. Close is idempotent.
func (c *DefaultClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Waits for an in-flight init and prevents a later one.
	c.once.Do(func() {})
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *TransportStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &TransportStats{
		TotalRequests:  c.totalRequests,
		FailedRequests: c.failedRequests,
		TotalDuration:  time.Duration(c.totalDurationNs),
	}
	if c.totalRequests > 0 {
		stats.AvgDuration = time.Duration(c.totalDurationNs / c.totalRequests)
	}
	return stats
}

// withParams merges params into the query of rawURL. Existing keys are
// replaced by the values in params.
func withParams(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
