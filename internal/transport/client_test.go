package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Helper: create a default test client
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T) *DefaultClient {
	t.Helper()
	c, err := NewClient(ClientOptions{
		Timeout:         5 * time.Second,
		UserAgent:       DefaultUserAgent,
		FollowRedirects: true,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGetReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		fmt.Fprint(w, "hello world")
	}))
	defer srv.Close()

	c := newTestClient(t)
	res := c.Get(context.Background(), srv.URL+"/page?id=1", nil)
	if !res.OK() {
		t.Fatalf("Get failed: %v", res.Err)
	}
	if res.Body != "hello world" {
		t.Errorf("Body = %q, want %q", res.Body, "hello world")
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
}

func TestGetMergesParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
	}))
	defer srv.Close()

	c := newTestClient(t)
	res := c.Get(context.Background(), srv.URL+"/?id=1&page=2", url.Values{"id": {"7"}, "q": {"x y"}})
	if !res.OK() {
		t.Fatalf("Get failed: %v", res.Err)
	}
	if gotQuery.Get("id") != "7" {
		t.Errorf("id = %q, want 7 (params override URL)", gotQuery.Get("id"))
	}
	if gotQuery.Get("page") != "2" {
		t.Errorf("page = %q, want 2", gotQuery.Get("page"))
	}
	if gotQuery.Get("q") != "x y" {
		t.Errorf("q = %q, want %q", gotQuery.Get("q"), "x y")
	}
}

// ---------------------------------------------------------------------------
// Post
// ---------------------------------------------------------------------------

func TestPostSendsFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	c := newTestClient(t)
	res := c.Post(context.Background(), srv.URL+"/login", url.Values{"user": {"admin'"}})
	if !res.OK() {
		t.Fatalf("Post failed: %v", res.Err)
	}
	if res.Body != "user=admin%27" {
		t.Errorf("Body = %q, want %q", res.Body, "user=admin%27")
	}
}

func TestPostNilData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("expected empty body, got %q", body)
		}
	}))
	defer srv.Close()

	c := newTestClient(t)
	if res := c.Post(context.Background(), srv.URL, nil); !res.OK() {
		t.Fatalf("Post failed: %v", res.Err)
	}
}

// ---------------------------------------------------------------------------
// Failures are carried in the Result
// ---------------------------------------------------------------------------

func TestTimeoutYieldsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientOptions{Timeout: 50 * time.Millisecond})
	defer c.Close()

	res := c.Get(context.Background(), srv.URL, nil)
	if res.OK() {
		t.Fatal("expected timeout failure, got OK")
	}
	if res.Err == nil {
		t.Error("expected Err to carry the reason")
	}
	if c.Stats().FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", c.Stats().FailedRequests)
	}
}

func TestConnectionRefusedYieldsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := newTestClient(t)
	res := c.Get(context.Background(), addr, nil)
	if res.OK() || res.Err == nil {
		t.Fatalf("expected connection failure, got %+v", res)
	}
}

func TestMalformedURLYieldsFailedResult(t *testing.T) {
	c := newTestClient(t)
	res := c.Get(context.Background(), "http://[::1", url.Values{"a": {"b"}})
	if res.OK() {
		t.Fatal("expected failure for malformed URL")
	}
}

func TestZeroResultIsAbsent(t *testing.T) {
	var r Result
	if r.OK() {
		t.Error("zero Result should not be OK")
	}
	if Failed(errors.New("x")).OK() {
		t.Error("Failed() result should not be OK")
	}
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

func TestRequestsAfterCloseFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := newTestClient(t)
	if res := c.Get(context.Background(), srv.URL, nil); !res.OK() {
		t.Fatalf("Get before close failed: %v", res.Err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	res := c.Get(context.Background(), srv.URL, nil)
	if !errors.Is(res.Err, ErrClientClosed) {
		t.Errorf("Err = %v, want ErrClientClosed", res.Err)
	}
	// Idempotent.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCloseBeforeFirstUse(t *testing.T) {
	c, _ := NewClient(ClientOptions{Timeout: time.Second})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Do(context.Background(), &Request{URL: "http://127.0.0.1:1"}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("err = %v, want ErrClientClosed", err)
	}
}

// ---------------------------------------------------------------------------
// Shared pool: concurrent use
// ---------------------------------------------------------------------------

func TestConcurrentRequestsShareClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Query().Get("n"))
	}))
	defer srv.Close()

	c := newTestClient(t)
	results := make([]Result, 50)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(context.Background(), fmt.Sprintf("%s/?n=%d", srv.URL, i), nil)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Body != fmt.Sprint(i) {
			t.Errorf("results[%d].Body = %q", i, r.Body)
		}
	}
	if got := c.Stats().TotalRequests; got != 50 {
		t.Errorf("TotalRequests = %d, want 50", got)
	}
}

// ---------------------------------------------------------------------------
// Cookies persist across requests of a run
// ---------------------------------------------------------------------------

func TestCookieJarPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("PHPSESSID"); err == nil {
			fmt.Fprint(w, c.Value)
		}
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.Get(context.Background(), srv.URL+"/set", nil)
	res := c.Get(context.Background(), srv.URL+"/check", nil)
	if res.Body != "abc" {
		t.Errorf("cookie not replayed, body = %q", res.Body)
	}
}

// ---------------------------------------------------------------------------
// User-Agent
// ---------------------------------------------------------------------------

func TestConfiguredUserAgent(t *testing.T) {
	var receivedUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.Get(context.Background(), srv.URL, nil)
	if receivedUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", receivedUA, DefaultUserAgent)
	}
}

func TestRandomUserAgentHeader(t *testing.T) {
	var receivedUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, _ := NewClient(ClientOptions{
		Timeout:         5 * time.Second,
		RandomUserAgent: true,
	})
	defer c.Close()

	if res := c.Get(context.Background(), srv.URL, nil); !res.OK() {
		t.Fatalf("Get: %v", res.Err)
	}
	if receivedUA == "" || strings.HasPrefix(receivedUA, "Go-http-client") {
		t.Errorf("User-Agent = %q, should be randomized", receivedUA)
	}
}

// ---------------------------------------------------------------------------
// Redirects
// ---------------------------------------------------------------------------

func TestRedirectFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		fmt.Fprint(w, "final page")
	}))
	defer srv.Close()

	c := newTestClient(t)
	resp, err := c.Do(context.Background(), &Request{URL: srv.URL + "/redirect"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.BodyString() != "final page" {
		t.Errorf("Body = %q, want %q", resp.BodyString(), "final page")
	}
	if !strings.HasSuffix(resp.URL, "/final") {
		t.Errorf("URL = %q, want suffix /final", resp.URL)
	}
}

func TestClientWithoutRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientOptions{Timeout: 5 * time.Second})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{URL: srv.URL + "/redirect"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want 302", resp.StatusCode)
	}
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

func TestNewClientRejectsBadProxy(t *testing.T) {
	cases := []string{"://bad-url", "127.0.0.1:8080"}
	for _, p := range cases {
		if _, err := NewClient(ClientOptions{ProxyURL: p}); err == nil {
			t.Errorf("NewClient(ProxyURL=%q) should fail", p)
		}
	}
	if _, err := NewClient(ClientOptions{ProxyURL: "socks5://127.0.0.1:9050"}); err != nil {
		t.Errorf("valid proxy rejected: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, _ := NewClient(ClientOptions{Timeout: 5 * time.Second, MaxRPS: 10})
	defer c.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if res := c.Get(context.Background(), srv.URL, nil); !res.OK() {
			t.Fatalf("Get #%d: %v", i, res.Err)
		}
	}
	// First is immediate, then 4 waits of ~100ms.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("5 requests at 10 RPS took %v, expected at least ~400ms", elapsed)
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if res := c.Get(ctx, srv.URL, nil); res.OK() {
		t.Error("expected cancellation failure, got OK")
	}
}

// ---------------------------------------------------------------------------
// Per-request settings
// ---------------------------------------------------------------------------

func TestDoSendsRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.Do(context.Background(), &Request{
		URL:     srv.URL,
		Headers: map[string]string{"Accept-Language": "en-US,en;q=0.5", "User-Agent": "custom/1.0"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got.Get("Accept-Language") != "en-US,en;q=0.5" {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("User-Agent") != "custom/1.0" {
		t.Errorf("User-Agent = %q, want the request header to win", got.Get("User-Agent"))
	}
}

func TestDoTimeoutOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(t)
	start := time.Now()
	_, err := c.Do(context.Background(), &Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("override ignored: request took %v", elapsed)
	}
}
