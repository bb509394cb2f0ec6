package engine

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0x6d61/sqlif/internal/form"
	"github.com/0x6d61/sqlif/internal/payload"
	"github.com/0x6d61/sqlif/internal/testutil"
	"github.com/0x6d61/sqlif/internal/transport"
)

// --------------------------------------------------------------------------
// Scanner with fake transport
// --------------------------------------------------------------------------

func TestScanner_SingleTargetQuoteDetected(t *testing.T) {
	target := "http://example.test/page?id=1"
	client := quoteVulnerable(target, "<html><body>no forms here</body></html>")
	scanner := NewScanner(client, nil)

	targets := NewTargets([]string{target})
	summary, err := scanner.Scan(context.Background(), targets)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	tg := targets[0]
	if len(tg.Payloads) != 10 {
		t.Fatalf("got %d payloads, want 10", len(tg.Payloads))
	}
	if len(tg.Responses) != len(tg.Payloads) {
		t.Fatalf("responses = %d, payloads = %d", len(tg.Responses), len(tg.Payloads))
	}
	for i, p := range tg.Payloads {
		if p.Method != form.MethodGet {
			t.Errorf("payload %d method = %s, want GET", i, p.Method)
		}
		if want := i == 0; p.Detected != want {
			t.Errorf("payload %d (%q) Detected = %v, want %v", i, p.Injection, p.Detected, want)
		}
	}
	if tg.Payloads[0].URL != "http://example.test/page?id=1%27" {
		t.Errorf("payload 0 URL = %q", tg.Payloads[0].URL)
	}
	if summary.Detected != 1 || summary.Payloads != 10 || summary.Fetched != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestScanner_ResponsesAlignedWithPayloads(t *testing.T) {
	// Every response echoes its request URL so misplaced slots show up.
	client := &fakeClient{handler: func(_, rawURL, _ string) transport.Result {
		time.Sleep(time.Millisecond)
		return ok(rawURL)
	}}
	urls := []string{
		"http://a.test/?x=1&y=2",
		"http://b.test/p?id=7",
		"http://c.test/q?a=1&b=2&c=3",
	}
	targets := NewTargets(urls)

	scanner := NewScanner(client, &ScanConfig{Threads: 3})
	if _, err := scanner.Scan(context.Background(), targets); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for _, tg := range targets {
		if len(tg.Responses) != len(tg.Payloads) {
			t.Fatalf("%s: responses = %d, payloads = %d", tg.URL, len(tg.Responses), len(tg.Payloads))
		}
		for i, p := range tg.Payloads {
			if tg.Responses[i].Body != p.URL {
				t.Errorf("%s slot %d holds response for %q, want %q", tg.URL, i, tg.Responses[i].Body, p.URL)
			}
		}
	}
	if want := 10 * (2 + 1 + 3); len(targets[0].Payloads)+len(targets[1].Payloads)+len(targets[2].Payloads) != want {
		t.Errorf("total payloads != %d", want)
	}
}

func TestScanner_FailedFetchDoesNotStopBatch(t *testing.T) {
	good := "http://good.test/item?id=1"
	client := &fakeClient{handler: func(_, rawURL, _ string) transport.Result {
		if strings.HasPrefix(rawURL, "http://down.test/") {
			return transport.Failed(errors.New("connection refused"))
		}
		if rawURL == good {
			return ok("<html></html>")
		}
		u, _ := url.Parse(rawURL)
		if strings.Contains(u.Query().Get("id"), "'") {
			return ok(mysqlError)
		}
		return ok("fine")
	}}

	targets := NewTargets([]string{"http://down.test/x?id=1", good})
	summary, err := NewScanner(client, nil).Scan(context.Background(), targets)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	down, up := targets[0], targets[1]
	for _, tg := range targets {
		if tg.State() != StateAnalyzed {
			t.Errorf("%s state = %s, want analyzed", tg.URL, tg.State())
		}
		if len(tg.Responses) != len(tg.Payloads) {
			t.Errorf("%s: responses = %d, payloads = %d", tg.URL, len(tg.Responses), len(tg.Payloads))
		}
	}
	if down.HasHTML() {
		t.Error("down target has HTML")
	}
	if len(down.Payloads) != 10 {
		t.Errorf("down target payloads = %d, want 10 URL payloads", len(down.Payloads))
	}
	if len(down.Detected()) != 0 {
		t.Error("down target should have no detections")
	}
	if len(up.Detected()) != 1 {
		t.Errorf("good target detections = %d, want 1", len(up.Detected()))
	}
	if summary.Failed != 10 {
		t.Errorf("summary.Failed = %d, want 10", summary.Failed)
	}
	if summary.Fetched != 1 {
		t.Errorf("summary.Fetched = %d, want 1", summary.Fetched)
	}
}

func TestScanner_PhaseBarrier(t *testing.T) {
	slow := "http://slow.test/?a=1"
	fast := "http://fast.test/?b=1"
	var slowFetched atomic.Bool
	var violations atomic.Int32

	client := &fakeClient{handler: func(_, rawURL, _ string) transport.Result {
		switch rawURL {
		case slow:
			time.Sleep(50 * time.Millisecond)
			slowFetched.Store(true)
			return ok("<html></html>")
		case fast:
			return ok("<html></html>")
		}
		if !slowFetched.Load() {
			violations.Add(1)
		}
		return ok("fine")
	}}

	targets := NewTargets([]string{slow, fast})
	if _, err := NewScanner(client, nil).Scan(context.Background(), targets); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n := violations.Load(); n != 0 {
		t.Errorf("%d payloads were sent before every page fetch finished", n)
	}
}

func TestScanner_EmptyTargetList(t *testing.T) {
	client := &fakeClient{}
	summary, err := NewScanner(client, nil).Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Targets != 0 || summary.Payloads != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if client.callCount() != 0 {
		t.Errorf("client called %d times", client.callCount())
	}
}

func TestScanner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	_, err := NewScanner(client, nil).Scan(ctx, NewTargets([]string{"http://example.test/?id=1"}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if client.callCount() != 0 {
		t.Errorf("client called %d times", client.callCount())
	}
}

func TestScanner_RescanRejected(t *testing.T) {
	target := "http://example.test/?id=1"
	client := quoteVulnerable(target, "")
	targets := NewTargets([]string{target})
	scanner := NewScanner(client, nil)

	if _, err := scanner.Scan(context.Background(), targets); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if _, err := scanner.Scan(context.Background(), targets); !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("second Scan error = %v, want ErrPhaseOrder", err)
	}
}

func TestScanner_DispatchHooksAndProgress(t *testing.T) {
	target := "http://example.test/page?id=1&cat=2"
	client := quoteVulnerable(target, "")

	var started, done atomic.Int32
	var mu sync.Mutex
	var messages []string

	scanner := NewScanner(client, &ScanConfig{Threads: 4},
		WithDispatchHooks(
			func(total int) { started.Store(int32(total)) },
			func() { done.Add(1) },
		),
	)
	scanner.SetProgressCallback(func(msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	})

	if _, err := scanner.Scan(context.Background(), NewTargets([]string{target})); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if started.Load() != 20 {
		t.Errorf("dispatch start total = %d, want 20", started.Load())
	}
	if done.Load() != 20 {
		t.Errorf("done calls = %d, want 20", done.Load())
	}
	if len(messages) == 0 || messages[0] != "Getting target(s) HTML..." {
		t.Errorf("progress messages = %v", messages)
	}
}

func TestScanner_CustomGenerator(t *testing.T) {
	target := "http://example.test/?id=1"
	client := quoteVulnerable(target, "")
	gen := payload.NewGenerator(payload.WithCatalog([]string{"'"}))

	targets := NewTargets([]string{target})
	summary, err := NewScanner(client, nil, WithGenerator(gen)).Scan(context.Background(), targets)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Payloads != 1 || summary.Detected != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestScanner_PanicInTransportIsContained(t *testing.T) {
	target := "http://example.test/?id=1"
	client := &fakeClient{handler: func(_, rawURL, _ string) transport.Result {
		if rawURL == target {
			return ok("")
		}
		if strings.Contains(rawURL, "%23") {
			panic("boom")
		}
		return ok("fine")
	}}

	targets := NewTargets([]string{target})
	if _, err := NewScanner(client, nil).Scan(context.Background(), targets); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	tg := targets[0]
	if len(tg.Responses) != len(tg.Payloads) {
		t.Fatalf("responses = %d, payloads = %d", len(tg.Responses), len(tg.Payloads))
	}
	for i, p := range tg.Payloads {
		if strings.Contains(p.URL, "%23") && tg.Responses[i].OK() {
			t.Errorf("payload %d should have no response after panic", i)
		}
	}
}

// --------------------------------------------------------------------------
// Scanner against the mock vulnerable server
// --------------------------------------------------------------------------

func TestScanner_VulnServer(t *testing.T) {
	srv := testutil.NewVulnServer()
	defer srv.Close()

	client, err := transport.NewClient(transport.ClientOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	targets := NewTargets([]string{
		srv.URL + "/",
		srv.URL + "/vuln/error-mysql?id=1",
		srv.URL + "/vuln/error-postgres?id=1",
		srv.URL + "/vuln/safe?id=1",
	})
	summary, err := NewScanner(client, &ScanConfig{Threads: 8}).Scan(context.Background(), targets)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	index, mysql, pg, safe := targets[0], targets[1], targets[2], targets[3]

	if len(index.Forms) != 2 {
		t.Fatalf("index forms = %d, want 2", len(index.Forms))
	}
	found := index.Detected()
	if len(found) != 2 {
		t.Fatalf("index detections = %d, want 2: %+v", len(found), found)
	}
	if found[0].Method != form.MethodGet || !strings.HasPrefix(found[0].URL, srv.URL+"/search?q=") {
		t.Errorf("first detection = %+v, want GET search form", found[0])
	}
	if found[1].Method != form.MethodPost || found[1].Parameter != "username" {
		t.Errorf("second detection = %+v, want POST username", found[1])
	}

	if got := mysql.Detected(); len(got) != 1 || got[0].Injection != "'" {
		t.Errorf("mysql detections = %+v, want one single-quote payload", got)
	}
	if got := pg.Detected(); len(got) != 1 || got[0].Injection != `"` {
		t.Errorf("postgres detections = %+v, want one double-quote payload", got)
	}
	if got := safe.Detected(); len(got) != 0 {
		t.Errorf("safe detections = %+v, want none", got)
	}
	if summary.Detected != 4 {
		t.Errorf("summary.Detected = %d, want 4", summary.Detected)
	}
	if summary.Failed != 0 {
		t.Errorf("summary.Failed = %d, want 0", summary.Failed)
	}
}

func TestScanner_TimeoutBecomesFailedResponse(t *testing.T) {
	srv := testutil.NewVulnServer()
	defer srv.Close()

	client, err := transport.NewClient(transport.ClientOptions{Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	targets := NewTargets([]string{srv.URL + "/vuln/slow?id=1"})
	summary, err := NewScanner(client, nil).Scan(context.Background(), targets)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if targets[0].HasHTML() {
		t.Error("slow page should not have HTML")
	}
	if summary.Failed != 10 {
		t.Errorf("summary.Failed = %d, want 10", summary.Failed)
	}
}
