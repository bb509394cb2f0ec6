package engine

import (
	"context"
	"fmt"

	"github.com/0x6d61/sqlif/internal/detector"
	"github.com/0x6d61/sqlif/internal/form"
	"github.com/0x6d61/sqlif/internal/payload"
	"github.com/0x6d61/sqlif/internal/transport"
)

// Target is one scan subject and everything the pipeline learns about it.
// A Target owns its forms, payloads and responses; after the dispatch phase
// Responses[i] is the response to Payloads[i].
type Target struct {
	URL       string
	HTML      string
	Forms     []form.Form
	Payloads  []payload.Payload
	Responses []transport.Result

	hasHTML  bool
	fetchErr error
	state    State
}

// NewTarget creates a target in StateCreated.
func NewTarget(rawURL string) *Target {
	return &Target{URL: rawURL}
}

// NewTargets creates one target per URL, in order.
func NewTargets(urls []string) []*Target {
	targets := make([]*Target, len(urls))
	for i, u := range urls {
		targets[i] = NewTarget(u)
	}
	return targets
}

// State returns the current pipeline state.
func (t *Target) State() State { return t.state }

// HasHTML reports whether the page fetch returned a body.
func (t *Target) HasHTML() bool { return t.hasHTML }

// FetchErr returns why the page fetch failed, if it did.
func (t *Target) FetchErr() error { return t.fetchErr }

func (t *Target) advance(from, to State) error {
	if t.state != from {
		return fmt.Errorf("%w: %s is %s, want %s", ErrPhaseOrder, t.URL, t.state, from)
	}
	t.state = to
	return nil
}

// FetchHTML retrieves the target page. A failed fetch is not an error: the
// page stays absent and the pipeline continues with URL-based payloads.
func (t *Target) FetchHTML(ctx context.Context, client transport.Client) error {
	if t.state != StateCreated {
		return t.advance(StateCreated, StateHTMLFetched)
	}
	res := client.Get(ctx, t.URL, nil)
	if res.OK() {
		t.HTML = res.Body
		t.hasHTML = true
	} else {
		t.fetchErr = res.Err
	}
	return t.advance(StateCreated, StateHTMLFetched)
}

// ExtractForms parses forms from the fetched page, if there is one.
func (t *Target) ExtractForms() error {
	if err := t.advance(StateHTMLFetched, StateFormsExtracted); err != nil {
		return err
	}
	if t.hasHTML {
		t.Forms = form.Extract(t.HTML)
	}
	return nil
}

// BuildPayloads generates the payload set from the URL and forms.
func (t *Target) BuildPayloads(g *payload.Generator) error {
	if err := t.advance(StateFormsExtracted, StatePayloadsBuilt); err != nil {
		return err
	}
	t.Payloads = g.Generate(t.URL, t.Forms)
	return nil
}

// SendPayloads dispatches every payload concurrently and waits for all of
// them. threads bounds concurrency; 0 sends everything at once.
func (t *Target) SendPayloads(ctx context.Context, client transport.Client, threads int) error {
	if err := t.beginDispatch(); err != nil {
		return err
	}
	pool := newWorkerPool(threads, len(t.Payloads), nil)
	pool.start(ctx, func(ctx context.Context, j job) {
		j.target.send(ctx, client, j.index)
	})
	for i := range t.Payloads {
		pool.submit(job{target: t, index: i})
	}
	pool.close()
	return t.endDispatch()
}

// beginDispatch allocates one response slot per payload.
func (t *Target) beginDispatch() error {
	if t.state != StatePayloadsBuilt {
		return t.advance(StatePayloadsBuilt, StateResponsesCollected)
	}
	t.Responses = make([]transport.Result, len(t.Payloads))
	return nil
}

func (t *Target) endDispatch() error {
	return t.advance(StatePayloadsBuilt, StateResponsesCollected)
}

// send issues payload i and stores its outcome in slot i. Only one
// goroutine ever touches a given slot.
func (t *Target) send(ctx context.Context, client transport.Client, i int) {
	p := &t.Payloads[i]
	if p.IsPost() {
		t.Responses[i] = client.Post(ctx, p.URL, p.Data)
		return
	}
	t.Responses[i] = client.Get(ctx, p.URL, nil)
}

// Analyze marks every payload whose response matches a DBMS error
// signature and returns how many were marked.
func (t *Target) Analyze(d *detector.Detector) (int, error) {
	if err := t.advance(StateResponsesCollected, StateAnalyzed); err != nil {
		return 0, err
	}
	detected := 0
	for i := range t.Payloads {
		res := t.Responses[i]
		if !res.OK() {
			continue
		}
		if dbms, ok := d.Identify(res.Body); ok {
			t.Payloads[i].Detected = true
			t.Payloads[i].DBMS = dbms
			detected++
		}
	}
	return detected, nil
}

// Detected returns the payloads marked as injectable, in generation order.
func (t *Target) Detected() []payload.Payload {
	var out []payload.Payload
	for _, p := range t.Payloads {
		if p.Detected {
			out = append(out, p)
		}
	}
	return out
}

// failedResponses counts payloads that got no response.
func (t *Target) failedResponses() int {
	n := 0
	for _, r := range t.Responses {
		if !r.OK() {
			n++
		}
	}
	return n
}
