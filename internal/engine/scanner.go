package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/0x6d61/sqlif/internal/detector"
	"github.com/0x6d61/sqlif/internal/payload"
	"github.com/0x6d61/sqlif/internal/transport"
)

// ScanConfig holds configuration for a scan.
type ScanConfig struct {
	Threads int // Concurrent requests per network phase (0 = unbounded)
	Verbose int // Verbosity level 0-3
}

// DefaultScanConfig returns sensible defaults.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{}
}

// Scanner runs a batch of targets through the pipeline. Every phase
// completes for all targets before the next one starts.
type Scanner struct {
	client    transport.Client
	config    *ScanConfig
	logger    *slog.Logger
	generator *payload.Generator
	detector  *detector.Detector

	onProgress      func(msg string)
	onDispatchStart func(total int)
	onPayloadDone   func()
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithGenerator replaces the default payload generator.
func WithGenerator(g *payload.Generator) ScannerOption {
	return func(s *Scanner) {
		s.generator = g
	}
}

// WithDetector replaces the default signature detector.
func WithDetector(d *detector.Detector) ScannerOption {
	return func(s *Scanner) {
		s.detector = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithDispatchHooks registers callbacks around the payload dispatch phase:
// start receives the number of payloads about to be sent and done is called
// once per finished payload, from worker goroutines.
func WithDispatchHooks(start func(total int), done func()) ScannerOption {
	return func(s *Scanner) {
		s.onDispatchStart = start
		s.onPayloadDone = done
	}
}

// NewScanner creates a scanner with all components wired up.
func NewScanner(client transport.Client, config *ScanConfig, opts ...ScannerOption) *Scanner {
	if config == nil {
		config = DefaultScanConfig()
	}

	s := &Scanner{
		client: client,
		config: config,
		logger: discardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.generator == nil {
		s.generator = payload.NewGenerator()
	}
	if s.detector == nil {
		s.detector = detector.New()
	}
	return s
}

// SetProgressCallback sets a function called with status messages.
func (s *Scanner) SetProgressCallback(fn func(string)) {
	s.onProgress = fn
}

// progress sends a status message via the progress callback if set.
func (s *Scanner) progress(format string, args ...any) {
	if s.onProgress != nil {
		s.onProgress(fmt.Sprintf(format, args...))
	}
}

// Scan runs the pipeline over targets:
//
//  1. Fetch every target page concurrently
//  2. Extract forms from each fetched page
//  3. Build payloads for each target
//  4. Send all payloads of all targets concurrently
//  5. Match every response against the DBMS error signatures
//
// Targets must be fresh (StateCreated). Individual request failures never
// abort the scan. If ctx is cancelled mid-scan the remaining requests fail
// fast, every phase still completes and the context error is returned along
// with the summary.
func (s *Scanner) Scan(ctx context.Context, targets []*Target) (*Summary, error) {
	summary := &Summary{
		Targets:   len(targets),
		StartTime: time.Now(),
	}
	defer func() {
		summary.EndTime = time.Now()
	}()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("scan cancelled before start: %w", err)
	}
	for _, t := range targets {
		if t.State() != StateCreated {
			return summary, fmt.Errorf("%w: %s already scanned", ErrPhaseOrder, t.URL)
		}
	}

	// Phase 1: page fetches, one job per target.
	s.progress("Getting target(s) HTML...")
	s.fetchAll(ctx, targets)
	for _, t := range targets {
		if t.HasHTML() {
			summary.Fetched++
		} else {
			s.logger.Warn("fetching target page failed", "target", t.URL, "error", t.FetchErr())
		}
	}

	// Phase 2: form extraction.
	s.progress("Scanning HTML for forms...")
	for _, t := range targets {
		if err := t.ExtractForms(); err != nil {
			return summary, err
		}
		summary.Forms += len(t.Forms)
		s.logger.Debug("forms extracted", "target", t.URL, "forms", len(t.Forms))
	}

	// Phase 3: payload construction.
	s.progress("Crafting payload(s)...")
	for _, t := range targets {
		if err := t.BuildPayloads(s.generator); err != nil {
			return summary, err
		}
		summary.Payloads += len(t.Payloads)
	}

	// Phase 4: dispatch every payload of every target.
	s.progress("Sending %d payload(s)...", summary.Payloads)
	if err := s.dispatchAll(ctx, targets, summary.Payloads); err != nil {
		return summary, err
	}
	for _, t := range targets {
		summary.Failed += t.failedResponses()
	}

	// Phase 5: analysis.
	s.progress("Scanning response(s) for DBMS errors...")
	for _, t := range targets {
		n, err := t.Analyze(s.detector)
		if err != nil {
			return summary, err
		}
		summary.Detected += n
		for _, p := range t.Detected() {
			s.logger.Info("DBMS error detected", "target", t.URL, "url", p.URL, "dbms", p.DBMS, "injection", p.Injection)
		}
	}
	if summary.Detected > 0 {
		s.progress("DBMS error detected in %d response(s)", summary.Detected)
	} else {
		s.progress("No DBMS errors detected")
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("scan interrupted: %w", err)
	}
	return summary, nil
}

func (s *Scanner) fetchAll(ctx context.Context, targets []*Target) {
	pool := newWorkerPool(s.config.Threads, len(targets), s.logger)
	pool.start(ctx, func(ctx context.Context, j job) {
		// FetchHTML cannot fail here: states were checked before phase 1.
		_ = j.target.FetchHTML(ctx, s.client)
	})
	for _, t := range targets {
		pool.submit(job{target: t, index: -1})
	}
	pool.close()
}

func (s *Scanner) dispatchAll(ctx context.Context, targets []*Target, total int) error {
	for _, t := range targets {
		if err := t.beginDispatch(); err != nil {
			return err
		}
	}
	if s.onDispatchStart != nil {
		s.onDispatchStart(total)
	}

	pool := newWorkerPool(s.config.Threads, total, s.logger)
	pool.start(ctx, func(ctx context.Context, j job) {
		if s.onPayloadDone != nil {
			defer s.onPayloadDone()
		}
		j.target.send(ctx, s.client, j.index)
	})
	for _, t := range targets {
		for i := range t.Payloads {
			pool.submit(job{target: t, index: i})
		}
	}
	pool.close()

	for _, t := range targets {
		if err := t.endDispatch(); err != nil {
			return err
		}
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
