// Package report provides formatters for scan result output.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/0x6d61/sqlif/internal/engine"
)

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the findings of a scan to w.
	Generate(ctx context.Context, findings []engine.Finding, summary *engine.Summary, w io.Writer) error
}

// Appender is implemented by reporters whose output stays valid when the
// reports of several runs are concatenated in one file.
type Appender interface {
	Appends() bool
}

// New creates a reporter by format name ("text" or "json").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

// DefaultFileName returns the timestamped output file name used when no
// output file is given, e.g. 20240131_154500.txt.
func DefaultFileName(now time.Time, format string) string {
	ext := "txt"
	if strings.EqualFold(format, "json") {
		ext = "json"
	}
	return now.Format("20060102_150405") + "." + ext
}

// OpenFile opens path for writing, creating it if needed. Existing content
// is kept when appendMode is set and truncated otherwise.
func OpenFile(path string, appendMode bool) (*os.File, error) {
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendMode {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	return f, nil
}

// WriteFile writes the report for findings to path. Reporters that
// implement Appender and return true are appended to an existing file;
// any other report replaces it.
func WriteFile(ctx context.Context, r Reporter, path string, findings []engine.Finding, summary *engine.Summary) error {
	a, ok := r.(Appender)
	f, err := OpenFile(path, ok && a.Appends())
	if err != nil {
		return err
	}
	if err := r.Generate(ctx, findings, summary, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s report: %w", r.Format(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}
