package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/sqlif/internal/engine"
)

// TextReporter writes one block per finding: the request URL, the POST
// body when there is one, then a blank line.
type TextReporter struct{}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Appends reports true: the layout of several runs concatenates cleanly.
func (r *TextReporter) Appends() bool { return true }

// Generate writes the findings to w. The summary is not part of the text
// layout.
func (r *TextReporter) Generate(ctx context.Context, findings []engine.Finding, _ *engine.Summary, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := &strings.Builder{}
	for _, f := range findings {
		fmt.Fprintln(b, f.URL)
		if f.Data != "" {
			fmt.Fprintln(b, f.Data)
		}
		fmt.Fprintln(b)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
