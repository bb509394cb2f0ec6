package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/0x6d61/sqlif/internal/engine"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// jsonOutput is the top-level JSON structure.
type jsonOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Tool          string        `json:"tool"`
	Scan          *jsonScan     `json:"scan,omitempty"`
	Findings      []jsonFinding `json:"findings"`
}

// jsonScan represents scan metadata in JSON.
type jsonScan struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Targets         int       `json:"targets"`
	Payloads        int       `json:"payloads"`
	Failed          int       `json:"failed"`
	Detected        int       `json:"detected"`
}

// jsonFinding represents a detected payload in JSON.
type jsonFinding struct {
	Target    string `json:"target"`
	URL       string `json:"url"`
	Method    string `json:"method"`
	Parameter string `json:"parameter"`
	Injection string `json:"injection"`
	DBMS      string `json:"dbms,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Generate writes the findings and optional summary to w as JSON.
func (r *JSONReporter) Generate(ctx context.Context, findings []engine.Finding, summary *engine.Summary, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := jsonOutput{
		SchemaVersion: "1.0",
		Tool:          "sqlif",
		Findings:      make([]jsonFinding, 0, len(findings)),
	}

	if summary != nil {
		out.Scan = &jsonScan{
			StartTime:       summary.StartTime,
			EndTime:         summary.EndTime,
			DurationSeconds: summary.Duration().Seconds(),
			Targets:         summary.Targets,
			Payloads:        summary.Payloads,
			Failed:          summary.Failed,
			Detected:        summary.Detected,
		}
	}

	for _, f := range findings {
		out.Findings = append(out.Findings, jsonFinding{
			Target:    f.TargetURL,
			URL:       f.URL,
			Method:    string(f.Method),
			Parameter: f.Parameter,
			Injection: f.Injection,
			DBMS:      f.DBMS,
			Data:      f.Data,
		})
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
