package engine

import "github.com/0x6d61/sqlif/internal/form"

// Finding is one detected payload, flattened for output and storage.
type Finding struct {
	TargetURL string
	URL       string
	Method    form.Method
	Parameter string
	Injection string
	DBMS      string
	// Data is the encoded POST body; empty for GET findings.
	Data string
}

// Findings collects the detected payloads of all targets, in target order
// and then generation order.
func Findings(targets []*Target) []Finding {
	var out []Finding
	for _, t := range targets {
		for _, p := range t.Detected() {
			f := Finding{
				TargetURL: t.URL,
				URL:       p.URL,
				Method:    p.Method,
				Parameter: p.Parameter,
				Injection: p.Injection,
				DBMS:      p.DBMS,
			}
			if p.IsPost() {
				f.Data = p.Data.Encode()
			}
			out = append(out, f)
		}
	}
	return out
}
