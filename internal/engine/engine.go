// Package engine drives scan targets through the detection pipeline:
// fetch page, extract forms, build payloads, send payloads, analyse
// responses.
package engine

import (
	"errors"
	"time"
)

// ErrPhaseOrder is returned when a pipeline step is run out of order or
// twice on the same target.
var ErrPhaseOrder = errors.New("engine: pipeline phase out of order")

// State is the position of a Target in the pipeline. States only move
// forward, one step at a time.
type State int

const (
	StateCreated State = iota
	StateHTMLFetched
	StateFormsExtracted
	StatePayloadsBuilt
	StateResponsesCollected
	StateAnalyzed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	names := [...]string{
		"created", "html-fetched", "forms-extracted",
		"payloads-built", "responses-collected", "analyzed",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Summary aggregates the outcome of one Scan call.
type Summary struct {
	Targets   int
	Fetched   int // targets whose page was retrieved
	Forms     int
	Payloads  int
	Failed    int // payloads without a response
	Detected  int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns how long the scan took.
func (s *Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
