// Package session records finished scan runs and their findings so they
// can be reviewed later.
package session

import (
	"context"
	"time"

	"github.com/0x6d61/sqlif/internal/engine"
)

// Run is one invocation of the scanner.
type Run struct {
	ID         string           `json:"id"`
	Engine     string           `json:"engine,omitempty"`
	Query      string           `json:"query,omitempty"`
	Targets    []string         `json:"targets"`
	Payloads   int              `json:"payloads"`
	Failed     int              `json:"failed"`
	Findings   []engine.Finding `json:"findings"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// NewRun builds a Run from the targets of a finished scan.
func NewRun(targets []*engine.Target, summary *engine.Summary) *Run {
	run := &Run{
		Targets:  make([]string, len(targets)),
		Findings: engine.Findings(targets),
	}
	for i, t := range targets {
		run.Targets[i] = t.URL
	}
	if summary != nil {
		run.Payloads = summary.Payloads
		run.Failed = summary.Failed
		run.StartedAt = summary.StartTime
		run.FinishedAt = summary.EndTime
	}
	return run
}

// RunSummary is a lightweight run overview.
type RunSummary struct {
	ID         string    `json:"id"`
	Targets    int       `json:"targets"`
	Findings   int       `json:"findings"`
	Query      string    `json:"query,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists and retrieves scan runs.
type Store interface {
	Save(ctx context.Context, run *Run) error
	LoadByID(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]*RunSummary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
