package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/0x6d61/sqlif/internal/engine"
	"github.com/0x6d61/sqlif/internal/form"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

var schema = []string{`
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		engine       TEXT DEFAULT '',
		query        TEXT DEFAULT '',
		targets_json TEXT NOT NULL,
		payloads     INTEGER DEFAULT 0,
		failed       INTEGER DEFAULT 0,
		started_at   DATETIME,
		finished_at  DATETIME
	)`, `
	CREATE TABLE IF NOT EXISTS findings (
		run_id     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		target_url TEXT NOT NULL,
		url        TEXT NOT NULL,
		method     TEXT NOT NULL,
		parameter  TEXT DEFAULT '',
		injection  TEXT NOT NULL,
		dbms       TEXT DEFAULT '',
		data       TEXT DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at)`,
}

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the SQLite database file; use ":memory:" for testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save persists a Run and replaces its findings.
// If the run's ID is empty, a new UUID is generated and assigned.
func (s *SQLiteStore) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = now
	}

	targetsJSON, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("session: marshal targets: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, engine, query, targets_json, payloads, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			engine       = excluded.engine,
			query        = excluded.query,
			targets_json = excluded.targets_json,
			payloads     = excluded.payloads,
			failed       = excluded.failed,
			started_at   = excluded.started_at,
			finished_at  = excluded.finished_at
	`,
		run.ID,
		run.Engine,
		run.Query,
		string(targetsJSON),
		run.Payloads,
		run.Failed,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("session: save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("session: clear findings: %w", err)
	}
	for i, f := range run.Findings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO findings (run_id, seq, target_url, url, method, parameter, injection, dbms, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, f.TargetURL, f.URL, string(f.Method), f.Parameter, f.Injection, f.DBMS, f.Data)
		if err != nil {
			return fmt.Errorf("session: save finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	return nil
}

// LoadByID retrieves a Run and its findings by ID.
// Returns (nil, nil) if no run is found.
func (s *SQLiteStore) LoadByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, engine, query, targets_json, payloads, failed, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var (
		run                   Run
		targetsJSON           string
		startedAt, finishedAt string
	)
	err := row.Scan(&run.ID, &run.Engine, &run.Query, &targetsJSON, &run.Payloads, &run.Failed, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(targetsJSON), &run.Targets); err != nil {
		return nil, fmt.Errorf("session: unmarshal targets: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_url, url, method, parameter, injection, dbms, data
		FROM findings WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("session: load findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f      engine.Finding
			method string
		)
		if err := rows.Scan(&f.TargetURL, &f.URL, &method, &f.Parameter, &f.Injection, &f.DBMS, &f.Data); err != nil {
			return nil, fmt.Errorf("session: scan finding row: %w", err)
		}
		f.Method = form.Method(method)
		run.Findings = append(run.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate findings: %w", err)
	}

	return &run, nil
}

// List returns a lightweight summary of all stored runs, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.targets_json, r.query, r.finished_at,
			(SELECT COUNT(*) FROM findings f WHERE f.run_id = r.id)
		FROM runs r
		ORDER BY r.finished_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("session: list runs: %w", err)
	}
	defer rows.Close()

	var summaries []*RunSummary
	for rows.Next() {
		var (
			summary     RunSummary
			targetsJSON string
			finishedAt  string
		)
		if err := rows.Scan(&summary.ID, &targetsJSON, &summary.Query, &finishedAt, &summary.Findings); err != nil {
			return nil, fmt.Errorf("session: scan summary row: %w", err)
		}
		var targets []string
		if err := json.Unmarshal([]byte(targetsJSON), &targets); err != nil {
			return nil, fmt.Errorf("session: unmarshal targets: %w", err)
		}
		summary.Targets = len(targets)
		if summary.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate rows: %w", err)
	}

	return summaries, nil
}

// Delete removes a run and its findings by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.deleteWhere(ctx, `id = ?`, id)
	if err != nil {
		return fmt.Errorf("session: delete run: %w", err)
	}
	return nil
}

// deleteWhere removes the runs matching cond and their findings in one
// transaction, returning the number of runs removed.
func (s *SQLiteStore) deleteWhere(ctx context.Context, cond string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id IN (SELECT id FROM runs WHERE `+cond+`)`, args...); err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE `+cond, args...)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Cleanup removes runs that finished more than maxAge ago.
// It returns the number of deleted runs.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	deleted, err := s.deleteWhere(ctx, `finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: cleanup runs: %w", err)
	}
	return deleted, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Fall back to SQLite default format if RFC3339 fails.
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("session: parse time %q: %w", s, err)
		}
	}
	return t, nil
}
