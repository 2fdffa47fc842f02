// Package store persists computed schedules so earlier runs can be listed
// and replayed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/yds/core/model"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored scheduling run.
type Run struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Source        string    `json:"source"`
	Tasks         int       `json:"tasks"`
	Rounds        int       `json:"rounds"`
	PeakFrequency float64   `json:"peak_frequency"`
}

// SQLiteStore persists schedule runs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    tasks INTEGER NOT NULL,
    rounds INTEGER NOT NULL,
    peak_frequency REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS executions (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    task_id TEXT NOT NULL,
    seg_start REAL NOT NULL,
    seg_end REAL NOT NULL,
    frequency REAL NOT NULL,
    PRIMARY KEY(run_id, seq)
);`

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save stores the run and its executions in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, run Run, execs []model.Execution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, created_at, source, tasks, rounds, peak_frequency)
        VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Source, run.Tasks, run.Rounds, run.PeakFrequency); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO executions (run_id, seq, task_id, seg_start, seg_end, frequency)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, e := range execs {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.TaskID, e.Start, e.End, e.Frequency); err != nil {
			return fmt.Errorf("insert execution %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Runs returns the most recent runs first, at most limit of them.
// A non-positive limit returns every run.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, source, tasks, rounds, peak_frequency
        FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Run
	for rows.Next() {
		var r Run
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.Source, &r.Tasks, &r.Rounds, &r.PeakFrequency); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, ts).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Executions returns the executions of a run in the order they were saved.
func (s *SQLiteStore) Executions(ctx context.Context, runID string) ([]model.Execution, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, seg_start, seg_end, frequency
        FROM executions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Execution{}
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(&e.TaskID, &e.Start, &e.End, &e.Frequency); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
