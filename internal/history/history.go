// package history records export runs in a local SQLite ledger
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/shared"
)

//go:embed schema.sql
var schemaSQL string

// Store persists export run metadata. It never stores exported row data,
// only what ran, when, and where the files went.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and applies the schema.
// The path can be ":memory:" for an in-memory ledger.
func Open(path string) (*Store, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded export run.
type Run struct {
	ID        string
	Timestamp string // filename timestamp shared by the run's files
	StartedAt time.Time
	TotalRows int
	Failed    int
}

// File is one file written (or attempted) during a run.
type File struct {
	Collection string
	Path       string
	Rows       int
	Error      string
}

// RecordRun inserts a run and its files in a single transaction.
// A missing run ID is generated. Returns the run ID.
func (s *Store) RecordRun(run Run, files []File) (string, error) {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, run_ts, started_at, total_rows, failed) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Timestamp, run.StartedAt.UTC(), run.TotalRows, run.Failed,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, f := range files {
		_, err = tx.Exec(
			"INSERT INTO run_files (id, run_id, collection, path, row_count, error) VALUES (?, ?, ?, ?, ?, ?)",
			shared.GenerateID(), run.ID, f.Collection, f.Path, f.Rows, f.Error,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert run file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return run.ID, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		"SELECT id, run_ts, started_at, total_rows, failed FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.StartedAt, &r.TotalRows, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Files returns the file records of one run in insertion order.
func (s *Store) Files(runID string) ([]File, error) {
	rows, err := s.db.Query(
		"SELECT collection, path, row_count, error FROM run_files WHERE run_id = ? ORDER BY rowid",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Collection, &f.Path, &f.Rows, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}
