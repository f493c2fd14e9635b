// Package history archives finished runs in a local SQLite database so
// earlier syncs stay inspectable after their batch files move on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	batch_path  TEXT NOT NULL,
	state       TEXT NOT NULL,
	total       INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	downloaded  INTEGER NOT NULL,
	backoff_ms  INTEGER NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at DESC);
`

// Run is one archived coordinator run.
type Run struct {
	RunID      string
	BatchPath  string
	State      string
	Total      int
	Completed  int
	Failed     int
	Downloaded int
	Backoff    time.Duration
	Elapsed    time.Duration
	FinishedAt time.Time
}

// DB wraps the runs archive.
type DB struct {
	db *sql.DB
}

// DefaultPath places the archive in the app config dir.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "history.db")
}

// Open opens (creating if needed) the archive at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores one finished run. Recording the same run id again replaces
// the earlier row.
func (d *DB) Record(ctx context.Context, r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, batch_path, state, total, completed, failed, downloaded, backoff_ms, elapsed_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.BatchPath, r.State, r.Total, r.Completed, r.Failed, r.Downloaded,
		r.Backoff.Milliseconds(), r.Elapsed.Milliseconds(), r.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id, batch_path, state, total, completed, failed, downloaded, backoff_ms, elapsed_ms, finished_at
		FROM runs ORDER BY finished_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var backoffMS, elapsedMS, finished int64
		if err := rows.Scan(&r.RunID, &r.BatchPath, &r.State, &r.Total, &r.Completed,
			&r.Failed, &r.Downloaded, &backoffMS, &elapsedMS, &finished); err != nil {
			return nil, err
		}
		r.Backoff = time.Duration(backoffMS) * time.Millisecond
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.FinishedAt = time.Unix(finished, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
