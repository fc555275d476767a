// Package history keeps a SQLite log of finished conversion jobs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished job.
type Entry struct {
	JobID      string
	FileName   string
	Voice      string
	State      string
	Segments   int
	Skipped    int
	Bytes      int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the job.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store wraps the SQLite job table. A Store opened without a path is
// ephemeral: writes are dropped and reads return nothing.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open creates or opens the database at path.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "history")
	if path == "" {
		return &Store{log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	log.Debug("job history opened", "path", path)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    voice TEXT,
    state TEXT NOT NULL,
    segments INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(finished_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ephemeral reports whether the store discards writes.
func (s *Store) Ephemeral() bool {
	return s == nil || s.db == nil
}

// Append records a finished job. Recording the same job twice replaces it.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s.Ephemeral() {
		return nil
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = s.clock()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, file_name, voice, state, segments, skipped, bytes, error, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   state=excluded.state, segments=excluded.segments, skipped=excluded.skipped,
		   bytes=excluded.bytes, error=excluded.error, finished_at=excluded.finished_at`,
		e.JobID, e.FileName, e.Voice, e.State, e.Segments, e.Skipped, e.Bytes, e.Error,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.Ephemeral() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, file_name, voice, state, segments, skipped, bytes, error, started_at, finished_at
		 FROM jobs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			voice, errMsg     sql.NullString
			started, finished string
		)
		if err := rows.Scan(&e.JobID, &e.FileName, &voice, &e.State, &e.Segments, &e.Skipped, &e.Bytes, &errMsg, &started, &finished); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Voice = voice.String
		e.Error = errMsg.String
		if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
			e.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			e.FinishedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune keeps the newest keep entries and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if s.Ephemeral() || keep < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE job_id NOT IN (
		   SELECT job_id FROM jobs ORDER BY finished_at DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("pruned job history", "removed", n)
	}
	return n, nil
}
