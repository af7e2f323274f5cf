// Package sqlite implements ports.RecordStore on a local SQLite
// database, giving run histories durability without any external
// service.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id     TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    run_id       TEXT NOT NULL,
    idx          INTEGER NOT NULL,
    residual     REAL NOT NULL,
    retried      INTEGER NOT NULL DEFAULT 0,
    wall_time_ns INTEGER NOT NULL,
    PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
`

// Store persists run histories in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

var _ ports.RecordStore = (*Store)(nil)

// Append inserts one iteration record.
func (s *Store) Append(ctx context.Context, runID string, rec domain.IterationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (run_id, idx, residual, retried, wall_time_ns) VALUES (?, ?, ?, ?, ?)`,
		runID, rec.Index, rec.Residual, boolToInt(rec.Retried), rec.WallTime.Nanoseconds())
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// History returns the run's records ordered by iteration index.
func (s *Store) History(ctx context.Context, runID string) ([]domain.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, residual, retried, wall_time_ns FROM records WHERE run_id = ? ORDER BY idx`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []domain.IterationRecord
	for rows.Next() {
		var rec domain.IterationRecord
		var retried int
		var wallNS int64
		if err := rows.Scan(&rec.Index, &rec.Residual, &retried, &wallNS); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Retried = retried != 0
		rec.WallTime = time.Duration(wallNS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if len(out) == 0 {
		if _, err := s.Status(ctx, runID); err != nil {
			return nil, domain.ErrRunNotFound
		}
	}
	return out, nil
}

// SetStatus upserts the run state.
func (s *Store) SetStatus(ctx context.Context, runID string, status domain.RunState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		runID, string(status), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// Status loads the run state.
func (s *Store) Status(ctx context.Context, runID string) (domain.RunState, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM runs WHERE run_id = ?`, runID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return domain.RunState(status), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
