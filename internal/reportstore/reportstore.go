// Package reportstore optionally persists WalkForwardResult records to
// Postgres so a fleet of validation runs can be queried later. Grounded on
// the teacher's internal/persistence/postgres/regime_repo.go: an
// sqlx.DB-backed repo, context-timeout-wrapped queries, and JSON columns
// for nested structures.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/wfrisk/internal/walkforward"
)

// Store persists and retrieves WalkForwardResult rows keyed by run_id.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects to Postgres at dsn using lib/pq and wraps it in sqlx.
func Open(dsn string, timeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("reportstore: connect: %w", err)
	}
	return New(db, timeout), nil
}

// New wraps an existing *sqlx.DB (used directly by tests against go-sqlmock).
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// Schema is the DDL a deployment runs once to create the backing table.
const Schema = `
CREATE TABLE IF NOT EXISTS walkforward_results (
	run_id            TEXT PRIMARY KEY,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	passed            BOOLEAN NOT NULL,
	robustness_score  DOUBLE PRECISION NOT NULL,
	deflated_sharpe   DOUBLE PRECISION NOT NULL,
	pbo               DOUBLE PRECISION NOT NULL,
	result            JSONB NOT NULL
)`

// Save upserts a single validation run.
func (s *Store) Save(ctx context.Context, runID string, result walkforward.WalkForwardResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("reportstore: marshal result: %w", err)
	}

	const query = `
		INSERT INTO walkforward_results (run_id, passed, robustness_score, deflated_sharpe, pbo, result)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			passed = EXCLUDED.passed,
			robustness_score = EXCLUDED.robustness_score,
			deflated_sharpe = EXCLUDED.deflated_sharpe,
			pbo = EXCLUDED.pbo,
			result = EXCLUDED.result`

	if _, err := s.db.ExecContext(ctx, query, runID, result.Passed, result.RobustnessScore, result.DeflatedSharpe, result.PBO, payload); err != nil {
		return fmt.Errorf("reportstore: save %q: %w", runID, err)
	}
	return nil
}

// GetByRunID retrieves one run's full result, or (nil, nil) if not found.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*walkforward.WalkForwardResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const query = `SELECT result FROM walkforward_results WHERE run_id = $1`

	var payload []byte
	if err := s.db.QueryRowxContext(ctx, query, runID).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reportstore: get %q: %w", runID, err)
	}

	var result walkforward.WalkForwardResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("reportstore: unmarshal %q: %w", runID, err)
	}
	return &result, nil
}

// Latest returns the most recently saved run, or (nil, nil) if the table
// is empty.
func (s *Store) Latest(ctx context.Context) (*walkforward.WalkForwardResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const query = `SELECT result FROM walkforward_results ORDER BY created_at DESC LIMIT 1`

	var payload []byte
	if err := s.db.QueryRowxContext(ctx, query).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reportstore: latest: %w", err)
	}

	var result walkforward.WalkForwardResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("reportstore: unmarshal latest: %w", err)
	}
	return &result, nil
}
