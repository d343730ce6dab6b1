// Package postgres provides a PostgreSQL implementation of storage.RunStore.
// It uses pgx/v5 for connection pooling and JSONB for structured check results.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runestone-ai/runestone-go/pkg/storage"
	"github.com/runestone-ai/runestone-go/pkg/validate"
)

// Store is a PostgreSQL-backed RunStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.RunStore at compile time.
var _ storage.RunStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRun persists a completed validation run.
func (s *Store) SaveRun(ctx context.Context, run *validate.Run) error {
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO validation_runs (
			id, base_url, model, started_at, duration_ms,
			results, passed, warned, failed, skipped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		run.ID, run.BaseURL, run.Model, run.StartedAt, run.Duration.Milliseconds(),
		resultsJSON, run.Passed, run.Warned, run.Failed, run.Skipped,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*validate.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, base_url, model, started_at, duration_ms,
		       results, passed, warned, failed, skipped
		FROM validation_runs
		WHERE id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns all stored runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*validate.Run, error) {
	query := `
		SELECT id, base_url, model, started_at, duration_ms,
		       results, passed, warned, failed, skipped
		FROM validation_runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*validate.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanRun reads one validation_runs row in SELECT column order.
func scanRun(row pgx.Row) (*validate.Run, error) {
	var run validate.Run
	var durationMS int64
	var resultsJSON []byte

	err := row.Scan(
		&run.ID, &run.BaseURL, &run.Model, &run.StartedAt, &durationMS,
		&resultsJSON, &run.Passed, &run.Warned, &run.Failed, &run.Skipped,
	)
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond

	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}

	return &run, nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
