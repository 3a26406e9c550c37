package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	vendor_id  TEXT,
	run        JSONB NOT NULL,
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_vendor ON runs(vendor_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, vendor_id, run, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, string(run.Kind), string(run.Status), run.VendorID, string(runJSON), now, now,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, run = jsonb_set(run, '{status}', to_jsonb($1::text)), updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return checkTagAffected(tag, runID)
}

func (s *PostgresStore) SetSummary(ctx context.Context, runID string, summary model.ManifestSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, run = jsonb_set(run, '{status}', to_jsonb($2::text)), updated_at = $3 WHERE id = $4`,
		string(summaryJSON), string(summary.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set summary %s", runID)
	}
	return checkTagAffected(tag, runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var runJSON string
	err := s.pool.QueryRow(ctx, `SELECT run FROM runs WHERE id = $1`, runID).Scan(&runJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, "postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run")
	}
	return &run, nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, runID string) (*model.ManifestSummary, error) {
	var summaryJSON *string
	err := s.pool.QueryRow(ctx, `SELECT summary FROM runs WHERE id = $1`, runID).Scan(&summaryJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, "postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get summary %s", runID)
	}
	if summaryJSON == nil {
		return nil, apperr.Newf(apperr.KindState, "postgres: run %s has no summary yet", runID)
	}
	var summary model.ManifestSummary
	if err := json.Unmarshal([]byte(*summaryJSON), &summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal summary")
	}
	return &summary, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT run FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var run model.Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", runID)
	}
	return checkTagAffected(tag, runID)
}

func checkTagAffected(tag pgconn.CommandTag, runID string) error {
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "postgres: run %s not found", runID)
	}
	return nil
}
