package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	vendor_id  TEXT,
	run        TEXT NOT NULL,
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_vendor ON runs(vendor_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, vendor_id, run, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, string(run.Kind), string(run.Status), run.VendorID, string(runJSON), now, now,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, run = json_set(run, '$.status', ?), updated_at = ? WHERE id = ?`,
		string(status), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) SetSummary(ctx context.Context, runID string, summary model.ManifestSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, run = json_set(run, '$.status', ?), updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(summary.Status), string(summary.Status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set summary %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run FROM runs WHERE id = ?`, runID)
	var runJSON string
	if err := row.Scan(&runJSON); err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "sqlite: run %s not found", runID)
	} else if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run")
	}
	return &run, nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context, runID string) (*model.ManifestSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, runID)
	var summaryJSON sql.NullString
	if err := row.Scan(&summaryJSON); err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "sqlite: run %s not found", runID)
	} else if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get summary %s", runID)
	}
	if !summaryJSON.Valid {
		return nil, apperr.Newf(apperr.KindState, "sqlite: run %s has no summary yet", runID)
	}
	var summary model.ManifestSummary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &summary, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT run FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var run model.Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return apperr.Newf(apperr.KindNotFound, "sqlite: run %s not found", runID)
	}
	return nil
}
