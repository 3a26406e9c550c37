package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

func TestPostgresCreateRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "real", "pending", "VEND-100", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresFromPool(mock)
	require.NoError(t, s.CreateRun(context.Background(), testRun("run-1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s := NewPostgresFromPool(mock)
	err = s.UpdateRunStatus(context.Background(), "missing", model.RunStatusRunning)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runJSON, err := json.Marshal(testRun("run-1"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT run FROM runs WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"run"}).AddRow(string(runJSON)))

	s := NewPostgresFromPool(mock)
	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.RunKindReal, got.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSummaryPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT summary FROM runs WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"summary"}).AddRow(nil))

	s := NewPostgresFromPool(mock)
	_, err = s.GetSummary(context.Background(), "run-1")
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runJSON, err := json.Marshal(testRun("run-1"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT run FROM runs WHERE 1=1`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows([]string{"run"}).AddRow(string(runJSON)))

	s := NewPostgresFromPool(mock)
	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
