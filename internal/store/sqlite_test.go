package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) model.Run {
	return model.Run{
		RunID:       id,
		Kind:        model.RunKindReal,
		Status:      model.RunStatusPending,
		CreatedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Identifiers: []string{"VEND-100", "INV-2002"},
		VendorID:    "VEND-100",
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, testRun("run-1")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.RunStatusPending, got.Status)
	assert.Equal(t, []string{"VEND-100", "INV-2002"}, got.Identifiers)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateRunStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, testRun("run-1")))

	require.NoError(t, s.UpdateRunStatus(ctx, "run-1", model.RunStatusRunning))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)

	err = s.UpdateRunStatus(ctx, "missing", model.RunStatusRunning)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSetAndGetSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, testRun("run-1")))

	_, err := s.GetSummary(ctx, "run-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))

	summary := model.ManifestSummary{
		RunID:       "run-1",
		Kind:        model.RunKindReal,
		Status:      model.RunStatusComplete,
		VendorID:    "VEND-100",
		Documents:   2,
		Anomalies:   1,
		SummaryText: "done",
		GeneratedAt: time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, s.SetSummary(ctx, "run-1", summary))

	got, err := s.GetSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, summary, *got)

	// Terminal status propagates to the run row.
	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	real := testRun("run-1")
	require.NoError(t, s.CreateRun(ctx, real))

	sim := testRun("run-2")
	sim.Kind = model.RunKindSimulation
	require.NoError(t, s.CreateRun(ctx, sim))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sims, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindSimulation})
	require.NoError(t, err)
	require.Len(t, sims, 1)
	assert.Equal(t, "run-2", sims[0].RunID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, testRun("run-1")))

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	_, err := s.GetRun(ctx, "run-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = s.DeleteRun(ctx, "run-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
