// Package store persists runs and their terminal summaries.
package store

import (
	"context"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Kind   model.RunKind   `json:"kind,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for audit runs.
type Store interface {
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SetSummary(ctx context.Context, runID string, summary model.ManifestSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	GetSummary(ctx context.Context, runID string) (*model.ManifestSummary, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, runID string) error

	Migrate(ctx context.Context) error
	Close() error
}
