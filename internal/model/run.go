package model

import "time"

// RunKind distinguishes real audit runs from simulated ones.
type RunKind string

const (
	RunKindReal       RunKind = "real"
	RunKindSimulation RunKind = "simulation"
)

// RunStatus represents the current state of a run. Status only moves
// forward: pending -> running -> complete|error.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusError
}

// CanTransition reports whether a move from s to next is forward-only.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next == RunStatusError
	case RunStatusRunning:
		return next == RunStatusComplete || next == RunStatusError
	default:
		return false
	}
}

// Run is a single evidence-reconciliation run. It is mutated only by the
// worker goroutine that owns it and becomes immutable once terminal.
type Run struct {
	RunID       string    `json:"run_id"`
	Kind        RunKind   `json:"kind"`
	Status      RunStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Identifiers []string  `json:"identifiers,omitempty"`
	VendorID    string    `json:"vendor_id,omitempty"`
	Email       string    `json:"email,omitempty"`

	// Simulation parameters, zero for real runs.
	SampleSize  int     `json:"sample_size,omitempty"`
	AnomalyRate float64 `json:"anomaly_rate,omitempty"`
	Seed        int64   `json:"seed,omitempty"`
}

// ManifestSummary is the terminal, queryable snapshot of a completed run.
// It is derived deterministically so repeated reads are byte-identical.
type ManifestSummary struct {
	RunID        string    `json:"run_id"`
	Kind         RunKind   `json:"kind"`
	Status       RunStatus `json:"status"`
	VendorID     string    `json:"vendor_id,omitempty"`
	Documents    int       `json:"documents"`
	Anomalies    int       `json:"anomalies"`
	PolicyIssues int       `json:"policy_issues"`
	SummaryText  string    `json:"summary_text"`
	ManifestPath string    `json:"manifest_path,omitempty"`
	PackagePath  string    `json:"package_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`

	Chat []ChatMessage `json:"chat_transcript,omitempty"`
}
