// Package narrative turns a finished reconciliation into an auditor-facing
// summary, streamed chunk by chunk so the caller can forward progress.
package narrative

import (
	"context"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// Input carries everything a generator may want to narrate.
type Input struct {
	Run       model.Run
	Documents []model.DocumentRecord
	Entries   []model.LedgerEntry
	Matches   []model.MatchResult
	Anomalies []model.Anomaly
	Findings  []model.PolicyFinding
}

// MatchCounts tallies match results by status.
type MatchCounts struct {
	Matched   int
	Partial   int
	Unmatched int
}

// Counts computes the match tally for the input.
func (in Input) Counts() MatchCounts {
	var c MatchCounts
	for _, m := range in.Matches {
		switch m.Status {
		case model.MatchStatusMatched:
			c.Matched++
		case model.MatchStatusPartial:
			c.Partial++
		case model.MatchStatusUnmatched:
			c.Unmatched++
		}
	}
	return c
}

// Generator produces the summary text. Implementations call emit once per
// chunk, in order, then return the full assembled text.
type Generator interface {
	StreamSummary(ctx context.Context, in Input, emit func(chunk string)) (string, error)
}
