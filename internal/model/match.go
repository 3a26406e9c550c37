package model

// MatchStatus classifies the strength of a document-to-ledger pairing.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusPartial   MatchStatus = "partial"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

// FieldDiff records a single field whose value differs between a
// document and its matched ledger entry.
type FieldDiff struct {
	Field    string `json:"field"`
	Document string `json:"document_value"`
	Ledger   string `json:"ledger_value"`
}

// MatchResult pairs one document with at most one ledger entry. Results
// are never mutated after creation; a re-run produces a new set.
type MatchResult struct {
	DocID      string      `json:"doc_id"`
	EntryID    string      `json:"entry_id,omitempty"`
	Status     MatchStatus `json:"status"`
	Confidence float64     `json:"confidence"`
	FieldDiffs []FieldDiff `json:"field_diffs,omitempty"`
}

// Severity grades an anomaly or policy finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is a reconciliation irregularity derived from match results
// and cross-document consistency checks. The rationale carries the
// concrete numbers involved so display needs no re-derivation.
type Anomaly struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Severity   Severity `json:"severity"`
	Rationale  string   `json:"rationale"`
	Suggestion string   `json:"suggestion,omitempty"`
	DocID      string   `json:"doc_id,omitempty"`
	EntryID    string   `json:"entry_id,omitempty"`
}
