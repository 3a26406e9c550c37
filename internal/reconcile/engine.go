// Package reconcile matches audit evidence documents against ledger
// entries and derives anomalies from the result.
package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// Config exposes the matching tolerances and confidence weights. The
// variance threshold is deliberately tighter than the matching band:
// a document can match its ledger row and still carry a reportable
// amount variance.
type Config struct {
	// AmountToleranceAbs / AmountTolerancePct form the matching band for
	// vendor+amount matches; the looser of the two applies.
	AmountToleranceAbs float64
	AmountTolerancePct float64
	// VarianceThreshold is the absolute delta above which a matched pair
	// is flagged as an invoice mismatch.
	VarianceThreshold float64
	WeightIdentifier  float64
	WeightAmount      float64
	WeightCurrency    float64
}

// DefaultConfig returns the documented default tolerances and weights.
func DefaultConfig() Config {
	return Config{
		AmountToleranceAbs: 0.50,
		AmountTolerancePct: 0.01,
		VarianceThreshold:  1.00,
		WeightIdentifier:   0.5,
		WeightAmount:       0.3,
		WeightCurrency:     0.2,
	}
}

const (
	idStrengthExact   = 1.0
	idStrengthPartial = 0.6
)

// Engine performs document-to-ledger reconciliation.
type Engine struct {
	cfg     Config
	printer *message.Printer
}

// New creates an Engine. Zero-valued weights fall back to defaults so a
// partially filled config cannot silently zero out confidence.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.WeightIdentifier == 0 && cfg.WeightAmount == 0 && cfg.WeightCurrency == 0 {
		cfg.WeightIdentifier = def.WeightIdentifier
		cfg.WeightAmount = def.WeightAmount
		cfg.WeightCurrency = def.WeightCurrency
	}
	if cfg.AmountToleranceAbs == 0 {
		cfg.AmountToleranceAbs = def.AmountToleranceAbs
	}
	if cfg.AmountTolerancePct == 0 {
		cfg.AmountTolerancePct = def.AmountTolerancePct
	}
	if cfg.VarianceThreshold == 0 {
		cfg.VarianceThreshold = def.VarianceThreshold
	}
	return &Engine{
		cfg:     cfg,
		printer: message.NewPrinter(language.English),
	}
}

// Reconcile pairs each document with at most one ledger entry and
// derives the anomaly list. One call produces one immutable result set.
func (e *Engine) Reconcile(docs []model.DocumentRecord, entries []model.LedgerEntry) ([]model.MatchResult, []model.Anomaly) {
	matches := make([]model.MatchResult, 0, len(docs))
	var anomalies []model.Anomaly
	anomalyID := 0

	addAnomaly := func(a model.Anomaly) {
		anomalyID++
		a.ID = fmt.Sprintf("ANOM-%03d", anomalyID)
		anomalies = append(anomalies, a)
	}

	seenInvoices := make(map[string]string) // invoice id -> first doc id

	for _, doc := range docs {
		entry, status := e.bestMatch(doc, entries)

		// Duplicate invoice ids across documents are flagged regardless
		// of match outcome.
		if doc.InvoiceID != "" {
			key := strings.ToUpper(doc.InvoiceID)
			if first, dup := seenInvoices[key]; dup {
				addAnomaly(model.Anomaly{
					Label:    "Duplicate invoice",
					Severity: model.SeverityHigh,
					Rationale: e.printer.Sprintf(
						"Invoice %s appears on both %s and %s.",
						doc.InvoiceID, first, doc.DocID),
					Suggestion: "Confirm one of the documents is a copy before approving payment.",
					DocID:      doc.DocID,
				})
			} else {
				seenInvoices[key] = doc.DocID
			}
		}

		if entry == nil {
			matches = append(matches, model.MatchResult{
				DocID:      doc.DocID,
				Status:     model.MatchStatusUnmatched,
				Confidence: 0,
			})
			addAnomaly(model.Anomaly{
				Label:    "No ledger entry found",
				Severity: model.SeverityHigh,
				Rationale: e.printer.Sprintf(
					"Document %s (%s, $%.2f %s) has no corresponding ledger entry for vendor %s.",
					doc.DocID, orUnknown(doc.InvoiceID), doc.Amount, doc.Currency, doc.VendorID),
				Suggestion: "Verify the expense was posted, or treat the document as unsupported.",
				DocID:      doc.DocID,
			})
			continue
		}

		m := model.MatchResult{
			DocID:      doc.DocID,
			EntryID:    entry.EntryID,
			Status:     status,
			Confidence: e.confidence(doc, *entry, status),
			FieldDiffs: fieldDiffs(doc, *entry),
		}
		matches = append(matches, m)

		delta := math.Abs(doc.Amount - entry.Amount)
		if delta > e.cfg.VarianceThreshold {
			addAnomaly(model.Anomaly{
				Label:    "Invoice mismatch",
				Severity: model.SeverityMedium,
				Rationale: e.printer.Sprintf(
					"Document %s states $%.2f but ledger entry %s records $%.2f, a variance of $%.2f.",
					doc.DocID, doc.Amount, entry.EntryID, entry.Amount, delta),
				Suggestion: "Request a corrected invoice or a ledger adjustment for the variance.",
				DocID:      doc.DocID,
				EntryID:    entry.EntryID,
			})
		}
		if doc.Currency != "" && entry.Currency != "" && doc.Currency != entry.Currency {
			addAnomaly(model.Anomaly{
				Label:    "Currency mismatch",
				Severity: model.SeverityMedium,
				Rationale: e.printer.Sprintf(
					"Document %s is denominated in %s while ledger entry %s is posted in %s.",
					doc.DocID, doc.Currency, entry.EntryID, entry.Currency),
				DocID:   doc.DocID,
				EntryID: entry.EntryID,
			})
		}
	}

	return matches, anomalies
}

// bestMatch applies the match keys in order of specificity and breaks
// ties by closest amount, then earliest posting date.
func (e *Engine) bestMatch(doc model.DocumentRecord, entries []model.LedgerEntry) (*model.LedgerEntry, model.MatchStatus) {
	collect := func(pred func(model.LedgerEntry) bool) []model.LedgerEntry {
		var out []model.LedgerEntry
		for _, entry := range entries {
			if pred(entry) {
				out = append(out, entry)
			}
		}
		return out
	}

	var pool []model.LedgerEntry
	status := model.MatchStatusMatched

	// (a) exact invoice + vendor.
	if doc.InvoiceID != "" {
		pool = collect(func(en model.LedgerEntry) bool {
			return strings.EqualFold(en.InvoiceID, doc.InvoiceID) &&
				strings.EqualFold(en.VendorID, doc.VendorID)
		})
	}

	// (b) vendor + amount within the tolerance band.
	if len(pool) == 0 && doc.Amount > 0 {
		band := math.Max(e.cfg.AmountToleranceAbs, doc.Amount*e.cfg.AmountTolerancePct)
		pool = collect(func(en model.LedgerEntry) bool {
			return strings.EqualFold(en.VendorID, doc.VendorID) &&
				math.Abs(en.Amount-doc.Amount) <= band
		})
	}

	// (c) vendor-only fallback.
	if len(pool) == 0 {
		pool = collect(func(en model.LedgerEntry) bool {
			return strings.EqualFold(en.VendorID, doc.VendorID)
		})
		status = model.MatchStatusPartial
	}

	if len(pool) == 0 {
		return nil, model.MatchStatusUnmatched
	}

	sort.SliceStable(pool, func(i, j int) bool {
		di := math.Abs(pool[i].Amount - doc.Amount)
		dj := math.Abs(pool[j].Amount - doc.Amount)
		if di != dj {
			return di < dj
		}
		return pool[i].PostedAt.Before(pool[j].PostedAt)
	})

	best := pool[0]
	return &best, status
}

// confidence is the weighted combination of identifier strength, amount
// closeness, and currency agreement.
func (e *Engine) confidence(doc model.DocumentRecord, entry model.LedgerEntry, status model.MatchStatus) float64 {
	idStrength := idStrengthPartial
	if strings.EqualFold(doc.InvoiceID, entry.InvoiceID) && doc.InvoiceID != "" {
		idStrength = idStrengthExact
	}
	if status == model.MatchStatusPartial {
		idStrength = idStrengthPartial
	}

	closeness := 0.0
	switch {
	case doc.Amount == 0 && entry.Amount == 0:
		closeness = 1.0
	case doc.Amount > 0:
		closeness = math.Max(0, 1-math.Abs(doc.Amount-entry.Amount)/doc.Amount)
	}

	agreement := 0.0
	if doc.Currency != "" && doc.Currency == entry.Currency {
		agreement = 1.0
	}

	score := e.cfg.WeightIdentifier*idStrength +
		e.cfg.WeightAmount*closeness +
		e.cfg.WeightCurrency*agreement
	return math.Min(1, math.Max(0, score))
}

func fieldDiffs(doc model.DocumentRecord, entry model.LedgerEntry) []model.FieldDiff {
	var diffs []model.FieldDiff
	if doc.Amount != entry.Amount {
		diffs = append(diffs, model.FieldDiff{
			Field:    "amount",
			Document: fmt.Sprintf("%.2f", doc.Amount),
			Ledger:   fmt.Sprintf("%.2f", entry.Amount),
		})
	}
	if doc.Currency != entry.Currency {
		diffs = append(diffs, model.FieldDiff{
			Field:    "currency",
			Document: doc.Currency,
			Ledger:   entry.Currency,
		})
	}
	if !strings.EqualFold(doc.InvoiceID, entry.InvoiceID) {
		diffs = append(diffs, model.FieldDiff{
			Field:    "invoice_id",
			Document: doc.InvoiceID,
			Ledger:   entry.InvoiceID,
		})
	}
	return diffs
}

func orUnknown(s string) string {
	if s == "" {
		return "no invoice id"
	}
	return s
}
