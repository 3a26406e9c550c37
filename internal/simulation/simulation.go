// Package simulation fabricates deterministic synthetic evidence. The same
// parameters always produce the same documents, ledger entries, and chat
// transcript, so simulated runs are reproducible end to end.
package simulation

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Params control one synthetic dataset.
type Params struct {
	VendorID    string
	SampleSize  int
	AnomalyRate float64
	Seed        int64
}

// Dataset is the generated evidence for one simulation run. Documents and
// entries are shaped so the reconciliation engine detects the injected
// irregularities without special-casing simulated input.
type Dataset struct {
	Documents []model.DocumentRecord
	Entries   []model.LedgerEntry
	Chat      []model.ChatMessage
}

var docTypes = []string{"invoice", "purchase_order", "goods_receipt", "payment_advice"}

var currencies = []string{"USD", "EUR", "GBP"}

// perturbation kinds, applied in a fixed cycle over the selected documents.
const (
	perturbAmountSkew = iota
	perturbMissingEntry
	perturbDuplicateInvoice
	perturbCurrencyMismatch
	perturbKinds
)

// Clamp normalizes the parameters into their valid ranges.
func (p Params) Clamp() Params {
	if p.VendorID == "" {
		p.VendorID = "VEND-SIM"
	}
	if p.SampleSize < 1 {
		p.SampleSize = 1
	}
	if p.SampleSize > 200 {
		p.SampleSize = 200
	}
	p.AnomalyRate = math.Max(0, math.Min(1, p.AnomalyRate))
	return p
}

// seedFor derives the RNG seed from the parameters alone, so the run id
// never influences the dataset.
func seedFor(p Params) int64 {
	key := fmt.Sprintf("sim::%s::%d::%s::%d",
		p.VendorID, p.SampleSize, strconv.FormatFloat(p.AnomalyRate, 'f', -1, 64), p.Seed)
	sum := sha256.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// Generate fabricates the dataset for the given parameters.
func Generate(p Params) Dataset {
	p = p.Clamp()
	rnd := rand.New(rand.NewSource(seedFor(p)))
	baseDate := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	docs := make([]model.DocumentRecord, p.SampleSize)
	entries := make([]model.LedgerEntry, 0, p.SampleSize)
	entryByDoc := make(map[int]int, p.SampleSize)

	for i := 0; i < p.SampleSize; i++ {
		amount := math.Round((500.0+rnd.Float64()*7000.0)*100) / 100
		currency := currencies[rnd.Intn(len(currencies))]
		docID := fmt.Sprintf("SIM-%s-%03d", p.VendorID, i)
		invoiceID := fmt.Sprintf("INV-SIM-%04d", i)
		poID := fmt.Sprintf("PO-SIM-%04d", i)
		date := baseDate.AddDate(0, 0, i).Format("2006-01-02")
		docType := docTypes[i%len(docTypes)]

		doc := model.DocumentRecord{
			DocID:     docID,
			Filename:  fmt.Sprintf("%s-%s.txt", docID, docType),
			DocType:   docType,
			VendorID:  p.VendorID,
			InvoiceID: invoiceID,
			POID:      poID,
			Date:      date,
			Amount:    amount,
			Currency:  currency,
		}
		docs[i] = doc

		entryByDoc[i] = len(entries)
		entries = append(entries, model.LedgerEntry{
			EntryID:    fmt.Sprintf("JE-SIM-%04d", i),
			InvoiceID:  invoiceID,
			POID:       poID,
			VendorID:   p.VendorID,
			VendorName: p.VendorID,
			Amount:     amount,
			Currency:   currency,
			PostedAt:   baseDate.AddDate(0, 0, i+2),
			Status:     "recorded",
		})
	}

	perturbed := pickPerturbed(rnd, p.SampleSize, p.AnomalyRate)
	dropped := map[int]bool{}
	for n, idx := range perturbed {
		switch n % perturbKinds {
		case perturbAmountSkew:
			// Small enough to still match, large enough to flag.
			e := &entries[entryByDoc[idx]]
			e.Amount = math.Round(e.Amount*1.009*100) / 100
		case perturbMissingEntry:
			dropped[entryByDoc[idx]] = true
		case perturbDuplicateInvoice:
			// Reuse a neighbour's invoice so the duplicate check fires.
			j := (idx + 1) % p.SampleSize
			if j != idx {
				docs[idx].InvoiceID = docs[j].InvoiceID
				docs[idx].Amount = docs[j].Amount
				docs[idx].Currency = docs[j].Currency
				dropped[entryByDoc[idx]] = true
			}
		case perturbCurrencyMismatch:
			e := &entries[entryByDoc[idx]]
			for _, c := range currencies {
				if c != docs[idx].Currency {
					e.Currency = c
					break
				}
			}
		}
	}

	kept := make([]model.LedgerEntry, 0, len(entries))
	for i, e := range entries {
		if !dropped[i] {
			kept = append(kept, e)
		}
	}

	for i := range docs {
		docs[i].Text = renderDocumentText(docs[i])
	}

	return Dataset{
		Documents: docs,
		Entries:   kept,
		Chat:      seedChatTranscript(rnd),
	}
}

// pickPerturbed selects which document indexes get an irregularity. At
// least one document is perturbed whenever the rate is above zero.
func pickPerturbed(rnd *rand.Rand, n int, rate float64) []int {
	if rate <= 0 || n == 0 {
		return nil
	}
	count := int(float64(n) * rate)
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	perm := rnd.Perm(n)[:count]
	sort.Ints(perm)
	return perm
}

// renderDocumentText writes the document in the same header format the
// evidence locator parses, so packaged simulation files round-trip.
func renderDocumentText(doc model.DocumentRecord) string {
	return fmt.Sprintf(
		"DOC_TYPE: %s\nVENDOR_ID: %s\nINVOICE_ID: %s\nPO_ID: %s\nDATE: %s\nAMOUNT: %.2f\nCURRENCY: %s\n\nSynthetic %s generated for vendor %s.\n",
		doc.DocType, doc.VendorID, doc.InvoiceID, doc.POID, doc.Date, doc.Amount, doc.Currency,
		doc.DocType, doc.VendorID,
	)
}

// seedChatTranscript fabricates the conversation that would have preceded
// the run. Timestamps are offset deterministically from a fixed base.
func seedChatTranscript(rnd *rand.Rand) []model.ChatMessage {
	prompts := []string{
		"Run vendor risk audit for the last quarter",
		"Highlight any late payments or missing purchase orders",
		"Summarize top anomalies affecting cashflow",
	}
	responses := []string{
		"Starting synthetic audit pipeline and loading vendor data.",
		"Flagged a handful of invoices lacking PO references.",
		"Compiled summary of reconciliation progress for presentation.",
	}
	keywords := [][]string{
		{"vendor risk", "quarterly"},
		{"late payment", "missing po"},
		{"summary", "cashflow"},
	}

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var history []model.ChatMessage
	for i := range prompts {
		history = append(history, model.ChatMessage{
			ID:        fmt.Sprintf("user-%d", i),
			Role:      "user",
			Text:      prompts[i],
			Timestamp: base.Format(time.RFC3339),
		})
		offset := time.Duration(15+rnd.Intn(76)) * time.Second
		history = append(history, model.ChatMessage{
			ID:        fmt.Sprintf("assistant-%d", i),
			Role:      "assistant",
			Text:      responses[i],
			Timestamp: base.Add(offset).Format(time.RFC3339),
			Keywords:  keywords[i],
		})
		base = base.Add(2 * time.Minute)
	}
	return history
}

// Materialize writes the synthetic documents under workDir/<runID>/files
// and points each document's Path at its file.
func Materialize(workDir, runID string, docs []model.DocumentRecord) error {
	filesDir := filepath.Join(workDir, runID, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "simulation: create work dir")
	}
	for i := range docs {
		path := filepath.Join(filesDir, docs[i].Filename)
		if err := os.WriteFile(path, []byte(docs[i].Text), 0o644); err != nil {
			return apperr.Wrap(apperr.KindCollaborator, err, "simulation: write document")
		}
		docs[i].Path = path
	}
	return nil
}

// Cleanup removes a run's materialized documents.
func Cleanup(workDir, runID string) error {
	if err := os.RemoveAll(filepath.Join(workDir, runID)); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "simulation: cleanup work dir")
	}
	return nil
}
