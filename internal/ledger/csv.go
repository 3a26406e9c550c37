package ledger

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// CSVQuerier reads a deterministic journal extract from a CSV file.
// Expected header: entry_id, vendor_id, vendor_name, invoice_id, po_id,
// amount, currency, status, posting_date.
type CSVQuerier struct {
	path string
}

// NewCSVQuerier creates a querier over the extract at path.
func NewCSVQuerier(path string) *CSVQuerier {
	return &CSVQuerier{path: path}
}

// Query returns rows whose vendor, invoice, or PO id is in the set.
func (q *CSVQuerier) Query(ctx context.Context, identifiers []string) ([]model.LedgerEntry, error) {
	idSet := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		if trimmed := strings.ToUpper(strings.TrimSpace(id)); trimmed != "" {
			idSet[trimmed] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil, nil
	}

	f, err := os.Open(q.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCollaborator, err, "ledger: open extract")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCollaborator, err, "ledger: read header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []model.LedgerEntry
	for {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindCollaborator, ctx.Err(), "ledger: query cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindCollaborator, err, "ledger: read row")
		}

		vendor := field(row, "vendor_id")
		invoice := field(row, "invoice_id")
		po := field(row, "po_id")
		if !anyInSet(idSet, vendor, invoice, po) {
			continue
		}

		amount, err := strconv.ParseFloat(field(row, "amount"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: bad amount in entry %s", field(row, "entry_id"))
		}

		entries = append(entries, model.LedgerEntry{
			EntryID:    field(row, "entry_id"),
			VendorID:   vendor,
			VendorName: field(row, "vendor_name"),
			InvoiceID:  invoice,
			POID:       po,
			Amount:     amount,
			Currency:   defaultCurrency(field(row, "currency")),
			Status:     defaultStatus(field(row, "status")),
			PostedAt:   parseDate(field(row, "posting_date")),
		})
	}

	return entries, nil
}

func anyInSet(set map[string]struct{}, values ...string) bool {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := set[strings.ToUpper(v)]; ok {
			return true
		}
	}
	return false
}

func defaultCurrency(s string) string {
	if s == "" {
		return "USD"
	}
	return s
}

func defaultStatus(s string) string {
	if s == "" {
		return "recorded"
	}
	return s
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "02-01-2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
