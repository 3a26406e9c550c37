package locator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/model"
)

const sampleInvoice = `DOC_TYPE: invoice
VENDOR_ID: VEND-100
VENDOR_NAME: Acme Industrial
INVOICE_ID: INV-2002
PO_ID: PO-7001
DATE: 2024-03-18
AMOUNT: 1250.32
CURRENCY: USD

Invoice for Q1 maintenance services rendered under PO-7001.
`

func TestParseDocument(t *testing.T) {
	doc := ParseDocument("/drop/inv_2002.txt", sampleInvoice)

	assert.Equal(t, "inv_2002", doc.DocID)
	assert.Equal(t, "invoice", doc.DocType)
	assert.Equal(t, "VEND-100", doc.VendorID)
	assert.Equal(t, "Acme Industrial", doc.VendorName)
	assert.Equal(t, "INV-2002", doc.InvoiceID)
	assert.Equal(t, "PO-7001", doc.POID)
	assert.Equal(t, "2024-03-18", doc.Date)
	assert.InDelta(t, 1250.32, doc.Amount, 1e-9)
	assert.Equal(t, "USD", doc.Currency)
	assert.Contains(t, doc.Text, "Q1 maintenance services")
}

func TestParseDocumentDefaults(t *testing.T) {
	doc := ParseDocument("note.md", "just a body with no header\n")

	assert.Equal(t, "invoice", doc.DocType)
	assert.Equal(t, "USD", doc.Currency)
	assert.Empty(t, doc.VendorID)
	assert.Equal(t, "just a body with no header", doc.Text)
}

func TestFSSourceList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inv_2002.txt"), []byte(sampleInvoice), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.pdf"), []byte("binary"), 0o644))

	docs, err := NewFSSource(dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "inv_2002.txt", docs[0].Filename)
}

func TestFSSourceMissingDir(t *testing.T) {
	docs, err := NewFSSource("/nonexistent/evidence").List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type stubSource struct {
	name string
	docs []model.DocumentRecord
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) List(context.Context) ([]model.DocumentRecord, error) {
	return s.docs, nil
}

func TestLocateFiltersAndSorts(t *testing.T) {
	src := stubSource{name: "stub", docs: []model.DocumentRecord{
		{Filename: "b.txt", VendorID: "VEND-100"},
		{Filename: "a.txt", InvoiceID: "INV-2002"},
		{Filename: "c.txt", VendorID: "VEND-999"},
	}}

	docs, err := New(src).Locate(context.Background(), []string{"vend-100", "INV-2002"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Filename)
	assert.Equal(t, "b.txt", docs[1].Filename)
}

func TestLocateEmptyIdentifiersKeepsAll(t *testing.T) {
	src := stubSource{name: "stub", docs: []model.DocumentRecord{
		{Filename: "a.txt"}, {Filename: "b.txt"},
	}}

	docs, err := New(src).Locate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
