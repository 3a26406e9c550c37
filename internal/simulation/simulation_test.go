package simulation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/reconcile"
)

func TestGenerateDeterministic(t *testing.T) {
	p := Params{VendorID: "VEND-77", SampleSize: 20, AnomalyRate: 0.25, Seed: 42}

	first := Generate(p)
	second := Generate(p)

	assert.Equal(t, first, second)
	assert.Len(t, first.Documents, 20)
	assert.Len(t, first.Chat, 6)
}

func TestGenerateSeedChangesDataset(t *testing.T) {
	base := Params{VendorID: "VEND-77", SampleSize: 10, AnomalyRate: 0.2, Seed: 1}
	other := base
	other.Seed = 2

	assert.NotEqual(t, Generate(base), Generate(other))
}

func TestGenerateZeroRateIsClean(t *testing.T) {
	ds := Generate(Params{VendorID: "VEND-77", SampleSize: 12, AnomalyRate: 0, Seed: 7})
	require.Len(t, ds.Entries, 12)

	_, anomalies := reconcile.New(reconcile.DefaultConfig()).Reconcile(ds.Documents, ds.Entries)
	assert.Empty(t, anomalies)
}

func TestGenerateInjectedIrregularitiesAreDetected(t *testing.T) {
	p := Params{VendorID: "VEND-100", SampleSize: 20, AnomalyRate: 0.3, Seed: 7}
	ds := Generate(p)
	require.Equal(t, ds, Generate(p))

	_, anomalies := reconcile.New(reconcile.DefaultConfig()).Reconcile(ds.Documents, ds.Entries)

	// rate 0.3 over 20 docs perturbs 6 of them. A duplicated invoice is
	// attributed to the neighboring document, so the set of flagged
	// documents can shift by one either way.
	flagged := map[string]bool{}
	for _, a := range anomalies {
		if a.DocID != "" {
			flagged[a.DocID] = true
		}
	}
	assert.GreaterOrEqual(t, len(flagged), 5)
	assert.LessOrEqual(t, len(flagged), 7)

	labels := map[string]bool{}
	for _, a := range anomalies {
		labels[a.Label] = true
	}
	assert.True(t, labels["Invoice mismatch"] || labels["No ledger entry found"] ||
		labels["Duplicate invoice"] || labels["Currency mismatch"])
}

func TestGenerateMinimumOnePerturbation(t *testing.T) {
	ds := Generate(Params{VendorID: "VEND-77", SampleSize: 20, AnomalyRate: 0.01, Seed: 3})

	_, anomalies := reconcile.New(reconcile.DefaultConfig()).Reconcile(ds.Documents, ds.Entries)
	assert.NotEmpty(t, anomalies)
}

func TestClamp(t *testing.T) {
	p := Params{SampleSize: 900, AnomalyRate: 3.5}.Clamp()
	assert.Equal(t, "VEND-SIM", p.VendorID)
	assert.Equal(t, 200, p.SampleSize)
	assert.Equal(t, 1.0, p.AnomalyRate)

	p = Params{SampleSize: -4, AnomalyRate: -1}.Clamp()
	assert.Equal(t, 1, p.SampleSize)
	assert.Equal(t, 0.0, p.AnomalyRate)
}

func TestMaterializeAndCleanup(t *testing.T) {
	workDir := t.TempDir()
	ds := Generate(Params{VendorID: "VEND-77", SampleSize: 3, AnomalyRate: 0, Seed: 1})

	require.NoError(t, Materialize(workDir, "run-9", ds.Documents))
	files, err := os.ReadDir(filepath.Join(workDir, "run-9", "files"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	require.NoError(t, Cleanup(workDir, "run-9"))
	assert.NoDirExists(t, filepath.Join(workDir, "run-9"))
}

func TestDocumentTextRoundTrips(t *testing.T) {
	ds := Generate(Params{VendorID: "VEND-77", SampleSize: 1, AnomalyRate: 0, Seed: 1})
	doc := ds.Documents[0]
	assert.Contains(t, doc.Text, "VENDOR_ID: VEND-77")
	assert.Contains(t, doc.Text, "INVOICE_ID: "+doc.InvoiceID)
	assert.NotEmpty(t, doc.Filename)
}
