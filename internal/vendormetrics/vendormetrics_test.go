package vendormetrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

func writeManifest(t *testing.T, dir, runID, generatedAt string, docs []model.DocumentRecord, journal []model.LedgerEntry, anomalies []model.Anomaly) {
	t.Helper()
	manifest := map[string]any{
		"run_id":          runID,
		"kind":            "audit",
		"generated_at":    generatedAt,
		"documents":       docs,
		"journal_entries": journal,
		"anomalies":       anomalies,
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, runID+".json"), data, 0o644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeManifest(t, dir, "run-aaa", "2026-03-14T10:00:00Z",
		[]model.DocumentRecord{
			{DocID: "doc-1", VendorID: "VEND-100", VendorName: "Acme Corp", InvoiceID: "INV-1"},
			{DocID: "doc-2", VendorID: "VEND-100", VendorName: "Acme Corp", InvoiceID: "INV-2"},
			{DocID: "doc-3", VendorID: "VEND-200", VendorName: "Globex", InvoiceID: "INV-9"},
		},
		[]model.LedgerEntry{
			{EntryID: "JE-1", VendorID: "VEND-100", InvoiceID: "INV-1"},
			{EntryID: "JE-2", VendorID: "VEND-200", InvoiceID: "INV-9"},
		},
		[]model.Anomaly{
			{ID: "ANOM-001", Label: "Invoice mismatch", DocID: "doc-1"},
			{ID: "ANOM-002", Label: "Currency mismatch", DocID: "doc-2"},
		})

	writeManifest(t, dir, "run-bbb", "2026-04-02T09:30:00Z",
		[]model.DocumentRecord{
			// INV-2 repeats across runs and must not double-count.
			{DocID: "doc-4", VendorID: "VEND-100", VendorName: "Acme Corp", InvoiceID: "INV-2"},
		},
		[]model.LedgerEntry{
			{EntryID: "JE-3", VendorID: "VEND-100", InvoiceID: "INV-2"},
		},
		[]model.Anomaly{
			{ID: "ANOM-001", Label: "No ledger entry found", DocID: "doc-4"},
		})

	return dir
}

func TestRiskMetricsScoresAndOrder(t *testing.T) {
	svc := New(fixtureDir(t))

	risks, err := svc.RiskMetrics()
	require.NoError(t, err)
	require.Len(t, risks, 2)

	// Globex has no anomalies, so it leads with a clean score.
	assert.Equal(t, "VEND-200", risks[0].VendorID)
	assert.Equal(t, "Globex", risks[0].VendorName)
	assert.Equal(t, 1, risks[0].Invoices)
	assert.Equal(t, 0, risks[0].Anomalies)
	assert.Equal(t, 100, risks[0].Score)

	assert.Equal(t, "VEND-100", risks[1].VendorID)
	assert.Equal(t, "Acme Corp", risks[1].VendorName)
	assert.Equal(t, 2, risks[1].Invoices)
	assert.Equal(t, 3, risks[1].Anomalies)
	assert.Equal(t, 70, risks[1].Score)
}

func TestRiskMetricsScoreFloorsAtZero(t *testing.T) {
	dir := t.TempDir()
	anomalies := make([]model.Anomaly, 12)
	for i := range anomalies {
		anomalies[i] = model.Anomaly{ID: "ANOM-001", Label: "Invoice mismatch", DocID: "doc-1"}
	}
	writeManifest(t, dir, "run-ccc", "2026-05-01T00:00:00Z",
		[]model.DocumentRecord{{DocID: "doc-1", VendorID: "VEND-300", InvoiceID: "INV-1"}},
		nil, anomalies)

	risks, err := New(dir).RiskMetrics()
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, 0, risks[0].Score)
	assert.Equal(t, "VEND-300", risks[0].VendorName)
}

func TestHeatmapByVendor(t *testing.T) {
	svc := New(fixtureDir(t))

	hm, err := svc.Heatmap("vendor")
	require.NoError(t, err)
	assert.Equal(t, []string{"VEND-100"}, hm.Labels)
	assert.Equal(t, []int{3}, hm.Values)
}

func TestHeatmapByMonth(t *testing.T) {
	svc := New(fixtureDir(t))

	hm, err := svc.Heatmap("month")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03", "2026-04"}, hm.Labels)
	assert.Equal(t, []int{2, 1}, hm.Values)
}

func TestHeatmapRejectsUnknownMode(t *testing.T) {
	svc := New(fixtureDir(t))

	_, err := svc.Heatmap("week")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
}

func TestEmptyAuditLogDirectory(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "missing"))

	risks, err := svc.RiskMetrics()
	require.NoError(t, err)
	assert.Empty(t, risks)

	hm, err := svc.Heatmap("vendor")
	require.NoError(t, err)
	assert.Empty(t, hm.Labels)
	assert.Empty(t, hm.Values)
}

func TestAnomalyResolvedThroughLedgerEntry(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "run-ddd", "2026-06-10T00:00:00Z",
		[]model.DocumentRecord{{DocID: "doc-1", VendorID: "VEND-400", InvoiceID: "INV-1"}},
		[]model.LedgerEntry{{EntryID: "JE-9", VendorID: "VEND-400", InvoiceID: "INV-1"}},
		[]model.Anomaly{{ID: "ANOM-001", Label: "Duplicate invoice", EntryID: "JE-9"}})

	risks, err := New(dir).RiskMetrics()
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, 1, risks[0].Anomalies)
	assert.Equal(t, 90, risks[0].Score)
}
