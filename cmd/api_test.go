package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/eventbus"
	"github.com/auditecx/auditecx-cli/internal/intent"
	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/internal/narrative"
	"github.com/auditecx/auditecx-cli/internal/notify"
	"github.com/auditecx/auditecx-cli/internal/orchestrator"
	"github.com/auditecx/auditecx-cli/internal/packager"
	"github.com/auditecx/auditecx-cli/internal/policy"
	"github.com/auditecx/auditecx-cli/internal/reconcile"
	"github.com/auditecx/auditecx-cli/internal/store"
	"github.com/auditecx/auditecx-cli/internal/vendormetrics"
)

type stubFinder struct{ docs []model.DocumentRecord }

func (f stubFinder) Locate(context.Context, []string) ([]model.DocumentRecord, error) {
	return f.docs, nil
}

type stubJournal struct{ entries []model.LedgerEntry }

func (j stubJournal) Query(context.Context, []string) ([]model.LedgerEntry, error) {
	return j.entries, nil
}

// stubPackager writes tiny placeholder artifacts so download and cleanup
// paths exercise real files.
type stubPackager struct{ dir string }

func (p stubPackager) CreatePackage(in packager.Input) (packager.Result, error) {
	pkgPath := p.PackagePath(in.Run.RunID)
	if err := os.WriteFile(pkgPath, []byte("PK archive"), 0o644); err != nil {
		return packager.Result{}, err
	}
	manifestPath := filepath.Join(p.dir, in.Run.RunID+".json")
	if err := os.WriteFile(manifestPath, []byte("{}"), 0o644); err != nil {
		return packager.Result{}, err
	}
	return packager.Result{PackagePath: pkgPath, ManifestPath: manifestPath}, nil
}

func (p stubPackager) PackagePath(runID string) string {
	return filepath.Join(p.dir, "package_"+runID+".zip")
}

func (p stubPackager) Cleanup(runID string) error {
	return os.RemoveAll(p.PackagePath(runID))
}

type apiFixture struct {
	orch     *orchestrator.Orchestrator
	handler  http.Handler
	auditDir string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	docs := []model.DocumentRecord{{
		DocID:     "doc-001",
		Filename:  "invoice_INV-2002.txt",
		DocType:   "invoice",
		VendorID:  "VEND-100",
		InvoiceID: "INV-2002",
		Amount:    1250.32,
		Currency:  "USD",
		Text:      "Invoice for services rendered.",
	}}
	entries := []model.LedgerEntry{{
		EntryID:   "JE-0001",
		InvoiceID: "INV-2002",
		VendorID:  "VEND-100",
		Amount:    1255.00,
		Currency:  "USD",
		PostedAt:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:    "posted",
	}}

	auditDir := t.TempDir()
	orch := orchestrator.New(
		orchestrator.Config{StepTimeout: 30 * time.Second, SimWorkDir: t.TempDir()},
		intent.RegexParser{},
		stubFinder{docs: docs},
		stubJournal{entries: entries},
		reconcile.New(reconcile.DefaultConfig()),
		policy.NewDefaultChecker(),
		narrative.NewTemplateGenerator(),
		stubPackager{dir: t.TempDir()},
		notify.LogNotifier{},
		st,
		eventbus.New(time.Minute),
	)

	return &apiFixture{
		orch:     orch,
		handler:  newRouter(orch, vendormetrics.New(auditDir), []string{"*"}),
		auditDir: auditDir,
	}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestAPIHealth(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPINLQueryLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "reconcile invoices for VEND-100 in Q3 2025",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/api/runs/"+started.RunID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var detail struct {
		Run     model.Run              `json:"run"`
		Summary *model.ManifestSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, model.RunStatusComplete, detail.Run.Status)
	require.NotNil(t, detail.Summary)
	assert.Equal(t, 1, detail.Summary.Documents)
	assert.Equal(t, 1, detail.Summary.Anomalies)

	rr = f.do(http.MethodGet, "/api/runs?status=complete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, started.RunID, listed.Runs[0].RunID)
}

func TestAPINLQueryRejectsEmptyText(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{"text": ""})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "text is required")
}

func TestAPINLQueryRejectsNoIdentifiers(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "tell me about audit best practices",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no vendor, invoice, or po identifiers")
}

func TestAPIGetRunNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodGet, "/api/runs/unknown-run", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIPollEvents(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "package evidence for VEND-100",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/api/stream/"+started.RunID+"/events?since=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var page struct {
		Events   []model.ProgressEvent `json:"events"`
		Next     uint64                `json:"next"`
		Terminal bool                  `json:"terminal"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.NotEmpty(t, page.Events)
	assert.True(t, page.Terminal)
	assert.Equal(t, model.EventComplete, page.Events[len(page.Events)-1].Type)
	assert.Equal(t, page.Events[len(page.Events)-1].SequenceNo, page.Next)

	// Polling past the end returns an empty page with the cursor unmoved.
	rr = f.do(http.MethodGet, "/api/stream/"+started.RunID+"/events?since=999", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Events)
	assert.Equal(t, uint64(999), page.Next)
}

func TestAPIStreamReplaysHistory(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "package evidence for VEND-100",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/api/stream/"+started.RunID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, rr.Body.String(), "event: status")
	assert.Contains(t, rr.Body.String(), "event: documents_ready")
	assert.Contains(t, rr.Body.String(), "event: complete")
}

func TestAPISimulationDownloadAndCleanup(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/simulations", map[string]any{
		"vendor_id":    "VEND-SIM",
		"sample_size":  5,
		"anomaly_rate": 0.2,
		"seed":         7,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/api/download/"+started.RunID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
	assert.NotZero(t, rr.Body.Len())

	rr = f.do(http.MethodPost, "/api/simulations/"+started.RunID+"/cleanup", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(http.MethodGet, "/api/runs/"+started.RunID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIConversationForSimulationRun(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/simulations", map[string]any{
		"vendor_id":    "VEND-SIM",
		"sample_size":  5,
		"anomaly_rate": 0.2,
		"seed":         7,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	rr = f.do(http.MethodGet, "/api/runs/"+started.RunID+"/conversation", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var convo struct {
		RunID    string              `json:"run_id"`
		Messages []model.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &convo))
	assert.Equal(t, started.RunID, convo.RunID)
	require.Len(t, convo.Messages, 6)
	assert.Equal(t, "user", convo.Messages[0].Role)
	assert.Equal(t, "assistant", convo.Messages[1].Role)
}

func TestAPIConversationMissing(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "package evidence for VEND-100",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	// Real audit runs record no transcript.
	rr = f.do(http.MethodGet, "/api/runs/"+started.RunID+"/conversation", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "has no conversation")

	rr = f.do(http.MethodGet, "/api/runs/unknown-run/conversation", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func (f *apiFixture) writeManifest(t *testing.T, name string, manifest map[string]any) {
	t.Helper()
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.auditDir, name), data, 0o644))
}

func TestAPIVendorRiskAndHeatmap(t *testing.T) {
	f := newAPIFixture(t)
	f.writeManifest(t, "run-1.json", map[string]any{
		"run_id":       "run-1",
		"generated_at": "2026-02-11T08:00:00Z",
		"documents": []map[string]any{
			{"doc_id": "doc-1", "vendor_id": "VEND-100", "vendor_name": "Acme Corp", "invoice_id": "INV-1"},
			{"doc_id": "doc-2", "vendor_id": "VEND-200", "vendor_name": "Globex", "invoice_id": "INV-9"},
		},
		"anomalies": []map[string]any{
			{"id": "ANOM-001", "label": "Invoice mismatch", "severity": "medium", "doc_id": "doc-1"},
		},
	})

	rr := f.do(http.MethodGet, "/api/vendors/risk", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var risk struct {
		Vendors []vendormetrics.VendorRisk `json:"vendors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &risk))
	require.Len(t, risk.Vendors, 2)
	assert.Equal(t, "VEND-200", risk.Vendors[0].VendorID)
	assert.Equal(t, 100, risk.Vendors[0].Score)
	assert.Equal(t, "VEND-100", risk.Vendors[1].VendorID)
	assert.Equal(t, 90, risk.Vendors[1].Score)

	rr = f.do(http.MethodGet, "/api/vendors/heatmap?by=vendor", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var hm vendormetrics.Heatmap
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hm))
	assert.Equal(t, []string{"VEND-100"}, hm.Labels)
	assert.Equal(t, []int{1}, hm.Values)

	rr = f.do(http.MethodGet, "/api/vendors/heatmap?by=month", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hm))
	assert.Equal(t, []string{"2026-02"}, hm.Labels)
}

func TestAPIVendorHeatmapRejectsUnknownMode(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodGet, "/api/vendors/heatmap?by=week", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "vendor or month")
}

func TestAPICleanupRejectsRealRuns(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(http.MethodPost, "/api/nl_query", map[string]string{
		"text": "package evidence for VEND-100",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))

	f.orch.Wait()

	rr = f.do(http.MethodPost, "/api/simulations/"+started.RunID+"/cleanup", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}
