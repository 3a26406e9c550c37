// Package packager materializes run artifacts: the summary, the manifest,
// copies of the evidence documents, a ledger extract workbook, and a zip
// archive of the lot.
package packager

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Input is everything that goes into one evidence package.
type Input struct {
	Run       model.Run
	Summary   string
	Documents []model.DocumentRecord
	Entries   []model.LedgerEntry
	Matches   []model.MatchResult
	Anomalies []model.Anomaly
	Findings  []model.PolicyFinding
	Chat      []model.ChatMessage
}

// Result points at the artifacts a package run produced.
type Result struct {
	PackagePath  string
	ManifestPath string
	SummaryPath  string
}

// manifest is the on-disk manifest layout. Field order is fixed so the
// encoded bytes are stable for identical input.
type manifest struct {
	RunID       string                 `json:"run_id"`
	Kind        model.RunKind          `json:"kind"`
	GeneratedAt string                 `json:"generated_at"`
	Summary     string                 `json:"summary"`
	Documents   []model.DocumentRecord `json:"documents"`
	Journal     []model.LedgerEntry    `json:"journal_entries"`
	Matches     []model.MatchResult    `json:"matches"`
	Anomalies   []model.Anomaly        `json:"anomalies"`
	Findings    []model.PolicyFinding  `json:"policy_findings,omitempty"`
	Chat        []model.ChatMessage    `json:"chat_transcript,omitempty"`
}

// Packager writes packages under outDir and durable manifests under
// auditLogDir.
type Packager struct {
	outDir      string
	auditLogDir string
	now         func() time.Time
}

// New creates a Packager, creating both directories if needed.
func New(outDir, auditLogDir string) (*Packager, error) {
	for _, dir := range []string{outDir, auditLogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindCollaborator, err, "packager: create dir")
		}
	}
	return &Packager{outDir: outDir, auditLogDir: auditLogDir, now: time.Now}, nil
}

// CreatePackage stages the run artifacts in a work directory, zips them,
// and removes the staging area. The manifest and an archive copy of the
// summary stay in the audit log directory after the zip is built.
func (p *Packager) CreatePackage(in Input) (Result, error) {
	runID := in.Run.RunID
	workDir := filepath.Join(p.outDir, "run_"+runID)
	docsDir := filepath.Join(workDir, "documents")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: create work dir")
	}
	defer os.RemoveAll(workDir)

	for _, doc := range in.Documents {
		target := filepath.Join(docsDir, doc.Filename)
		if err := copyOrSynthesize(doc, target); err != nil {
			return Result{}, err
		}
	}

	summaryPath := filepath.Join(workDir, "summary.md")
	if err := os.WriteFile(summaryPath, []byte(in.Summary), 0o644); err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: write summary")
	}

	if err := writeLedgerWorkbook(filepath.Join(workDir, "ledger_extract.xlsx"), in.Entries); err != nil {
		return Result{}, err
	}

	m := manifest{
		RunID:       runID,
		Kind:        in.Run.Kind,
		GeneratedAt: p.now().UTC().Format(time.RFC3339),
		Summary:     in.Summary,
		Documents:   in.Documents,
		Journal:     in.Entries,
		Matches:     in.Matches,
		Anomalies:   in.Anomalies,
		Findings:    in.Findings,
		Chat:        in.Chat,
	}
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: encode manifest")
	}
	if err := os.WriteFile(filepath.Join(workDir, "manifest.json"), manifestJSON, 0o644); err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: write manifest")
	}

	manifestPath := filepath.Join(p.auditLogDir, runID+".json")
	if err := os.WriteFile(manifestPath, manifestJSON, 0o644); err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: archive manifest")
	}
	archiveSummaryPath := filepath.Join(p.auditLogDir, runID+"_summary.md")
	if err := os.WriteFile(archiveSummaryPath, []byte(in.Summary), 0o644); err != nil {
		return Result{}, apperr.Wrap(apperr.KindCollaborator, err, "packager: archive summary")
	}

	zipPath := filepath.Join(p.outDir, "package_"+runID+".zip")
	if err := zipDir(workDir, zipPath); err != nil {
		return Result{}, err
	}

	zap.L().Info("packager: package written",
		zap.String("run_id", runID),
		zap.String("package", zipPath),
		zap.Int("documents", len(in.Documents)),
	)
	return Result{
		PackagePath:  zipPath,
		ManifestPath: manifestPath,
		SummaryPath:  archiveSummaryPath,
	}, nil
}

// PackagePath returns where a run's archive would live, whether or not it
// exists yet.
func (p *Packager) PackagePath(runID string) string {
	return filepath.Join(p.outDir, "package_"+runID+".zip")
}

// Cleanup removes all artifacts a run produced. Used when a simulation's
// synthetic evidence is discarded.
func (p *Packager) Cleanup(runID string) error {
	paths := []string{
		p.PackagePath(runID),
		filepath.Join(p.outDir, "run_"+runID),
		filepath.Join(p.auditLogDir, runID+".json"),
		filepath.Join(p.auditLogDir, runID+"_summary.md"),
	}
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return apperr.Wrap(apperr.KindCollaborator, err, "packager: cleanup")
		}
	}
	return nil
}

// copyOrSynthesize copies the source document into the package, or writes
// the extracted text when the source file is unreachable (simulated or
// remote evidence).
func copyOrSynthesize(doc model.DocumentRecord, target string) error {
	if doc.Path != "" && !strings.Contains(doc.Path, "://") {
		src, err := os.Open(doc.Path)
		if err == nil {
			defer src.Close()
			dst, err := os.Create(target)
			if err != nil {
				return apperr.Wrap(apperr.KindCollaborator, err, "packager: create document copy")
			}
			defer dst.Close()
			if _, err := io.Copy(dst, src); err != nil {
				return apperr.Wrap(apperr.KindCollaborator, err, "packager: copy document")
			}
			return nil
		}
	}
	if err := os.WriteFile(target, []byte(doc.Text), 0o644); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: write document text")
	}
	return nil
}

func writeLedgerWorkbook(path string, entries []model.LedgerEntry) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Ledger")
	if err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: add ledger sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{"entry_id", "invoice_id", "po_id", "vendor_id", "vendor_name", "amount", "currency", "posted_at", "status"} {
		header.AddCell().SetString(col)
	}
	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().SetString(e.EntryID)
		row.AddCell().SetString(e.InvoiceID)
		row.AddCell().SetString(e.POID)
		row.AddCell().SetString(e.VendorID)
		row.AddCell().SetString(e.VendorName)
		row.AddCell().SetFloat(e.Amount)
		row.AddCell().SetString(e.Currency)
		row.AddCell().SetString(e.PostedAt.Format("2006-01-02"))
		row.AddCell().SetString(e.Status)
	}

	if err := file.Save(path); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: save ledger workbook")
	}
	return nil
}

func zipDir(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: create archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: build archive")
	}
	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "packager: finalize archive")
	}
	return nil
}
