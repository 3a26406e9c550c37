package locator

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// metadataLine matches the "KEY: value" header convention used by the
// evidence drop directories. Keys are upper snake case; the first blank
// line ends the header block.
var metadataLine = regexp.MustCompile(`^([A-Z][A-Z0-9_]*):\s*(.+)$`)

// FSSource scans a directory tree of plain-text evidence documents.
type FSSource struct {
	dir string
}

// NewFSSource creates a filesystem source rooted at dir.
func NewFSSource(dir string) *FSSource {
	return &FSSource{dir: dir}
}

func (s *FSSource) Name() string { return "fs:" + s.dir }

// List walks the directory and parses every .txt and .md file. A missing
// root directory is not an error; an audit workspace may legitimately
// have no local evidence drop.
func (s *FSSource) List(ctx context.Context) ([]model.DocumentRecord, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil, nil
	}

	var docs []model.DocumentRecord
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isEvidenceFile(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, ParseDocument(path, string(data)))
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCollaborator, err, "locator: walk evidence dir")
	}
	return docs, nil
}

func isEvidenceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// ParseDocument extracts the header metadata and body from one evidence
// file. Unknown header keys are kept in Extracted so nothing the source
// system wrote is lost.
func ParseDocument(path, content string) model.DocumentRecord {
	doc := model.DocumentRecord{
		DocID:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Filename:  filepath.Base(path),
		Path:      path,
		DocType:   "invoice",
		Currency:  "USD",
		Extracted: map[string]string{},
	}

	lines := strings.Split(content, "\n")
	bodyStart := 0
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			bodyStart = i + 1
			break
		}
		m := metadataLine.FindStringSubmatch(trimmed)
		if m == nil {
			// Header block ends at the first non-metadata line.
			bodyStart = i
			break
		}
		key, value := m[1], strings.TrimSpace(m[2])
		doc.Extracted[key] = value
		switch key {
		case "DOC_TYPE":
			doc.DocType = strings.ToLower(value)
		case "VENDOR_ID":
			doc.VendorID = strings.ToUpper(value)
		case "VENDOR_NAME":
			doc.VendorName = value
		case "INVOICE_ID":
			doc.InvoiceID = strings.ToUpper(value)
		case "PO_ID":
			doc.POID = strings.ToUpper(value)
		case "DATE":
			doc.Date = value
		case "AMOUNT":
			if amt, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err == nil {
				doc.Amount = amt
			}
		case "CURRENCY":
			doc.Currency = strings.ToUpper(value)
		}
		bodyStart = i + 1
	}
	if bodyStart < len(lines) {
		doc.Text = strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	}
	return doc
}
