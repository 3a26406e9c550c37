// Package vendormetrics compiles per-vendor risk figures from the audit
// log manifests completed runs leave behind. The inputs are on-disk
// artifacts, so the metrics survive restarts and need no extra storage.
package vendormetrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// VendorRisk is one vendor's compiled risk row. Score starts at 100 and
// loses 10 points per recorded anomaly, floored at 0.
type VendorRisk struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	Invoices   int    `json:"invoices"`
	Anomalies  int    `json:"anomalies"`
	Score      int    `json:"score"`
}

// Heatmap is a label/value series for anomaly concentration charts.
type Heatmap struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Service reads run manifests from the audit log directory.
type Service struct {
	auditLogDir string
}

// New creates a Service over the given audit log directory.
func New(auditLogDir string) *Service {
	return &Service{auditLogDir: auditLogDir}
}

// manifestRecord is the slice of the packaged manifest this package
// reads; unknown manifest fields are ignored.
type manifestRecord struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt string                 `json:"generated_at"`
	Documents   []model.DocumentRecord `json:"documents"`
	Journal     []model.LedgerEntry    `json:"journal_entries"`
	Anomalies   []model.Anomaly        `json:"anomalies"`
}

// RiskMetrics compiles invoice counts, anomaly totals, and a risk score
// per vendor, sorted by descending score then vendor id.
func (s *Service) RiskMetrics() ([]VendorRisk, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}

	invoices := make(map[string]map[string]struct{})
	names := make(map[string]string)
	anomalies := make(map[string]int)

	seen := func(vendorID, name string) {
		if _, ok := invoices[vendorID]; !ok {
			invoices[vendorID] = make(map[string]struct{})
		}
		if name != "" && names[vendorID] == "" {
			names[vendorID] = name
		}
	}

	for _, rec := range records {
		for _, doc := range rec.Documents {
			seen(doc.VendorID, doc.VendorName)
			if doc.InvoiceID != "" {
				invoices[doc.VendorID][strings.ToUpper(doc.InvoiceID)] = struct{}{}
			}
		}
		for _, entry := range rec.Journal {
			seen(entry.VendorID, entry.VendorName)
			if entry.InvoiceID != "" {
				invoices[entry.VendorID][strings.ToUpper(entry.InvoiceID)] = struct{}{}
			}
		}
		for _, anomaly := range rec.Anomalies {
			if vendorID := resolveVendor(anomaly, rec); vendorID != "" {
				seen(vendorID, "")
				anomalies[vendorID]++
			}
		}
	}

	out := make([]VendorRisk, 0, len(invoices))
	for vendorID, set := range invoices {
		count := anomalies[vendorID]
		score := 100 - count*10
		if score < 0 {
			score = 0
		}
		name := names[vendorID]
		if name == "" {
			name = vendorID
		}
		out = append(out, VendorRisk{
			VendorID:   vendorID,
			VendorName: name,
			Invoices:   len(set),
			Anomalies:  count,
			Score:      score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].VendorID < out[j].VendorID
	})
	return out, nil
}

// Heatmap aggregates anomaly counts by vendor or by month (YYYY-MM of
// the run manifest). Vendor mode sorts by descending count then label;
// month mode sorts chronologically.
func (s *Service) Heatmap(by string) (Heatmap, error) {
	mode := strings.ToLower(by)
	if mode != "vendor" && mode != "month" {
		return Heatmap{}, apperr.Newf(apperr.KindInput,
			"vendormetrics: heatmap mode must be vendor or month, got %q", by)
	}

	records, err := s.load()
	if err != nil {
		return Heatmap{}, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		for _, anomaly := range rec.Anomalies {
			var label string
			if mode == "vendor" {
				label = resolveVendor(anomaly, rec)
			} else if len(rec.GeneratedAt) >= 7 {
				label = rec.GeneratedAt[:7]
			}
			if label != "" {
				counts[label]++
			}
		}
	}
	if len(counts) == 0 {
		return Heatmap{Labels: []string{}, Values: []int{}}, nil
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	if mode == "vendor" {
		sort.Slice(labels, func(i, j int) bool {
			if counts[labels[i]] != counts[labels[j]] {
				return counts[labels[i]] > counts[labels[j]]
			}
			return labels[i] < labels[j]
		})
	} else {
		sort.Strings(labels)
	}

	values := make([]int, len(labels))
	for i, label := range labels {
		values[i] = counts[label]
	}
	return Heatmap{Labels: labels, Values: values}, nil
}

// resolveVendor maps an anomaly back to a vendor through its document
// or ledger entry reference within the same manifest.
func resolveVendor(anomaly model.Anomaly, rec manifestRecord) string {
	if anomaly.DocID != "" {
		for _, doc := range rec.Documents {
			if doc.DocID == anomaly.DocID {
				return doc.VendorID
			}
		}
	}
	if anomaly.EntryID != "" {
		for _, entry := range rec.Journal {
			if entry.EntryID == anomaly.EntryID {
				return entry.VendorID
			}
		}
	}
	return ""
}

// load reads every manifest in the audit log directory. A missing
// directory means no runs have completed yet.
func (s *Service) load() ([]manifestRecord, error) {
	dirents, err := os.ReadDir(s.auditLogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindCollaborator, err, "vendormetrics: read audit log dir")
	}

	var records []manifestRecord
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.auditLogDir, de.Name()))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindCollaborator, err, "vendormetrics: read manifest")
		}
		var rec manifestRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, apperr.Wrap(apperr.KindCollaborator, err, "vendormetrics: parse "+de.Name())
		}
		records = append(records, rec)
	}
	return records, nil
}
