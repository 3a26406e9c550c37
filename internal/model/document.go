package model

// DocumentRecord is a located (or fabricated) piece of audit evidence.
// Records are read-only after creation and owned by their run.
type DocumentRecord struct {
	DocID      string            `json:"doc_id"`
	Filename   string            `json:"filename"`
	Path       string            `json:"path,omitempty"`
	DocType    string            `json:"doc_type"`
	VendorID   string            `json:"vendor_id"`
	VendorName string            `json:"vendor_name,omitempty"`
	InvoiceID  string            `json:"invoice_id,omitempty"`
	POID       string            `json:"po_id,omitempty"`
	Date       string            `json:"date,omitempty"`
	Amount     float64           `json:"amount,omitempty"`
	Currency   string            `json:"currency"`
	Text       string            `json:"text,omitempty"`
	Extracted  map[string]string `json:"extracted_fields,omitempty"`
}

// ChatMessage is one entry of a synthetic conversation transcript
// attached to simulation runs.
type ChatMessage struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Text      string   `json:"text"`
	Timestamp string   `json:"timestamp"`
	Keywords  []string `json:"keywords,omitempty"`
}

// PolicyFinding records a deterministic control violation detected over
// run evidence.
type PolicyFinding struct {
	ID           string   `json:"id"`
	Control      string   `json:"control"`
	ControlLabel string   `json:"control_label"`
	Statement    string   `json:"statement"`
	Excerpt      string   `json:"evidence_excerpt"`
	Severity     Severity `json:"severity"`
	Confidence   float64  `json:"confidence"`
	Page         int      `json:"page"`
}
