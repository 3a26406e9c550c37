package model

import "time"

// LedgerEntry is a journal row sourced from the ledger adapter or
// fabricated by the simulation generator. Entries are immutable.
type LedgerEntry struct {
	EntryID    string    `json:"entry_id"`
	InvoiceID  string    `json:"invoice_id,omitempty"`
	POID       string    `json:"po_id,omitempty"`
	VendorID   string    `json:"vendor_id"`
	VendorName string    `json:"vendor_name,omitempty"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	PostedAt   time.Time `json:"posted_at"`
	Status     string    `json:"status"`
}
