// Package intent turns a natural-language audit request into structured
// identifiers and a deterministic execution plan.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the coarse request category used to pick a plan.
type Kind string

const (
	KindGeneratePackage Kind = "generate_package"
	KindGetSummary      Kind = "get_summary"
	KindDownloadPackage Kind = "download_package"
	KindGeneralQuery    Kind = "general_query"
)

var (
	vendorPattern  = regexp.MustCompile(`(?i)\bVEND-\d+\b`)
	invoicePattern = regexp.MustCompile(`(?i)\bINV-\d+\b`)
	poPattern      = regexp.MustCompile(`(?i)\bPO-\d+\b`)
	datePattern    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	quarterPattern = regexp.MustCompile(`(?i)\bQ([1-4])\s*(20\d{2})\b`)
)

// Parsed is the structured interpretation of a request.
type Parsed struct {
	Kind       Kind     `json:"intent"`
	VendorIDs  []string `json:"vendor_ids"`
	InvoiceIDs []string `json:"invoice_ids"`
	POIDs      []string `json:"po_ids"`
	DateFrom   string   `json:"date_from,omitempty"`
	DateTo     string   `json:"date_to,omitempty"`
	Raw        string   `json:"raw"`
}

// Identifiers returns the deduplicated union of all extracted ids,
// preserving first-seen order.
func (p Parsed) Identifiers() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, bucket := range [][]string{p.VendorIDs, p.InvoiceIDs, p.POIDs} {
		for _, id := range bucket {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Parser extracts identifiers and an intent kind from free text. The
// default implementation is regex-based; an LLM-backed extractor can be
// injected behind the same interface.
type Parser interface {
	Parse(text string) Parsed
}

// RegexParser is the deterministic default Parser.
type RegexParser struct{}

// Parse extracts identifier tokens and infers the intent kind.
func (RegexParser) Parse(text string) Parsed {
	trimmed := strings.TrimSpace(text)
	p := Parsed{Kind: KindGeneralQuery, Raw: text}
	if trimmed == "" {
		return p
	}

	p.VendorIDs = extractTokens(vendorPattern, trimmed)
	p.InvoiceIDs = extractTokens(invoicePattern, trimmed)
	p.POIDs = extractTokens(poPattern, trimmed)
	p.DateFrom, p.DateTo = extractDateRange(trimmed)
	p.Kind = inferKind(strings.ToLower(trimmed))
	return p
}

func extractTokens(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range re.FindAllString(text, -1) {
		upper := strings.ToUpper(tok)
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
	}
	return out
}

func extractDateRange(text string) (from, to string) {
	dates := datePattern.FindAllString(text, -1)
	switch len(dates) {
	case 0:
	case 1:
		from = dates[0]
	default:
		from, to = dates[0], dates[1]
	}
	if from == "" {
		if q := quarterPattern.FindStringSubmatch(text); q != nil {
			from, to = quarterBounds(q[1], q[2])
		}
	}
	return from, to
}

// quarterBounds maps Q1..Q4 of a year to its first and last day.
func quarterBounds(quarter, year string) (string, string) {
	switch quarter {
	case "1":
		return year + "-01-01", year + "-03-31"
	case "2":
		return year + "-04-01", year + "-06-30"
	case "3":
		return year + "-07-01", year + "-09-30"
	default:
		return year + "-10-01", year + "-12-31"
	}
}

func inferKind(lower string) Kind {
	switch {
	case strings.Contains(lower, "download"):
		return KindDownloadPackage
	case strings.Contains(lower, "summary") || strings.Contains(lower, "summarize"):
		return KindGetSummary
	case strings.Contains(lower, "package") || strings.Contains(lower, "audit") ||
		strings.Contains(lower, "reconcile") || strings.Contains(lower, "evidence"):
		return KindGeneratePackage
	default:
		return KindGeneralQuery
	}
}
