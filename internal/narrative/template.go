package narrative

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// TemplateGenerator writes the summary from fixed prose templates. The
// same input always yields the same text, which simulation runs and the
// offline deployment mode both depend on.
type TemplateGenerator struct {
	printer *message.Printer
}

// NewTemplateGenerator creates a deterministic summary generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{printer: message.NewPrinter(language.English)}
}

func (g *TemplateGenerator) StreamSummary(ctx context.Context, in Input, emit func(chunk string)) (string, error) {
	var chunks []string

	vendor := in.Run.VendorID
	if vendor == "" && len(in.Documents) > 0 {
		vendor = in.Documents[0].VendorID
	}
	subject := "the requested identifiers"
	if vendor != "" {
		subject = "vendor " + vendor
	}

	counts := in.Counts()
	chunks = append(chunks, g.printer.Sprintf(
		"Audit evidence review for %s covered %d document(s) against %d ledger entr(ies). "+
			"Reconciliation produced %d matched, %d partial, and %d unmatched result(s).",
		subject, len(in.Documents), len(in.Entries),
		counts.Matched, counts.Partial, counts.Unmatched,
	))

	if len(in.Anomalies) == 0 {
		chunks = append(chunks, "No anomalies were detected. All reconciled amounts fall within the configured variance threshold.")
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "%d anomal(ies) require attention:", len(in.Anomalies))
		for _, a := range in.Anomalies {
			fmt.Fprintf(&b, "\n- [%s] %s: %s Suggested action: %s", a.Severity, a.Label, a.Rationale, a.Suggestion)
		}
		chunks = append(chunks, b.String())
	}

	if len(in.Findings) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Policy review raised %d finding(s):", len(in.Findings))
		for _, f := range in.Findings {
			fmt.Fprintf(&b, "\n- %s (%s): %s", f.Control, f.Severity, f.Statement)
		}
		chunks = append(chunks, b.String())
	}

	closing := "The evidence package includes the source documents, the ledger extract, and this summary."
	if in.Run.Kind == model.RunKindSimulation {
		closing = "This run used simulated evidence. " + closing
	}
	chunks = append(chunks, closing)

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if emit != nil {
			emit(c)
		}
	}
	return strings.Join(chunks, "\n\n"), nil
}
