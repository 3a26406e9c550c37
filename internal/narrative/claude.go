package narrative

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/pkg/claude"
)

const summarySystemPrompt = `You are an audit assistant writing the executive summary of an
evidence reconciliation run. Be factual and concise. Cite document and
ledger identifiers exactly as given. Do not invent amounts or findings
that are not in the provided data.`

// ClaudeGenerator produces the summary with a streaming model call.
type ClaudeGenerator struct {
	client    claude.Client
	model     string
	maxTokens int64
}

// NewClaudeGenerator creates a model-backed summary generator.
func NewClaudeGenerator(client claude.Client, model string, maxTokens int64) *ClaudeGenerator {
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &ClaudeGenerator{client: client, model: model, maxTokens: maxTokens}
}

func (g *ClaudeGenerator) StreamSummary(ctx context.Context, in Input, emit func(chunk string)) (string, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return "", err
	}
	text, err := g.client.StreamMessage(ctx, claude.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    summarySystemPrompt,
		Prompt:    prompt,
	}, emit)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCollaborator, err, "narrative: stream summary")
	}
	return text, nil
}

func buildPrompt(in Input) (string, error) {
	counts := in.Counts()
	payload := map[string]any{
		"vendor_id":   in.Run.VendorID,
		"identifiers": in.Run.Identifiers,
		"documents":   len(in.Documents),
		"ledger":      len(in.Entries),
		"matched":     counts.Matched,
		"partial":     counts.Partial,
		"unmatched":   counts.Unmatched,
		"anomalies":   in.Anomalies,
		"findings":    in.Findings,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", apperr.Wrap(apperr.KindInput, err, "narrative: encode prompt")
	}

	var b strings.Builder
	b.WriteString("Summarize this reconciliation run for the audit file:\n\n")
	b.Write(data)
	return b.String(), nil
}
