// Package notify delivers completed-run notifications to downstream
// channels.
package notify

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/pkg/notion"
)

// Notifier receives the terminal snapshot of every finished run.
type Notifier interface {
	Notify(ctx context.Context, summary model.ManifestSummary) error
}

// LogNotifier writes the notification to the structured log. It is the
// default channel when no tracker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, s model.ManifestSummary) error {
	zap.L().Info("run finished",
		zap.String("run_id", s.RunID),
		zap.String("kind", string(s.Kind)),
		zap.String("status", string(s.Status)),
		zap.String("vendor_id", s.VendorID),
		zap.Int("documents", s.Documents),
		zap.Int("anomalies", s.Anomalies),
		zap.Int("policy_issues", s.PolicyIssues),
		zap.String("package", s.PackagePath),
	)
	return nil
}

// NotionNotifier files one page per finished run in a findings database.
type NotionNotifier struct {
	client notion.Client
	dbID   string
}

// NewNotionNotifier creates a notifier writing to the given database.
func NewNotionNotifier(client notion.Client, dbID string) *NotionNotifier {
	return &NotionNotifier{client: client, dbID: dbID}
}

func (n *NotionNotifier) Notify(ctx context.Context, s model.ManifestSummary) error {
	title := fmt.Sprintf("Audit run %s (%s)", s.RunID, s.Status)
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
			},
			"Run ID": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s.RunID}}},
			},
			"Vendor": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s.VendorID}}},
			},
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(s.Status)},
			},
			"Anomalies": notionapi.NumberProperty{
				Number: float64(s.Anomalies),
			},
			"Policy Issues": notionapi.NumberProperty{
				Number: float64(s.PolicyIssues),
			},
		},
	}
	if _, err := n.client.CreatePage(ctx, req); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, err, "notify: create findings page")
	}
	zap.L().Info("notify: findings page created", zap.String("run_id", s.RunID))
	return nil
}
