// Package locator finds candidate evidence documents for a set of audit
// identifiers across one or more sources.
package locator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Source yields all candidate documents it can see. Sources are free to
// ignore the identifier set; the Locator filters afterwards so every
// source applies the same matching rule.
type Source interface {
	Name() string
	List(ctx context.Context) ([]model.DocumentRecord, error)
}

// Locator fans out to all configured sources concurrently and keeps the
// documents whose identifiers intersect the requested set.
type Locator struct {
	sources []Source
}

// New creates a Locator over the given sources.
func New(sources ...Source) *Locator {
	return &Locator{sources: sources}
}

// Locate returns all matching documents across sources, sorted by
// filename so results are stable regardless of source completion order.
// A failing source fails the whole lookup; evidence discovery must be
// complete or the run cannot claim to be an audit.
func (l *Locator) Locate(ctx context.Context, identifiers []string) ([]model.DocumentRecord, error) {
	idSet := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		if trimmed := strings.ToUpper(strings.TrimSpace(id)); trimmed != "" {
			idSet[trimmed] = struct{}{}
		}
	}

	var mu sync.Mutex
	var docs []model.DocumentRecord

	g, gCtx := errgroup.WithContext(ctx)
	for _, src := range l.sources {
		g.Go(func() error {
			found, err := src.List(gCtx)
			if err != nil {
				return apperr.Wrap(apperr.KindCollaborator, err, "locator: "+src.Name())
			}
			zap.L().Debug("locator: source scanned",
				zap.String("source", src.Name()),
				zap.Int("candidates", len(found)),
			)
			mu.Lock()
			docs = append(docs, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matched []model.DocumentRecord
	for _, doc := range docs {
		if len(idSet) == 0 || matchesIdentifiers(doc, idSet) {
			matched = append(matched, doc)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Filename < matched[j].Filename
	})
	return matched, nil
}

func matchesIdentifiers(doc model.DocumentRecord, idSet map[string]struct{}) bool {
	for _, token := range []string{doc.VendorID, doc.InvoiceID, doc.POID} {
		if token == "" {
			continue
		}
		if _, ok := idSet[strings.ToUpper(token)]; ok {
			return true
		}
	}
	return false
}
