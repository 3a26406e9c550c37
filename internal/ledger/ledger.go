// Package ledger adapts external journal sources to the reconciliation
// pipeline. The engine only sees the Querier interface; the concrete
// source (CSV extract, warehouse, ERP API) is an injection choice.
package ledger

import (
	"context"

	"github.com/auditecx/auditecx-cli/internal/model"
)

// Querier returns journal rows whose identifiers intersect the given
// set. An empty identifier set returns nothing: a run with no resolved
// identifiers is rejected upstream before the adapter is consulted.
type Querier interface {
	Query(ctx context.Context, identifiers []string) ([]model.LedgerEntry, error)
}
