// Package store persists match rows and the source index.
package store

import (
	"context"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// RowStore reads and writes match rows. Write failures are hard failures
// and must propagate to the caller.
type RowStore interface {
	GetRow(ctx context.Context, id string) (*model.MatchRow, error)
	// UpdateRowResult writes the engine-owned output fields: status,
	// candidates, resolved_url, resolved_domain, confidence, matched_by,
	// updated_at. Scheduling fields are never touched.
	UpdateRowResult(ctx context.Context, row *model.MatchRow) error
}

// IndexStore is the long-lived source index. Lookups are best-effort; the
// resolver collapses errors to "not found". Upserts are last-write-wins on
// the (tenant_id, supplier_key, sku_norm) key.
type IndexStore interface {
	LookupDomains(ctx context.Context, tenantID, supplierKey string, limit int) ([]string, error)
	UpsertEntry(ctx context.Context, entry *model.SourceIndexEntry) error
}

// Store combines both stores with lifecycle management.
type Store interface {
	RowStore
	IndexStore
	Migrate(ctx context.Context) error
	Close() error
}
