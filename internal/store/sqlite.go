package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS match_rows (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	sku             TEXT NOT NULL DEFAULT '',
	sku_norm        TEXT NOT NULL DEFAULT '',
	ndc_item_code   TEXT NOT NULL DEFAULT '',
	product_name    TEXT NOT NULL DEFAULT '',
	brand_name      TEXT NOT NULL DEFAULT '',
	supplier_name   TEXT NOT NULL DEFAULT '',
	supplier_key    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'queued',
	candidates      TEXT,
	resolved_url    TEXT NOT NULL DEFAULT '',
	resolved_domain TEXT NOT NULL DEFAULT '',
	confidence      REAL NOT NULL DEFAULT 0,
	matched_by      TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_index (
	tenant_id     TEXT NOT NULL,
	supplier_key  TEXT NOT NULL,
	sku_norm      TEXT NOT NULL,
	source_domain TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	confidence    REAL NOT NULL DEFAULT 0,
	signals       TEXT,
	last_seen_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tenant_id, supplier_key, sku_norm)
);

CREATE INDEX IF NOT EXISTS idx_match_rows_tenant_status ON match_rows(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_source_index_supplier ON source_index(tenant_id, supplier_key, last_seen_at);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertRow inserts a queued match row. Used by the CLI and tests; in
// production rows arrive via the surrounding queue system.
func (s *SQLiteStore) InsertRow(ctx context.Context, row *model.MatchRow) error {
	status := row.Status
	if status == "" {
		status = model.StatusQueued
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_rows (id, tenant_id, sku, sku_norm, ndc_item_code, product_name, brand_name, supplier_name, supplier_key, status, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.TenantID, row.SKU, row.SKUNorm, row.NDCItemCode,
		row.ProductName, row.BrandName, row.SupplierName, row.SupplierKey, status,
		time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert row %s", row.ID)
	}
	return nil
}

// GetRow fetches a match row by id.
func (s *SQLiteStore) GetRow(ctx context.Context, id string) (*model.MatchRow, error) {
	var (
		row        model.MatchRow
		candidates sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, sku, sku_norm, ndc_item_code, product_name, brand_name, supplier_name, supplier_key, status, candidates, resolved_url, resolved_domain, confidence, matched_by, updated_at FROM match_rows WHERE id = ?`,
		id,
	).Scan(
		&row.ID, &row.TenantID, &row.SKU, &row.SKUNorm, &row.NDCItemCode,
		&row.ProductName, &row.BrandName, &row.SupplierName, &row.SupplierKey,
		&row.Status, &candidates, &row.ResolvedURL, &row.ResolvedDomain,
		&row.Confidence, &row.MatchedBy, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: row %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get row %s", id)
	}

	if candidates.Valid && candidates.String != "" {
		if err := json.Unmarshal([]byte(candidates.String), &row.Candidates); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal candidates for row %s", id)
		}
	}
	return &row, nil
}

// UpdateRowResult writes the engine outcome fields back onto the row.
func (s *SQLiteStore) UpdateRowResult(ctx context.Context, row *model.MatchRow) error {
	candidates, err := json.Marshal(row.Candidates)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal candidates for row %s", row.ID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE match_rows SET status = ?, candidates = ?, resolved_url = ?, resolved_domain = ?, confidence = ?, matched_by = ?, updated_at = ? WHERE id = ?`,
		row.Status, string(candidates), row.ResolvedURL, row.ResolvedDomain,
		row.Confidence, row.MatchedBy, time.Now().UTC(), row.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update row %s", row.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: update row %s", row.ID)
	}
	if n == 0 {
		return eris.Errorf("sqlite: update row %s: no row matched", row.ID)
	}
	return nil
}

// LookupDomains returns the most recently seen source domains for a
// supplier, deduplicated, newest first.
func (s *SQLiteStore) LookupDomains(ctx context.Context, tenantID, supplierKey string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_domain FROM source_index WHERE tenant_id = ? AND supplier_key = ? ORDER BY last_seen_at DESC LIMIT ?`,
		tenantID, supplierKey, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup domains for %s/%s", tenantID, supplierKey)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan domain")
		}
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate domains")
	}
	return domains, nil
}

// UpsertEntry writes a source index entry, last-write-wins on conflict.
func (s *SQLiteStore) UpsertEntry(ctx context.Context, entry *model.SourceIndexEntry) error {
	signals, err := json.Marshal(entry.Signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal index signals")
	}

	lastSeen := entry.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO source_index (tenant_id, supplier_key, sku_norm, source_domain, source_url, confidence, signals, last_seen_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, supplier_key, sku_norm) DO UPDATE SET source_domain = excluded.source_domain, source_url = excluded.source_url, confidence = excluded.confidence, signals = excluded.signals, last_seen_at = excluded.last_seen_at`,
		entry.TenantID, entry.SupplierKey, entry.SKUNorm,
		entry.SourceDomain, entry.SourceURL, entry.Confidence,
		string(signals), lastSeen,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert index %s/%s/%s", entry.TenantID, entry.SupplierKey, entry.SKUNorm)
	}
	return nil
}
