package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/medicalexcom/sourcematch/internal/db"
	"github.com/medicalexcom/sourcematch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot path of the resolution engine.
var preparedStatements = map[string]string{
	"get_row": `SELECT id, tenant_id, sku, sku_norm, ndc_item_code, product_name, brand_name, supplier_name, supplier_key, status, candidates, resolved_url, resolved_domain, confidence, matched_by, updated_at FROM match_rows WHERE id = $1`,
	"update_row_result": `UPDATE match_rows SET status = $1, candidates = $2, resolved_url = $3, resolved_domain = $4, confidence = $5, matched_by = $6, updated_at = $7 WHERE id = $8`,
	"lookup_domains": `SELECT source_domain FROM source_index WHERE tenant_id = $1 AND supplier_key = $2 ORDER BY last_seen_at DESC LIMIT $3`,
	"upsert_index": `INSERT INTO source_index (tenant_id, supplier_key, sku_norm, source_domain, source_url, confidence, signals, last_seen_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (tenant_id, supplier_key, sku_norm) DO UPDATE SET source_domain = EXCLUDED.source_domain, source_url = EXCLUDED.source_url, confidence = EXCLUDED.confidence, signals = EXCLUDED.signals, last_seen_at = EXCLUDED.last_seen_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS match_rows (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id       TEXT NOT NULL,
	sku             TEXT NOT NULL DEFAULT '',
	sku_norm        TEXT NOT NULL DEFAULT '',
	ndc_item_code   TEXT NOT NULL DEFAULT '',
	product_name    TEXT NOT NULL DEFAULT '',
	brand_name      TEXT NOT NULL DEFAULT '',
	supplier_name   TEXT NOT NULL DEFAULT '',
	supplier_key    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'queued',
	candidates      JSONB,
	resolved_url    TEXT NOT NULL DEFAULT '',
	resolved_domain TEXT NOT NULL DEFAULT '',
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	matched_by      TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_index (
	tenant_id     TEXT NOT NULL,
	supplier_key  TEXT NOT NULL,
	sku_norm      TEXT NOT NULL,
	source_domain TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	signals       JSONB,
	last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, supplier_key, sku_norm)
);

CREATE INDEX IF NOT EXISTS idx_match_rows_tenant_status ON match_rows(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_source_index_supplier ON source_index(tenant_id, supplier_key, last_seen_at DESC);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetRow fetches a match row by id.
func (s *PostgresStore) GetRow(ctx context.Context, id string) (*model.MatchRow, error) {
	var (
		row        model.MatchRow
		candidates []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, sku, sku_norm, ndc_item_code, product_name, brand_name, supplier_name, supplier_key, status, candidates, resolved_url, resolved_domain, confidence, matched_by, updated_at FROM match_rows WHERE id = $1`,
		id,
	).Scan(
		&row.ID, &row.TenantID, &row.SKU, &row.SKUNorm, &row.NDCItemCode,
		&row.ProductName, &row.BrandName, &row.SupplierName, &row.SupplierKey,
		&row.Status, &candidates, &row.ResolvedURL, &row.ResolvedDomain,
		&row.Confidence, &row.MatchedBy, &row.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get row %s", id)
	}

	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &row.Candidates); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal candidates for row %s", id)
		}
	}
	return &row, nil
}

// UpdateRowResult writes the engine outcome fields back onto the row.
func (s *PostgresStore) UpdateRowResult(ctx context.Context, row *model.MatchRow) error {
	candidates, err := json.Marshal(row.Candidates)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal candidates for row %s", row.ID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE match_rows SET status = $1, candidates = $2, resolved_url = $3, resolved_domain = $4, confidence = $5, matched_by = $6, updated_at = $7 WHERE id = $8`,
		row.Status, candidates, row.ResolvedURL, row.ResolvedDomain,
		row.Confidence, row.MatchedBy, time.Now().UTC(), row.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update row %s", row.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update row %s: no row matched", row.ID)
	}
	return nil
}

// LookupDomains returns the most recently seen source domains for a
// supplier, deduplicated, newest first.
func (s *PostgresStore) LookupDomains(ctx context.Context, tenantID, supplierKey string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_domain FROM source_index WHERE tenant_id = $1 AND supplier_key = $2 ORDER BY last_seen_at DESC LIMIT $3`,
		tenantID, supplierKey, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lookup domains for %s/%s", tenantID, supplierKey)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan domain")
		}
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate domains")
	}
	return domains, nil
}

// UpsertEntry writes a source index entry, last-write-wins on conflict.
func (s *PostgresStore) UpsertEntry(ctx context.Context, entry *model.SourceIndexEntry) error {
	signals, err := json.Marshal(entry.Signals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal index signals")
	}

	lastSeen := entry.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO source_index (tenant_id, supplier_key, sku_norm, source_domain, source_url, confidence, signals, last_seen_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (tenant_id, supplier_key, sku_norm) DO UPDATE SET source_domain = EXCLUDED.source_domain, source_url = EXCLUDED.source_url, confidence = EXCLUDED.confidence, signals = EXCLUDED.signals, last_seen_at = EXCLUDED.last_seen_at`,
		entry.TenantID, entry.SupplierKey, entry.SKUNorm,
		entry.SourceDomain, entry.SourceURL, entry.Confidence,
		signals, lastSeen,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert index %s/%s/%s", entry.TenantID, entry.SupplierKey, entry.SKUNorm)
	}
	return nil
}
