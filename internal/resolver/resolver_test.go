package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicalexcom/sourcematch/internal/config"
	"github.com/medicalexcom/sourcematch/internal/model"
)

func testConfig() config.ResolverConfig {
	return config.ResolverConfig{
		AcceptanceThreshold: 0.65,
		DomainRelaxation:    0.10,
		ResultCap:           8,
		IndexDomainLimit:    5,
		ValidateConcurrency: 2,
		Weights: config.Weights{
			StructuredSKU:     0.75,
			StructuredNameCap: 0.6,
			BodySKU:           0.6,
			BodyNDC:           0.6,
			TitleCap:          0.5,
			H1Cap:             0.6,
			DomainBonus:       0.1,
		},
	}
}

func acmeRow() *model.MatchRow {
	return &model.MatchRow{
		ID:           "row-1",
		TenantID:     "tenant-1",
		SKU:          "ABC123",
		SupplierName: "Acme",
		ProductName:  "Acme Widget Pro",
		Status:       model.StatusQueued,
	}
}

// Scenario A: the single search hit is the manufacturer's own product page
// with the SKU in the body and the product name in the h1.
func TestEngine_Resolve_ManufacturerPage(t *testing.T) {
	rows := newMockRowStore(acmeRow())
	index := &mockIndexStore{}
	provider := &mockProvider{
		defaults: []SearchResult{{URL: "https://acme.com/widget-pro", Title: "Acme Widget Pro"}},
	}
	fetcher := newMockFetcher()
	fetcher.pages["https://acme.com/widget-pro"] = htmlPage(200,
		`<html><head><title>Acme Widget Pro</title></head>
		<body><h1>Acme Widget Pro</h1><p>Part number ABC123 in stock.</p></body></html>`)

	engine := New(rows, index, provider, fetcher, testConfig())
	row, err := engine.Resolve(context.Background(), "row-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusResolvedConfident, row.Status)
	assert.Equal(t, "https://acme.com/widget-pro", row.ResolvedURL)
	assert.Equal(t, "acme.com", row.ResolvedDomain)
	assert.GreaterOrEqual(t, row.Confidence, 0.65)
	assert.Len(t, row.Candidates, 1)
	assert.Equal(t, "manufacturer_site", row.MatchedBy)

	require.Len(t, rows.updated, 1)
	require.Len(t, index.upserts, 1)
	assert.Equal(t, "acme.com", index.upserts[0].SourceDomain)
	assert.Equal(t, "abc123", index.upserts[0].SKUNorm)
}

// Scenario B: the only product hit is a reseller, but the manufacturer
// domain resolves; the reseller is filtered out and the row stays
// unresolved with no candidates.
func TestEngine_Resolve_ResellerFiltered(t *testing.T) {
	rows := newMockRowStore(acmeRow())
	index := &mockIndexStore{}
	provider := &mockProvider{
		contains: map[string][]SearchResult{
			"official": {{URL: "https://acme.com/"}},
			"site:":    {},
		},
		defaults: []SearchResult{{URL: "https://somereseller.com/acme-widget-pro-abc123"}},
	}
	fetcher := newMockFetcher()

	engine := New(rows, index, provider, fetcher, testConfig())
	row, err := engine.Resolve(context.Background(), "row-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnresolved, row.Status)
	assert.Empty(t, row.Candidates)
	assert.Empty(t, row.ResolvedURL)
	assert.Empty(t, index.upserts)
	// The reseller hit filled the raw pool, so no site-search fallback
	// ran and nothing was ever fetched.
	assert.Empty(t, fetcher.fetched)
}

// Scenario C: no search credentials and no index entry. The row terminates
// unresolved after the index lookup; no pages are fetched.
func TestEngine_Resolve_NoProviderNoIndex(t *testing.T) {
	rows := newMockRowStore(acmeRow())
	index := &mockIndexStore{}
	fetcher := newMockFetcher()

	engine := New(rows, index, NoopProvider{}, fetcher, testConfig())
	row, err := engine.Resolve(context.Background(), "row-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnresolved, row.Status)
	assert.Empty(t, row.Candidates)
	assert.Equal(t, 1, index.lookups)
	assert.Empty(t, fetcher.fetched)
}

func TestEngine_Resolve_RowWriteFailurePropagates(t *testing.T) {
	rows := newMockRowStore(acmeRow())
	rows.updateErr = assert.AnError
	index := &mockIndexStore{}

	engine := New(rows, index, NoopProvider{}, newMockFetcher(), testConfig())
	_, err := engine.Resolve(context.Background(), "row-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist row")
}

func TestEngine_Resolve_IndexUpsertFailureSwallowed(t *testing.T) {
	rows := newMockRowStore(acmeRow())
	index := &mockIndexStore{upsertErr: assert.AnError}
	provider := &mockProvider{
		defaults: []SearchResult{{URL: "https://acme.com/widget-pro"}},
	}
	fetcher := newMockFetcher()
	fetcher.pages["https://acme.com/widget-pro"] = htmlPage(200,
		`<html><body><h1>Acme Widget Pro</h1>ABC123</body></html>`)

	engine := New(rows, index, provider, fetcher, testConfig())
	row, err := engine.Resolve(context.Background(), "row-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolvedConfident, row.Status)
}

// Rows without sku_norm resolve normally but are not written to the index.
func TestEngine_Resolve_NDCOnlyRowSkipsIndexUpsert(t *testing.T) {
	row := &model.MatchRow{
		ID:           "row-ndc",
		TenantID:     "tenant-1",
		NDCItemCode:  "0074-3799-13",
		SupplierName: "Acme",
		ProductName:  "Acme Widget Pro",
	}
	rows := newMockRowStore(row)
	index := &mockIndexStore{}
	provider := &mockProvider{
		defaults: []SearchResult{{URL: "https://acme.com/widget-pro"}},
	}
	fetcher := newMockFetcher()
	fetcher.pages["https://acme.com/widget-pro"] = htmlPage(200,
		`<html><body><h1>Acme Widget Pro</h1>NDC 0074-3799-13</body></html>`)

	engine := New(rows, index, provider, fetcher, testConfig())
	got, err := engine.Resolve(context.Background(), "row-ndc")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolvedConfident, got.Status)
	assert.Empty(t, index.upserts)
}

func TestEngine_Resolve_AllowResellersProvenance(t *testing.T) {
	cfg := testConfig()
	cfg.AllowResellers = true

	row := acmeRow()
	row.SupplierName = "" // no domain anchor at all
	rows := newMockRowStore(row)
	index := &mockIndexStore{}
	provider := &mockProvider{
		defaults: []SearchResult{{URL: "https://somereseller.com/widget"}},
	}
	fetcher := newMockFetcher()
	fetcher.pages["https://somereseller.com/widget"] = htmlPage(200,
		`<html><head><title>Acme Widget Pro</title></head><body><h1>Acme Widget Pro</h1>ABC123</body></html>`)

	engine := New(rows, index, provider, fetcher, cfg)
	got, err := engine.Resolve(context.Background(), "row-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolvedConfident, got.Status)
	assert.Equal(t, "any_host", got.MatchedBy)
	assert.Equal(t, "somereseller.com", got.ResolvedDomain)
}

func TestEngine_ResolveAll(t *testing.T) {
	r1, r2 := acmeRow(), acmeRow()
	r2.ID = "row-2"
	rows := newMockRowStore(r1, r2)
	index := &mockIndexStore{}

	engine := New(rows, index, NoopProvider{}, newMockFetcher(), testConfig())
	resolved, failed := engine.ResolveAll(context.Background(), []string{"row-1", "row-2", "missing"}, 2)
	assert.Equal(t, 2, resolved)
	assert.Equal(t, 1, failed)
}
