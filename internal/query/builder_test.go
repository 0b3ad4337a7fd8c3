package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicalexcom/sourcematch/internal/model"
)

func fullRow() *model.MatchRow {
	return &model.MatchRow{
		ID:           "r1",
		TenantID:     "t1",
		SKU:          "ABC123",
		NDCItemCode:  "0074-3799-13",
		ProductName:  "Acme Widget Pro",
		BrandName:    "Acme",
		SupplierName: "Acme Medical",
	}
}

func TestBuild_FullRowPriorityOrder(t *testing.T) {
	got := Build(fullRow())
	require.Equal(t, []string{
		"ABC123 Acme Medical",
		"ABC123 Acme Widget Pro",
		"ABC123",
		"0074-3799-13",
		`"Acme Widget Pro" Acme`,
		`"Acme Widget Pro"`,
	}, got)
}

func TestBuild_QueriesNonEmptyAndDistinct(t *testing.T) {
	rows := []*model.MatchRow{
		fullRow(),
		{SKU: "ABC123"},
		{ProductName: "Widget"},
		{NDCItemCode: "1234-5"},
		{SupplierName: "Acme"},
		{},
		{SKU: "abc", SupplierName: "ABC"}, // dedup is case-insensitive
	}
	for _, row := range rows {
		got := Build(row)
		seen := make(map[string]bool)
		for _, q := range got {
			assert.NotEmpty(t, strings.TrimSpace(q))
			key := strings.ToLower(q)
			assert.False(t, seen[key], "duplicate query %q", q)
			seen[key] = true
		}
	}
}

func TestBuild_EmptyFieldsSkipped(t *testing.T) {
	row := &model.MatchRow{SKU: "ABC123"}
	assert.Equal(t, []string{"ABC123"}, Build(row))

	row = &model.MatchRow{ProductName: "Acme Widget Pro"}
	assert.Equal(t, []string{`"Acme Widget Pro"`}, Build(row))

	assert.Empty(t, Build(&model.MatchRow{}))
}

func TestBuild_SupplierKeyFallback(t *testing.T) {
	row := &model.MatchRow{SKU: "ABC123", SupplierKey: "acmemedical"}
	got := Build(row)
	require.NotEmpty(t, got)
	assert.Equal(t, "ABC123 acmemedical", got[0])
}

func TestSiteQueries(t *testing.T) {
	got := SiteQueries("acme.com", fullRow())
	require.Equal(t, []string{
		"site:acme.com ABC123",
		`site:acme.com "Acme Widget Pro"`,
		"site:acme.com ABC123 Acme Widget Pro",
	}, got)

	assert.Empty(t, SiteQueries("", fullRow()))
	assert.Empty(t, SiteQueries("acme.com", &model.MatchRow{}))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"acme", "widget", "pro"}, Tokens("Acme Widget-Pro!"))
	assert.Equal(t, []string{"abc123"}, Tokens("ABC123"))
	assert.Empty(t, Tokens("---"))
	assert.Empty(t, Tokens(""))
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1.0, Overlap("Acme Widget Pro", "acme widget pro"))
	// 2 shared tokens over max(3, 4) distinct tokens.
	assert.InDelta(t, 0.5, Overlap("Acme Widget Pro", "widget pro spare parts"), 0.001)
	assert.Zero(t, Overlap("Acme Widget", "completely different"))
	assert.Zero(t, Overlap("", "anything"))
	assert.Zero(t, Overlap("anything", ""))
}

func TestMatchedTokens(t *testing.T) {
	got := MatchedTokens("Acme Widget Pro", "The Widget Pro page")
	assert.Equal(t, []string{"widget", "pro"}, got)
	assert.Empty(t, MatchedTokens("Acme", "nothing here"))
}
