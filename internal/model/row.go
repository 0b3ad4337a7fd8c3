// Package model defines the data types shared across the resolution engine.
package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RowStatus is the terminal state of a match row.
type RowStatus string

const (
	StatusQueued            RowStatus = "queued"
	StatusResolvedConfident RowStatus = "resolved_confident"
	StatusUnresolved        RowStatus = "unresolved"
)

// CandidateSource identifies how a candidate URL was discovered.
type CandidateSource string

const (
	SourceSearchProvider CandidateSource = "search_provider"
	SourceSiteSearch     CandidateSource = "site_search"
)

// MatchRow is the unit of work. The row is owned by the calling queue; the
// engine only mutates the output fields (status, candidates, resolved_*,
// confidence, matched_by).
type MatchRow struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	SKU          string `json:"sku,omitempty"`
	SKUNorm      string `json:"sku_norm,omitempty"`
	NDCItemCode  string `json:"ndc_item_code,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	BrandName    string `json:"brand_name,omitempty"`
	SupplierName string `json:"supplier_name,omitempty"`
	SupplierKey  string `json:"supplier_key,omitempty"`

	Status         RowStatus   `json:"status"`
	Candidates     []Candidate `json:"candidates,omitempty"`
	ResolvedURL    string      `json:"resolved_url,omitempty"`
	ResolvedDomain string      `json:"resolved_domain,omitempty"`
	Confidence     float64     `json:"confidence"`
	MatchedBy      string      `json:"matched_by,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Candidate is a URL discovered during search that might be the canonical
// product page. Score, MatchedTokens and Domain are filled during validation.
type Candidate struct {
	URL     string          `json:"url"`
	Title   string          `json:"title,omitempty"`
	Snippet string          `json:"snippet,omitempty"`
	Source  CandidateSource `json:"source"`

	Score         float64  `json:"score"`
	MatchedTokens []string `json:"matched_tokens,omitempty"`
	Domain        string   `json:"domain,omitempty"`
}

// SourceIndexEntry is the denormalized lookup index row keyed by
// (tenant_id, supplier_key, sku_norm). Upserts are last-write-wins.
type SourceIndexEntry struct {
	TenantID     string            `json:"tenant_id"`
	SupplierKey  string            `json:"supplier_key"`
	SKUNorm      string            `json:"sku_norm"`
	SourceDomain string            `json:"source_domain"`
	SourceURL    string            `json:"source_url"`
	Confidence   float64           `json:"confidence"`
	Signals      map[string]string `json:"signals,omitempty"`
	LastSeenAt   time.Time         `json:"last_seen_at"`
}

// Normalize derives missing normalized fields in place. Called once at the
// engine boundary so downstream stages never re-check raw input.
func (r *MatchRow) Normalize() {
	r.SKU = strings.TrimSpace(r.SKU)
	r.NDCItemCode = strings.TrimSpace(r.NDCItemCode)
	r.ProductName = strings.TrimSpace(r.ProductName)
	r.BrandName = strings.TrimSpace(r.BrandName)
	r.SupplierName = strings.TrimSpace(r.SupplierName)

	if r.SKUNorm == "" && r.SKU != "" {
		r.SKUNorm = NormalizeKey(r.SKU)
	}
	if r.SupplierKey == "" && r.SupplierName != "" {
		r.SupplierKey = NormalizeKey(r.SupplierName)
	}
}

// Validate checks the identity fields the engine cannot work without. Rows
// lacking any product identifier still pass; they simply produce an empty
// query list and terminate as unresolved.
func (r *MatchRow) Validate() error {
	if r.ID == "" {
		return eris.New("model: row id is required")
	}
	if r.TenantID == "" {
		return eris.New("model: tenant id is required")
	}
	return nil
}

var keyStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey lowercases, strips diacritics, and drops every character
// that is not a letter or digit. Used for supplier keys, sku_norm, and the
// hostname-containment heuristics.
func NormalizeKey(s string) string {
	stripped, _, err := transform.String(keyStripper, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, c := range strings.ToLower(stripped) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
