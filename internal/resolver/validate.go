package resolver

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medicalexcom/sourcematch/internal/model"
	"github.com/medicalexcom/sourcematch/internal/query"
	"github.com/medicalexcom/sourcematch/internal/signals"
)

// validateAll fetches and scores every surviving candidate with bounded
// concurrency. A fetch failure or non-2xx response scores exactly 0 but
// keeps the candidate so the decision step can report best-available
// evidence. Input order is preserved.
func (e *Engine) validateAll(ctx context.Context, row *model.MatchRow, domain string, candidates []model.Candidate, tr *RowTrace) []model.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	validated := make([]model.Candidate, len(candidates))
	traces := make([]ValidationTrace, len(candidates))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ValidateConcurrency)

	for i, cand := range candidates {
		g.Go(func() error {
			c, vt := e.validateOne(gCtx, row, domain, cand)
			mu.Lock()
			validated[i] = c
			traces[i] = vt
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, vt := range traces {
		tr.addValidation(vt)
	}
	return validated
}

// validateOne fetches a single candidate page and computes its score.
func (e *Engine) validateOne(ctx context.Context, row *model.MatchRow, domain string, cand model.Candidate) (model.Candidate, ValidationTrace) {
	cand.Domain = domainOf(cand.URL)
	vt := ValidationTrace{URL: cand.URL}

	page, err := e.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		zap.L().Debug("resolver: candidate fetch failed",
			zap.String("url", cand.URL),
			zap.Error(err),
		)
		cand.Score = 0
		vt.Error = err.Error()
		return cand, vt
	}
	vt.FetchStatus = page.StatusCode
	if !page.OK() {
		cand.Score = 0
		return cand, vt
	}

	sig, err := signals.Extract(page.Body)
	if err != nil {
		cand.Score = 0
		vt.Error = err.Error()
		return cand, vt
	}

	score, matched := e.score(row, domain, cand.Domain, sig, string(page.Body))
	cand.Score = score
	cand.MatchedTokens = matched
	vt.Score = score
	vt.MatchedTokens = matched
	return cand, vt
}

// score computes the additive, clamped-to-1.0 confidence score from the
// independent page signals.
func (e *Engine) score(row *model.MatchRow, domain, candHost string, sig *signals.PageSignals, body string) (float64, []string) {
	w := e.cfg.Weights
	total := 0.0

	// Structured product data: SKU exact match, then best name overlap.
	structuredSKU := 0.0
	structuredName := 0.0
	for _, p := range sig.Products {
		if row.SKU != "" && (skuEqual(p.SKU, row.SKU) || skuEqual(p.MPN, row.SKU) || skuEqual(p.GTIN, row.SKU)) {
			structuredSKU = w.StructuredSKU
		}
		if row.ProductName != "" && p.Name != "" {
			if ov := query.Overlap(row.ProductName, p.Name) * w.StructuredNameCap; ov > structuredName {
				structuredName = ov
			}
		}
	}
	total += structuredSKU + structuredName

	// Raw-body substring matches, case-insensitive.
	lowerBody := strings.ToLower(body)
	if row.SKU != "" && strings.Contains(lowerBody, strings.ToLower(row.SKU)) {
		total += w.BodySKU
	}
	if row.NDCItemCode != "" && strings.Contains(lowerBody, strings.ToLower(row.NDCItemCode)) {
		total += w.BodyNDC
	}

	// Token overlap against title and h1.
	var matched []string
	if row.ProductName != "" {
		total += query.Overlap(row.ProductName, sig.Title) * w.TitleCap
		total += query.Overlap(row.ProductName, sig.H1) * w.H1Cap
		matched = query.MatchedTokens(row.ProductName, sig.Title+" "+sig.H1)
	}

	// Domain hint bonus.
	hint := domain
	if hint == "" {
		hint = row.SupplierKey
	}
	if hint != "" && candHost != "" {
		normHost := model.NormalizeKey(candHost)
		normHint := model.NormalizeKey(hint)
		if normHint != "" && (strings.Contains(normHost, normHint) || strings.Contains(normHint, normHost)) {
			total += w.DomainBonus
		}
	}

	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total, matched
}

// skuEqual compares SKU-like codes after key normalization so formatting
// differences (dashes, case) don't block an exact match.
func skuEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return model.NormalizeKey(a) == model.NormalizeKey(b)
}
