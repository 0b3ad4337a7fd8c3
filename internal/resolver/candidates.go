package resolver

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/medicalexcom/sourcematch/internal/model"
	"github.com/medicalexcom/sourcematch/internal/query"
	"github.com/medicalexcom/sourcematch/internal/signals"
)

// siteSearchPaths are common internal search-URL patterns tried during the
// site-search fallback. The query term is appended to each.
var siteSearchPaths = []string{
	"/search?q=",
	"/search?query=",
	"/catalogsearch/result/?q=",
	"/products?search=",
}

// gather executes the candidate discovery stage: site-restricted queries
// first, then the unrestricted list, then the site-search fallback when
// web search produced nothing, and finally the domain-trust filter.
func (e *Engine) gather(ctx context.Context, row *model.MatchRow, domain string, queries []string, tr *RowTrace) []model.Candidate {
	siteQueries := query.SiteQueries(domain, row)
	tr.setSiteQueries(siteQueries)

	all := append(append([]string{}, siteQueries...), queries...)

	seen := make(map[string]bool)
	var pool []model.Candidate
	for _, q := range all {
		if len(pool) >= e.cfg.ResultCap {
			break
		}
		results, err := e.provider.Search(ctx, q, e.cfg.ResultCap)
		tr.addSearch(q, results, err)
		if err != nil {
			// A failed query never aborts generation.
			zap.L().Warn("resolver: search query failed",
				zap.String("query", q),
				zap.Error(err),
			)
			continue
		}
		for _, r := range results {
			if len(pool) >= e.cfg.ResultCap {
				break
			}
			key := dedupKey(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			pool = append(pool, model.Candidate{
				URL:     r.URL,
				Title:   r.Title,
				Snippet: r.Snippet,
				Source:  model.SourceSearchProvider,
			})
		}
	}

	if len(pool) == 0 && domain != "" {
		pool = e.siteSearchFallback(ctx, row, domain, seen)
	}

	filtered := filterTrusted(pool, domain, e.cfg.AllowResellers)
	tr.setPool(pool, filtered)
	return filtered
}

// siteSearchFallback probes common internal search endpoints on the
// manufacturer's domain and harvests hyperlink targets from any page that
// responds. Failed patterns are skipped, never fatal.
func (e *Engine) siteSearchFallback(ctx context.Context, row *model.MatchRow, domain string, seen map[string]bool) []model.Candidate {
	term := row.SKU
	if term == "" {
		term = row.ProductName
	}
	if term == "" {
		term = row.NDCItemCode
	}
	if term == "" {
		return nil
	}

	base := "https://" + domain
	var pool []model.Candidate
	for _, path := range siteSearchPaths {
		if len(pool) >= e.cfg.ResultCap {
			break
		}
		searchURL := base + path + url.QueryEscape(term)

		page, err := e.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			zap.L().Debug("resolver: site search fetch failed",
				zap.String("url", searchURL),
				zap.Error(err),
			)
			continue
		}
		if !page.OK() {
			zap.L().Debug("resolver: site search non-2xx",
				zap.String("url", searchURL),
				zap.Int("status", page.StatusCode),
			)
			continue
		}

		sig, err := signals.Extract(page.Body)
		if err != nil {
			zap.L().Debug("resolver: site search parse failed",
				zap.String("url", searchURL),
				zap.Error(err),
			)
			continue
		}

		for _, href := range sig.Links {
			if len(pool) >= e.cfg.ResultCap {
				break
			}
			abs := absolutize(base, href)
			key := dedupKey(abs)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			pool = append(pool, model.Candidate{
				URL:    abs,
				Source: model.SourceSiteSearch,
			})
		}
	}
	return pool
}

// filterTrusted applies the domain-trust policy. With a resolved domain,
// only that domain and its subdomains survive. Without one, strict policy
// yields an empty set; the reseller-tolerant override passes everything
// through.
func filterTrusted(candidates []model.Candidate, domain string, allowResellers bool) []model.Candidate {
	if allowResellers {
		return candidates
	}
	if domain == "" {
		return nil
	}

	var kept []model.Candidate
	for _, c := range candidates {
		host := domainOf(c.URL)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			kept = append(kept, c)
		}
	}
	return kept
}

// dedupKey is the candidate's URL with the fragment stripped.
func dedupKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// absolutize resolves a possibly-relative href against the site base URL.
func absolutize(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}
