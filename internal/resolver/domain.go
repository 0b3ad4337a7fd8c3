package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// resolveDomain determines the manufacturer's canonical domain for the
// row's supplier. Best-effort throughout: index and provider errors are
// logged and collapsed to "not found" so the caller can apply the
// domain-trust policy. Returns "" when no domain could be determined.
func (e *Engine) resolveDomain(ctx context.Context, row *model.MatchRow, tr *RowTrace) string {
	if row.SupplierKey == "" && row.SupplierName == "" {
		return ""
	}

	if d := e.overrides.DomainFor(row.SupplierKey); d != "" {
		return d
	}
	if d := e.domainFromIndex(ctx, row); d != "" {
		return d
	}
	return e.domainFromSearch(ctx, row, tr)
}

// domainFromIndex consults the source index for previously resolved
// domains of this supplier, preferring one whose hostname contains the
// normalized supplier key or name.
func (e *Engine) domainFromIndex(ctx context.Context, row *model.MatchRow) string {
	domains, err := e.index.LookupDomains(ctx, row.TenantID, row.SupplierKey, e.cfg.IndexDomainLimit)
	if err != nil {
		// Intentional degradation: a failed lookup is a miss.
		zap.L().Warn("resolver: index domain lookup failed",
			zap.String("tenant_id", row.TenantID),
			zap.String("supplier_key", row.SupplierKey),
			zap.Error(err),
		)
		return ""
	}
	if len(domains) == 0 {
		return ""
	}

	for _, d := range domains {
		if hostMatchesSupplier(d, row) {
			return d
		}
	}
	return domains[0]
}

// domainFromSearch issues "official site" queries for the supplier and
// inspects result hostnames. The first hostname containing the normalized
// supplier key/name wins; the very first result's hostname is kept as a
// best-guess fallback.
func (e *Engine) domainFromSearch(ctx context.Context, row *model.MatchRow, tr *RowTrace) string {
	supplier := row.SupplierName
	if supplier == "" {
		supplier = row.SupplierKey
	}

	queries := []string{
		fmt.Sprintf("%s official site", supplier),
		fmt.Sprintf("%s official website", supplier),
		fmt.Sprintf("%s manufacturer", supplier),
	}

	firstHost := ""
	for _, q := range queries {
		results, err := e.provider.Search(ctx, q, 5)
		tr.addSearch(q, results, err)
		if err != nil {
			zap.L().Warn("resolver: supplier domain search failed",
				zap.String("query", q),
				zap.Error(err),
			)
			continue
		}
		for _, r := range results {
			host := domainOf(r.URL)
			if host == "" {
				continue
			}
			if firstHost == "" {
				firstHost = host
			}
			if hostMatchesSupplier(host, row) {
				return host
			}
		}
	}
	return firstHost
}

// hostMatchesSupplier reports whether the hostname textually contains the
// normalized supplier key or supplier name.
func hostMatchesSupplier(host string, row *model.MatchRow) bool {
	norm := model.NormalizeKey(host)
	if norm == "" {
		return false
	}
	if row.SupplierKey != "" && strings.Contains(norm, row.SupplierKey) {
		return true
	}
	if row.SupplierName != "" {
		if key := model.NormalizeKey(row.SupplierName); key != "" && strings.Contains(norm, key) {
			return true
		}
	}
	return false
}

// domainOf extracts the lowercased hostname from a URL, stripping any
// leading "www.".
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
