// Package query derives search queries and token-overlap metrics from a
// match row. No network calls, no failure modes.
package query

import (
	"fmt"
	"strings"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// Build returns the deduplicated, priority-ordered query list for a row.
// Empty input fields are skipped; dedup is case-insensitive.
func Build(row *model.MatchRow) []string {
	supplier := row.SupplierName
	if supplier == "" {
		supplier = row.SupplierKey
	}

	var queries []string
	if row.SKU != "" && supplier != "" {
		queries = append(queries, row.SKU+" "+supplier)
	}
	if row.SKU != "" && row.ProductName != "" {
		queries = append(queries, row.SKU+" "+row.ProductName)
	}
	if row.SKU != "" {
		queries = append(queries, row.SKU)
	}
	if row.NDCItemCode != "" {
		queries = append(queries, row.NDCItemCode)
	}
	if row.ProductName != "" && row.BrandName != "" {
		queries = append(queries, fmt.Sprintf("%q %s", row.ProductName, row.BrandName))
	}
	if row.ProductName != "" {
		queries = append(queries, fmt.Sprintf("%q", row.ProductName))
	}

	return dedup(queries)
}

// SiteQueries returns domain-restricted variants of the top queries.
// Site-restricted hits are strictly higher-priority evidence, so callers
// prepend these ahead of the unrestricted list.
func SiteQueries(domain string, row *model.MatchRow) []string {
	if domain == "" {
		return nil
	}

	var queries []string
	if row.SKU != "" {
		queries = append(queries, fmt.Sprintf("site:%s %s", domain, row.SKU))
	}
	if row.ProductName != "" {
		queries = append(queries, fmt.Sprintf("site:%s %q", domain, row.ProductName))
	}
	if row.SKU != "" && row.ProductName != "" {
		queries = append(queries, fmt.Sprintf("site:%s %s %s", domain, row.SKU, row.ProductName))
	}

	return dedup(queries)
}

func dedup(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
