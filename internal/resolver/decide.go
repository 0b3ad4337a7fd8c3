package resolver

import (
	"sort"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// Provenance tags written to matched_by. The tag names the policy path
// that produced the accepted candidate.
const (
	matchedByManufacturerSite = "manufacturer_site"
	matchedByAnyHost          = "any_host"
	siteSearchSuffix          = "+site_search"
)

// decide sorts validated candidates by score and applies the acceptance
// threshold. The threshold is relaxed when a manufacturer domain was
// independently resolved, reflecting the added prior confidence.
func (e *Engine) decide(domain string, validated []model.Candidate, tr *RowTrace) *outcome {
	threshold := e.cfg.AcceptanceThreshold
	if domain != "" {
		threshold -= e.cfg.DomainRelaxation
	}

	sorted := make([]model.Candidate, len(validated))
	copy(sorted, validated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	out := &outcome{
		domain:    domain,
		threshold: threshold,
		validated: sorted,
	}

	if len(sorted) == 0 || sorted[0].Score < threshold {
		tr.setDecision(threshold, nil, "")
		return out
	}

	top := sorted[0]
	tag := matchedByManufacturerSite
	if e.cfg.AllowResellers {
		tag = matchedByAnyHost
	}
	if top.Source == model.SourceSiteSearch {
		tag += siteSearchSuffix
	}

	out.accepted = &top
	out.matchedBy = tag
	tr.setDecision(threshold, &top, tag)
	return out
}
