package resolver

import (
	"github.com/google/uuid"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// RowTrace records every intermediate decision of a resolution run. It is
// produced by the non-mutating Trace path so operators can see why a row
// resolved or didn't. A nil *RowTrace disables recording, which is how the
// mutating path shares the exact same pipeline code.
type RowTrace struct {
	TraceID  string `json:"trace_id"`
	RowID    string `json:"row_id"`
	TenantID string `json:"tenant_id"`

	Queries        []string          `json:"queries"`
	ResolvedDomain string            `json:"resolved_domain,omitempty"`
	SiteQueries    []string          `json:"site_queries,omitempty"`
	Searches       []SearchTrace     `json:"searches,omitempty"`
	PoolPreFilter  []model.Candidate `json:"pool_pre_filter,omitempty"`
	PoolPostFilter []model.Candidate `json:"pool_post_filter,omitempty"`
	Validations    []ValidationTrace `json:"validations,omitempty"`
	Threshold      float64           `json:"threshold"`
	Accepted       *model.Candidate  `json:"accepted,omitempty"`
	Decision       string            `json:"decision"`
	MatchedBy      string            `json:"matched_by,omitempty"`
}

// SearchTrace is the raw provider response for one query.
type SearchTrace struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ValidationTrace is the scoring outcome for one candidate.
type ValidationTrace struct {
	URL           string   `json:"url"`
	FetchStatus   int      `json:"fetch_status,omitempty"`
	Score         float64  `json:"score"`
	MatchedTokens []string `json:"matched_tokens,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func newRowTrace(row *model.MatchRow) *RowTrace {
	return &RowTrace{
		TraceID:  uuid.NewString(),
		RowID:    row.ID,
		TenantID: row.TenantID,
	}
}

func (t *RowTrace) setQueries(queries []string) {
	if t == nil {
		return
	}
	t.Queries = queries
}

func (t *RowTrace) setDomain(domain string) {
	if t == nil {
		return
	}
	t.ResolvedDomain = domain
}

func (t *RowTrace) setSiteQueries(queries []string) {
	if t == nil {
		return
	}
	t.SiteQueries = queries
}

func (t *RowTrace) addSearch(query string, results []SearchResult, err error) {
	if t == nil {
		return
	}
	st := SearchTrace{Query: query, Results: results}
	if err != nil {
		st.Error = err.Error()
	}
	t.Searches = append(t.Searches, st)
}

func (t *RowTrace) setPool(pre, post []model.Candidate) {
	if t == nil {
		return
	}
	t.PoolPreFilter = pre
	t.PoolPostFilter = post
}

func (t *RowTrace) addValidation(v ValidationTrace) {
	if t == nil {
		return
	}
	t.Validations = append(t.Validations, v)
}

func (t *RowTrace) setDecision(threshold float64, accepted *model.Candidate, matchedBy string) {
	if t == nil {
		return
	}
	t.Threshold = threshold
	t.Accepted = accepted
	t.MatchedBy = matchedBy
	if accepted != nil {
		t.Decision = "accepted"
	} else {
		t.Decision = "rejected"
	}
}
