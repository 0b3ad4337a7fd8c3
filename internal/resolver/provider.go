package resolver

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/medicalexcom/sourcematch/internal/config"
	"github.com/medicalexcom/sourcematch/pkg/serper"
)

// SearchResult is one hit from the web search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchProvider executes a web search. Implementations must tolerate
// missing credentials by returning an empty list rather than erroring.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// NewProvider builds the configured provider chain: serper client behind a
// rate limiter, or a noop provider when no API key is configured.
func NewProvider(cfg config.SerperConfig, ratePerSec float64) SearchProvider {
	if cfg.Key == "" {
		return NoopProvider{}
	}
	var opts []serper.Option
	if cfg.BaseURL != "" {
		opts = append(opts, serper.WithBaseURL(cfg.BaseURL))
	}
	var p SearchProvider = &SerperProvider{client: serper.NewClient(cfg.Key, opts...)}
	if ratePerSec > 0 {
		p = &RateLimitedProvider{inner: p, limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1)}
	}
	return p
}

// SerperProvider adapts the serper client to the SearchProvider contract.
type SerperProvider struct {
	client serper.Client
}

// NewSerperProvider wraps an existing serper client.
func NewSerperProvider(c serper.Client) *SerperProvider {
	return &SerperProvider{client: c}
}

func (p *SerperProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	resp, err := p.client.Search(ctx, query, serper.WithNum(limit))
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		if r.Link == "" {
			continue
		}
		results = append(results, SearchResult{URL: r.Link, Title: r.Title, Snippet: r.Snippet})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// NoopProvider is used when no search credentials are configured. Every
// search returns empty results so the engine degrades per policy instead
// of erroring.
type NoopProvider struct{}

func (NoopProvider) Search(context.Context, string, int) ([]SearchResult, error) {
	return nil, nil
}

// RateLimitedProvider throttles an inner provider to respect API quotas.
type RateLimitedProvider struct {
	inner   SearchProvider
	limiter *rate.Limiter
}

func (p *RateLimitedProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Search(ctx, query, limit)
}
