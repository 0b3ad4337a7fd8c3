package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/medicalexcom/sourcematch/internal/config"
	"github.com/medicalexcom/sourcematch/pkg/serper"
)

type stubSerperClient struct {
	resp    *serper.SearchResponse
	err     error
	queries []string
}

func (c *stubSerperClient) Search(_ context.Context, query string, _ ...serper.SearchOption) (*serper.SearchResponse, error) {
	c.queries = append(c.queries, query)
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func TestNewProvider_NoKeyIsNoop(t *testing.T) {
	p := NewProvider(config.SerperConfig{}, 5)
	_, ok := p.(NoopProvider)
	assert.True(t, ok)

	results, err := p.Search(context.Background(), "anything", 8)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewProvider_WithKeyIsRateLimited(t *testing.T) {
	p := NewProvider(config.SerperConfig{Key: "k"}, 5)
	_, ok := p.(*RateLimitedProvider)
	assert.True(t, ok)
}

func TestNewProvider_ZeroRateSkipsLimiter(t *testing.T) {
	p := NewProvider(config.SerperConfig{Key: "k"}, 0)
	_, ok := p.(*SerperProvider)
	assert.True(t, ok)
}

func TestSerperProvider_MapsOrganicResults(t *testing.T) {
	stub := &stubSerperClient{resp: &serper.SearchResponse{
		Organic: []serper.OrganicResult{
			{Title: "Widget 500", Link: "https://acme.com/widget-500", Snippet: "snip"},
			{Title: "no link"},
			{Title: "Other", Link: "https://acme.com/other"},
		},
	}}

	p := NewSerperProvider(stub)
	results, err := p.Search(context.Background(), "acme widget", 8)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://acme.com/widget-500", results[0].URL)
	assert.Equal(t, "Widget 500", results[0].Title)
	assert.Equal(t, "snip", results[0].Snippet)
	assert.Equal(t, []string{"acme widget"}, stub.queries)
}

func TestSerperProvider_RespectsLimit(t *testing.T) {
	stub := &stubSerperClient{resp: &serper.SearchResponse{
		Organic: []serper.OrganicResult{
			{Link: "https://a.com/1"},
			{Link: "https://a.com/2"},
			{Link: "https://a.com/3"},
		},
	}}

	p := NewSerperProvider(stub)
	results, err := p.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRateLimitedProvider_CancelledContext(t *testing.T) {
	inner := NewSerperProvider(&stubSerperClient{resp: &serper.SearchResponse{}})
	// Burst 1 already consumed by the first call; a cancelled context cannot
	// wait for the next token.
	p := &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(rate.Limit(0.001), 1)}

	_, err := p.Search(context.Background(), "first", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Search(ctx, "second", 1)
	require.Error(t, err)
}
