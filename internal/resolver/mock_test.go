package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/medicalexcom/sourcematch/internal/fetch"
	"github.com/medicalexcom/sourcematch/internal/model"
)

// mockRowStore implements store.RowStore for testing.
type mockRowStore struct {
	rows       map[string]*model.MatchRow
	updated    []*model.MatchRow
	updateErr  error
	getRowErr  error
	getRowHits int
}

func newMockRowStore(rows ...*model.MatchRow) *mockRowStore {
	m := &mockRowStore{rows: make(map[string]*model.MatchRow)}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *mockRowStore) GetRow(_ context.Context, id string) (*model.MatchRow, error) {
	m.getRowHits++
	if m.getRowErr != nil {
		return nil, m.getRowErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, eris.Errorf("row %s not found", id)
	}
	cp := *row
	return &cp, nil
}

func (m *mockRowStore) UpdateRowResult(_ context.Context, row *model.MatchRow) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *row
	m.updated = append(m.updated, &cp)
	return nil
}

// mockIndexStore implements store.IndexStore for testing.
type mockIndexStore struct {
	domains   []string
	lookupErr error
	lookups   int
	upserts   []*model.SourceIndexEntry
	upsertErr error
}

func (m *mockIndexStore) LookupDomains(_ context.Context, _, _ string, _ int) ([]string, error) {
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.domains, nil
}

func (m *mockIndexStore) UpsertEntry(_ context.Context, entry *model.SourceIndexEntry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, entry)
	return nil
}

// mockProvider returns canned results: exact query matches first, then the
// first substring rule that matches, else the default result set.
type mockProvider struct {
	exact     map[string][]SearchResult
	contains  map[string][]SearchResult
	defaults  []SearchResult
	queries   []string
	searchErr error
}

func (m *mockProvider) Search(_ context.Context, q string, _ int) ([]SearchResult, error) {
	m.queries = append(m.queries, q)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if r, ok := m.exact[q]; ok {
		return r, nil
	}
	for sub, r := range m.contains {
		if strings.Contains(q, sub) {
			return r, nil
		}
	}
	return m.defaults, nil
}

// mockFetcher serves canned pages keyed by URL.
type mockFetcher struct {
	pages    map[string]*fetch.Page
	fetchErr map[string]error
	fetched  []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages:    make(map[string]*fetch.Page),
		fetchErr: make(map[string]error),
	}
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	m.fetched = append(m.fetched, url)
	if err, ok := m.fetchErr[url]; ok {
		return nil, err
	}
	if p, ok := m.pages[url]; ok {
		return p, nil
	}
	return &fetch.Page{StatusCode: 404, FinalURL: url}, nil
}

func htmlPage(status int, html string) *fetch.Page {
	return &fetch.Page{StatusCode: status, Body: []byte(html)}
}
