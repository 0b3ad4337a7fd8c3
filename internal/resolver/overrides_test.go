package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverrides(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeOverrides(t, `
suppliers:
  "Acme Medical": www.acme.com
  "Müller GmbH": mueller-medical.de
`)

	o, err := LoadOverrides(path)
	require.NoError(t, err)

	// Supplier names normalize to keys, domains drop the www prefix.
	assert.Equal(t, "acme.com", o.DomainFor("acmemedical"))
	assert.Equal(t, "mueller-medical.de", o.DomainFor("mullergmbh"))
	assert.Empty(t, o.DomainFor("unknown"))
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read overrides")
}

func TestLoadOverrides_MalformedYAML(t *testing.T) {
	path := writeOverrides(t, "suppliers: [not a map")
	_, err := LoadOverrides(path)
	require.Error(t, err)
}

func TestLoadOverrides_EmptyDomainRejected(t *testing.T) {
	path := writeOverrides(t, `
suppliers:
  "Acme Medical": ""
`)
	_, err := LoadOverrides(path)
	require.Error(t, err)
}

func TestDomainFor_NilReceiver(t *testing.T) {
	var o *Overrides
	assert.Empty(t, o.DomainFor("acmemedical"))
}

func TestResolveDomain_OverrideWinsOverIndex(t *testing.T) {
	index := &mockIndexStore{domains: []string{"distributor.example.com"}}
	engine := New(newMockRowStore(), index, NoopProvider{}, newMockFetcher(), testConfig())
	engine.SetOverrides(&Overrides{Suppliers: map[string]string{"acme": "acme.com"}})

	d := engine.resolveDomain(context.Background(), domainTestRow(), nil)
	assert.Equal(t, "acme.com", d)
	assert.Zero(t, index.lookups)
}

func TestResolveDomain_OverrideMissFallsThrough(t *testing.T) {
	index := &mockIndexStore{domains: []string{"acme.com"}}
	engine := New(newMockRowStore(), index, NoopProvider{}, newMockFetcher(), testConfig())
	engine.SetOverrides(&Overrides{Suppliers: map[string]string{"othersupplier": "other.com"}})

	d := engine.resolveDomain(context.Background(), domainTestRow(), nil)
	assert.Equal(t, "acme.com", d)
	assert.Equal(t, 1, index.lookups)
}
