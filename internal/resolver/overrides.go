package resolver

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/medicalexcom/sourcematch/internal/model"
)

// Overrides is an operator-maintained supplier to domain map, consulted
// before the source index and before any network search. Useful for
// suppliers whose trade name never appears in their hostname.
type Overrides struct {
	Suppliers map[string]string `yaml:"suppliers"`
}

// LoadOverrides reads a supplier override file. Supplier names are
// normalized the same way supplier keys are, and domains are lowercased
// with any leading "www." stripped.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: read overrides %s", path)
	}

	var raw Overrides
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "resolver: parse overrides %s", path)
	}

	o := &Overrides{Suppliers: make(map[string]string, len(raw.Suppliers))}
	for supplier, domain := range raw.Suppliers {
		key := model.NormalizeKey(supplier)
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
		if key == "" || domain == "" {
			return nil, eris.Errorf("resolver: overrides %s: empty supplier or domain in entry %q", path, supplier)
		}
		o.Suppliers[key] = domain
	}
	return o, nil
}

// DomainFor returns the override domain for a normalized supplier key, or
// "" when none is configured.
func (o *Overrides) DomainFor(supplierKey string) string {
	if o == nil || supplierKey == "" {
		return ""
	}
	return o.Suppliers[supplierKey]
}

// SetOverrides installs a supplier override map on the engine.
func (e *Engine) SetOverrides(o *Overrides) {
	e.overrides = o
}
