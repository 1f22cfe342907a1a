// file: internal/scrape/catalog.go
// version: 1.0.0
// guid: 5b0e92fc-0878-4428-990c-0351817b5f6d

package scrape

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultCatalog []byte

// SiteSelectors maps a logical field name to its candidate selectors, most
// specific first.
type SiteSelectors map[string][]string

// Catalog holds selector lists per site.
type Catalog struct {
	Sites map[string]SiteSelectors `yaml:"sites"`
}

// Site returns the selectors for a site, never nil.
func (c *Catalog) Site(name string) SiteSelectors {
	if c == nil || c.Sites[name] == nil {
		return SiteSelectors{}
	}
	return c.Sites[name]
}

// DefaultCatalog returns the embedded selector catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded selector catalog is invalid: %v", err))
	}
	return c
}

// ParseCatalog decodes a YAML selector catalog and validates every selector.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode selector catalog: %w", err)
	}
	for site, fields := range c.Sites {
		for field, sels := range fields {
			for _, s := range sels {
				if _, err := Compile(s); err != nil {
					return nil, fmt.Errorf("site %s field %s: %w", site, field, err)
				}
			}
		}
	}
	return &c, nil
}

// LoadCatalog reads a catalog file, falling back to the embedded catalog
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector catalog: %w", err)
	}
	return ParseCatalog(data)
}
