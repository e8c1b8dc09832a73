// Package report implements the report/export collaborators invoked by the
// command router, plus the expense category catalog.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one entry of the expense category catalog.
type Category struct {
	Short string `yaml:"short"` // code typed by the sender ("food")
	Name  string `yaml:"name"`  // display name ("Comida")
}

// Catalog is the closed set of known categories. Unknown codes are still
// accepted at entry time (the original kept an "x" catch-all); the catalog
// drives help text and report labels.
type Catalog struct {
	categories map[string]Category
}

// DefaultCategories mirrors the original deployment's seed catalog.
var DefaultCategories = []Category{
	{Short: "food", Name: "Comida"},
	{Short: "transport", Name: "Transporte"},
	{Short: "home", Name: "Hogar"},
	{Short: "health", Name: "Salud"},
	{Short: "fun", Name: "Entretenimiento"},
	{Short: "x", Name: "Sin categoría"},
}

func NewCatalog(categories []Category) *Catalog {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	m := make(map[string]Category, len(categories))
	for _, c := range categories {
		m[strings.ToLower(c.Short)] = c
	}
	return &Catalog{categories: m}
}

// LoadCatalog reads category definitions from YAML files in dir. Files must
// contain a list of {short, name} entries. A missing directory falls back to
// the default catalog.
func LoadCatalog(dir string, logger *slog.Logger) (*Catalog, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("categories directory does not exist, using defaults", "dir", dir)
		return NewCatalog(nil), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read categories dir: %w", err)
	}

	var categories []Category
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read category file", "path", path, "err", err)
			continue
		}

		var batch []Category
		if err := yaml.Unmarshal(data, &batch); err != nil {
			logger.Warn("cannot parse category file", "path", path, "err", err)
			continue
		}
		for _, c := range batch {
			if c.Short == "" {
				continue
			}
			categories = append(categories, c)
		}
		logger.Info("loaded categories", "path", path, "count", len(batch))
	}

	return NewCatalog(categories), nil
}

// Lookup resolves a category code, case-insensitively.
func (c *Catalog) Lookup(short string) (Category, bool) {
	cat, ok := c.categories[strings.ToLower(strings.TrimSpace(short))]
	return cat, ok
}

// Shorts returns the category codes in sorted order, for help text.
func (c *Catalog) Shorts() []string {
	out := make([]string, 0, len(c.categories))
	for short := range c.categories {
		out = append(out, short)
	}
	sort.Strings(out)
	return out
}

// DisplayName returns the catalog name for a code, or the code itself for
// categories entered outside the catalog.
func (c *Catalog) DisplayName(short string) string {
	if cat, ok := c.Lookup(short); ok {
		return cat.Name
	}
	return short
}
