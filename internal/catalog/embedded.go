package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/patterns"
)

type catalogFile struct {
	Actions []map[string]interface{} `yaml:"actions"`
}

// Static serves a fixed catalog.
type Static struct {
	catalog *Catalog
}

// NewStatic wraps an already-built catalog.
func NewStatic(c *Catalog) *Static {
	return &Static{catalog: c}
}

// Load returns the wrapped catalog, or ErrCatalogEmpty.
func (s *Static) Load(context.Context) (*Catalog, error) {
	if s.catalog.Len() == 0 {
		return nil, ErrCatalogEmpty
	}
	return s.catalog, nil
}

// ParseYAML parses a catalog file. Malformed entries are skipped and logged.
func ParseYAML(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	actions := make([]Action, 0, len(f.Actions))
	for i, entry := range f.Actions {
		raw, err := json.Marshal(entry)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("catalog_entry_skipped")
			continue
		}
		a, err := decodeEntry(raw, "")
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("catalog_entry_skipped")
			continue
		}
		actions = append(actions, a)
	}
	return New(actions), nil
}

// Default returns the embedded default catalog.
func Default() *Catalog {
	c, err := ParseYAML(patterns.CatalogYAML())
	if err != nil {
		panic(fmt.Sprintf("loading embedded catalog: %v", err))
	}
	return c
}
