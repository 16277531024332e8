package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a catalog: either a list under
// "sources" or a single source at the top level.
type catalogFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// Catalog is an ordered, validated set of sources.
type Catalog struct {
	Sources []SourceConfig
}

// ParseCatalog parses YAML holding either a "sources" list or one source.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if len(file.Sources) == 0 {
		var single SourceConfig
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse source: %w", err)
		}
		if single.ID != "" {
			file.Sources = []SourceConfig{single}
		}
	}

	catalog := &Catalog{}
	if err := catalog.Add(file.Sources...); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadCatalog reads and merges the catalog files at paths.
func LoadCatalog(paths ...string) (*Catalog, error) {
	catalog := &Catalog{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		parsed, err := ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for i := range parsed.Sources {
			parsed.Sources[i].ResolvePaths(filepath.Dir(path))
		}
		if err := catalog.Add(parsed.Sources...); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return catalog, nil
}

// LoadCatalogDir loads every *.yaml and *.yml file in dir, in name order.
func LoadCatalogDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	return LoadCatalog(paths...)
}

// Add validates and appends sources, rejecting duplicate ids.
func (c *Catalog) Add(sources ...SourceConfig) error {
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return err
		}
		if _, ok := c.Get(src.ID); ok {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		c.Sources = append(c.Sources, src)
	}
	return nil
}

// Get returns the source with the given id.
func (c *Catalog) Get(id string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// Adapters returns adapters for the enabled sources. When ids is non-empty
// only those sources are returned, in the given order, including disabled
// ones that were asked for explicitly.
func (c *Catalog) Adapters(ids ...string) ([]SourceAdapter, error) {
	var adapters []SourceAdapter

	if len(ids) == 0 {
		for _, src := range c.Sources {
			if src.Disabled {
				continue
			}
			adapters = append(adapters, &ConfigAdapter{cfg: src})
		}
		return adapters, nil
	}

	for _, id := range ids {
		src, ok := c.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		adapters = append(adapters, &ConfigAdapter{cfg: src})
	}
	return adapters, nil
}
