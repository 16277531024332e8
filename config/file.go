package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pevans/postfeed"
	"github.com/pevans/postfeed/scraper"
)

// Defaults for settings outside the engine block.
const (
	DefaultStatusDB = "postfeed.db"
	DefaultSchedule = "*/30 * * * *"
	DefaultListen   = ":8080"
)

// EngineSection is the engine block of the config file. Durations are Go
// duration strings such as "2s" or "1m30s".
type EngineSection struct {
	OutputDir        string `yaml:"output_dir" json:"output_dir"`
	StateDir         string `yaml:"state_dir" json:"state_dir"`
	MinContentLength int    `yaml:"min_content_length" json:"min_content_length"`
	MaxContentLength int    `yaml:"max_content_length" json:"max_content_length"`
	PolitenessDelay  string `yaml:"politeness_delay" json:"politeness_delay"`
	FetchTimeout     string `yaml:"fetch_timeout" json:"fetch_timeout"`
	Concurrency      int    `yaml:"concurrency" json:"concurrency"`
	UserAgent        string `yaml:"user_agent" json:"user_agent"`
	MaxItems         int    `yaml:"max_items" json:"max_items"`
	HashPrefixLength int    `yaml:"hash_prefix_length" json:"hash_prefix_length"`
	// Pointer so an explicit 0 can turn auto-disable off
	DisableThreshold *int `yaml:"disable_threshold" json:"disable_threshold"`
}

// FileConfig represents the structure of postfeed.yaml.
type FileConfig struct {
	Engine     EngineSection          `yaml:"engine" json:"engine"`
	StatusDB   string                 `yaml:"status_db" json:"status_db"`
	Schedule   string                 `yaml:"schedule" json:"schedule"`
	Listen     string                 `yaml:"listen" json:"listen"`
	SourcesDir string                 `yaml:"sources_dir" json:"sources_dir,omitempty"`
	Sources    []scraper.SourceConfig `yaml:"sources" json:"-"`

	// directory of the loaded file; relative sources_dir resolves against it
	baseDir string
}

// DefaultConfigPath returns ~/.postfeed/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".postfeed", "config.yaml"), nil
}

// LoadConfigFile loads the config file at path and applies environment
// overrides. A missing file yields the defaults (not an error). Returns an
// error if the file exists but cannot be parsed.
func LoadConfigFile(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// File doesn't exist -- not an error
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.baseDir = filepath.Dir(path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overrides file values with POSTFEED_* variables.
func (c *FileConfig) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"POSTFEED_OUTPUT_DIR":  &c.Engine.OutputDir,
		"POSTFEED_STATE_DIR":   &c.Engine.StateDir,
		"POSTFEED_STATUS_DB":   &c.StatusDB,
		"POSTFEED_SCHEDULE":    &c.Schedule,
		"POSTFEED_LISTEN":      &c.Listen,
		"POSTFEED_SOURCES_DIR": &c.SourcesDir,
	}
	for key, field := range strs {
		if value, ok := lookup(key); ok && value != "" {
			*field = value
		}
	}

	if value, ok := lookup("POSTFEED_CONCURRENCY"); ok && value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid POSTFEED_CONCURRENCY %q", value)
		}
		c.Engine.Concurrency = n
	}
	return nil
}

func (c *FileConfig) applyDefaults() {
	if c.StatusDB == "" {
		c.StatusDB = DefaultStatusDB
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

// EngineConfig converts the engine block, filling unset values from
// postfeed.DefaultEngineConfig.
func (c *FileConfig) EngineConfig() (postfeed.EngineConfig, error) {
	cfg := postfeed.DefaultEngineConfig()
	e := c.Engine

	if e.OutputDir != "" {
		cfg.OutputDir = e.OutputDir
	}
	if e.StateDir != "" {
		cfg.StateDir = e.StateDir
	}
	if e.MinContentLength > 0 {
		cfg.MinContentLength = e.MinContentLength
	}
	if e.MaxContentLength > 0 {
		cfg.MaxContentLength = e.MaxContentLength
	}
	if e.Concurrency > 0 {
		cfg.Concurrency = e.Concurrency
	}
	if e.UserAgent != "" {
		cfg.UserAgent = e.UserAgent
	}
	if e.MaxItems > 0 {
		cfg.MaxItems = e.MaxItems
	}
	if e.HashPrefixLength > 0 {
		cfg.HashPrefixLength = e.HashPrefixLength
	}
	if e.DisableThreshold != nil {
		if *e.DisableThreshold < 0 {
			return cfg, fmt.Errorf("invalid disable_threshold %d: must not be negative", *e.DisableThreshold)
		}
		cfg.DisableThreshold = *e.DisableThreshold
	}

	var err error
	if cfg.PolitenessDelay, err = parseDuration("politeness_delay", e.PolitenessDelay, cfg.PolitenessDelay); err != nil {
		return cfg, err
	}
	if cfg.FetchTimeout, err = parseDuration("fetch_timeout", e.FetchTimeout, cfg.FetchTimeout); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Catalog returns the inline sources followed by those in sources_dir.
func (c *FileConfig) Catalog() (*scraper.Catalog, error) {
	inline := make([]scraper.SourceConfig, len(c.Sources))
	copy(inline, c.Sources)
	if c.baseDir != "" {
		for i := range inline {
			inline[i].ResolvePaths(c.baseDir)
		}
	}

	catalog := &scraper.Catalog{}
	if err := catalog.Add(inline...); err != nil {
		return nil, err
	}

	if c.SourcesDir != "" {
		dir := c.SourcesDir
		if !filepath.IsAbs(dir) && c.baseDir != "" {
			dir = filepath.Join(c.baseDir, dir)
		}
		fromDir, err := scraper.LoadCatalogDir(dir)
		if err != nil {
			return nil, err
		}
		if err := catalog.Add(fromDir.Sources...); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a valid duration (e.g., 2s, 1m)", name, value)
	}
	return d, nil
}
