// Package scraper holds the declarative description of news sources: the
// targets to fetch, the extraction strategies to apply and the presentation
// details of each source.
package scraper

// SourceAdapter is everything the engine needs to know about a source.
type SourceAdapter interface {
	ID() string
	DisplayName() string
	Targets() []Target
	ExtractionStrategies() []Strategy
}

// ArticleFollower is implemented by adapters whose listings link to article
// pages that must be fetched for the full text.
type ArticleFollower interface {
	ArticleStrategies() []Strategy
}

// Configured exposes the full configuration behind an adapter.
type Configured interface {
	Config() SourceConfig
}

// ConfigAdapter adapts a SourceConfig to the SourceAdapter interfaces.
type ConfigAdapter struct {
	cfg SourceConfig
}

// NewConfigAdapter wraps cfg after validating it.
func NewConfigAdapter(cfg SourceConfig) (*ConfigAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConfigAdapter{cfg: cfg}, nil
}

func (a *ConfigAdapter) ID() string          { return a.cfg.ID }
func (a *ConfigAdapter) DisplayName() string { return a.cfg.Name }
func (a *ConfigAdapter) Targets() []Target   { return a.cfg.Targets }

func (a *ConfigAdapter) ExtractionStrategies() []Strategy {
	return a.cfg.Strategies
}

func (a *ConfigAdapter) ArticleStrategies() []Strategy {
	return a.cfg.ArticleStrategies
}

func (a *ConfigAdapter) Config() SourceConfig { return a.cfg }

// ConfigOf returns the configuration behind adapter. Adapters that only
// implement SourceAdapter get a configuration built from its methods.
func ConfigOf(adapter SourceAdapter) SourceConfig {
	if c, ok := adapter.(Configured); ok {
		return c.Config()
	}

	cfg := SourceConfig{
		ID:         adapter.ID(),
		Name:       adapter.DisplayName(),
		Targets:    adapter.Targets(),
		Strategies: adapter.ExtractionStrategies(),
	}
	if f, ok := adapter.(ArticleFollower); ok {
		cfg.ArticleStrategies = f.ArticleStrategies()
	}
	return cfg
}
