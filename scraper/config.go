package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Target kinds.
const (
	KindHTML = "html"
	KindFeed = "feed"
)

// Strategy kinds.
const (
	StrategyCSS         = "css"
	StrategyReadability = "readability"
)

// DefaultMaxItems caps the candidates a multi-match selector may yield.
const DefaultMaxItems = 20

// SourceConfig describes one news source declaratively. Everything that is
// site specific lives here; the engine itself knows no site.
type SourceConfig struct {
	ID string `yaml:"id" json:"id"`
	// Identifier seeds the source hash in record filenames. It defaults to
	// ID and exists so historical output keeps its names.
	Identifier string   `yaml:"identifier,omitempty" json:"identifier,omitempty"`
	Name       string   `yaml:"name" json:"name"`
	Targets    []Target `yaml:"targets" json:"targets"`
	// Strategies extract candidates from target documents, in order.
	Strategies []Strategy `yaml:"strategies" json:"strategies"`
	// ArticleStrategies, when set, are applied to each novel candidate's own
	// page to obtain the full article.
	ArticleStrategies []Strategy `yaml:"article_strategies,omitempty" json:"article_strategies,omitempty"`
	// CookieFile is resolved against the directory of the declaring file.
	CookieFile        string     `yaml:"cookie_file,omitempty" json:"cookie_file,omitempty"`
	RespectRobots     bool       `yaml:"respect_robots,omitempty" json:"respect_robots,omitempty"`
	DefaultImageURL   string     `yaml:"default_image_url,omitempty" json:"default_image_url,omitempty"`
	FooterIcon        string     `yaml:"footer_icon,omitempty" json:"footer_icon,omitempty"`
	MaxItems          int        `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	// Disabled sources stay in the catalog but are never run.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Target is one document fetched for a source.
type Target struct {
	URL         string `yaml:"url" json:"url"`
	Kind        string `yaml:"kind,omitempty" json:"kind,omitempty"` // "html" (default) or "feed"
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
}

// Strategy is a declarative extraction rule. For the css kind, ItemSelector
// selects repeated item containers and the remaining selectors are evaluated
// inside each container. An empty ItemSelector treats the whole document as
// one item.
type Strategy struct {
	Name            string   `yaml:"name,omitempty" json:"name,omitempty"`
	Kind            string   `yaml:"kind,omitempty" json:"kind,omitempty"` // "css" (default) or "readability"
	ItemSelector    string   `yaml:"item,omitempty" json:"item,omitempty"`
	TitleSelector   string   `yaml:"title,omitempty" json:"title,omitempty"`
	ContentSelector string   `yaml:"content,omitempty" json:"content,omitempty"`
	LinkSelector    string   `yaml:"link,omitempty" json:"link,omitempty"`
	DateSelector    string   `yaml:"date,omitempty" json:"date,omitempty"`
	DateAttr        string   `yaml:"date_attr,omitempty" json:"date_attr,omitempty"`
	ImageSelector   string   `yaml:"image,omitempty" json:"image,omitempty"`
	ImageAttr       string   `yaml:"image_attr,omitempty" json:"image_attr,omitempty"`
	Strip           []string `yaml:"strip,omitempty" json:"strip,omitempty"`
	MaxItems        int      `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	// AcceptAny commits to this strategy as soon as it yields any titled
	// candidate, regardless of content length. Used for listings whose
	// items carry only a title and a link.
	AcceptAny bool `yaml:"accept_any,omitempty" json:"accept_any,omitempty"`
}

// KindOrDefault returns the target kind, defaulting to html.
func (t Target) KindOrDefault() string {
	if t.Kind == "" {
		return KindHTML
	}
	return t.Kind
}

// KindOrDefault returns the strategy kind, defaulting to css.
func (s Strategy) KindOrDefault() string {
	if s.Kind == "" {
		return StrategyCSS
	}
	return s.Kind
}

// Limit returns the item cap for this strategy.
func (s Strategy) Limit() int {
	if s.MaxItems > 0 {
		return s.MaxItems
	}
	return DefaultMaxItems
}

// IdentifierOrID returns the identifier used for the source hash.
func (c *SourceConfig) IdentifierOrID() string {
	if c.Identifier != "" {
		return c.Identifier
	}
	return c.ID
}

// ResolvePaths makes a relative cookie file relative to dir, the directory
// of the file the source was declared in.
func (c *SourceConfig) ResolvePaths(dir string) {
	if c.CookieFile != "" && !filepath.IsAbs(c.CookieFile) {
		c.CookieFile = filepath.Join(dir, c.CookieFile)
	}
}

// Validate checks that the configuration can be run.
func (c *SourceConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.ContainsAny(c.ID, `/\ `) {
		errs = append(errs, fmt.Errorf("id %q must not contain slashes or spaces", c.ID))
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("at least one target is required"))
	}

	needsStrategies := false
	for i, t := range c.Targets {
		u, err := url.Parse(t.URL)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("target %d: url %q must be absolute", i, t.URL))
		}
		switch t.KindOrDefault() {
		case KindHTML:
			needsStrategies = true
		case KindFeed:
		default:
			errs = append(errs, fmt.Errorf("target %d: unknown kind %q", i, t.Kind))
		}
	}
	if needsStrategies && len(c.Strategies) == 0 {
		errs = append(errs, errors.New("html targets require at least one strategy"))
	}

	for i, s := range append(append([]Strategy{}, c.Strategies...), c.ArticleStrategies...) {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("strategy %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid source %q: %w", c.ID, errors.Join(errs...))
	}
	return nil
}

func (s Strategy) validate() error {
	switch s.KindOrDefault() {
	case StrategyReadability:
		return nil
	case StrategyCSS:
		if s.TitleSelector == "" {
			return errors.New("css strategy requires a title selector")
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
}
