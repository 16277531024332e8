// Package postfeed ingests news from heterogeneous websites and feeds into a
// directory of sequenced JSON records. Sources are declarative adapters; one
// engine fetches, extracts, normalizes, deduplicates and persists for all of
// them.
package postfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pevans/postfeed/fetch"
	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/scraper"
	"github.com/pevans/postfeed/sources"
	"github.com/pevans/postfeed/state"
)

// EngineConfig holds everything the engine needs at construction.
type EngineConfig struct {
	// Directory the output records are written to
	OutputDir string
	// Directory holding one state file per source
	StateDir string
	// Extraction acceptance threshold in characters
	MinContentLength int
	// Content truncation limit in characters, footer excluded
	MaxContentLength int
	// Minimum pause between requests to the same host
	PolitenessDelay time.Duration
	// Timeout per HTTP request
	FetchTimeout time.Duration
	// Maximum number of sources run in parallel
	Concurrency int
	UserAgent   string
	// Overrides each strategy's item cap when positive
	MaxItems int
	// Bounds the content hash to title + the first N characters when
	// positive
	HashPrefixLength int
	// Number of consecutive fully failed runs before a source is disabled;
	// zero never disables
	DisableThreshold int
}

// DefaultEngineConfig returns the configuration used when nothing else is
// set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		OutputDir:        "news_output",
		StateDir:         "state",
		MinContentLength: 100,
		MaxContentLength: 800,
		PolitenessDelay:  2 * time.Second,
		FetchTimeout:     fetch.DefaultTimeout,
		Concurrency:      4,
		UserAgent:        fetch.DefaultUserAgent,
		DisableThreshold: 10,
	}
}

// StatusStore records source runs and decides whether a source may run. It
// is satisfied by *sources.SourceStore.
type StatusStore interface {
	EnsureSource(id, name string) error
	IsEnabled(id string) (bool, error)
	RecordRun(run sources.RunRecord, disableThreshold int) (bool, error)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStatusStore enables run bookkeeping and auto-disable.
func WithStatusStore(store StatusStore) Option {
	return func(e *Engine) { e.status = store }
}

// WithTransport overrides the HTTP transport of every fetcher.
func WithTransport(transport http.RoundTripper) Option {
	return func(e *Engine) { e.transport = transport }
}

// WithClock overrides the processing clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs sources. It is safe for concurrent use; runs of the same
// source are serialized through the state lock.
type Engine struct {
	cfg       EngineConfig
	states    *state.Store
	feed      *newsfeed.NewsFeed
	limiter   *fetch.HostLimiter
	status    StatusStore
	transport http.RoundTripper
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEngine creates an engine, creating the output and state directories.
func NewEngine(cfg EngineConfig, opts ...Option) (*Engine, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.StateDir == "" {
		return nil, errors.New("state directory is required")
	}

	states, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	feed, err := newsfeed.NewNewsFeed(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		states:  states,
		feed:    feed,
		limiter: fetch.NewHostLimiter(cfg.PolitenessDelay),
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Feed returns the output record directory.
func (e *Engine) Feed() *newsfeed.NewsFeed {
	return e.feed
}

// RunSource runs one source to completion. Failures inside the run are
// classified in the report; an error is returned only when the run could
// not start, for example because another run holds the source lock.
func (e *Engine) RunSource(ctx context.Context, adapter scraper.SourceAdapter) (*RunReport, error) {
	report := &RunReport{
		SourceID:   adapter.ID(),
		SourceName: adapter.DisplayName(),
		StartedAt:  e.now(),
	}
	log := e.logger.With().Str("source", adapter.ID()).Logger()

	if e.status != nil {
		if err := e.status.EnsureSource(adapter.ID(), adapter.DisplayName()); err != nil {
			log.Warn().Err(err).Msg("Failed to register source status")
		}
		enabled, err := e.status.IsEnabled(adapter.ID())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read source status")
		} else if !enabled {
			report.Skipped = "disabled"
			report.FinishedAt = e.now()
			log.Info().Msg("Source is disabled, skipping")
			return report, nil
		}
	}

	lock, err := e.states.Lock(adapter.ID())
	if err != nil {
		report.Skipped = err.Error()
		report.FinishedAt = e.now()
		return report, fmt.Errorf("failed to lock source %s: %w", adapter.ID(), err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Msg("Failed to release source lock")
		}
	}()

	run, err := e.newSourceRun(adapter, report, log)
	if err != nil {
		report.FinishedAt = e.now()
		return report, err
	}
	run.execute(ctx)

	report.FinishedAt = e.now()
	e.recordRun(report, log)

	log.Info().
		Int("targets", report.Targets).
		Int("targets_failed", report.TargetsFailed).
		Int("new", report.New).
		Int("duplicate_url", report.DuplicateURL).
		Int("duplicate_content", report.DuplicateContent).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration()).
		Msg("Source run finished")

	return report, nil
}

// RunAll runs every adapter on a bounded pool of workers. Reports are
// returned in adapter order. A source id appearing twice runs once; the
// repeat is reported as skipped.
func (e *Engine) RunAll(ctx context.Context, adapters []scraper.SourceAdapter) []*RunReport {
	reports := make([]*RunReport, len(adapters))

	concurrency := e.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	seen := make(map[string]bool)

	for i, adapter := range adapters {
		if seen[adapter.ID()] {
			reports[i] = &RunReport{
				SourceID:   adapter.ID(),
				SourceName: adapter.DisplayName(),
				Skipped:    "duplicate source id",
			}
			continue
		}
		seen[adapter.ID()] = true

		select {
		case <-ctx.Done():
			reports[i] = &RunReport{
				SourceID:   adapter.ID(),
				SourceName: adapter.DisplayName(),
				Skipped:    ctx.Err().Error(),
			}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			report, err := e.RunSource(ctx, adapter)
			if err != nil {
				e.logger.Error().Err(err).Str("source", adapter.ID()).Msg("Source run did not start")
			}
			reports[i] = report
		}()
	}

	wg.Wait()
	return reports
}

// recordRun stores the run in the status store and reports auto-disables.
func (e *Engine) recordRun(report *RunReport, log zerolog.Logger) {
	if e.status == nil {
		return
	}

	run := sources.RunRecord{
		SourceID:      report.SourceID,
		SourceName:    report.SourceName,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Targets:       report.Targets,
		TargetsFailed: report.TargetsFailed,
		NewItems:      report.New,
		Duplicates:    report.DuplicateURL + report.DuplicateContent,
		Errors:        len(report.Errors),
		Failed:        report.Failed(),
	}
	if last := report.LastError(); last != nil {
		msg := last.Error()
		run.LastError = &msg
	}

	disabled, err := e.status.RecordRun(run, e.cfg.DisableThreshold)
	if err != nil {
		log.Error().Err(err).Msg("Failed to record run")
		return
	}
	if disabled {
		log.Warn().Int("threshold", e.cfg.DisableThreshold).Msg("Source disabled after consecutive failed runs")
	}
}
