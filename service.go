package postfeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/pevans/postfeed/scraper"
)

// AdapterProvider returns the sources to run. It is called before every
// scheduled run, so catalog changes are picked up without a restart.
type AdapterProvider func() ([]scraper.SourceAdapter, error)

// Service runs every source on a cron schedule until stopped.
type Service struct {
	engine   *Engine
	provider AdapterProvider
	cron     *cron.Cron
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// NewService creates a service running provider's sources on schedule, a
// standard five-field cron expression or a descriptor such as "@every 30m".
func NewService(engine *Engine, provider AdapterProvider, schedule string) (*Service, error) {
	s := &Service{
		engine:   engine,
		provider: provider,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
		ctx:      context.Background(),
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the schedule and runs all sources immediately. It blocks until
// Stop is called or ctx is cancelled, then waits for the current run.
func (s *Service) Run(ctx context.Context) error {
	log := s.engine.logger
	log.Info().Msg("Service starting")

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.Trigger()

	var err error
	select {
	case <-ctx.Done():
		log.Info().Msg("Service stopping (context cancelled)")
		err = ctx.Err()
	case <-s.stopChan:
		log.Info().Msg("Service stopping")
	}

	<-s.cron.Stop().Done()
	s.wg.Wait()
	return err
}

// Stop signals the service to stop gracefully.
func (s *Service) Stop() {
	close(s.stopChan)
}

// Trigger starts a run in the background unless one is in progress.
func (s *Service) Trigger() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick()
	}()
}

// RunOnce runs all sources now and returns their reports. It returns nil
// when a run is already in progress.
func (s *Service) RunOnce(ctx context.Context) ([]*RunReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.engine.logger.Warn().Msg("Previous run still in progress, skipping")
		return nil, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	adapters, err := s.provider()
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	s.engine.logger.Info().Int("sources", len(adapters)).Msg("Starting run")
	reports := s.engine.RunAll(ctx, adapters)

	written := 0
	for _, r := range reports {
		written += r.New
	}
	s.engine.logger.Info().Int("sources", len(reports)).Int("new", written).Msg("Run finished")
	return reports, nil
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.engine.logger.Error().Err(err).Msg("Scheduled run failed")
	}
}
