package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pevans/postfeed"
	"github.com/pevans/postfeed/api"
	"github.com/pevans/postfeed/config"
	"github.com/pevans/postfeed/scraper"
	"github.com/pevans/postfeed/sources"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	defaultConfig, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfig = "postfeed.yaml"
	}

	configPath := flag.String("config", getEnv("POSTFEED_CONFIG", defaultConfig), "Path to config file (POSTFEED_CONFIG)")
	listen := flag.String("listen", "", "HTTP listen address, overrides the config file (POSTFEED_LISTEN)")
	schedule := flag.String("schedule", "", "Cron schedule, overrides the config file (POSTFEED_SCHEDULE)")
	logLevel := flag.String("log-level", getEnv("POSTFEED_LOG_LEVEL", "info"), "Log level (POSTFEED_LOG_LEVEL)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}

	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid engine config")
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load sources")
	}
	logger.Info().Int("sources", len(catalog.Sources)).Str("path", *configPath).Msg("Loaded config")

	logger.Info().Str("path", cfg.StatusDB).Msg("Opening status store")
	statusStore, err := sources.NewSourceStore(cfg.StatusDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open status store")
	}
	defer statusStore.Close()

	engine, err := postfeed.NewEngine(engineConfig,
		postfeed.WithLogger(logger),
		postfeed.WithStatusStore(statusStore),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create engine")
	}

	// The catalog is re-read before every run so edited source files take
	// effect without a restart.
	provider := func() ([]scraper.SourceAdapter, error) {
		fresh, err := config.LoadConfigFile(*configPath)
		if err != nil {
			return nil, err
		}
		c, err := fresh.Catalog()
		if err != nil {
			return nil, err
		}
		return c.Adapters()
	}

	service, err := postfeed.NewService(engine, provider, cfg.Schedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create service")
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(
		engine.Feed(),
		statusStore,
		config.NewConfigAPIServer(cfg, catalog),
		service.Trigger,
	)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	errChan := make(chan error, 2)
	go func() {
		errChan <- service.Run(ctx)
	}()
	go func() {
		logger.Info().Str("addr", cfg.Listen).Str("schedule", cfg.Schedule).Msg("Listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				// SIGHUP: run now with the re-read catalog
				logger.Info().Msg("SIGHUP received, starting a run")
				service.Trigger()
				continue
			}

			logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("HTTP shutdown failed")
			}
			shutdownCancel()

			// Wait for the in-progress run with timeout
			shutdownTimer := time.NewTimer(60 * time.Second)
			select {
			case <-errChan:
				logger.Info().Msg("Service stopped")
			case <-shutdownTimer.C:
				logger.Warn().Msg("Shutdown timeout exceeded, forcing exit")
			}
			return
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Fatal().Err(err).Msg("Service error")
			}
			return
		}
	}
}
