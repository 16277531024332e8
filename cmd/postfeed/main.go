package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pevans/postfeed"
	"github.com/pevans/postfeed/config"
	"github.com/pevans/postfeed/scraper"
	"github.com/pevans/postfeed/sources"
)

// app carries what every subcommand needs.
type app struct {
	cfg    *config.FileConfig
	logger zerolog.Logger
}

func main() {
	defaultConfig, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfig = "postfeed.yaml"
	}
	configPath := flag.String("config", getEnv("POSTFEED_CONFIG", defaultConfig), "Path to config file (POSTFEED_CONFIG)")
	logLevel := flag.String("log-level", getEnv("POSTFEED_LOG_LEVEL", "info"), "Log level: debug, info, warn, error (POSTFEED_LOG_LEVEL)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a := &app{cfg: cfg, logger: newLogger(*logLevel)}

	subcommand := args[0]
	switch subcommand {
	case "run":
		a.handleRun(args[1:])
	case "sources":
		a.handleSources(args[1:])
	case "runs":
		a.handleRuns(args[1:])
	case "enable":
		a.handleSetEnabled(args[1:], true)
	case "disable":
		a.handleSetEnabled(args[1:], false)
	case "records":
		a.handleRecords(args[1:])
	case "show":
		a.handleShow(args[1:])
	case "publish":
		a.handlePublish(args[1:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("postfeed - News ingestion pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  postfeed [--config path] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run [source-id...]        Run all enabled sources, or the given ones")
	fmt.Println("  sources                   List catalog sources with their status")
	fmt.Println("  runs <source-id>          Show recent runs of a source")
	fmt.Println("  enable <source-id>        Re-enable a source")
	fmt.Println("  disable <source-id>       Disable a source")
	fmt.Println("  records [--unpublished]   List output records")
	fmt.Println("  show <filename>           Show one record")
	fmt.Println("  publish <filename>        Mark a record as published")
	fmt.Println("  help                      Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  POSTFEED_CONFIG       Path to config file (default: ~/.postfeed/config.yaml)")
	fmt.Println("  POSTFEED_OUTPUT_DIR   Record output directory")
	fmt.Println("  POSTFEED_STATE_DIR    Per-source state directory")
	fmt.Println("  POSTFEED_STATUS_DB    Path to status database")
	fmt.Println("  POSTFEED_SOURCES_DIR  Directory of source files")
	fmt.Println("  POSTFEED_CONCURRENCY  Sources run in parallel")
	fmt.Println("  POSTFEED_LOG_LEVEL    Log level (default: info)")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger()
}

func (a *app) catalog() *scraper.Catalog {
	catalog, err := a.cfg.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load sources: %v\n", err)
		os.Exit(1)
	}
	return catalog
}

func (a *app) openStatusStore() *sources.SourceStore {
	store, err := sources.NewSourceStore(a.cfg.StatusDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open status store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func (a *app) engineConfig() postfeed.EngineConfig {
	cfg, err := a.cfg.EngineConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
