package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/postfeed/sources"
)

func (a *app) handleSources(args []string) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	catalog := a.catalog()
	if len(catalog.Sources) == 0 {
		fmt.Println("No sources configured.")
		return
	}

	store := a.openStatusStore()
	defer store.Close()

	var rows []sourceRow
	for _, src := range catalog.Sources {
		row := sourceRow{Config: src}
		status, err := store.GetStatus(src.ID)
		switch {
		case err == nil:
			row.Status = status
		case errors.Is(err, sources.ErrSourceNotFound):
			// never run
		default:
			fmt.Fprintf(os.Stderr, "Error: failed to read status of %s: %v\n", src.ID, err)
			os.Exit(1)
		}
		rows = append(rows, row)
	}

	switch *format {
	case "json":
		printJSON(rows)
	case "table":
		printSourcesTable(rows)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}

func (a *app) handleRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Maximum number of runs to display")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: postfeed runs <source-id>")
		os.Exit(1)
	}
	sourceID := fs.Arg(0)

	store := a.openStatusStore()
	defer store.Close()

	runs, err := store.ListRuns(sourceID, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}
	printRunsTable(runs)
}

func (a *app) handleSetEnabled(args []string, enabled bool) {
	fs := flag.NewFlagSet("enable", flag.ExitOnError)
	reason := fs.String("reason", "disabled from CLI", "Reason recorded when disabling")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: a source id is required")
		os.Exit(1)
	}
	sourceID := fs.Arg(0)

	src, ok := a.catalog().Get(sourceID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown source %q\n", sourceID)
		os.Exit(1)
	}

	store := a.openStatusStore()
	defer store.Close()

	if err := store.EnsureSource(src.ID, src.Name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetEnabled(src.ID, enabled, *reason); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if enabled {
		fmt.Printf("✓ Enabled %s\n", src.Name)
	} else {
		fmt.Printf("✓ Disabled %s\n", src.Name)
	}
}
