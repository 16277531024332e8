package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/postfeed"
)

func (a *app) handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show errors and warnings per source")
	fs.Parse(args)

	adapters, err := a.catalog().Adapters(fs.Args()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(adapters) == 0 {
		fmt.Println("No sources to run.")
		return
	}

	store := a.openStatusStore()
	defer store.Close()

	engine, err := postfeed.NewEngine(a.engineConfig(),
		postfeed.WithLogger(a.logger),
		postfeed.WithStatusStore(store),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running %d source(s)...\n\n", len(adapters))
	reports := engine.RunAll(ctx, adapters)

	printRunTable(reports)

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
		if *verbose {
			printRunDetails(r)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
