package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pevans/postfeed/newsfeed"
)

func (a *app) openFeed() *newsfeed.NewsFeed {
	feed, err := newsfeed.NewNewsFeed(a.engineConfig().OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open output directory: %v\n", err)
		os.Exit(1)
	}
	return feed
}

func (a *app) handleRecords(args []string) {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	unpublished := fs.Bool("unpublished", false, "Show only records not yet published")
	source := fs.String("source", "", "Filter by source id")
	limit := fs.Int("limit", 20, "Maximum number of records to display")
	format := fs.String("format", "table", "Output format: table, json, compact")
	fs.Parse(args)

	feed := a.openFeed()

	var (
		result *newsfeed.ListResult
		err    error
	)
	if *unpublished {
		result, err = feed.ListUnpublished()
	} else {
		result, err = feed.List()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list records: %v\n", err)
		os.Exit(1)
	}

	// Report any partial failures after displaying results
	defer func() {
		if len(result.Errors) > 0 {
			fmt.Fprintf(os.Stderr, "\nWarning: %d record(s) could not be read:\n", len(result.Errors))
			for _, readErr := range result.Errors {
				fmt.Fprintf(os.Stderr, "  %s\n", readErr.Error())
			}
		}
	}()

	entries := result.Entries
	if *source != "" {
		src, ok := a.catalog().Get(*source)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown source %q\n", *source)
			os.Exit(1)
		}
		hash := sourceHashOf(src)
		var filtered []newsfeed.Entry
		for _, e := range entries {
			if e.Record.Source == hash {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	// Newest first; filenames sort by source, then day and sequence.
	entries = newestFirst(entries)
	total := len(entries)
	if *limit > 0 && len(entries) > *limit {
		entries = entries[:*limit]
	}

	switch *format {
	case "json":
		printJSON(map[string]any{"records": entries, "total": total})
	case "compact":
		printRecordsCompact(entries)
	case "table":
		printRecordsTable(entries, total)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}

func (a *app) handleShow(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: postfeed show <filename>")
		os.Exit(1)
	}

	rec, err := a.openFeed().Get(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printRecord(args[0], rec)
}

func (a *app) handlePublish(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: postfeed publish <filename>")
		os.Exit(1)
	}

	marker := time.Now().Format("2006-01-02T15:04:05.000000")
	err := a.openFeed().MarkPublished(args[0], marker)
	switch {
	case err == nil:
		fmt.Printf("✓ Marked %s as published\n", args[0])
	case errors.Is(err, newsfeed.ErrAlreadyPublished):
		fmt.Fprintf(os.Stderr, "Error: %s is already published\n", args[0])
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
