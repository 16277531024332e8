package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pevans/postfeed"
	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/scraper"
	"github.com/pevans/postfeed/sources"
)

// sourceRow pairs a catalog entry with its status, if it ever ran.
type sourceRow struct {
	Config scraper.SourceConfig  `json:"config"`
	Status *sources.SourceStatus `json:"status,omitempty"`
}

// printJSON prints v as indented JSON
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printSourcesTable(rows []sourceRow) {
	fmt.Printf("%-20s %-30s %-9s %-17s %-7s %s\n", "ID", "NAME", "STATUS", "LAST RUN", "ITEMS", "ERRORS")
	fmt.Println(strings.Repeat("-", 100))

	for _, row := range rows {
		status := "enabled"
		lastRun := "never"
		items, errs := 0, 0

		if row.Config.Disabled {
			status = "off"
		}
		if st := row.Status; st != nil {
			if !st.Enabled {
				status = "disabled"
			}
			if st.LastRunAt != nil {
				lastRun = st.LastRunAt.Local().Format("2006-01-02 15:04")
			}
			items = st.TotalItems
			errs = st.FetchErrorCount
		}

		fmt.Printf("%-20s %-30s %-9s %-17s %-7d %d\n",
			truncate(row.Config.ID, 20),
			truncate(row.Config.Name, 30),
			status,
			lastRun,
			items,
			errs,
		)
		if row.Status != nil && row.Status.DisabledReason != nil {
			fmt.Printf("   reason: %s\n", *row.Status.DisabledReason)
		}
	}
}

func printRunsTable(runs []sources.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("%-17s %-9s %-8s %-5s %-6s %s\n", "STARTED", "DURATION", "TARGETS", "NEW", "DUPES", "RESULT")
	fmt.Println(strings.Repeat("-", 70))
	for _, run := range runs {
		result := "ok"
		if run.Failed {
			result = "failed"
		} else if run.Errors > 0 {
			result = fmt.Sprintf("%d error(s)", run.Errors)
		}
		fmt.Printf("%-17s %-9s %-8s %-5d %-6d %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.FinishedAt.Sub(run.StartedAt).Round(100*time.Millisecond).String(),
			fmt.Sprintf("%d/%d", run.Targets-run.TargetsFailed, run.Targets),
			run.NewItems,
			run.Duplicates,
			result,
		)
		if run.LastError != nil && run.Errors > 0 {
			fmt.Printf("   %s\n", truncate(*run.LastError, 100))
		}
	}
}

// printRunTable prints one line per source run report
func printRunTable(reports []*postfeed.RunReport) {
	fmt.Printf("%-20s %-5s %-6s %-8s %s\n", "SOURCE", "NEW", "DUPES", "TARGETS", "RESULT")
	fmt.Println(strings.Repeat("-", 70))

	total := 0
	for _, r := range reports {
		if r == nil {
			continue
		}
		result := "✓"
		switch {
		case r.Skipped != "":
			result = "skipped: " + r.Skipped
		case r.Failed():
			result = "failed"
		case len(r.Errors) > 0:
			result = fmt.Sprintf("%d error(s)", len(r.Errors))
		}

		fmt.Printf("%-20s %-5d %-6d %-8s %s\n",
			truncate(r.SourceID, 20),
			r.New,
			r.DuplicateURL+r.DuplicateContent,
			fmt.Sprintf("%d/%d", r.Targets-r.TargetsFailed, r.Targets),
			result,
		)
		total += r.New
	}

	fmt.Println()
	fmt.Printf("%d new record(s)\n", total)
}

func printRunDetails(r *postfeed.RunReport) {
	if r == nil || (len(r.Errors) == 0 && len(r.Warnings) == 0) {
		return
	}
	fmt.Printf("\n%s:\n", r.SourceName)
	for _, err := range r.Errors {
		fmt.Printf("  error   %v\n", err)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning %s\n", w)
	}
}

// printRecordsTable prints records in human-readable table format
func printRecordsTable(entries []newsfeed.Entry, total int) {
	if len(entries) == 0 {
		fmt.Println("No records to display.")
		return
	}

	fmt.Printf("Showing %d of %d records\n\n", len(entries), total)
	for _, e := range entries {
		marker := " "
		if e.Record.IsPublished() {
			marker = "✓"
		}

		fmt.Printf("%s %s\n", marker, truncate(e.Record.Title, 70))
		fmt.Printf("   %s | %s | %s\n", e.Record.SourceName, e.Record.Date, e.Filename)
		fmt.Printf("   URL: %s\n", e.Record.URL)
		fmt.Println()
	}
}

// printRecordsCompact prints one line per record
func printRecordsCompact(entries []newsfeed.Entry) {
	if len(entries) == 0 {
		fmt.Println("No records to display.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s %s (%s)\n", e.Filename, e.Record.Title, e.Record.SourceName)
	}
}

func printRecord(filename string, rec *newsfeed.Record) {
	fmt.Println(rec.Title)
	fmt.Println(strings.Repeat("=", min(len([]rune(rec.Title)), 80)))
	fmt.Println()
	fmt.Printf("File:      %s\n", filename)
	fmt.Printf("Source:    %s (%s)\n", rec.SourceName, rec.Source)
	fmt.Printf("Date:      %s\n", rec.Date)
	fmt.Printf("Scraped:   %s\n", rec.ScrapedAt)
	fmt.Printf("URL:       %s\n", rec.URL)
	if rec.ImageURL != "" {
		fmt.Printf("Image:     %s\n", rec.ImageURL)
	}
	if rec.ContentType != "" {
		fmt.Printf("Type:      %s\n", rec.ContentType)
	}
	fmt.Printf("Hash:      %s\n", rec.ContentHash)
	if rec.IsPublished() {
		fmt.Printf("Published: %s\n", rec.Published)
	} else {
		fmt.Println("Published: no")
	}
	fmt.Println()
	fmt.Println(wrapText(rec.Content, 80))
}

// wrapText wraps text to a maximum line width, keeping existing line breaks
func wrapText(text string, width int) string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}

		var line strings.Builder
		lineLen := 0
		for _, word := range words {
			wordLen := utf8.RuneCountInString(word)
			if lineLen == 0 {
				line.WriteString(word)
				lineLen = wordLen
			} else if lineLen+1+wordLen <= width {
				line.WriteString(" ")
				line.WriteString(word)
				lineLen += 1 + wordLen
			} else {
				out = append(out, line.String())
				line.Reset()
				line.WriteString(word)
				lineLen = wordLen
			}
		}
		out = append(out, line.String())
	}
	return strings.Join(out, "\n")
}
