package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
	"github.com/spf13/cobra"
)

const defaultPagePattern = "flight_page_*.html"

var parseCmd = &cobra.Command{
	Use:   "parse [glob]",
	Short: "Extract flights from saved result pages",
	Long: `Extract every flight from result pages saved to disk (default pattern
` + defaultPagePattern + `), unify the fare columns and write the table.

Examples:
  tbo-scraper parse
  tbo-scraper parse "pages/*.html" -o flights.csv
  tbo-scraper parse "pages/*.html" --format html --markup 100`,
	Args: cobra.MaximumNArgs(1),
	RunE: parseCommand,
}

func init() {
	addMarkupFlags(parseCmd)
}

func parseCommand(cmd *cobra.Command, args []string) error {
	pattern := defaultPagePattern
	if len(args) == 1 {
		pattern = args[0]
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(files)

	extractor, err := parser.NewService(0)
	if err != nil {
		return err
	}

	startTime := time.Now()
	collection := pipeline.NewCollection()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			slog.Error("read page", slog.String("file", file), slog.Any("error", err))
			continue
		}
		records, err := extractor.Extract(context.Background(), string(data))
		if err != nil {
			slog.Error("extract page", slog.String("file", file), slog.Any("error", err))
			continue
		}
		collection.Append(records...)
		slog.Info("page parsed", slog.String("file", file), slog.Int("records", len(records)))
	}

	if cmd.Flags().Changed("markup") {
		if _, err := collection.ApplyMarkup(markupFlag, markupColumnFlag); err != nil {
			return fmt.Errorf("apply markup: %w", err)
		}
	}

	schema, records := collection.Unify()
	if err := export(schema, records); err != nil {
		return err
	}

	result := &models.ScraperResult{
		StartTime:   startTime,
		EndTime:     time.Now(),
		PageCount:   collection.Pages(),
		RecordCount: len(records),
		StopReason:  models.StopExhausted,
	}
	printSummary(result, len(records), time.Since(startTime), cfg.OutputFile)
	printPreview(schema, records, previewFlag)
	return nil
}
