package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
	"github.com/spf13/cobra"
)

var (
	urlFlag          string
	methodFlag       string
	markupFlag       float64
	markupColumnFlag string
	previewFlag      int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape --url <captured search url>",
	Short: "Capture a search request and paginate it to the end",
	Long: `Use a flight search request copied from the browser as the template, fetch
every page until the feed runs dry, then write the unified table.

Examples:
  tbo-scraper scrape --url "https://m.travelboutiqueonline.com/FlightReturnSearchAjax.aspx?...&pageNumber=0"
  tbo-scraper scrape --url "$URL" --format dual -o out/flights.csv
  tbo-scraper scrape --url "$URL" --markup 250 --markup-column Saver`,
	Args: cobra.NoArgs,
	RunE: scrapeCommand,
}

func init() {
	scrapeCmd.Flags().StringVar(&urlFlag, "url", "", "Captured search request URL")
	scrapeCmd.Flags().StringVar(&methodFlag, "method", "GET", "Captured request method")
	_ = scrapeCmd.MarkFlagRequired("url")
	addMarkupFlags(scrapeCmd)
}

func addMarkupFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&markupFlag, "markup", 0, "Amount added to fare prices before export")
	cmd.Flags().StringVar(&markupColumnFlag, "markup-column", pipeline.AllColumns, "Fare column to mark up, or ALL")
	cmd.Flags().IntVar(&previewFlag, "preview", 10, "Rows printed after the run (0 disables)")
}

func scrapeCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()
	sess := comps.session

	if err := sess.Capture(models.RequestTemplate{URL: urlFlag, Method: methodFlag}); err != nil {
		return err
	}

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	startTime := time.Now()
	runID, err := sess.Start(ctx)
	if err != nil {
		return err
	}
	slog.Info("starting scrape",
		slog.String("run_id", runID),
		slog.Duration("delay", cfg.PageDelay),
		slog.Int("max_pages", cfg.MaxPages),
	)

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.Wait(context.Background())
	}()

	interrupted := ctx.Done()
	for running := true; running; {
		select {
		case snap := <-updates:
			if snap.Status == models.StatusScraping && snap.PageCount > 0 {
				slog.Info("progress", slog.Int("pages", snap.PageCount), slog.Int("records", snap.RecordCount))
			}
		case <-interrupted:
			slog.Info("shutdown signal received, finishing the page in flight")
			sess.Stop()
			interrupted = nil
		case err := <-runDone:
			if err != nil {
				return fmt.Errorf("waiting for run: %w", err)
			}
			running = false
		}
	}

	if cmd.Flags().Changed("markup") {
		if _, err := sess.ApplyMarkup(markupFlag, markupColumnFlag); err != nil {
			return fmt.Errorf("apply markup: %w", err)
		}
	}

	schema, records := sess.Table()
	if err := export(schema, records); err != nil {
		return err
	}

	printSummary(sess.LastResult(), len(records), time.Since(startTime), cfg.OutputFile)
	printPreview(schema, records, previewFlag)
	return nil
}
