package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/pipeline"
)

func export(schema pipeline.Schema, records []models.FlightRecord) error {
	writer, err := pipeline.NewFileWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	if err := writer.Write(schema, records); err != nil {
		writer.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if len(records) > 0 {
		if err := writer.Validate(); err != nil {
			writer.Close()
			return fmt.Errorf("output validation failed: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	slog.Info("output written", slog.String("file", cfg.OutputFile), slog.Int("records", len(records)))
	return nil
}

func printSummary(result *models.ScraperResult, records int, duration time.Duration, outputFile string) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(bold("Scrape complete"))
	t.SetStyle(table.StyleLight)

	reason := models.StopNone
	pages, requests := 0, 0
	var runErr error
	runID := "-"
	if result != nil {
		reason = result.StopReason
		pages = result.PageCount
		requests = result.RequestCount
		runErr = result.Err
		if result.RunID != "" {
			runID = result.RunID
		}
	}
	reasonText := green(string(reason))
	if runErr != nil {
		reasonText = yellow(fmt.Sprintf("%s (%v)", reason, runErr))
	}

	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(records) / duration.Seconds()
	}

	t.AppendRows([]table.Row{
		{"Run", runID},
		{"Pages", pages},
		{"Requests", requests},
		{"Records", records},
		{"Ended by", reasonText},
		{"Duration", duration.Round(time.Millisecond)},
		{"Records/sec", fmt.Sprintf("%.2f", perSec)},
		{"Output file", outputFile},
	})
	fmt.Println()
	t.Render()
}

func printPreview(schema pipeline.Schema, records []models.FlightRecord, limit int) {
	if limit <= 0 || len(records) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	columns := schema.Columns()
	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, 0, len(schema.Fares))
	for i, col := range columns {
		header[i] = col
		if schema.IsFare(col) {
			configs = append(configs, table.ColumnConfig{Name: col, Align: text.AlignRight})
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for i, r := range records {
		if i == limit {
			break
		}
		row := make(table.Row, len(columns))
		for j, col := range columns {
			row[j] = r.Get(col)
		}
		t.AppendRow(row)
	}
	if len(records) > limit {
		t.AppendFooter(table.Row{fmt.Sprintf("%d more", len(records)-limit)})
	}
	t.Render()
}
