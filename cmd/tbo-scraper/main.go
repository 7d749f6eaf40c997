package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/config"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/parser"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/scraper"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/session"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/store"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config

	configPath   string
	verboseFlag  bool
	outputFlag   string
	formatFlag   string
	storeFlag    string
	delayFlag    time.Duration
	maxPagesFlag int
	minBodyFlag  int
	timeoutFlag  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "tbo-scraper",
	Short: "Capture, paginate and export flight search results",
	Long: `tbo-scraper replays a captured flight search request page by page,
extracts every flight offer, unifies the fare columns and exports the table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		logger, level := newLogger(cfg.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML config file")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&outputFlag, "output", "o", "", "Output file path")
	flags.StringVarP(&formatFlag, "format", "f", "", "Output format: csv, json, html, or dual")
	flags.StringVar(&storeFlag, "store", "", "SQLite file for session state (empty keeps it in memory)")
	flags.DurationVar(&delayFlag, "delay", 0, "Pause between pages (e.g. 2s)")
	flags.IntVar(&maxPagesFlag, "max-pages", 0, "Stop after this many pages (0 = until the feed ends)")
	flags.IntVar(&minBodyFlag, "min-body", 0, "Responses shorter than this many bytes end pagination")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "Per-request timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(parseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overrides loaded values with flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		c.Verbose = verboseFlag
	}
	if flags.Changed("output") {
		c.OutputFile = outputFlag
	}
	if flags.Changed("format") {
		c.OutputFormat = formatFlag
	}
	if flags.Changed("store") {
		c.StorePath = storeFlag
	}
	if flags.Changed("delay") {
		c.PageDelay = delayFlag
	}
	if flags.Changed("max-pages") {
		c.MaxPages = maxPagesFlag
	}
	if flags.Changed("min-body") {
		c.MinBodyLength = minBodyFlag
	}
	if flags.Changed("timeout") {
		c.Timeout = timeoutFlag
	}
	applyServeFlags(cmd, c)
}

type components struct {
	scraper *scraper.Scraper
	store   store.Store
	session *session.Session
}

func (c *components) Close() {
	if err := c.store.Close(); err != nil {
		slog.Error("close store", slog.Any("error", err))
	}
}

func buildComponents(ctx context.Context, c *config.Config) (*components, error) {
	extractor, err := parser.NewService(c.ExtractCacheSize)
	if err != nil {
		return nil, err
	}
	s, err := scraper.NewScraper(c, extractor)
	if err != nil {
		return nil, fmt.Errorf("initialising scraper: %w", err)
	}

	var st store.Store = store.NewMemoryStore()
	if c.StorePath != "" {
		st, err = store.OpenSQLite(ctx, c.StorePath)
		if err != nil {
			return nil, err
		}
	}

	sess, err := session.New(ctx, s, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &components{scraper: s, store: st, session: sess}, nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
