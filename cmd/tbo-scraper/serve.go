package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanjaysagar12/travelboutiqueonline-browser/api"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/capture"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/config"
	"github.com/spf13/cobra"
)

var (
	listenFlag   string
	browserFlag  bool
	headlessFlag bool
	startURLFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session HTTP API",
	Long: `Serve the capture/start/stop/reset commands, status, records and exports over HTTP.

With --browser a Chrome window is opened on the start URL and every flight
search request it sends is captured as the request template.

Examples:
  tbo-scraper serve
  tbo-scraper serve --listen :8765 --store state/session.db
  tbo-scraper serve --browser --start-url https://m.travelboutiqueonline.com/`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "HTTP listen address")
	serveCmd.Flags().BoolVar(&browserFlag, "browser", false, "Open a browser and capture the search request from it")
	serveCmd.Flags().BoolVar(&headlessFlag, "headless", false, "Run the capture browser headless")
	serveCmd.Flags().StringVar(&startURLFlag, "start-url", "", "Page the capture browser opens")
}

func applyServeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if f := flags.Lookup("listen"); f != nil && f.Changed {
		c.ListenAddr = listenFlag
	}
	if f := flags.Lookup("headless"); f != nil && f.Changed {
		c.Headless = headlessFlag
	}
	if f := flags.Lookup("start-url"); f != nil && f.Changed {
		c.StartURL = startURLFlag
	}
}

func serveCommand(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(comps.session, comps.scraper.Metrics.Registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	slog.Info("api listening", slog.String("addr", cfg.ListenAddr))

	if browserFlag {
		watcher, err := capture.NewWatcher(cfg, comps.session.Capture)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("browser capture failed", slog.Any("error", err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, waiting for the page in flight")
	case err := <-serveErr:
		return fmt.Errorf("api server: %w", err)
	}

	comps.session.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+5*time.Second)
	defer cancel()
	if err := comps.session.Wait(shutdownCtx); err != nil {
		slog.Warn("run did not finish before shutdown", slog.Any("error", err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", slog.Any("error", err))
	}
	return nil
}
