// Package capture watches a browser session for the flight search request
// and hands it to the session as a request template.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/config"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// Matcher selects the requests worth capturing.
type Matcher struct {
	Pattern string
}

// Match reports whether rawURL is an http(s) request containing Pattern.
func (m Matcher) Match(rawURL string) bool {
	if m.Pattern == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.Contains(rawURL, m.Pattern)
}

// Handler receives every captured template.
type Handler func(tmpl models.RequestTemplate) error

// Watcher drives a Chrome instance and forwards matching requests.
type Watcher struct {
	cfg     *config.Config
	matcher Matcher
	handler Handler
}

// NewWatcher builds a watcher for cfg.TargetPattern.
func NewWatcher(cfg *config.Config, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("capture handler is required")
	}
	if cfg.StartURL == "" {
		return nil, fmt.Errorf("start URL is required for browser capture")
	}
	return &Watcher{
		cfg:     cfg,
		matcher: Matcher{Pattern: cfg.TargetPattern},
		handler: handler,
	}, nil
}

// Observe handles one outgoing browser request and reports whether it was
// captured.
func (w *Watcher) Observe(rawURL, method string) bool {
	if !w.matcher.Match(rawURL) {
		return false
	}
	err := w.handler(models.RequestTemplate{URL: rawURL, Method: method})
	if err != nil {
		slog.Debug("capture rejected", slog.String("url", rawURL), slog.Any("error", err))
		return false
	}
	return true
}

// Run opens the browser on StartURL and blocks until ctx is cancelled or
// the browser goes away.
func (w *Watcher) Run(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", w.cfg.Headless),
		chromedp.Flag("disable-gpu", w.cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(w.cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancelBrowser()

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok && e.Request != nil {
			if w.Observe(e.Request.URL, e.Request.Method) {
				slog.Info("browser request captured", slog.String("url", e.Request.URL))
			}
		}
	})

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(w.cfg.StartURL),
	); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	slog.Info("browser capture ready", slog.String("url", w.cfg.StartURL), slog.String("pattern", w.matcher.Pattern))

	<-browserCtx.Done()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
