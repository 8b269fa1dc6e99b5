package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"sourcer/config"
)

// ChromedpDriver drives a locally installed Chrome over the DevTools protocol.
// Each session owns its own browser process.
type ChromedpDriver struct {
	headless bool
	execPath string
}

func NewChromedpDriver(cfg config.ExtractorConfig) *ChromedpDriver {
	return &ChromedpDriver{headless: cfg.Headless, execPath: cfg.ChromeBin}
}

func (d *ChromedpDriver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(viewportWidth, viewportHeight),
		chromedp.UserAgent(browserUserAgent),
	)
	if d.execPath != "" {
		opts = append(opts, chromedp.ExecPath(d.execPath))
	}
	return opts
}

func (d *ChromedpDriver) Launch(ctx context.Context) (BrowserSession, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &chromedpSession{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

type chromedpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the session's tab, bounded by the caller's ctx as well.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	// Navigate waits for the load event; body readiness stands in for network idle.
	return s.run(ctx, timeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *chromedpSession) Settle(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *chromedpSession) Evaluate(ctx context.Context, script string) (string, error) {
	var out string
	err := s.run(ctx, evalBudget, chromedp.Evaluate(script, &out))
	return out, err
}

func (s *chromedpSession) Content(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, evalBudget, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromedpSession) Close() error {
	s.once.Do(s.cancel)
	return nil
}
