package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"

	"sourcer/config"
)

// PlaywrightDriver keeps one playwright server running and launches a fresh
// Chromium per session.
type PlaywrightDriver struct {
	headless bool
	execPath string

	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

func NewPlaywrightDriver(cfg config.ExtractorConfig) *PlaywrightDriver {
	return &PlaywrightDriver{headless: cfg.Headless, execPath: cfg.ChromeBin}
}

func (d *PlaywrightDriver) ensurePlaywright() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return d.pw, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "failed to start playwright")
	}
	d.pw = pw
	d.initialized = true
	return pw, nil
}

func (d *PlaywrightDriver) Launch(ctx context.Context) (BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := d.ensurePlaywright()
	if err != nil {
		return nil, err
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.headless),
		Args:     browserArgs,
	}
	if d.execPath != "" {
		opts.ExecutablePath = playwright.String(d.execPath)
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		return nil, eris.Wrap(err, "failed to launch browser")
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: viewportWidth, Height: viewportHeight},
		UserAgent: playwright.String(browserUserAgent),
	})
	if err != nil {
		browser.Close()
		return nil, eris.Wrap(err, "failed to create browser context")
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		return nil, eris.Wrap(err, "failed to create page")
	}

	return &playwrightSession{browser: browser, context: bctx, page: page}, nil
}

func (d *PlaywrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil
	}
	d.initialized = false
	return d.pw.Stop()
}

type playwrightSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	once    sync.Once
	err     error
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (s *playwrightSession) Settle(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *playwrightSession) Evaluate(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := s.page.Evaluate(script)
	if err != nil {
		return "", err
	}
	out, ok := res.(string)
	if !ok {
		return "", eris.Errorf("unexpected evaluate result %T", res)
	}
	return out, nil
}

func (s *playwrightSession) Content(ctx context.Context) (string, error) {
	return s.page.Content()
}

func (s *playwrightSession) Close() error {
	s.once.Do(func() {
		var errs []error
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}
