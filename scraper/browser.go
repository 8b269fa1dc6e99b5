package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"sourcer/config"
	"sourcer/identity"
	"sourcer/models"
)

const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	viewportWidth    = 1920
	viewportHeight   = 1080

	// evalBudget bounds the DOM read after the page has settled.
	evalBudget = 5 * time.Second
)

var browserArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--no-first-run",
	"--no-zygote",
	"--single-process",
	"--disable-gpu",
}

// BrowserDriver launches isolated headless browser sessions.
type BrowserDriver interface {
	Launch(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is one rendered page. Close must be safe to call after any failure.
type BrowserSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Settle(ctx context.Context, d time.Duration) error
	Evaluate(ctx context.Context, script string) (string, error)
	Content(ctx context.Context) (string, error)
	Close() error
}

// ArtifactSink stores debug captures of pages that failed to yield facts.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, key string, data []byte, contentType string) error
}

// NewBrowserDriver returns the driver named by cfg.BrowserDriver.
func NewBrowserDriver(cfg config.ExtractorConfig) (BrowserDriver, error) {
	switch cfg.BrowserDriver {
	case "", "playwright":
		return NewPlaywrightDriver(cfg), nil
	case "chromedp":
		return NewChromedpDriver(cfg), nil
	default:
		return nil, eris.Errorf("scraper: unknown browser driver %q", cfg.BrowserDriver)
	}
}

// BrowserExtractor renders the listing in a headless browser and reads the live DOM.
// Concurrent extractions share a fixed number of browser slots.
type BrowserExtractor struct {
	driver     BrowserDriver
	site       *config.SiteConfig
	pool       *semaphore.Weighted
	navTimeout time.Duration
	settle     time.Duration
	artifacts  ArtifactSink
	now        func() time.Time
}

func NewBrowserExtractor(cfg config.ExtractorConfig, site *config.SiteConfig, driver BrowserDriver, artifacts ArtifactSink) *BrowserExtractor {
	if site == nil {
		site = config.DefaultSite()
	}
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	nav := cfg.NavTimeout
	if nav <= 0 {
		nav = 30 * time.Second
	}
	return &BrowserExtractor{
		driver:     driver,
		site:       site,
		pool:       semaphore.NewWeighted(int64(size)),
		navTimeout: nav,
		settle:     cfg.SettleDelay,
		artifacts:  artifacts,
		now:        time.Now,
	}
}

func (e *BrowserExtractor) Name() models.FactSource {
	return models.SourceBrowser
}

func (e *BrowserExtractor) Extract(ctx context.Context, listingURL string) (models.PropertyFacts, error) {
	log := zap.L().With(zap.String("component", "scraper.browser"), zap.String("url", listingURL))

	// Waiting for a slot counts against the request's own deadline.
	if err := e.pool.Acquire(ctx, 1); err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrAutomation, "acquire browser slot: %v", err)
	}
	defer e.pool.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.navTimeout+e.settle+evalBudget)
	defer cancel()

	start := e.now()
	facts, err := e.render(ctx, listingURL)
	log.Debug("browser extraction finished",
		zap.Bool("succeeded", err == nil),
		zap.Duration("elapsed", e.now().Sub(start)),
		zap.Error(err))
	return facts, err
}

func (e *BrowserExtractor) render(ctx context.Context, listingURL string) (models.PropertyFacts, error) {
	session, err := e.driver.Launch(ctx)
	if err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrAutomation, "launch browser: %v", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			zap.L().Warn("browser session close failed", zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, listingURL, e.navTimeout); err != nil {
		e.capture(ctx, session, listingURL)
		return models.PropertyFacts{}, eris.Wrapf(ErrAutomation, "navigate: %v", err)
	}

	if e.settle > 0 {
		if err := session.Settle(ctx, e.settle); err != nil {
			return models.PropertyFacts{}, eris.Wrapf(ErrAutomation, "settle: %v", err)
		}
	}

	script, err := extractionScript(e.site.Browser)
	if err != nil {
		return models.PropertyFacts{}, err
	}
	out, err := session.Evaluate(ctx, script)
	if err != nil {
		e.capture(ctx, session, listingURL)
		return models.PropertyFacts{}, eris.Wrapf(ErrAutomation, "evaluate: %v", err)
	}

	var raw models.RawFacts
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrParse, "decode page facts: %v", err)
	}

	facts := ResolveFacts(raw, models.SourceBrowser)
	if !facts.ExtractionSucceeded() {
		e.capture(ctx, session, listingURL)
		return facts, eris.Wrap(ErrParse, "no price or sqft found")
	}
	return facts, nil
}

// capture saves the current page HTML for later inspection. Best effort.
func (e *BrowserExtractor) capture(ctx context.Context, session BrowserSession, listingURL string) {
	if e.artifacts == nil {
		return
	}
	html, err := session.Content(ctx)
	if err != nil || html == "" {
		return
	}
	now := e.now().UTC()
	key := fmt.Sprintf("debug/%s/%s-%s.html", now.Format("20060102"), identity.URLFingerprint(listingURL), now.Format("150405"))
	if err := e.artifacts.SaveArtifact(ctx, key, []byte(html), "text/html; charset=utf-8"); err != nil {
		zap.L().Warn("save debug artifact failed", zap.String("key", key), zap.Error(err))
	}
}

// Close stops the underlying driver if it holds a long-lived process.
func (e *BrowserExtractor) Close() error {
	if c, ok := e.driver.(Closer); ok {
		return c.Close()
	}
	return nil
}

// extractionScript builds the page-side function that reads every field in one round trip.
// The year scan keeps the last match in document order.
func extractionScript(sel config.BrowserSelectors) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"price":     sel.Price,
		"address":   sel.Address,
		"bedrooms":  sel.Bedrooms,
		"bathrooms": sel.Bathrooms,
		"sqft":      sel.Sqft,
		"yearScan":  sel.YearScan,
	})
	if err != nil {
		return "", eris.Wrap(err, "scraper: encode selectors")
	}
	return fmt.Sprintf(`(() => {
  const sel = %s;
  const first = (list) => {
    for (const s of list || []) {
      let el = null;
      try { el = document.querySelector(s); } catch (e) { continue; }
      const text = el && el.textContent ? el.textContent.trim() : '';
      if (text) return text;
    }
    return '';
  };
  let yearBuilt = '';
  if (sel.yearScan) {
    for (const el of document.querySelectorAll(sel.yearScan)) {
      const text = el.textContent || '';
      if (text.includes('Built in') || text.includes('Year built')) {
        const m = text.match(/\d{4}/);
        if (m) yearBuilt = m[0];
      }
    }
  }
  return JSON.stringify({
    price: first(sel.price),
    address: first(sel.address),
    bedrooms: first(sel.bedrooms),
    bathrooms: first(sel.bathrooms),
    sqft: first(sel.sqft),
    yearBuilt: yearBuilt,
  });
})()`, payload), nil
}
