package scraper

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sourcer/config"
	"sourcer/httputil"
	"sourcer/models"
)

// StaticExtractor fetches the listing once and parses the returned HTML.
type StaticExtractor struct {
	client  *http.Client
	site    *config.SiteConfig
	timeout time.Duration
	limiter *hostLimiter
}

func NewStaticExtractor(cfg config.ExtractorConfig, site *config.SiteConfig, client *http.Client) *StaticExtractor {
	if client == nil {
		client = &http.Client{}
	}
	if site == nil {
		site = config.DefaultSite()
	}
	timeout := cfg.StaticTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StaticExtractor{
		client:  client,
		site:    site,
		timeout: timeout,
		limiter: newHostLimiter(cfg.FetchRatePerSec),
	}
}

func (e *StaticExtractor) Name() models.FactSource {
	return models.SourceStatic
}

func (e *StaticExtractor) Extract(ctx context.Context, listingURL string) (models.PropertyFacts, error) {
	log := zap.L().With(zap.String("component", "scraper.static"), zap.String("url", listingURL))

	u, err := url.Parse(listingURL)
	if err != nil || u.Host == "" {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "invalid listing url %q", listingURL)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx, u.Host); err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "rate limit wait: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "build request: %v", err)
	}
	httputil.SetListingHeaders(req)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "GET %s: %v", u.Host, err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "read body: %v", err)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		log.Warn("listing site served a block page",
			zap.String("block", string(kind)),
			zap.Int("status", resp.StatusCode))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.PropertyFacts{}, eris.Wrapf(ErrNetwork, "GET %s: status %d", u.Host, resp.StatusCode)
	}

	raw, err := e.parse(body)
	if err != nil {
		return models.PropertyFacts{}, err
	}

	facts := ResolveFacts(raw, models.SourceStatic)
	log.Debug("static extraction finished",
		zap.Bool("succeeded", facts.ExtractionSucceeded()),
		zap.Int("price", facts.Price),
		zap.Int("sqft", facts.Sqft),
		zap.Duration("elapsed", time.Since(start)))

	if !facts.ExtractionSucceeded() {
		return facts, eris.Wrap(ErrParse, "no price or sqft found")
	}
	return facts, nil
}

// parse applies the site's selector lists and text heuristics to body.
func (e *StaticExtractor) parse(body []byte) (models.RawFacts, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.RawFacts{}, eris.Wrapf(ErrParse, "parse html: %v", err)
	}

	scan := e.site.Static.TextScan
	if scan == "" {
		scan = "span"
	}
	m, err := cascadia.ParseGroup(scan)
	if err != nil {
		return models.RawFacts{}, eris.Wrapf(ErrParse, "text scan selector %q: %v", scan, err)
	}
	texts := elementTexts(doc.Get(0), m)

	return models.RawFacts{
		Price:     firstMatch(doc, e.site.Static.Price),
		Address:   firstMatch(doc, e.site.Static.Address),
		Sqft:      scanSqft(texts),
		Bedrooms:  scanBedrooms(texts),
		Bathrooms: scanBathrooms(texts),
		YearBuilt: scanYearBuilt(texts),
	}, nil
}

// hostLimiter spaces out requests to the same host. A non-positive rate disables it.
type hostLimiter struct {
	mu       sync.Mutex
	perSec   float64
	limiters map[string]*rate.Limiter
}

func newHostLimiter(perSec float64) *hostLimiter {
	return &hostLimiter{perSec: perSec, limiters: make(map[string]*rate.Limiter)}
}

func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	if h.perSec <= 0 {
		return nil
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.perSec), 1)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
