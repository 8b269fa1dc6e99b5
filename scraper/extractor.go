package scraper

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"sourcer/config"
	"sourcer/models"
)

// Extractor pulls listing facts from a URL. A non-nil error or facts that
// fail ExtractionSucceeded both mean the caller should fall back.
type Extractor interface {
	Name() models.FactSource
	Extract(ctx context.Context, listingURL string) (models.PropertyFacts, error)
}

// Closer is implemented by extractors holding process-wide resources.
type Closer interface {
	Close() error
}

// NewExtractor builds the extractor selected by cfg.Strategy.
func NewExtractor(cfg config.ExtractorConfig, site *config.SiteConfig, client *http.Client, artifacts ArtifactSink) (Extractor, error) {
	switch cfg.Strategy {
	case config.StrategyStatic:
		return NewStaticExtractor(cfg, site, client), nil
	case config.StrategyBrowser:
		driver, err := NewBrowserDriver(cfg)
		if err != nil {
			return nil, err
		}
		return NewBrowserExtractor(cfg, site, driver, artifacts), nil
	default:
		return nil, eris.Errorf("scraper: unknown strategy %q", cfg.Strategy)
	}
}
