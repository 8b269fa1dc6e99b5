package main

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"sourcer/estimator"
	"sourcer/httputil"
	"sourcer/scraper"
	"sourcer/storage"
)

// pipeline holds everything an estimate needs, shared by serve and the one-shot commands.
type pipeline struct {
	store        storage.Store
	extractor    scraper.Extractor
	orchestrator *scraper.Orchestrator
}

func initPipeline(ctx context.Context) (*pipeline, error) {
	p := &pipeline{}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	p.store = store
	switch cfg.Store.Driver {
	case "postgres":
		zap.L().Info("fact store: postgres", zap.String("url", maskConnectionString(cfg.Store.DatabaseURL)))
	case "sqlite":
		zap.L().Info("fact store: sqlite", zap.String("path", cfg.Store.DBPath))
	default:
		zap.L().Info("fact store disabled, no cache or run telemetry")
	}

	artifacts, err := storage.NewArtifactSink(ctx, cfg.Artifacts)
	if err != nil {
		p.Close()
		return nil, err
	}

	client, err := httputil.NewScrapingClient(cfg.Extractor)
	if err != nil {
		p.Close()
		return nil, err
	}

	ext, err := scraper.NewExtractor(cfg.Extractor, cfg.Site, client, artifacts)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.extractor = ext
	zap.L().Info("extractor ready",
		zap.String("strategy", string(ext.Name())),
		zap.String("site", cfg.Site.ID))

	p.orchestrator = scraper.NewOrchestrator(ext, estimator.NewEngine(nil))
	if store != nil {
		p.orchestrator.SetStore(store, cfg.Store.FactTTL)
	}
	return p, nil
}

func (p *pipeline) Close() {
	if c, ok := p.extractor.(scraper.Closer); ok {
		if err := c.Close(); err != nil {
			zap.L().Warn("extractor close failed", zap.Error(err))
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// maskConnectionString hides the password in a database URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
