package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"sourcer/estimator"
	"sourcer/identity"
	"sourcer/models"
)

// FactStore is the persistence the orchestrator uses for caching and telemetry.
type FactStore interface {
	GetCachedFacts(ctx context.Context, fingerprint string, now time.Time) (*models.CachedFacts, error)
	PutCachedFacts(ctx context.Context, c *models.CachedFacts) error
	RecordRun(ctx context.Context, run *models.ExtractionRun) error
}

const recordTimeout = 3 * time.Second

// Orchestrator decides per request between manual facts, one extraction
// attempt and the fallback estimate. It holds no per-request state.
type Orchestrator struct {
	extractor Extractor
	engine    *estimator.Engine
	store     FactStore
	factTTL   time.Duration
	now       func() time.Time
}

func NewOrchestrator(extractor Extractor, engine *estimator.Engine) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		engine:    engine,
		now:       time.Now,
	}
}

// SetStore enables the fact cache (when ttl > 0) and run telemetry.
func (o *Orchestrator) SetStore(store FactStore, ttl time.Duration) {
	o.store = store
	o.factTTL = ttl
}

// Estimate always returns a usable result. Extraction failures and panics
// below this point produce the fallback estimate instead of an error.
func (o *Orchestrator) Estimate(ctx context.Context, req models.EstimateRequest) *models.EstimateResult {
	run := &models.ExtractionRun{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Strategy:  o.extractor.Name(),
		Zipcode:   req.Zipcode.String(),
		StartedAt: o.now(),
	}
	if req.URL != "" {
		run.URLFingerprint = identity.URLFingerprint(req.URL)
	}
	log := zap.L().With(
		zap.String("request_id", run.ID),
		zap.String("url", req.URL),
		zap.String("zipcode", run.Zipcode),
	)
	for _, field := range req.Rejected {
		log.Warn("request field ignored", zap.Error(eris.Wrapf(ErrValidation, "%s has an unusable JSON type", field)))
	}

	result, err := o.attempt(ctx, req, run, log)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = fmt.Sprintf("%s: %v", FailureKind(err), err)
		log.Warn("extraction failed, using fallback estimate",
			zap.String("strategy", string(run.Strategy)),
			zap.String("failure", FailureKind(err)),
			zap.Error(err))
		result = o.engine.Fallback(fallbackSqft(req.Sqft), run.Zipcode)
	}

	run.DurationMS = o.now().Sub(run.StartedAt).Milliseconds()
	o.record(ctx, run, log)

	log.Info("estimate complete",
		zap.String("source", result.Source),
		zap.String("status", string(run.Status)),
		zap.Int64("arv", result.ARV),
		zap.Int64("total", result.Total),
		zap.Int64("duration_ms", run.DurationMS))
	return result
}

func (o *Orchestrator) attempt(ctx context.Context, req models.EstimateRequest, run *models.ExtractionRun, log *zap.Logger) (result *models.EstimateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = eris.Errorf("panic during estimate: %v", r)
		}
	}()

	if req.IsManual() {
		run.Strategy = models.SourceManual
		run.Status = models.RunStatusManual
		facts := manualFacts(req, log)
		return o.engine.Estimate(withUsableSqft(facts, req.Sqft)), nil
	}

	if req.URL == "" {
		return nil, eris.Wrap(ErrValidation, "no listing url and incomplete manual attributes")
	}

	facts, cached := o.cachedFacts(ctx, run.URLFingerprint, log)
	if cached {
		run.Status = models.RunStatusCached
	} else {
		facts, err = o.extractor.Extract(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		if !facts.ExtractionSucceeded() {
			return nil, eris.Wrap(ErrParse, "no price or sqft found")
		}
		run.Status = models.RunStatusSucceeded
		o.cacheFacts(ctx, run.URLFingerprint, req.URL, facts, log)
	}

	return o.engine.Estimate(withUsableSqft(facts, req.Sqft)), nil
}

func (o *Orchestrator) cachedFacts(ctx context.Context, fingerprint string, log *zap.Logger) (models.PropertyFacts, bool) {
	if o.store == nil || o.factTTL <= 0 {
		return models.PropertyFacts{}, false
	}
	c, err := o.store.GetCachedFacts(ctx, fingerprint, o.now())
	if err != nil {
		log.Warn("fact cache lookup failed", zap.Error(err))
		return models.PropertyFacts{}, false
	}
	if c == nil || !c.Facts.ExtractionSucceeded() {
		return models.PropertyFacts{}, false
	}
	log.Debug("using cached facts", zap.Time("fetched_at", c.FetchedAt))
	return c.Facts, true
}

func (o *Orchestrator) cacheFacts(ctx context.Context, fingerprint, listingURL string, facts models.PropertyFacts, log *zap.Logger) {
	if o.store == nil || o.factTTL <= 0 {
		return
	}
	now := o.now()
	err := o.store.PutCachedFacts(ctx, &models.CachedFacts{
		URLFingerprint: fingerprint,
		URL:            listingURL,
		Facts:          facts,
		FetchedAt:      now,
		ExpiresAt:      now.Add(o.factTTL),
	})
	if err != nil {
		log.Warn("fact cache write failed", zap.Error(err))
	}
}

func (o *Orchestrator) record(ctx context.Context, run *models.ExtractionRun, log *zap.Logger) {
	if o.store == nil {
		return
	}
	// The client may already be gone; the telemetry row is still wanted.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.store.RecordRun(ctx, run); err != nil {
		log.Warn("record extraction run failed", zap.Error(err))
	}
}

// manualFacts builds facts from client-supplied attributes. Unparseable
// values are defaulted and logged rather than rejected.
func manualFacts(req models.EstimateRequest, log *zap.Logger) models.PropertyFacts {
	facts := ResolveFacts(models.RawFacts{
		Sqft:      req.Sqft.String(),
		Bedrooms:  req.Bedrooms.String(),
		Bathrooms: req.Bathrooms.String(),
		YearBuilt: req.YearBuilt.String(),
	}, models.SourceManual)
	facts.Address = models.ManualAddress
	facts.Price = 0

	counts := []struct {
		field string
		v     models.FlexString
		max   int
	}{
		{"sqft", req.Sqft, models.MaxSqft},
		{"bedrooms", req.Bedrooms, models.MaxBedrooms},
		{"yearBuilt", req.YearBuilt, models.MaxYearBuilt},
	}
	for _, c := range counts {
		if n, ok := ParseCount(c.v.String()); c.v.Present() && (!ok || n > c.max) {
			log.Warn("manual attribute defaulted", zap.Error(eris.Wrapf(ErrValidation, "%s=%q", c.field, c.v.String())))
		}
	}
	if n, ok := ParseBaths(req.Bathrooms.String()); req.Bathrooms.Present() && (!ok || n > models.MaxBathrooms) {
		log.Warn("manual attribute defaulted", zap.Error(eris.Wrapf(ErrValidation, "bathrooms=%q", req.Bathrooms.String())))
	}
	return facts
}

// withUsableSqft fills an unknown sqft from the request, then the default.
func withUsableSqft(facts models.PropertyFacts, requested models.FlexString) models.PropertyFacts {
	if facts.Sqft > 0 && facts.Sqft <= models.MaxSqft {
		return facts
	}
	if v, ok := parseSqft(requested.String()); ok && v > 0 {
		facts.Sqft = v
		return facts
	}
	facts.Sqft = estimator.FallbackSqft
	return facts
}

// fallbackSqft reads the client's sqft for the fallback budget. Absent,
// unparseable or implausibly large values become the default; an explicit
// zero is kept.
func fallbackSqft(requested models.FlexString) int {
	if v, ok := parseSqft(requested.String()); ok {
		return v
	}
	return estimator.FallbackSqft
}
