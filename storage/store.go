package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"sourcer/config"
	"sourcer/models"
)

// Store keeps the listing fact cache and per-request extraction telemetry.
// Estimates themselves are never stored.
type Store interface {
	GetCachedFacts(ctx context.Context, fingerprint string, now time.Time) (*models.CachedFacts, error)
	PutCachedFacts(ctx context.Context, c *models.CachedFacts) error
	RecordRun(ctx context.Context, run *models.ExtractionRun) error
	RunStats(ctx context.Context, since time.Time) (models.RunStats, error)
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

// Open returns the store selected by cfg.Driver, or nil for "none".
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

func encodeFacts(f models.PropertyFacts) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", eris.Wrap(err, "storage: encode facts")
	}
	return string(data), nil
}

func decodeFacts(data []byte) (models.PropertyFacts, error) {
	var f models.PropertyFacts
	if err := json.Unmarshal(data, &f); err != nil {
		return f, eris.Wrap(err, "storage: decode facts")
	}
	return f, nil
}

func addStat(stats *models.RunStats, status models.RunStatus, n int) {
	stats.Total += n
	switch status {
	case models.RunStatusSucceeded:
		stats.Succeeded += n
	case models.RunStatusFailed:
		stats.Failed += n
	case models.RunStatusCached:
		stats.Cached += n
	case models.RunStatusManual:
		stats.Manual += n
	}
}
