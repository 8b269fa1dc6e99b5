package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"sourcer/identity"
	"sourcer/models"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStore struct {
	pool Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "storage: parse config")
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, eris.Wrap(err, "storage: create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "storage: ping")
	}

	store := NewPostgresStoreWithPool(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithPool wraps an existing pool without migrating.
func NewPostgresStoreWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fact_cache (
			url_fingerprint TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			normalized_address TEXT,
			facts JSONB NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS extraction_runs (
			id UUID PRIMARY KEY,
			url_fingerprint TEXT,
			url TEXT,
			strategy TEXT,
			status TEXT,
			error TEXT,
			zipcode TEXT,
			started_at TIMESTAMPTZ,
			duration_ms BIGINT
		);
		CREATE INDEX IF NOT EXISTS idx_fact_cache_expires ON fact_cache(expires_at);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON extraction_runs(started_at);
	`)
	return eris.Wrap(err, "storage: migrate postgres")
}

func (s *PostgresStore) GetCachedFacts(ctx context.Context, fingerprint string, now time.Time) (*models.CachedFacts, error) {
	var (
		url       string
		factsJSON []byte
		fetched   time.Time
		expires   time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT url, facts, fetched_at, expires_at
		FROM fact_cache
		WHERE url_fingerprint = $1 AND expires_at > $2
	`, fingerprint, now).Scan(&url, &factsJSON, &fetched, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "storage: get cached facts")
	}

	facts, err := decodeFacts(factsJSON)
	if err != nil {
		return nil, err
	}
	return &models.CachedFacts{
		URLFingerprint: fingerprint,
		URL:            url,
		Facts:          facts,
		FetchedAt:      fetched,
		ExpiresAt:      expires,
	}, nil
}

func (s *PostgresStore) PutCachedFacts(ctx context.Context, c *models.CachedFacts) error {
	factsJSON, err := encodeFacts(c.Facts)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fact_cache (url_fingerprint, url, normalized_address, facts, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url_fingerprint) DO UPDATE SET
			url = EXCLUDED.url,
			normalized_address = EXCLUDED.normalized_address,
			facts = EXCLUDED.facts,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at
	`, c.URLFingerprint, c.URL, identity.NormalizeAddress(c.Facts.Address), factsJSON, c.FetchedAt, c.ExpiresAt)
	return eris.Wrap(err, "storage: put cached facts")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *models.ExtractionRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extraction_runs (id, url_fingerprint, url, strategy, status, error, zipcode, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, run.URLFingerprint, run.URL, string(run.Strategy), string(run.Status), run.Error, run.Zipcode,
		run.StartedAt, run.DurationMS)
	return eris.Wrap(err, "storage: record run")
}

func (s *PostgresStore) RunStats(ctx context.Context, since time.Time) (models.RunStats, error) {
	var stats models.RunStats
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM extraction_runs
		WHERE started_at >= $1
		GROUP BY status
	`, since)
	if err != nil {
		return stats, eris.Wrap(err, "storage: run stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return stats, eris.Wrap(err, "storage: scan run stats")
		}
		addStat(&stats, models.RunStatus(status), int(n))
	}
	return stats, eris.Wrap(rows.Err(), "storage: iterate run stats")
}

func (s *PostgresStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fact_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "storage: prune fact cache")
	}
	return tag.RowsAffected(), nil
}
