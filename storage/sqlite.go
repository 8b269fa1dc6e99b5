package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"sourcer/identity"
	"sourcer/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "storage: open sqlite")
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fact_cache (
		url_fingerprint TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		normalized_address TEXT,
		facts JSON NOT NULL,
		fetched_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		url_fingerprint TEXT,
		url TEXT,
		strategy TEXT,
		status TEXT,
		error TEXT,
		zipcode TEXT,
		started_at INTEGER,
		duration_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_fact_cache_expires ON fact_cache(expires_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON extraction_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON extraction_runs(url_fingerprint, started_at);
	`
	_, err := s.db.Exec(schema)
	return eris.Wrap(err, "storage: migrate sqlite")
}

func (s *SQLiteStore) GetCachedFacts(ctx context.Context, fingerprint string, now time.Time) (*models.CachedFacts, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT url, facts, fetched_at, expires_at
		FROM fact_cache
		WHERE url_fingerprint = ? AND expires_at > ?
	`, fingerprint, now.UnixMilli())

	var (
		url       string
		factsJSON []byte
		fetched   int64
		expires   int64
	)
	if err := row.Scan(&url, &factsJSON, &fetched, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		FetchedAt:      time.UnixMilli(fetched).UTC(),
		ExpiresAt:      time.UnixMilli(expires).UTC(),
	}, nil
}

func (s *SQLiteStore) PutCachedFacts(ctx context.Context, c *models.CachedFacts) error {
	factsJSON, err := encodeFacts(c.Facts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fact_cache (url_fingerprint, url, normalized_address, facts, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url_fingerprint) DO UPDATE SET
			url = excluded.url,
			normalized_address = excluded.normalized_address,
			facts = excluded.facts,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, c.URLFingerprint, c.URL, identity.NormalizeAddress(c.Facts.Address), factsJSON,
		c.FetchedAt.UnixMilli(), c.ExpiresAt.UnixMilli())
	return eris.Wrap(err, "storage: put cached facts")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *models.ExtractionRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_runs (id, url_fingerprint, url, strategy, status, error, zipcode, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.URLFingerprint, run.URL, string(run.Strategy), string(run.Status), run.Error, run.Zipcode,
		run.StartedAt.UnixMilli(), run.DurationMS)
	return eris.Wrap(err, "storage: record run")
}

func (s *SQLiteStore) RunStats(ctx context.Context, since time.Time) (models.RunStats, error) {
	var stats models.RunStats
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM extraction_runs
		WHERE started_at >= ?
		GROUP BY status
	`, since.UnixMilli())
	if err != nil {
		return stats, eris.Wrap(err, "storage: run stats")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, eris.Wrap(err, "storage: scan run stats")
		}
		addStat(&stats, models.RunStatus(status), n)
	}
	return stats, eris.Wrap(rows.Err(), "storage: iterate run stats")
}

func (s *SQLiteStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fact_cache WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "storage: prune fact cache")
	}
	return res.RowsAffected()
}
