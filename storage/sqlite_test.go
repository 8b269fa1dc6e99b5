package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcer/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleFacts() models.PropertyFacts {
	return models.PropertyFacts{
		Price:     300000,
		Address:   "123 Main Street",
		Sqft:      1800,
		Bedrooms:  3,
		Bathrooms: 2,
		YearBuilt: 2010,
		Source:    models.SourceStatic,
	}
}

func TestSQLite_FactCacheRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	err := store.PutCachedFacts(ctx, &models.CachedFacts{
		URLFingerprint: "abc",
		URL:            "https://www.zillow.com/homedetails/1_zpid/",
		Facts:          sampleFacts(),
		FetchedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := store.GetCachedFacts(ctx, "abc", now.Add(30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleFacts(), got.Facts)
	assert.Equal(t, now, got.FetchedAt)

	// expired
	got, err = store.GetCachedFacts(ctx, "abc", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)

	// unknown
	got, err = store.GetCachedFacts(ctx, "nope", now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PutOverwrites(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := sampleFacts()
	second := sampleFacts()
	second.Price = 310000

	require.NoError(t, store.PutCachedFacts(ctx, &models.CachedFacts{URLFingerprint: "k", URL: "u", Facts: first, FetchedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.PutCachedFacts(ctx, &models.CachedFacts{URLFingerprint: "k", URL: "u", Facts: second, FetchedAt: now, ExpiresAt: now.Add(time.Hour)}))

	got, err := store.GetCachedFacts(ctx, "k", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 310000, got.Facts.Price)
}

func TestSQLite_PruneExpired(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.PutCachedFacts(ctx, &models.CachedFacts{URLFingerprint: "old", URL: "u1", Facts: sampleFacts(), FetchedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.PutCachedFacts(ctx, &models.CachedFacts{URLFingerprint: "new", URL: "u2", Facts: sampleFacts(), FetchedAt: now, ExpiresAt: now.Add(time.Hour)}))

	n, err := store.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetCachedFacts(ctx, "new", now)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLite_RunStats(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	statuses := []models.RunStatus{
		models.RunStatusSucceeded,
		models.RunStatusSucceeded,
		models.RunStatusFailed,
		models.RunStatusCached,
		models.RunStatusManual,
	}
	for _, st := range statuses {
		require.NoError(t, store.RecordRun(ctx, &models.ExtractionRun{
			ID:        uuid.NewString(),
			URL:       "https://www.zillow.com/homedetails/1_zpid/",
			Strategy:  models.SourceStatic,
			Status:    st,
			StartedAt: now,
		}))
	}
	// outside the window
	require.NoError(t, store.RecordRun(ctx, &models.ExtractionRun{
		ID:        uuid.NewString(),
		Status:    models.RunStatusFailed,
		StartedAt: now.Add(-48 * time.Hour),
	}))

	stats, err := store.RunStats(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.RunStats{Total: 5, Succeeded: 2, Failed: 1, Cached: 1, Manual: 1}, stats)
}
