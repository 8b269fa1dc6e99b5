package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcer/models"
)

func TestPostgres_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fact_cache").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store := NewPostgresStoreWithPool(mock)
	assert.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCachedFacts_Hit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	facts := []byte(`{"price":300000,"address":"123 Main St","sqft":1800,"bedrooms":3,"bathrooms":2,"yearBuilt":2010,"source":"static"}`)
	mock.ExpectQuery("SELECT url, facts, fetched_at, expires_at").
		WithArgs("abc", now).
		WillReturnRows(pgxmock.NewRows([]string{"url", "facts", "fetched_at", "expires_at"}).
			AddRow("https://www.zillow.com/homedetails/1_zpid/", facts, now.Add(-time.Hour), now.Add(time.Hour)))

	store := NewPostgresStoreWithPool(mock)
	got, err := store.GetCachedFacts(context.Background(), "abc", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 300000, got.Facts.Price)
	assert.Equal(t, models.SourceStatic, got.Facts.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCachedFacts_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT url, facts, fetched_at, expires_at").
		WithArgs("abc", now).
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStoreWithPool(mock)
	got, err := store.GetCachedFacts(context.Background(), "abc", now)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutCachedFacts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	c := &models.CachedFacts{
		URLFingerprint: "abc",
		URL:            "https://www.zillow.com/homedetails/1_zpid/",
		Facts:          models.PropertyFacts{Price: 1, Address: "1 Elm Street", Source: models.SourceBrowser},
		FetchedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}
	mock.ExpectExec("INSERT INTO fact_cache").
		WithArgs("abc", c.URL, "1 elm st", pgxmock.AnyArg(), now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStoreWithPool(mock)
	require.NoError(t, store.PutCachedFacts(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRun_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO extraction_runs").
		WillReturnError(errors.New("connection reset"))

	store := NewPostgresStoreWithPool(mock)
	err = store.RecordRun(context.Background(), &models.ExtractionRun{ID: "00000000-0000-0000-0000-000000000001"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "record run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RunStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("succeeded", int64(4)).
			AddRow("failed", int64(2)))

	store := NewPostgresStoreWithPool(mock)
	stats, err := store.RunStats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, models.RunStats{Total: 6, Succeeded: 4, Failed: 2}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PruneExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectExec("DELETE FROM fact_cache").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	store := NewPostgresStoreWithPool(mock)
	n, err := store.PruneExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
