package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), SQLiteConfig{
		Path:     path,
		Location: loc,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteSeriesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "weather.db")
	st := openTestSQLite(t, path)
	ctx := context.Background()

	empty, err := st.LoadSeries(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	want := testSeries()
	require.NoError(t, st.SaveSeries(ctx, want))

	got, err := st.LoadSeries(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	require.NoError(t, st.SaveSeries(ctx, want[1:]))
	got, err = st.LoadSeries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "save replaces the previous contents")
}

func TestSQLiteDailyRoundTrip(t *testing.T) {
	st := openTestSQLite(t, filepath.Join(t.TempDir(), "weather.db"))
	ctx := context.Background()

	want := weather.DailySeries{
		{Date: time.Date(2024, time.March, 8, 0, 0, 0, 0, loc), MinTemp: weather.Float(14.1), MaxTemp: weather.Float(27.3)},
		{Date: time.Date(2024, time.March, 9, 0, 0, 0, 0, loc), Precip: weather.Float(3.2)},
	}
	require.NoError(t, st.SaveDaily(ctx, want))

	got, err := st.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.db")
	ctx := context.Background()

	st, err := OpenSQLite(ctx, SQLiteConfig{Path: path, Location: loc, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, st.SaveSeries(ctx, testSeries()))
	require.NoError(t, st.Close())

	reopened := openTestSQLite(t, path)
	got, err := reopened.LoadSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteConfig{})
	assert.Error(t, err)
}
