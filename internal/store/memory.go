package store

import (
	"context"
	"sync"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// History is lost when the process exits.
type MemoryStore struct {
	mu sync.RWMutex

	series weather.Series
	daily  weather.DailySeries

	// saves counts SaveSeries calls; tests use it to check that every cycle
	// rewrites the history.
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadSeries returns a copy of the stored series.
func (s *MemoryStore) LoadSeries(_ context.Context) (weather.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series.Clone(), nil
}

// SaveSeries replaces the stored series.
func (s *MemoryStore) SaveSeries(_ context.Context, series weather.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = series.Clone()
	s.saves++
	return nil
}

// LoadDaily returns a copy of the stored aggregates.
func (s *MemoryStore) LoadDaily(_ context.Context) (weather.DailySeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.daily == nil {
		return nil, nil
	}
	out := make(weather.DailySeries, len(s.daily))
	copy(out, s.daily)
	return out, nil
}

// SaveDaily replaces the stored aggregates.
func (s *MemoryStore) SaveDaily(_ context.Context, daily weather.DailySeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = make(weather.DailySeries, len(daily))
	copy(s.daily, daily)
	return nil
}

// SeriesSaves reports how many times the series has been saved.
func (s *MemoryStore) SeriesSaves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
