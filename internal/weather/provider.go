package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FetchKind tells apart the ways a provider call can fail.
type FetchKind string

const (
	FetchNetwork      FetchKind = "network"
	FetchStatus       FetchKind = "status"
	FetchDecode       FetchKind = "decode"
	FetchMissingField FetchKind = "missing_field"
	FetchConfig       FetchKind = "config"
)

// FetchError is returned by providers for any failed fetch.
type FetchError struct {
	Kind FetchKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchKindOf returns the kind of a fetch failure, or "" when err is not one.
func FetchKindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Provider abstracts the weather station API.
type Provider interface {
	Name() string
	FetchObservation(ctx context.Context, stationID string) (Observation, error)
	// FetchDailySummary returns the provider's pre-aggregated summary of date.
	FetchDailySummary(ctx context.Context, stationID string, date time.Time) (DailyAggregate, error)
}

// Store is the persistence contract. Every Save rewrites the whole history.
// Load of an absent history returns an empty result and no error; an
// unreadable history returns an error wrapping ErrCorruptHistory.
type Store interface {
	LoadSeries(ctx context.Context) (Series, error)
	SaveSeries(ctx context.Context, series Series) error
	LoadDaily(ctx context.Context) (DailySeries, error)
	SaveDaily(ctx context.Context, daily DailySeries) error
}

// Notifier receives the snapshot produced by each update.
type Notifier interface {
	Notify(ctx context.Context, snap Snapshot) error
}

var (
	// ErrCorruptHistory marks persisted data that could not be parsed.
	ErrCorruptHistory = errors.New("persisted history is corrupt")
)
