package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoData is returned by read accessors when nothing has been recorded yet.
var ErrNoData = errors.New("no weather data recorded")

// ServiceConfig holds everything one station monitor needs.
type ServiceConfig struct {
	StationID string
	Location  *time.Location

	// RetentionWindow defaults to DefaultRetentionWindow.
	RetentionWindow time.Duration

	// FetchTimeout bounds a single provider call (default: 30 seconds).
	FetchTimeout time.Duration

	Provider Provider
	Store    Store

	// Notifier is optional.
	Notifier Notifier

	Logger zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// UpdateResult describes one update cycle.
type UpdateResult struct {
	RunID    string
	FetchErr error
	Inserted bool
	State    StationState
	Series   Series
}

// RollupResult describes one daily rollup.
type RollupResult struct {
	Date     time.Time
	FetchErr error
	Inserted bool
	Monthly  MonthlyStats
}

// Service runs update cycles and rollups for one station and keeps the last
// outcome available to readers.
type Service struct {
	stationID    string
	loc          *time.Location
	window       time.Duration
	fetchTimeout time.Duration
	provider     Provider
	store        Store
	notifier     Notifier
	logger       zerolog.Logger
	now          func() time.Time

	mu      sync.RWMutex
	series  Series
	daily   DailySeries
	snap    Snapshot
	monthly MonthlyStats
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	window := cfg.RetentionWindow
	if window <= 0 {
		window = DefaultRetentionWindow
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		stationID:    cfg.StationID,
		loc:          loc,
		window:       window,
		fetchTimeout: fetchTimeout,
		provider:     cfg.Provider,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger.With().Str("station_id", cfg.StationID).Logger(),
		now:          now,
		snap: Snapshot{
			StationID: cfg.StationID,
			State:     StateOffline,
		},
	}
}

// Prime loads persisted history so readers see data before the first poll.
func (s *Service) Prime(ctx context.Context) {
	now := s.now().In(s.loc)
	// Nothing is saved here, so an unreadable history only leaves the view
	// empty until the next successful load.
	loaded, err := s.loadSeries(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("could not load series at startup")
	}
	series := Trim(loaded, now, s.window)
	daily, err := s.loadDaily(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("could not load daily history at startup")
	}
	month := Day(now, s.loc).AddDate(0, 0, -1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = series
	s.daily = daily
	s.setMonthLocked(month)
	s.snap = s.snapshotLocked(StateOffline, false, now)
}

// Update runs one cycle: load, trim, fetch, ingest, trim, save. A failed
// fetch or a corrupt history does not abort the cycle. A history that could
// not be read for any other reason is left untouched: the cycle reports
// Offline and skips the save. The returned error reports a failed load or
// save; the in-memory snapshot is updated either way.
func (s *Service) Update(ctx context.Context) (UpdateResult, error) {
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	now := s.now().In(s.loc)

	loaded, loadErr := s.loadSeries(ctx)
	if loadErr != nil {
		return s.skipUpdate(ctx, logger, runID, now, loadErr)
	}
	series := Trim(loaded, now, s.window)

	obs, fetchErr := s.fetchObservation(ctx)

	inserted := false
	if fetchErr != nil {
		logger.Warn().
			Err(fetchErr).
			Str("kind", string(FetchKindOf(fetchErr))).
			Msg("observation fetch failed")
	} else {
		obs = s.normalize(obs, now)
		series, inserted = Ingest(series, obs)
		series = Trim(series, now, s.window)
		// A sample older than the window is trimmed right away and does
		// not count as new data.
		inserted = inserted && series.Contains(obs.Timestamp)

		if !inserted {
			logger.Info().
				Time("timestamp", obs.Timestamp).
				Msg("sample already recorded; provider has no new data")
		}
	}

	state := Classify(fetchErr == nil, inserted)

	var saveErr error
	if err := s.store.SaveSeries(ctx, series); err != nil {
		saveErr = fmt.Errorf("save series: %w", err)
		logger.Error().Err(err).Msg("failed to persist series")
	}

	s.mu.Lock()
	s.series = series
	snap := s.snapshotLocked(state, inserted, now)
	s.snap = snap
	s.mu.Unlock()

	logger.Info().
		Str("state", string(state)).
		Bool("inserted", inserted).
		Int("samples", len(series)).
		Msg("update cycle complete")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("failed to publish station state")
		}
	}

	return UpdateResult{
		RunID:    runID,
		FetchErr: fetchErr,
		Inserted: inserted,
		State:    state,
		Series:   series.Clone(),
	}, saveErr
}

// Rollup records the provider's summary of the previous calendar day and
// refreshes the monthly statistics for that day's month.
func (s *Service) Rollup(ctx context.Context) (RollupResult, error) {
	now := s.now().In(s.loc)
	date := Day(now, s.loc).AddDate(0, 0, -1)
	logger := s.logger.With().Str("date", date.Format(DateLayout)).Logger()

	result := RollupResult{Date: date}
	daily, err := s.loadDaily(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("daily history unavailable; skipping rollup without saving")
		s.mu.RLock()
		result.Monthly = s.monthly
		s.mu.RUnlock()
		return result, fmt.Errorf("load daily: %w", err)
	}

	var saveErr error
	if _, ok := daily.Find(date); ok {
		logger.Info().Msg("daily summary already recorded")
	} else {
		agg, err := s.fetchDailySummary(ctx, date)
		if err != nil {
			result.FetchErr = err
			logger.Warn().
				Err(err).
				Str("kind", string(FetchKindOf(err))).
				Msg("daily summary fetch failed")
		} else {
			agg.Date = date
			daily, result.Inserted = IngestDay(daily, agg)
			if err := s.store.SaveDaily(ctx, daily); err != nil {
				saveErr = fmt.Errorf("save daily: %w", err)
				logger.Error().Err(err).Msg("failed to persist daily summary")
			}
		}
	}

	s.mu.Lock()
	s.daily = daily
	s.setMonthLocked(date)
	result.Monthly = s.monthly
	s.mu.Unlock()

	logger.Info().
		Bool("inserted", result.Inserted).
		Int("month_days", result.Monthly.Days).
		Msg("daily rollup complete")

	return result, saveErr
}

// skipUpdate finishes a cycle whose history could not be read. The persisted
// history and the retained series are kept as they are.
func (s *Service) skipUpdate(ctx context.Context, logger zerolog.Logger, runID string, now time.Time, loadErr error) (UpdateResult, error) {
	logger.Error().Err(loadErr).Msg("history unavailable; skipping this cycle without saving")

	s.mu.Lock()
	snap := s.snapshotLocked(StateOffline, false, now)
	s.snap = snap
	series := s.series.Clone()
	s.mu.Unlock()

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("failed to publish station state")
		}
	}

	return UpdateResult{
		RunID:  runID,
		State:  StateOffline,
		Series: series,
	}, fmt.Errorf("load series: %w", loadErr)
}

func (s *Service) fetchObservation(ctx context.Context) (Observation, error) {
	if s.provider == nil {
		return Observation{}, &FetchError{Kind: FetchConfig, Op: "fetch observation", Err: errors.New("no provider configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.provider.FetchObservation(ctx, s.stationID)
}

func (s *Service) fetchDailySummary(ctx context.Context, date time.Time) (DailyAggregate, error) {
	if s.provider == nil {
		return DailyAggregate{}, &FetchError{Kind: FetchConfig, Op: "fetch daily summary", Err: errors.New("no provider configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.provider.FetchDailySummary(ctx, s.stationID, date)
}

// normalize pins the sample to this station and to minute resolution in the
// station zone.
func (s *Service) normalize(obs Observation, now time.Time) Observation {
	if obs.StationID == "" {
		obs.StationID = s.stationID
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = now
	}
	obs.Timestamp = obs.Timestamp.In(s.loc).Truncate(time.Minute)
	return obs
}

// loadSeries reads the persisted series. A corrupt history is logged as data
// loss and reads as empty so the next save replaces it. Any other failure is
// returned and the caller must not save over the history.
func (s *Service) loadSeries(ctx context.Context) (Series, error) {
	series, err := s.store.LoadSeries(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptHistory) {
			s.logHistoryLoss(err, "series")
			return nil, nil
		}
		return nil, err
	}
	for i := range series {
		series[i].StationID = s.stationID
		series[i].Timestamp = series[i].Timestamp.In(s.loc)
	}
	return series, nil
}

func (s *Service) loadDaily(ctx context.Context) (DailySeries, error) {
	daily, err := s.store.LoadDaily(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptHistory) {
			s.logHistoryLoss(err, "daily")
			return nil, nil
		}
		return nil, err
	}
	return daily, nil
}

func (s *Service) logHistoryLoss(err error, what string) {
	s.logger.Warn().
		Err(err).
		Str("history", what).
		Msg("history is corrupt; starting from empty (data loss)")
}

func (s *Service) setMonthLocked(date time.Time) {
	s.monthly = Summarize(date.Year(), date.Month(), MonthView(s.daily, date.Year(), date.Month()))
}

func (s *Service) snapshotLocked(state StationState, inserted bool, now time.Time) Snapshot {
	snap := Snapshot{
		StationID: s.stationID,
		State:     state,
		Inserted:  inserted,
		UpdatedAt: now,
		Count:     len(s.series),
	}
	if latest, ok := s.series.Latest(); ok {
		snap.Latest = &latest
	}
	return snap
}

// CurrentSeries returns a copy of the retained series.
func (s *Service) CurrentSeries() Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series.Clone()
}

// LatestObservation returns the newest retained observation.
func (s *Service) LatestObservation() (Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.series.Latest()
	if !ok {
		return Observation{}, ErrNoData
	}
	return obs, nil
}

// StationState returns the state derived by the last update.
func (s *Service) StationState() StationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State
}

// Snapshot returns the full read-only view. It is valid even when nothing has
// ever been recorded.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// MonthlySummary returns the statistics of the current month view.
func (s *Service) MonthlySummary() MonthlyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monthly
}

// Yesterday returns the recorded summary of the day before today.
func (s *Service) Yesterday() (DailyAggregate, error) {
	date := Day(s.now(), s.loc).AddDate(0, 0, -1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.daily.Find(date)
	if !ok {
		return DailyAggregate{}, ErrNoData
	}
	return agg, nil
}

// GetRange returns the retained observations between from and to.
func (s *Service) GetRange(from, to time.Time) (Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.series.Range(from, to)
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// PrecipRates returns per-interval rainfall for the retained series.
func (s *Service) PrecipRates() []PrecipRate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PrecipRates(s.series)
}
