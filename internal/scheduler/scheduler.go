package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

// Runner is what the scheduler drives; *weather.Service satisfies it.
type Runner interface {
	Update(ctx context.Context) (weather.UpdateResult, error)
	Rollup(ctx context.Context) (weather.RollupResult, error)
}

// Config holds the scheduling parameters.
type Config struct {
	Location *time.Location

	// Interval between updates (default: 15 minutes).
	Interval time.Duration

	// RollupAt is the HH:MM at which the daily rollup runs.
	RollupAt string

	// JobTimeout bounds one job run (default: 2 minutes).
	JobTimeout time.Duration

	Logger zerolog.Logger
}

// Scheduler periodically runs the station update and the daily rollup.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	rollupAt   string
	jobTimeout time.Duration
	logger     zerolog.Logger
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner) *Scheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}

	s := gocron.NewScheduler(loc)
	// Invocations share the persisted files; a run never starts while the
	// previous one is still going.
	s.SingletonModeAll()

	return &Scheduler{
		scheduler:  s,
		runner:     runner,
		interval:   interval,
		rollupAt:   cfg.RollupAt,
		jobTimeout: jobTimeout,
		logger:     cfg.Logger,
	}
}

// Start schedules both jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Tag("update").Do(s.runUpdate); err != nil {
		return err
	}

	if s.rollupAt != "" {
		if _, err := s.scheduler.Every(1).Day().At(s.rollupAt).Tag("rollup").Do(s.runRollup); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info().
		Dur("interval", s.interval).
		Str("rollup_at", s.rollupAt).
		Msg("scheduler started")
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runUpdate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.runner.Update(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduler: update failed")
	}
}

func (s *Scheduler) runRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.runner.Rollup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduler: rollup failed")
	}
}
