package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/weather-station-monitor/internal/api/http"
	"github.com/i474232898/weather-station-monitor/internal/config"
	"github.com/i474232898/weather-station-monitor/internal/logging"
	"github.com/i474232898/weather-station-monitor/internal/publish"
	"github.com/i474232898/weather-station-monitor/internal/scheduler"
	"github.com/i474232898/weather-station-monitor/internal/store"
	"github.com/i474232898/weather-station-monitor/internal/weather"
	"github.com/i474232898/weather-station-monitor/internal/weather/providers"
)

const appName = "weather-station-monitor"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("weather-station-monitor stopped")
	}
}

func run(cfg *config.AppConfig, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	provider := providers.NewWundergroundProvider(providers.WundergroundConfig{
		APIKey: cfg.APIKey,
		Client: httpClient,
	})
	if cfg.APIKey == "" {
		logger.Warn().Msg("no provider api key configured; every fetch will fail and the station will read Offline")
	}

	var notifier weather.Notifier
	if cfg.MQTTBroker != "" {
		pub, client := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			Logger:   logger,
		})

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := publish.Connect(connectCtx, client)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt unavailable; continuing without publishing")
		} else {
			notifier = pub
			defer client.Disconnect(250)
		}
	}

	// Core service orchestrating provider and store.
	service := weather.NewService(weather.ServiceConfig{
		StationID:       cfg.StationID,
		Location:        cfg.Location,
		RetentionWindow: cfg.RetentionWindow,
		FetchTimeout:    cfg.FetchTimeout,
		Provider:        provider,
		Store:           st,
		Notifier:        notifier,
		Logger:          logger,
	})
	service.Prime(ctx)

	if cfg.RunOnce {
		return runOnce(ctx, service, logger)
	}

	// Scheduler that periodically polls the station and records yesterday.
	sched := scheduler.New(scheduler.Config{
		Location:   cfg.Location,
		Interval:   cfg.FetchInterval,
		RollupAt:   cfg.RollupAt,
		JobTimeout: 2 * cfg.FetchTimeout,
		Logger:     logger,
	}, service)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := newApp(service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	logger.Info().
		Str("port", cfg.Port).
		Str("station_id", cfg.StationID).
		Str("store", cfg.StoreBackend).
		Msg("weather-station-monitor started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	logger.Info().Msg("weather-station-monitor stopped")
	return nil
}

// runOnce performs one update and one rollup, the way a cron-driven
// invocation would. A failed update does not prevent the rollup.
func runOnce(ctx context.Context, service *weather.Service, logger zerolog.Logger) error {
	res, updateErr := service.Update(ctx)
	if updateErr != nil {
		logger.Error().Err(updateErr).Str("run_id", res.RunID).Msg("single update failed")
	} else {
		logger.Info().
			Str("run_id", res.RunID).
			Str("state", string(res.State)).
			Msg("single update finished")
	}

	_, rollupErr := service.Rollup(ctx)
	if rollupErr != nil {
		logger.Error().Err(rollupErr).Msg("single rollup failed")
	}
	return errors.Join(updateErr, rollupErr)
}

func openStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (weather.Store, func(), error) {
	switch cfg.StoreBackend {
	case "sqlite":
		db, err := store.OpenSQLite(ctx, store.SQLiteConfig{
			Path:     cfg.SQLitePath,
			Location: cfg.Location,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close sqlite store")
			}
		}, nil
	case "parquet":
		return store.NewParquetStore(store.ParquetConfig{
			SeriesPath: cfg.ParquetSeriesPath,
			DailyPath:  cfg.ParquetMonthlyPath,
			Location:   cfg.Location,
			Logger:     logger,
		}), func() {}, nil
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	default:
		return store.NewCSVStore(store.CSVConfig{
			SeriesPath: cfg.SeriesPath,
			DailyPath:  cfg.MonthlyPath,
			Location:   cfg.Location,
			Logger:     logger,
		}), func() {}, nil
	}
}

func newApp(service *weather.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
			"state":   service.StationState(),
		})
	})

	httpapi.RegisterRoutes(app, service)
	return app
}
