package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-station-monitor/internal/config"
)

// New builds the process logger. dev writes human-readable lines, prod writes
// JSON.
func New(cfg *config.AppConfig, version, appName string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg *config.AppConfig, version, appName string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.AppEnv == "dev" {
		out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		return zerolog.New(out).
			Level(cfg.LogLevel).
			With().
			Timestamp().
			Str("app", appName).
			Str("version", version).
			Str("env", cfg.AppEnv).
			Logger()
	}

	return zerolog.New(w).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("app", appName).
		Str("version", version).
		Str("env", cfg.AppEnv).
		Logger()
}
