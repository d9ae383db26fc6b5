package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel zerolog.Level

	// APIKey is the provider credential. An empty key is allowed; every
	// fetch then fails and the station reads Offline.
	APIKey string

	StationID string `validate:"required"`
	Location  *time.Location

	// RetentionWindow is how much history the series keeps.
	RetentionWindow time.Duration `validate:"min=1m"`

	// FetchInterval controls how often the station is polled.
	FetchInterval time.Duration `validate:"min=1m"`

	// FetchTimeout bounds one provider call.
	FetchTimeout time.Duration `validate:"min=1s"`

	// RollupAt is the HH:MM (station zone) at which yesterday's summary is
	// recorded.
	RollupAt string `validate:"datetime=15:04"`

	StoreBackend string `validate:"oneof=csv sqlite parquet memory"`
	SeriesPath   string `validate:"required_if=StoreBackend csv"`
	MonthlyPath  string `validate:"required_if=StoreBackend csv"`
	SQLitePath   string `validate:"required_if=StoreBackend sqlite"`

	ParquetSeriesPath  string `validate:"required_if=StoreBackend parquet"`
	ParquetMonthlyPath string `validate:"required_if=StoreBackend parquet"`

	Port string `validate:"required,numeric"`

	// RunOnce performs a single update and rollup and exits.
	RunOnce bool

	MQTTBroker   string `validate:"omitempty,url"`
	MQTTTopic    string
	MQTTClientID string
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.AppEnv = strings.TrimSpace(getenvDefault("APP_ENV", "dev"))

	level, err := zerolog.ParseLevel(strings.ToLower(getenvDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	cfg.APIKey = os.Getenv("WU_API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_KEY")
	}

	cfg.StationID = strings.TrimSpace(getenvDefault("STATION_ID", "ICURITIB28"))

	tz := getenvDefault("STATION_TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid STATION_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.RetentionWindow, err = getenvDuration("RETENTION_WINDOW", "24h"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.RollupAt = getenvDefault("ROLLUP_AT", "00:10")

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "csv"))
	cfg.SeriesPath = getenvDefault("SERIES_PATH", "weather_data.csv")
	cfg.MonthlyPath = getenvDefault("MONTHLY_PATH", "month_data.csv")
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "weather.db")
	cfg.ParquetSeriesPath = getenvDefault("PARQUET_SERIES_PATH", "weather_data.parquet")
	cfg.ParquetMonthlyPath = getenvDefault("PARQUET_MONTHLY_PATH", "month_data.parquet")

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.RunOnce = getenvBool("RUN_ONCE", false)

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "weather/"+cfg.StationID+"/state")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "weather-station-monitor")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
