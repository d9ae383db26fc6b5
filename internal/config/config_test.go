package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "WU_API_KEY", "API_KEY", "STATION_ID", "STATION_TIMEZONE",
	"RETENTION_WINDOW", "FETCH_INTERVAL", "FETCH_TIMEOUT", "ROLLUP_AT", "STORE_BACKEND",
	"SERIES_PATH", "MONTHLY_PATH", "SQLITE_PATH", "PARQUET_SERIES_PATH", "PARQUET_MONTHLY_PATH", "PORT", "RUN_ONCE",
	"MQTT_BROKER", "MQTT_TOPIC", "MQTT_CLIENT_ID",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("STATION_TIMEZONE", "UTC")
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "ICURITIB28", cfg.StationID)
	assert.Equal(t, 24*time.Hour, cfg.RetentionWindow)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "00:10", cfg.RollupAt)
	assert.Equal(t, "csv", cfg.StoreBackend)
	assert.Equal(t, "weather_data.csv", cfg.SeriesPath)
	assert.Equal(t, "month_data.csv", cfg.MonthlyPath)
	assert.Equal(t, "weather_data.parquet", cfg.ParquetSeriesPath)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.RunOnce)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, "weather/ICURITIB28/state", cfg.MQTTTopic)
}

func TestLoadOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("WU_API_KEY", "primary")
	t.Setenv("API_KEY", "fallback")
	t.Setenv("STATION_ID", "IPARAN12")
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/wsm/weather.db")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "primary", cfg.APIKey)
	assert.Equal(t, "IPARAN12", cfg.StationID)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "weather/IPARAN12/state", cfg.MQTTTopic)
}

func TestLoadAPIKeyFallback(t *testing.T) {
	cleanEnv(t)
	t.Setenv("API_KEY", "fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"app env", "APP_ENV", "staging"},
		{"log level", "LOG_LEVEL", "loud"},
		{"timezone", "STATION_TIMEZONE", "Mars/Olympus"},
		{"duration", "FETCH_INTERVAL", "often"},
		{"interval too short", "FETCH_INTERVAL", "10s"},
		{"rollup time", "ROLLUP_AT", "25:00"},
		{"store backend", "STORE_BACKEND", "postgres"},
		{"port", "PORT", "http"},
		{"broker url", "MQTT_BROKER", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
