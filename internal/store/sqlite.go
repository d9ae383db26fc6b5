package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

//go:embed sql/schema.sql
var schemaSQL string

const (
	selectObservationsSQL = `SELECT ts, temperature, precip, humidity, dew_point, radiation, uv_index, wind_speed, wind_dir, wind_gust, pressure FROM observations ORDER BY unix`
	insertObservationSQL  = `INSERT INTO observations (ts, unix, temperature, precip, humidity, dew_point, radiation, uv_index, wind_speed, wind_dir, wind_gust, pressure) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectDailySQL        = `SELECT date, min_temp, max_temp, avg_temp, precip FROM daily ORDER BY date`
	insertDailySQL        = `INSERT INTO daily (date, min_temp, max_temp, avg_temp, precip) VALUES (?, ?, ?, ?, ?)`
	upsertSchemaSQL       = `INSERT INTO meta (key, value) VALUES ('schema_version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	Path     string
	Location *time.Location
	Logger   zerolog.Logger
}

// SQLiteStore keeps the same two tables as the CSV files in one SQLite
// database. Saves replace a table's contents inside a single transaction.
type SQLiteStore struct {
	db     *sql.DB
	loc    *time.Location
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at cfg.Path.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	dsn, err := buildDSN(cfg.Path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer at a time is all the update cycle needs.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, upsertSchemaSQL, strconv.Itoa(SchemaVersion)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record schema version: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteStore{db: db, loc: loc, logger: cfg.Logger}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadSeries implements weather.Store.
func (s *SQLiteStore) LoadSeries(ctx context.Context) (weather.Series, error) {
	rows, err := s.db.QueryContext(ctx, selectObservationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error().Err(err).Msg("close observation rows")
		}
	}()

	var series weather.Series
	for rows.Next() {
		var (
			ts   string
			vals [10]sql.NullFloat64
		)
		if err := rows.Scan(&ts, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7], &vals[8], &vals[9]); err != nil {
			return nil, fmt.Errorf("%w: scan observation: %v", weather.ErrCorruptHistory, err)
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrCorruptHistory, err)
		}
		series = append(series, weather.Observation{
			Timestamp:      t,
			Temperature:    nullable(vals[0]),
			PrecipTotal:    nullable(vals[1]),
			Humidity:       nullable(vals[2]),
			DewPoint:       nullable(vals[3]),
			SolarRadiation: nullable(vals[4]),
			UVIndex:        nullable(vals[5]),
			WindSpeed:      nullable(vals[6]),
			WindDirection:  nullable(vals[7]),
			WindGust:       nullable(vals[8]),
			Pressure:       nullable(vals[9]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrCorruptHistory, err)
	}
	return series, nil
}

// SaveSeries implements weather.Store.
func (s *SQLiteStore) SaveSeries(ctx context.Context, series weather.Series) error {
	return s.replace(ctx, "observations", insertObservationSQL, len(series), func(stmt *sql.Stmt, i int) error {
		o := series[i]
		_, err := stmt.ExecContext(ctx,
			o.Timestamp.Format(weather.TimestampLayout),
			o.Timestamp.Unix(),
			o.Temperature, o.PrecipTotal, o.Humidity, o.DewPoint, o.SolarRadiation,
			o.UVIndex, o.WindSpeed, o.WindDirection, o.WindGust, o.Pressure,
		)
		return err
	})
}

// LoadDaily implements weather.Store.
func (s *SQLiteStore) LoadDaily(ctx context.Context) (weather.DailySeries, error) {
	rows, err := s.db.QueryContext(ctx, selectDailySQL)
	if err != nil {
		return nil, fmt.Errorf("query daily: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error().Err(err).Msg("close daily rows")
		}
	}()

	var daily weather.DailySeries
	for rows.Next() {
		var (
			date string
			vals [4]sql.NullFloat64
		)
		if err := rows.Scan(&date, &vals[0], &vals[1], &vals[2], &vals[3]); err != nil {
			return nil, fmt.Errorf("%w: scan daily: %v", weather.ErrCorruptHistory, err)
		}
		d, err := time.ParseInLocation(weather.DateLayout, date, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrCorruptHistory, err)
		}
		daily = append(daily, weather.DailyAggregate{
			Date:    d,
			MinTemp: nullable(vals[0]),
			MaxTemp: nullable(vals[1]),
			AvgTemp: nullable(vals[2]),
			Precip:  nullable(vals[3]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrCorruptHistory, err)
	}
	return daily, nil
}

// SaveDaily implements weather.Store.
func (s *SQLiteStore) SaveDaily(ctx context.Context, daily weather.DailySeries) error {
	return s.replace(ctx, "daily", insertDailySQL, len(daily), func(stmt *sql.Stmt, i int) error {
		agg := daily[i]
		_, err := stmt.ExecContext(ctx,
			agg.Date.Format(weather.DateLayout),
			agg.MinTemp, agg.MaxTemp, agg.AvgTemp, agg.Precip,
		)
		return err
	})
}

// replace empties table and inserts n rows in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, table, insertSQL string, n int, insert func(stmt *sql.Stmt, i int) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err = insert(stmt, i); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func buildDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	dir := filepath.Dir(path)
	if dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
