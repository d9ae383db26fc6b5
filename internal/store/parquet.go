package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

const parquetBatchSize = 1024

// observationRow matches the Parquet schema of the series file. The timestamp
// is kept both as text with its offset and as unix seconds for tools that
// only read numeric columns.
type observationRow struct {
	Timestamp   string   `parquet:"timestamp"`
	Unix        int64    `parquet:"unix"`
	Temperature *float64 `parquet:"temperature,optional"`
	Precip      *float64 `parquet:"precip,optional"`
	Humidity    *float64 `parquet:"humidity,optional"`
	DewPoint    *float64 `parquet:"dew_point,optional"`
	Radiation   *float64 `parquet:"radiation,optional"`
	UVIndex     *float64 `parquet:"uv_index,optional"`
	WindSpeed   *float64 `parquet:"wind_speed,optional"`
	WindDir     *float64 `parquet:"wind_dir,optional"`
	WindGust    *float64 `parquet:"wind_gust,optional"`
	Pressure    *float64 `parquet:"pressure,optional"`
}

// dailyRow matches the Parquet schema of the monthly file.
type dailyRow struct {
	Date    string   `parquet:"date"`
	MinTemp *float64 `parquet:"min_temp,optional"`
	MaxTemp *float64 `parquet:"max_temp,optional"`
	AvgTemp *float64 `parquet:"avg_temp,optional"`
	Precip  *float64 `parquet:"precip,optional"`
}

// ParquetConfig configures a ParquetStore.
type ParquetConfig struct {
	SeriesPath string
	DailyPath  string
	Location   *time.Location
	Logger     zerolog.Logger
}

// ParquetStore keeps the same two tables as CSVStore in Parquet files, which
// the analysis notebooks load without parsing text.
type ParquetStore struct {
	seriesPath string
	dailyPath  string
	loc        *time.Location
	logger     zerolog.Logger
}

// NewParquetStore creates a new ParquetStore.
func NewParquetStore(cfg ParquetConfig) *ParquetStore {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ParquetStore{
		seriesPath: cfg.SeriesPath,
		dailyPath:  cfg.DailyPath,
		loc:        loc,
		logger:     cfg.Logger,
	}
}

// LoadSeries implements weather.Store.
func (s *ParquetStore) LoadSeries(_ context.Context) (weather.Series, error) {
	rows, err := readParquet[observationRow](s.seriesPath)
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	series := make(weather.Series, 0, len(rows))
	for n, r := range rows {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			return nil, corrupt(s.seriesPath, fmt.Errorf("row %d: %w", n, err))
		}
		series = append(series, weather.Observation{
			Timestamp:      ts,
			Temperature:    r.Temperature,
			PrecipTotal:    r.Precip,
			Humidity:       r.Humidity,
			DewPoint:       r.DewPoint,
			SolarRadiation: r.Radiation,
			UVIndex:        r.UVIndex,
			WindSpeed:      r.WindSpeed,
			WindDirection:  r.WindDir,
			WindGust:       r.WindGust,
			Pressure:       r.Pressure,
		})
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return dedupeSeries(series), nil
}

// SaveSeries implements weather.Store.
func (s *ParquetStore) SaveSeries(_ context.Context, series weather.Series) error {
	rows := make([]observationRow, 0, len(series))
	for _, o := range series {
		rows = append(rows, observationRow{
			Timestamp:   o.Timestamp.Format(weather.TimestampLayout),
			Unix:        o.Timestamp.Unix(),
			Temperature: o.Temperature,
			Precip:      o.PrecipTotal,
			Humidity:    o.Humidity,
			DewPoint:    o.DewPoint,
			Radiation:   o.SolarRadiation,
			UVIndex:     o.UVIndex,
			WindSpeed:   o.WindSpeed,
			WindDir:     o.WindDirection,
			WindGust:    o.WindGust,
			Pressure:    o.Pressure,
		})
	}
	return writeParquet(s.seriesPath, rows)
}

// LoadDaily implements weather.Store.
func (s *ParquetStore) LoadDaily(_ context.Context) (weather.DailySeries, error) {
	rows, err := readParquet[dailyRow](s.dailyPath)
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	var daily weather.DailySeries
	for n, r := range rows {
		date, err := time.ParseInLocation(weather.DateLayout, r.Date, s.loc)
		if err != nil {
			return nil, corrupt(s.dailyPath, fmt.Errorf("row %d: %w", n, err))
		}
		daily, _ = weather.IngestDay(daily, weather.DailyAggregate{
			Date:    date,
			MinTemp: r.MinTemp,
			MaxTemp: r.MaxTemp,
			AvgTemp: r.AvgTemp,
			Precip:  r.Precip,
		})
	}
	return daily, nil
}

// SaveDaily implements weather.Store.
func (s *ParquetStore) SaveDaily(_ context.Context, daily weather.DailySeries) error {
	rows := make([]dailyRow, 0, len(daily))
	for _, agg := range daily {
		rows = append(rows, dailyRow{
			Date:    agg.Date.Format(weather.DateLayout),
			MinTemp: agg.MinTemp,
			MaxTemp: agg.MaxTemp,
			AvgTemp: agg.AvgTemp,
			Precip:  agg.Precip,
		})
	}
	return writeParquet(s.dailyPath, rows)
}

// readParquet returns every row of path. Absent and empty files return no rows
// and no error.
func readParquet[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, corrupt(path, err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	var out []T
	buf := make([]T, parquetBatchSize)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, corrupt(path, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

func writeParquet[T any](path string, rows []T) error {
	return replaceFile(path, func(w io.Writer) error {
		writer := parquet.NewGenericWriter[T](w)
		if _, err := writer.Write(rows); err != nil {
			return err
		}
		return writer.Close()
	})
}
