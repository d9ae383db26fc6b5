package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

// SchemaVersion is written as the first line of every file this package
// saves. Files without the tag are the legacy layouts and load by header name.
const SchemaVersion = 2

const schemaTag = "#schema="

// SeriesColumns is the stable column order of the observation file.
var SeriesColumns = []string{
	"Timestamp", "Temperature", "Precip", "Humidity", "DewPoint", "Radiation",
	"UVIndex", "WindSpeed", "WindDir", "WindGust", "Pressure",
}

// DailyColumns is the stable column order of the monthly file.
var DailyColumns = []string{"Date", "MinTemp", "MaxTemp", "AvgTemp", "Precip"}

// Accepted timestamp layouts, newest first. The second is what pandas writes
// for zoned timestamps when no date_format is given.
var timestampLayouts = []string{
	weather.TimestampLayout,
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

// CSVConfig configures a CSVStore.
type CSVConfig struct {
	SeriesPath string
	DailyPath  string

	// Location is used for dates, which carry no offset.
	Location *time.Location

	Logger zerolog.Logger
}

// CSVStore keeps the series and the daily aggregates in two CSV files. Every
// save rewrites the whole file through a temporary file and a rename.
type CSVStore struct {
	seriesPath string
	dailyPath  string
	loc        *time.Location
	logger     zerolog.Logger
}

// NewCSVStore creates a new CSVStore.
func NewCSVStore(cfg CSVConfig) *CSVStore {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &CSVStore{
		seriesPath: cfg.SeriesPath,
		dailyPath:  cfg.DailyPath,
		loc:        loc,
		logger:     cfg.Logger,
	}
}

// LoadSeries reads the observation file. An absent or empty file yields an
// empty series.
func (s *CSVStore) LoadSeries(_ context.Context) (weather.Series, error) {
	records, err := s.read(s.seriesPath)
	if err != nil || len(records) == 0 {
		return nil, err
	}

	cols := indexColumns(records[0])
	tsIdx, ok := cols["timestamp"]
	if !ok {
		return nil, corrupt(s.seriesPath, errors.New("missing Timestamp column"))
	}

	series := make(weather.Series, 0, len(records)-1)
	for n, rec := range records[1:] {
		ts, err := parseTimestamp(rec[tsIdx])
		if err != nil {
			return nil, corrupt(s.seriesPath, fmt.Errorf("row %d: %w", n+2, err))
		}
		obs := weather.Observation{Timestamp: ts}

		fields := []struct {
			col string
			dst **float64
		}{
			{"temperature", &obs.Temperature},
			{"precip", &obs.PrecipTotal},
			{"humidity", &obs.Humidity},
			{"dewpoint", &obs.DewPoint},
			{"radiation", &obs.SolarRadiation},
			{"uvindex", &obs.UVIndex},
			{"windspeed", &obs.WindSpeed},
			{"winddir", &obs.WindDirection},
			{"windgust", &obs.WindGust},
			{"pressure", &obs.Pressure},
		}
		for _, f := range fields {
			idx, ok := cols[f.col]
			if !ok {
				continue
			}
			v, err := parseOptional(rec[idx])
			if err != nil {
				return nil, corrupt(s.seriesPath, fmt.Errorf("row %d %s: %w", n+2, f.col, err))
			}
			*f.dst = v
		}
		series = append(series, obs)
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return dedupeSeries(series), nil
}

// SaveSeries rewrites the observation file.
func (s *CSVStore) SaveSeries(_ context.Context, series weather.Series) error {
	rows := make([][]string, 0, len(series)+1)
	rows = append(rows, SeriesColumns)
	for _, o := range series {
		rows = append(rows, []string{
			o.Timestamp.Format(weather.TimestampLayout),
			formatOptional(o.Temperature),
			formatOptional(o.PrecipTotal),
			formatOptional(o.Humidity),
			formatOptional(o.DewPoint),
			formatOptional(o.SolarRadiation),
			formatOptional(o.UVIndex),
			formatOptional(o.WindSpeed),
			formatOptional(o.WindDirection),
			formatOptional(o.WindGust),
			formatOptional(o.Pressure),
		})
	}
	return writeAtomic(s.seriesPath, rows)
}

// LoadDaily reads the monthly file, which keeps every recorded day.
func (s *CSVStore) LoadDaily(_ context.Context) (weather.DailySeries, error) {
	records, err := s.read(s.dailyPath)
	if err != nil || len(records) == 0 {
		return nil, err
	}

	cols := indexColumns(records[0])
	dateIdx, ok := cols["date"]
	if !ok {
		return nil, corrupt(s.dailyPath, errors.New("missing Date column"))
	}

	var daily weather.DailySeries
	for n, rec := range records[1:] {
		date, err := time.ParseInLocation(weather.DateLayout, strings.TrimSpace(rec[dateIdx]), s.loc)
		if err != nil {
			return nil, corrupt(s.dailyPath, fmt.Errorf("row %d: %w", n+2, err))
		}
		agg := weather.DailyAggregate{Date: date}

		fields := []struct {
			col string
			dst **float64
		}{
			{"mintemp", &agg.MinTemp},
			{"maxtemp", &agg.MaxTemp},
			{"avgtemp", &agg.AvgTemp},
			{"precip", &agg.Precip},
		}
		for _, f := range fields {
			idx, ok := cols[f.col]
			if !ok {
				continue
			}
			v, err := parseOptional(rec[idx])
			if err != nil {
				return nil, corrupt(s.dailyPath, fmt.Errorf("row %d %s: %w", n+2, f.col, err))
			}
			*f.dst = v
		}

		// IngestDay keeps the first row for a date and the order by date.
		daily, _ = weather.IngestDay(daily, agg)
	}
	return daily, nil
}

// SaveDaily rewrites the monthly file.
func (s *CSVStore) SaveDaily(_ context.Context, daily weather.DailySeries) error {
	rows := make([][]string, 0, len(daily)+1)
	rows = append(rows, DailyColumns)
	for _, agg := range daily {
		rows = append(rows, []string{
			agg.Date.Format(weather.DateLayout),
			formatOptional(agg.MinTemp),
			formatOptional(agg.MaxTemp),
			formatOptional(agg.AvgTemp),
			formatOptional(agg.Precip),
		})
	}
	return writeAtomic(s.dailyPath, rows)
}

// read returns the CSV records of path, header first. Absent and empty files
// return no records and no error.
func (s *CSVStore) read(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if v, ok := schemaVersion(data); ok && v > SchemaVersion {
		s.logger.Warn().
			Str("path", path).
			Int("version", v).
			Int("supported", SchemaVersion).
			Msg("file written by a newer schema; loading known columns only")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		return nil, corrupt(path, err)
	}
	return records, nil
}

func schemaVersion(data []byte) (int, bool) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte(schemaTag)) {
		return 0, false
	}
	v, err := strconv.Atoi(string(line[len(schemaTag):]))
	if err != nil {
		return 0, false
	}
	return v, true
}

func writeAtomic(path string, rows [][]string) error {
	return replaceFile(path, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "%s%d\n", schemaTag, SchemaVersion); err != nil {
			return err
		}
		return csv.NewWriter(w).WriteAll(rows)
	})
}

// indexColumns maps normalised header names to their position. Legacy files
// use spaced names such as "Dew Point" and "UV Index".
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, firstErr)
}

func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("value %q is not finite", s)
	}
	return &v, nil
}

func formatOptional(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// dedupeSeries keeps the first sample for each timestamp of a sorted series.
func dedupeSeries(series weather.Series) weather.Series {
	out := series[:0]
	for _, o := range series {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(o.Timestamp) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func corrupt(path string, err error) error {
	return fmt.Errorf("%s: %w: %v", path, weather.ErrCorruptHistory, err)
}
