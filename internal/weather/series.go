package weather

import (
	"sort"
	"time"
)

// DefaultRetentionWindow is how much history a series keeps.
const DefaultRetentionWindow = 24 * time.Hour

// Contains reports whether a sample with timestamp ts is already recorded.
func (s Series) Contains(ts time.Time) bool {
	for _, o := range s {
		if o.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// Latest returns the most recent observation.
func (s Series) Latest() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}

// Range returns the observations between from and to (inclusive).
func (s Series) Range(from, to time.Time) Series {
	var out Series
	for _, o := range s {
		if !o.Timestamp.Before(from) && !o.Timestamp.After(to) {
			out = append(out, o)
		}
	}
	return out
}

// Clone returns a copy that shares no backing array with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Ingest merges obs into series. A timestamp that is already present leaves
// the series untouched and reports inserted=false.
func Ingest(series Series, obs Observation) (Series, bool) {
	if series.Contains(obs.Timestamp) {
		return series, false
	}

	out := make(Series, 0, len(series)+1)
	out = append(out, series...)
	out = append(out, obs)

	// Fetch time can jitter, so appends are not guaranteed to be in order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, true
}

// Trim drops every observation older than now-window.
func Trim(series Series, now time.Time, window time.Duration) Series {
	cutoff := now.Add(-window)

	out := make(Series, 0, len(series))
	for _, o := range series {
		if o.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// PrecipRates converts the cumulative since-midnight precipitation into the
// amount that fell between consecutive samples. Samples without a total are
// skipped. A drop in the total is the midnight reset, so the new total is the
// amount for that interval.
func PrecipRates(series Series) []PrecipRate {
	var (
		out  []PrecipRate
		prev *float64
	)
	for _, o := range series {
		if o.PrecipTotal == nil {
			continue
		}
		amount := 0.0
		if prev != nil {
			amount = *o.PrecipTotal - *prev
			if amount < 0 {
				amount = *o.PrecipTotal
			}
		}
		out = append(out, PrecipRate{Timestamp: o.Timestamp, Amount: amount})
		prev = o.PrecipTotal
	}
	return out
}

// Equal reports whether two series hold the same samples in the same order.
// Timestamps compare as instants, so the zone they are expressed in does not
// matter.
func (s Series) Equal(other Series) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Equal compares two observations field by field.
func (o Observation) Equal(other Observation) bool {
	if o.StationID != other.StationID || !o.Timestamp.Equal(other.Timestamp) {
		return false
	}
	pairs := [][2]*float64{
		{o.Temperature, other.Temperature},
		{o.DewPoint, other.DewPoint},
		{o.Humidity, other.Humidity},
		{o.Pressure, other.Pressure},
		{o.SolarRadiation, other.SolarRadiation},
		{o.UVIndex, other.UVIndex},
		{o.WindSpeed, other.WindSpeed},
		{o.WindDirection, other.WindDirection},
		{o.WindGust, other.WindGust},
		{o.PrecipTotal, other.PrecipTotal},
	}
	for _, p := range pairs {
		if !equalOptional(p[0], p[1]) {
			return false
		}
	}
	return true
}

func equalOptional(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
