package weather

import (
	"sort"
	"time"
)

// Day truncates t to midnight of its calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// sameDate compares calendar dates as written, ignoring clock and zone.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Find returns the aggregate recorded for date.
func (d DailySeries) Find(date time.Time) (DailyAggregate, bool) {
	for _, agg := range d {
		if sameDate(agg.Date, date) {
			return agg, true
		}
	}
	return DailyAggregate{}, false
}

// IngestDay records agg unless its date is already present. Recorded days are
// never updated.
func IngestDay(daily DailySeries, agg DailyAggregate) (DailySeries, bool) {
	if _, ok := daily.Find(agg.Date); ok {
		return daily, false
	}

	out := make(DailySeries, 0, len(daily)+1)
	out = append(out, daily...)
	out = append(out, agg)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, true
}

// MonthView keeps only the days that fall in the given calendar month. This
// is what resets the running extremes when a new month starts; the full
// history stays in the persisted file.
func MonthView(daily DailySeries, year int, month time.Month) DailySeries {
	var out DailySeries
	for _, agg := range daily {
		if agg.Date.Year() == year && agg.Date.Month() == month {
			out = append(out, agg)
		}
	}
	return out
}

// Summarize computes the monthly statistics of a month view. Days missing a
// value do not contribute to that statistic.
func Summarize(year int, month time.Month, view DailySeries) MonthlyStats {
	stats := MonthlyStats{
		Year:  year,
		Month: month,
		Days:  len(view),
	}

	var (
		sumMin, sumMax float64
		nMin, nMax     int
		precip         float64
		nPrecip        int
	)

	for _, agg := range view {
		if agg.MinTemp != nil {
			v := *agg.MinTemp
			if stats.MinOfMins == nil || v < *stats.MinOfMins {
				stats.MinOfMins = Float(v)
			}
			sumMin += v
			nMin++
		}
		if agg.MaxTemp != nil {
			v := *agg.MaxTemp
			if stats.MaxOfMaxes == nil || v > *stats.MaxOfMaxes {
				stats.MaxOfMaxes = Float(v)
			}
			sumMax += v
			nMax++
		}
		if agg.Precip != nil {
			precip += *agg.Precip
			nPrecip++
		}
	}

	if nMin > 0 {
		stats.MeanOfMins = Float(sumMin / float64(nMin))
	}
	if nMax > 0 {
		stats.MeanOfMaxes = Float(sumMax / float64(nMax))
	}
	if nPrecip > 0 {
		stats.PrecipTotal = Float(precip)
	}
	return stats
}
