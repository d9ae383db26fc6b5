package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, saoPaulo)
}

func day(d time.Time, minT, maxT, precip float64) DailyAggregate {
	return DailyAggregate{Date: d, MinTemp: Float(minT), MaxTemp: Float(maxT), Precip: Float(precip)}
}

func TestDay(t *testing.T) {
	ts := time.Date(2024, time.March, 11, 1, 30, 0, 0, time.UTC)

	got := Day(ts, saoPaulo)

	assert.Equal(t, date(2024, time.March, 10), got, "01:30 UTC is still the 10th at -03")
}

func TestIngestDayRecordsEachDateOnce(t *testing.T) {
	var daily DailySeries

	daily, inserted := IngestDay(daily, day(date(2024, time.March, 2), 15, 25, 1))
	require.True(t, inserted)

	daily, inserted = IngestDay(daily, day(date(2024, time.March, 1), 14, 24, 0))
	require.True(t, inserted)

	daily, inserted = IngestDay(daily, day(date(2024, time.March, 2), 0, 0, 0))
	assert.False(t, inserted)

	require.Len(t, daily, 2)
	assert.Equal(t, date(2024, time.March, 1), daily[0].Date)
	assert.Equal(t, 15.0, *daily[1].MinTemp, "recorded day is never updated")
}

func TestMonthViewSplitsMonths(t *testing.T) {
	daily := DailySeries{
		day(date(2024, time.January, 30), 10, 20, 0),
		day(date(2024, time.January, 31), 11, 21, 0),
		day(date(2024, time.February, 1), 12, 22, 0),
	}

	jan := MonthView(daily, 2024, time.January)
	feb := MonthView(daily, 2024, time.February)

	assert.Len(t, jan, 2)
	require.Len(t, feb, 1)
	assert.Equal(t, date(2024, time.February, 1), feb[0].Date)
}

func TestMonthViewYearBoundary(t *testing.T) {
	daily := DailySeries{
		day(date(2023, time.December, 31), 18, 30, 2),
		day(date(2024, time.January, 1), 17, 29, 0),
	}

	assert.Len(t, MonthView(daily, 2023, time.December), 1)
	assert.Len(t, MonthView(daily, 2024, time.January), 1)
	assert.Empty(t, MonthView(daily, 2024, time.December))
}

func TestSummarize(t *testing.T) {
	view := DailySeries{
		day(date(2024, time.March, 1), 10, 20, 1),
		day(date(2024, time.March, 2), 12, 26, 2.5),
		{Date: date(2024, time.March, 3), MaxTemp: Float(23)},
	}

	stats := Summarize(2024, time.March, view)

	assert.Equal(t, 3, stats.Days)
	require.NotNil(t, stats.MinOfMins)
	assert.Equal(t, 10.0, *stats.MinOfMins)
	require.NotNil(t, stats.MaxOfMaxes)
	assert.Equal(t, 26.0, *stats.MaxOfMaxes)
	assert.InDelta(t, 11.0, *stats.MeanOfMins, 1e-9, "missing minimum does not count")
	assert.InDelta(t, 23.0, *stats.MeanOfMaxes, 1e-9)
	assert.InDelta(t, 3.5, *stats.PrecipTotal, 1e-9)
}

func TestSummarizeEmptyMonth(t *testing.T) {
	stats := Summarize(2024, time.April, nil)

	assert.Equal(t, 0, stats.Days)
	assert.Nil(t, stats.MinOfMins)
	assert.Nil(t, stats.MaxOfMaxes)
	assert.Nil(t, stats.MeanOfMins)
	assert.Nil(t, stats.MeanOfMaxes)
	assert.Nil(t, stats.PrecipTotal)
}
