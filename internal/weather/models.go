package weather

import (
	"time"
)

// Persisted layouts. Timestamps carry an explicit UTC offset so a reload is
// unambiguous across offset changes.
const (
	TimestampLayout = "2006-01-02 15:04:05-0700"
	DateLayout      = "2006-01-02"
)

// StationState is the derived liveness of the station.
type StationState string

const (
	StateOnline  StationState = "Online"
	StateOffline StationState = "Offline"
)

// Observation is a single reading from a personal weather station.
// Numeric fields are nil when the provider omitted them; a nil field is never
// the same as zero.
type Observation struct {
	StationID string    `json:"stationId"`
	Timestamp time.Time `json:"timestamp"` // station zone, minute resolution

	Temperature    *float64 `json:"temperatureC"`
	DewPoint       *float64 `json:"dewPointC"`
	Humidity       *float64 `json:"humidityPercent"`
	Pressure       *float64 `json:"pressureHpa"`
	SolarRadiation *float64 `json:"solarRadiationWm2"`
	UVIndex        *float64 `json:"uvIndex"`
	WindSpeed      *float64 `json:"windSpeedKmh"`
	WindDirection  *float64 `json:"windDirDeg"`
	WindGust       *float64 `json:"windGustKmh"`

	// PrecipTotal accumulates since local midnight.
	PrecipTotal *float64 `json:"precipTotalMm"`
}

// Series is the timestamp-ordered history of one station.
type Series []Observation

// DailyAggregate is the provider-side summary of one calendar day.
type DailyAggregate struct {
	Date    time.Time `json:"date"` // midnight in the station zone
	MinTemp *float64  `json:"minTempC"`
	MaxTemp *float64  `json:"maxTempC"`
	AvgTemp *float64  `json:"avgTempC"`
	Precip  *float64  `json:"precipMm"`
}

// DailySeries is the date-ordered collection of daily aggregates.
type DailySeries []DailyAggregate

// MonthlyStats summarises the daily aggregates of one calendar month.
// Statistic fields are nil when no day in the view carried the input value.
type MonthlyStats struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Days        int        `json:"days"`
	MinOfMins   *float64   `json:"minOfMinsC"`
	MaxOfMaxes  *float64   `json:"maxOfMaxesC"`
	MeanOfMins  *float64   `json:"meanOfMinsC"`
	MeanOfMaxes *float64   `json:"meanOfMaxesC"`
	PrecipTotal *float64   `json:"precipTotalMm"`
}

// PrecipRate is the rainfall that fell between a sample and the one before it.
type PrecipRate struct {
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amountMm"`
}

// Snapshot is the read-only view handed to renderers.
type Snapshot struct {
	StationID string       `json:"stationId"`
	State     StationState `json:"state"`

	// Inserted reports whether the last update appended a new sample. It is
	// kept apart from State so a stricter liveness policy can replace the
	// duplicate-timestamp heuristic.
	Inserted  bool         `json:"inserted"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Latest    *Observation `json:"latest"`
	Count     int          `json:"count"`
}

// Float returns a pointer to v. Handy for building optional fields.
func Float(v float64) *float64 {
	return &v
}
