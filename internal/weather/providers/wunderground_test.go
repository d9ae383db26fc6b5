package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

const currentBody = `{
  "observations": [{
    "stationID": "ICURITIB28",
    "obsTimeUtc": "2024-03-10T14:55:03Z",
    "obsTimeLocal": "2024-03-10 11:55:03",
    "epoch": 1710082503,
    "solarRadiation": 412.7,
    "uv": 4.0,
    "winddir": 135,
    "humidity": 68.0,
    "metric": {
      "temp": 21.4,
      "heatIndex": 21.4,
      "dewpt": 15.2,
      "windChill": 21.4,
      "windSpeed": 7.2,
      "windGust": 12.6,
      "pressure": 1013.55,
      "precipRate": 0.0,
      "precipTotal": 0.25,
      "elev": 935.0
    }
  }]
}`

const dailyBody = `{
  "observations": [{
    "stationID": "ICURITIB28",
    "obsTimeLocal": "2024-03-09 23:59:58",
    "metric": {
      "tempHigh": 27.3,
      "tempLow": 14.1,
      "tempAvg": 20.2,
      "precipTotal": 3.1
    }
  }]
}`

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*WundergroundProvider, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewWundergroundProvider(WundergroundConfig{
		APIKey:  "secret",
		BaseURL: srv.URL,
		Client:  srv.Client(),
		Backoff: fastBackoff,
	})
	return p, &calls
}

func TestFetchObservation(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations/current", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ICURITIB28", q.Get("stationId"))
		assert.Equal(t, "m", q.Get("units"))
		assert.Equal(t, "decimal", q.Get("numericPrecision"))
		assert.Equal(t, "secret", q.Get("apiKey"))
		_, _ = w.Write([]byte(currentBody))
	})

	obs, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.NoError(t, err)

	assert.Equal(t, "ICURITIB28", obs.StationID)
	assert.True(t, obs.Timestamp.Equal(time.Date(2024, time.March, 10, 14, 55, 3, 0, time.UTC)))
	assert.Equal(t, 21.4, *obs.Temperature)
	assert.Equal(t, 15.2, *obs.DewPoint)
	assert.Equal(t, 68.0, *obs.Humidity)
	assert.Equal(t, 1013.55, *obs.Pressure)
	assert.Equal(t, 412.7, *obs.SolarRadiation)
	assert.Equal(t, 4.0, *obs.UVIndex)
	assert.Equal(t, 7.2, *obs.WindSpeed)
	assert.Equal(t, 135.0, *obs.WindDirection)
	assert.Equal(t, 12.6, *obs.WindGust)
	assert.Equal(t, 0.25, *obs.PrecipTotal)
}

func TestFetchObservationMissingTemperature(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[{"stationID":"ICURITIB28","humidity":68,"metric":{"temp":null}}]}`))
	})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchMissingField, weather.FetchKindOf(err))
}

func TestFetchObservationOptionalFieldsMissing(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[{"epoch":1710082503,"metric":{"temp":21.4}}]}`))
	})

	obs, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.NoError(t, err)
	assert.Equal(t, "ICURITIB28", obs.StationID)
	assert.Equal(t, int64(1710082503), obs.Timestamp.Unix())
	assert.Nil(t, obs.Humidity)
	assert.Nil(t, obs.PrecipTotal)
}

func TestFetchObservationNoContent(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchMissingField, weather.FetchKindOf(err))
}

func TestFetchObservationBadJSON(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchDecode, weather.FetchKindOf(err))
}

func TestFetchObservationRetriesServerErrors(t *testing.T) {
	var n int32
	p, calls := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(currentBody))
	})

	obs, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.NoError(t, err)
	assert.Equal(t, 21.4, *obs.Temperature)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestFetchObservationGivesUpOnServerErrors(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchStatus, weather.FetchKindOf(err))
	assert.Equal(t, int32(fastBackoff.MaxRetries+1), atomic.LoadInt32(calls))
}

func TestFetchObservationClientErrorIsNotRetried(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchStatus, weather.FetchKindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchObservationNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewWundergroundProvider(WundergroundConfig{APIKey: "secret", BaseURL: url, Backoff: fastBackoff})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchNetwork, weather.FetchKindOf(err))
}

func TestFetchWithoutAPIKey(t *testing.T) {
	p := NewWundergroundProvider(WundergroundConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := p.FetchObservation(context.Background(), "ICURITIB28")
	require.Error(t, err)
	assert.Equal(t, weather.FetchConfig, weather.FetchKindOf(err))
}

func TestFetchDailySummary(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/daily", r.URL.Path)
		assert.Equal(t, "20240309", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(dailyBody))
	})

	date := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.FixedZone("-03", -3*60*60))
	agg, err := p.FetchDailySummary(context.Background(), "ICURITIB28", date)
	require.NoError(t, err)

	assert.True(t, agg.Date.Equal(date))
	assert.Equal(t, 14.1, *agg.MinTemp)
	assert.Equal(t, 27.3, *agg.MaxTemp)
	assert.Equal(t, 20.2, *agg.AvgTemp)
	assert.Equal(t, 3.1, *agg.Precip)
}

func TestFetchDailySummaryEmpty(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[]}`))
	})

	_, err := p.FetchDailySummary(context.Background(), "ICURITIB28", time.Now())
	require.Error(t, err)
	assert.Equal(t, weather.FetchMissingField, weather.FetchKindOf(err))
}
