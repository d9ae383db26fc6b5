package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

// DefaultWundergroundURL is the weather.com PWS API base.
const DefaultWundergroundURL = "https://api.weather.com/v2/pws"

// WundergroundConfig configures a WundergroundProvider.
type WundergroundConfig struct {
	// APIKey is the single credential of the PWS API.
	APIKey string

	// BaseURL defaults to DefaultWundergroundURL.
	BaseURL string

	Client  *http.Client
	Backoff BackoffConfig
}

// WundergroundProvider implements weather.Provider for Weather Underground
// personal weather stations.
type WundergroundProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWundergroundProvider(cfg WundergroundConfig) *WundergroundProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultWundergroundURL
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	bo := cfg.Backoff
	if bo.InitialInterval <= 0 {
		bo = DefaultBackoff
	}

	return &WundergroundProvider{
		name:    "wunderground",
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: bo,
		},
		circuit: newCircuitBreaker("wunderground"),
	}
}

func (p *WundergroundProvider) Name() string {
	return p.name
}

type currentPayload struct {
	Observations []struct {
		StationID      string   `json:"stationID"`
		ObsTimeUtc     string   `json:"obsTimeUtc"`
		Epoch          int64    `json:"epoch"`
		Humidity       *float64 `json:"humidity"`
		SolarRadiation *float64 `json:"solarRadiation"`
		UV             *float64 `json:"uv"`
		WindDir        *float64 `json:"winddir"`
		Metric         struct {
			Temp        *float64 `json:"temp"`
			Dewpt       *float64 `json:"dewpt"`
			WindSpeed   *float64 `json:"windSpeed"`
			WindGust    *float64 `json:"windGust"`
			Pressure    *float64 `json:"pressure"`
			PrecipTotal *float64 `json:"precipTotal"`
		} `json:"metric"`
	} `json:"observations"`
}

type dailyPayload struct {
	Observations []struct {
		StationID string `json:"stationID"`
		Metric    struct {
			TempHigh    *float64 `json:"tempHigh"`
			TempLow     *float64 `json:"tempLow"`
			TempAvg     *float64 `json:"tempAvg"`
			PrecipTotal *float64 `json:"precipTotal"`
		} `json:"metric"`
	} `json:"observations"`
}

// FetchObservation returns the station's current observation. A reading
// without temperature counts as a failed fetch.
func (p *WundergroundProvider) FetchObservation(ctx context.Context, stationID string) (weather.Observation, error) {
	const op = "wunderground current"

	var payload currentPayload
	if err := p.get(ctx, op, "/observations/current", stationID, nil, &payload); err != nil {
		return weather.Observation{}, err
	}

	if len(payload.Observations) == 0 {
		return weather.Observation{}, &weather.FetchError{Kind: weather.FetchMissingField, Op: op, Err: errors.New("no observations in response")}
	}
	o := payload.Observations[0]
	if o.Metric.Temp == nil {
		return weather.Observation{}, &weather.FetchError{Kind: weather.FetchMissingField, Op: op, Err: errors.New("metric.temp is missing")}
	}

	id := o.StationID
	if id == "" {
		id = stationID
	}

	return weather.Observation{
		StationID:      id,
		Timestamp:      observationTime(o.ObsTimeUtc, o.Epoch),
		Temperature:    o.Metric.Temp,
		DewPoint:       o.Metric.Dewpt,
		Humidity:       o.Humidity,
		Pressure:       o.Metric.Pressure,
		SolarRadiation: o.SolarRadiation,
		UVIndex:        o.UV,
		WindSpeed:      o.Metric.WindSpeed,
		WindDirection:  o.WindDir,
		WindGust:       o.Metric.WindGust,
		PrecipTotal:    o.Metric.PrecipTotal,
	}, nil
}

// FetchDailySummary returns the provider's summary of date.
func (p *WundergroundProvider) FetchDailySummary(ctx context.Context, stationID string, date time.Time) (weather.DailyAggregate, error) {
	const op = "wunderground daily"

	extra := url.Values{}
	extra.Set("date", date.Format("20060102"))

	var payload dailyPayload
	if err := p.get(ctx, op, "/history/daily", stationID, extra, &payload); err != nil {
		return weather.DailyAggregate{}, err
	}

	if len(payload.Observations) == 0 {
		return weather.DailyAggregate{}, &weather.FetchError{Kind: weather.FetchMissingField, Op: op, Err: errors.New("no summary in response")}
	}
	m := payload.Observations[0].Metric
	if m.TempLow == nil && m.TempHigh == nil && m.TempAvg == nil && m.PrecipTotal == nil {
		return weather.DailyAggregate{}, &weather.FetchError{Kind: weather.FetchMissingField, Op: op, Err: errors.New("summary carries no values")}
	}

	return weather.DailyAggregate{
		Date:    date,
		MinTemp: m.TempLow,
		MaxTemp: m.TempHigh,
		AvgTemp: m.TempAvg,
		Precip:  m.PrecipTotal,
	}, nil
}

func (p *WundergroundProvider) get(ctx context.Context, op, path, stationID string, extra url.Values, out interface{}) error {
	if p.apiKey == "" {
		return &weather.FetchError{Kind: weather.FetchConfig, Op: op, Err: errors.New("wunderground api key is not configured")}
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("stationId", stationID)
		values.Set("format", "json")
		values.Set("units", "m")
		values.Set("numericPrecision", "decimal")
		values.Set("apiKey", p.apiKey)
		for k, v := range extra {
			values[k] = v
		}

		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return classify(op, err)
	}
	defer resp.Body.Close()

	// The API answers 204 when the station has not reported recently.
	if resp.StatusCode == http.StatusNoContent {
		return &weather.FetchError{Kind: weather.FetchMissingField, Op: op, Err: errors.New("station returned no content")}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &weather.FetchError{Kind: weather.FetchDecode, Op: op, Err: err}
	}
	return nil
}

// observationTime prefers the UTC timestamp string and falls back to the
// epoch. A zero result lets the caller stamp the sample with its own clock.
func observationTime(obsTimeUtc string, epoch int64) time.Time {
	if obsTimeUtc != "" {
		if ts, err := time.Parse(time.RFC3339, obsTimeUtc); err == nil {
			return ts
		}
	}
	if epoch > 0 {
		return time.Unix(epoch, 0).UTC()
	}
	return time.Time{}
}
