package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-station-monitor/internal/weather"
)

var validate = validator.New()

// Reader is the read-only view the API serves. It never writes back.
type Reader interface {
	Snapshot() weather.Snapshot
	CurrentSeries() weather.Series
	LatestObservation() (weather.Observation, error)
	MonthlySummary() weather.MonthlyStats
	Yesterday() (weather.DailyAggregate, error)
	GetRange(from, to time.Time) (weather.Series, error)
	PrecipRates() []weather.PrecipRate
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reader Reader) {
	v1 := app.Group("/api/v1/station")

	// Always answers, so renderers can show an "Offline / no data" state.
	v1.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(reader.Snapshot())
	})

	v1.Get("/latest", func(c *fiber.Ctx) error {
		obs, err := reader.LatestObservation()
		if err != nil {
			if errors.Is(err, weather.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "no observation recorded")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read latest observation")
		}
		return c.JSON(obs)
	})

	v1.Get("/series", func(c *fiber.Ctx) error {
		series := reader.CurrentSeries()
		if series == nil {
			series = weather.Series{}
		}
		return c.JSON(fiber.Map{
			"observations": series,
		})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		series, err := reader.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, weather.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "no observations in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read history")
		}

		return c.JSON(fiber.Map{
			"from":         req.From,
			"to":           req.To,
			"observations": series,
		})
	})

	v1.Get("/monthly", func(c *fiber.Ctx) error {
		return c.JSON(reader.MonthlySummary())
	})

	v1.Get("/yesterday", func(c *fiber.Ctx) error {
		agg, err := reader.Yesterday()
		if err != nil {
			if errors.Is(err, weather.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "no summary recorded for yesterday")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read daily summary")
		}
		return c.JSON(agg)
	})

	v1.Get("/precip", func(c *fiber.Ctx) error {
		rates := reader.PrecipRates()
		if rates == nil {
			rates = []weather.PrecipRate{}
		}
		return c.JSON(fiber.Map{
			"rates": rates,
		})
	})
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
