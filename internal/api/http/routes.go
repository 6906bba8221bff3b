package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fpailes/Avy-weather-server/internal/cache"
	"github.com/fpailes/Avy-weather-server/internal/forecast"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app. The HTTP layer
// is a thin adapter over the cache's Get/GetAll; it maps the freshness triple
// to status codes and never talks to the scraper directly.
func RegisterRoutes(app *fiber.App, fc *cache.ZoneForecastCache) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(indexPayload(fc))
	})

	// Liveness only; must not touch the cache.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "avy-forecast-cache",
		})
	})

	// Registered before /forecast/:zone so "all" is not taken as a zone slug.
	app.Get("/forecast/all", func(c *fiber.Ctx) error {
		results := fc.GetAll(c.UserContext())

		forecasts := make(map[string]interface{}, len(results))
		for zone, res := range results {
			if res.Record == nil {
				forecasts[string(zone)] = fiber.Map{"error": res.Err.Error()}
				continue
			}
			forecasts[string(zone)] = toForecastResponse(res.Record, res.Freshness == cache.StaleServed)
		}

		return c.JSON(fiber.Map{"forecasts": forecasts})
	})

	app.Get("/forecast/:zone", func(c *fiber.Ctx) error {
		zone := forecast.ZoneID(c.Params("zone"))

		rec, freshness, err := fc.Get(c.UserContext(), zone)
		if errors.Is(err, forecast.ErrUnknownZone) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}

		switch freshness {
		case cache.Fresh:
			return c.JSON(toForecastResponse(rec, false))
		case cache.StaleServed:
			return c.JSON(toForecastResponse(rec, true))
		default:
			return fiber.NewError(fiber.StatusBadGateway, "no forecast available for "+string(zone)+": "+err.Error())
		}
	})
}

// dangerRating carries both the ordinal level and the source vocabulary word.
type dangerRating struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}

type forecastResponse struct {
	Zone          string                  `json:"zone"`
	ZoneName      string                  `json:"zone_name"`
	DangerRatings map[string]dangerRating `json:"danger_ratings"`
	Summary       string                  `json:"summary"`
	IssuedAt      *time.Time              `json:"issued_at"`
	FetchedAt     time.Time               `json:"fetched_at"`
	Stale         bool                    `json:"stale"`
}

func toForecastResponse(rec *forecast.Record, stale bool) forecastResponse {
	ratings := make(map[string]dangerRating, len(rec.Ratings))
	for band, level := range rec.Ratings {
		ratings[string(band)] = dangerRating{
			Level: int(level),
			Label: level.String(),
		}
	}

	resp := forecastResponse{
		Zone:          string(rec.Zone),
		ZoneName:      rec.Zone.DisplayName(),
		DangerRatings: ratings,
		Summary:       rec.Summary,
		FetchedAt:     rec.FetchedAt,
		Stale:         stale,
	}
	if !rec.IssuedAt.IsZero() {
		issued := rec.IssuedAt
		resp.IssuedAt = &issued
	}
	return resp
}

func indexPayload(fc *cache.ZoneForecastCache) fiber.Map {
	zones := fc.Zones()
	zoneSlugs := make([]string, 0, len(zones))
	for _, zone := range zones {
		zoneSlugs = append(zoneSlugs, string(zone))
	}

	return fiber.Map{
		"name":    "Avalanche Forecast Cache API",
		"version": "1.0",
		"endpoints": fiber.Map{
			"/forecast/:zone": "Get forecast for a specific zone",
			"/forecast/all":   "Get all forecasts",
			"/health":         "Health check",
		},
		"zones": zoneSlugs,
		"cache_info": fiber.Map{
			"cache_duration_hours": fc.TTL().Hours(),
		},
	}
}
