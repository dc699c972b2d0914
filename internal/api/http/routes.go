package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/icheolgyu/station-compare/internal/weather"
)

var validate = validator.New()

// chartResponse is the payload consumed by the dashboard chart renderer.
// The kma/arduino key names are part of the dashboard contract.
type chartResponse struct {
	Labels        []string   `json:"labels"`
	KMAValues     []*float64 `json:"kma_values"`
	ArduinoValues []*float64 `json:"arduino_values"`
}

type errorResponse struct {
	Labels      []string   `json:"labels"`
	Errors      []*float64 `json:"errors"`
	AvgError    *float64   `json:"avg_error"`
	LatestError *float64   `json:"latest_error"`
	Unit        string     `json:"unit"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. Categories in
// disabled are policy-hidden and answer 404.
func RegisterRoutes(app *fiber.App, service *weather.Service, disabled map[weather.Category]bool) {
	app.Get("/", func(c *fiber.Ctx) error {
		latest, err := service.LatestReadings(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load dashboard")
		}
		c.Type("html", "utf-8")
		return c.SendString(fmt.Sprintf(dashboardHTML, latest.DisplayDate.Format("2006-01-02 15:04")))
	})

	app.Get("/api/chart_data/:category", func(c *fiber.Ctx) error {
		category, err := parseCategory(c, disabled)
		if err != nil {
			return err
		}

		series, err := service.ChartSeries(c.Context(), category)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build chart data")
		}

		return c.JSON(chartResponse{
			Labels:        formatLabels(series),
			KMAValues:     series.Reference,
			ArduinoValues: series.Sensor,
		})
	})

	app.Get("/api/error_data/:category", func(c *fiber.Ctx) error {
		category, err := parseCategory(c, disabled)
		if err != nil {
			return err
		}

		resp, err := buildErrorResponse(c, service, category)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	})

	app.Get("/api/error_data_all", func(c *fiber.Ctx) error {
		all := make(map[weather.Category]errorResponse, len(weather.Categories))
		for _, category := range weather.Categories {
			if disabled[category] {
				continue
			}
			resp, err := buildErrorResponse(c, service, category)
			if err != nil {
				return err
			}
			all[category] = resp
		}
		return c.JSON(all)
	})

	app.Get("/api/latest-data", func(c *fiber.Ctx) error {
		latest, err := service.LatestReadings(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest data")
		}

		kma := fiber.Map{"temperature": nil, "humidity": nil, "pressure": nil}
		if r := latest.Reference; r != nil {
			kma = fiber.Map{"temperature": r.Temperature, "humidity": r.Humidity, "pressure": r.Pressure}
		}
		arduino := fiber.Map{"temperature": nil, "humidity": nil}
		if r := latest.Sensor; r != nil {
			arduino = fiber.Map{"temperature": r.Temperature, "humidity": r.Humidity}
		}

		return c.JSON(fiber.Map{
			"display_date": latest.DisplayDate.Format("2006-01-02 15:04"),
			"kma":          kma,
			"arduino":      arduino,
		})
	})
}

func buildErrorResponse(c *fiber.Ctx, service *weather.Service, category weather.Category) (errorResponse, error) {
	series, errs, err := service.CompareSeries(c.Context(), category)
	if err != nil {
		return errorResponse{}, fiber.NewError(fiber.StatusInternalServerError, "failed to build error data")
	}
	return errorResponse{
		Labels:      formatLabels(series),
		Errors:      errs.Errors,
		AvgError:    errs.Average,
		LatestError: errs.Latest,
		Unit:        "%",
	}, nil
}

// categoryParam holds the validated path parameter.
type categoryParam struct {
	Category string `validate:"required,oneof=temperature humidity pressure"`
}

func parseCategory(c *fiber.Ctx, disabled map[weather.Category]bool) (weather.Category, error) {
	p := categoryParam{Category: c.Params("category")}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusNotFound, "invalid category")
	}

	category := weather.Category(p.Category)
	if disabled[category] {
		return "", fiber.NewError(fiber.StatusNotFound, "category disabled")
	}
	return category, nil
}

func formatLabels(series weather.Series) []string {
	labels := make([]string, len(series.Labels))
	for i, t := range series.Labels {
		labels[i] = t.Format("15:04")
	}
	return labels
}

// dashboardHTML is the static dashboard shell; chart rendering happens
// client-side against the /api endpoints.
const dashboardHTML = `<!DOCTYPE html>
<html lang="ko">
<head>
  <meta charset="utf-8">
  <title>Station Compare</title>
</head>
<body>
  <h1>Station Compare</h1>
  <p id="display-date">%s</p>
  <canvas id="temperature-chart"></canvas>
  <canvas id="humidity-chart"></canvas>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <script>
    for (const category of ["temperature", "humidity"]) {
      fetch("/api/chart_data/" + category)
        .then((r) => r.json())
        .then((d) => new Chart(document.getElementById(category + "-chart"), {
          type: "line",
          data: {
            labels: d.labels,
            datasets: [
              { label: "KMA", data: d.kma_values },
              { label: "Arduino", data: d.arduino_values },
            ],
          },
        }));
    }
  </script>
</body>
</html>
`
