package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/icheolgyu/station-compare/internal/store"
	"github.com/icheolgyu/station-compare/internal/weather"
)

func ptr(v float64) *float64 { return &v }

func newTestApp(t *testing.T, now time.Time, disabled map[weather.Category]bool) (*fiber.App, *store.SQLiteStore) {
	t.Helper()

	db, err := store.New(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	app := fiber.New()
	svc := weather.NewService(db, func() time.Time { return now })
	RegisterRoutes(app, svc, disabled)
	return app, db
}

func TestChartDataInvalidCategory(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, weather.KST)
	app, _ := newTestApp(t, now, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chart_data/wind", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestChartDataDisabledPressure(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, weather.KST)
	disabled := map[weather.Category]bool{weather.CategoryPressure: true}
	app, _ := newTestApp(t, now, disabled)

	for _, path := range []string{"/api/chart_data/pressure", "/api/error_data/pressure"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, resp.StatusCode)
		}
	}

	// The fan-out endpoint silently skips the disabled category.
	req := httptest.NewRequest(http.MethodGet, "/api/error_data_all", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var all map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := all["pressure"]; ok {
		t.Error("error_data_all must not include the disabled pressure category")
	}
	for _, category := range []string{"temperature", "humidity"} {
		if _, ok := all[category]; !ok {
			t.Errorf("error_data_all missing %s", category)
		}
	}
}

func TestChartDataPayload(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 15, 0, 0, weather.KST)
	app, db := newTestApp(t, now, nil)
	ctx := context.Background()

	midnight := time.Date(2026, 8, 26, 0, 0, 0, 0, weather.KST)
	if err := db.Upsert(ctx, weather.SourceNearRealTime, midnight, weather.Fields{Temperature: ptr(20)}); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(ctx, weather.SourceSensor, midnight.Add(10*time.Minute), weather.Fields{Temperature: ptr(21)}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chart_data/temperature", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Labels        []string   `json:"labels"`
		KMAValues     []*float64 `json:"kma_values"`
		ArduinoValues []*float64 `json:"arduino_values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	// 00:00 and 00:10.
	if len(body.Labels) != 2 {
		t.Fatalf("labels = %v, want 2 entries", body.Labels)
	}
	if body.Labels[0] != "00:00" || body.Labels[1] != "00:10" {
		t.Errorf("labels = %v, want [00:00 00:10]", body.Labels)
	}
	if len(body.KMAValues) != 2 || len(body.ArduinoValues) != 2 {
		t.Fatal("value series must run parallel to labels")
	}
	if body.KMAValues[1] == nil || *body.KMAValues[1] != 20 {
		t.Errorf("kma_values[1] = %v, want clamped 20", body.KMAValues[1])
	}
	if body.ArduinoValues[0] != nil {
		t.Errorf("arduino_values[0] = %v, want nil", *body.ArduinoValues[0])
	}
	if body.ArduinoValues[1] == nil || *body.ArduinoValues[1] != 21 {
		t.Errorf("arduino_values[1] = %v, want 21", body.ArduinoValues[1])
	}
}

func TestErrorDataPayload(t *testing.T) {
	now := time.Date(2026, 8, 26, 0, 15, 0, 0, weather.KST)
	app, db := newTestApp(t, now, nil)
	ctx := context.Background()

	midnight := time.Date(2026, 8, 26, 0, 0, 0, 0, weather.KST)
	if err := db.Upsert(ctx, weather.SourceHourly, midnight, weather.Fields{Temperature: ptr(20)}); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(ctx, weather.SourceSensor, midnight.Add(10*time.Minute), weather.Fields{Temperature: ptr(21)}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/error_data/temperature", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Labels      []string   `json:"labels"`
		Errors      []*float64 `json:"errors"`
		AvgError    *float64   `json:"avg_error"`
		LatestError *float64   `json:"latest_error"`
		Unit        string     `json:"unit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if body.Unit != "%" {
		t.Errorf("unit = %q, want %%", body.Unit)
	}
	if len(body.Errors) != 2 || body.Errors[0] != nil {
		t.Fatalf("errors = %v, want [nil 5]", body.Errors)
	}
	if body.Errors[1] == nil || *body.Errors[1] != 5 {
		t.Errorf("errors[1] = %v, want 5", body.Errors[1])
	}
	if body.AvgError == nil || *body.AvgError != 5 {
		t.Errorf("avg_error = %v, want 5", body.AvgError)
	}
	if body.LatestError == nil || *body.LatestError != 5 {
		t.Errorf("latest_error = %v, want 5", body.LatestError)
	}
}

func TestLatestDataPayload(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, weather.KST)
	app, db := newTestApp(t, now, nil)
	ctx := context.Background()

	ts := time.Date(2026, 8, 26, 11, 0, 0, 0, weather.KST)
	if err := db.Upsert(ctx, weather.SourceHourly, ts, weather.Fields{Temperature: ptr(27.3), Humidity: ptr(68), Pressure: ptr(1002.1)}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/latest-data", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		DisplayDate string `json:"display_date"`
		KMA         struct {
			Temperature *float64 `json:"temperature"`
		} `json:"kma"`
		Arduino struct {
			Temperature *float64 `json:"temperature"`
		} `json:"arduino"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if body.DisplayDate != "2026-08-26 12:00" {
		t.Errorf("display_date = %q, want 2026-08-26 12:00", body.DisplayDate)
	}
	if body.KMA.Temperature == nil || *body.KMA.Temperature != 27.3 {
		t.Errorf("kma.temperature = %v, want 27.3", body.KMA.Temperature)
	}
	if body.Arduino.Temperature != nil {
		t.Errorf("arduino.temperature = %v, want nil with no sensor data", *body.Arduino.Temperature)
	}
}
