package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
	"github.com/sony/gobreaker"
)

// HourlyCollector fetches the current civil day's hourly surface report in
// one request and upserts one reading per station row.
type HourlyCollector struct {
	store   weather.Store
	authKey string
	station string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewHourlyCollector(client *http.Client, store weather.Store, authKey, station, baseURL string) *HourlyCollector {
	return &HourlyCollector{
		store:   store,
		authKey: authKey,
		station: station,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("kma-hourly"),
	}
}

// Collect fetches today's report and upserts every row for the configured
// station. Re-running within the same day is idempotent: existing rows are
// merged, not duplicated.
func (c *HourlyCollector) Collect(ctx context.Context, now time.Time) error {
	if c.authKey == "" {
		return fmt.Errorf("kma auth key is not configured")
	}

	day := now.In(weather.KST)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("authKey", c.authKey)
		values.Set("tm1", day.Format("20060102")+"0000")
		values.Set("tm2", day.Format("20060102")+"2300")
		values.Set("stn", c.station)
		values.Set("help", "0")

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading hourly payload: %w", err)
	}

	rows, err := parseHourlyReport(string(body), c.station)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := c.store.Upsert(ctx, weather.SourceHourly, row.Timestamp, row.Fields); err != nil {
			return fmt.Errorf("storing hourly reading: %w", err)
		}
	}

	log.Printf("INFO: kma-hourly: upserted %d rows for %s", len(rows), day.Format("2006-01-02"))
	return nil
}

// hourlyRow is one parsed station observation.
type hourlyRow struct {
	Timestamp time.Time
	Fields    weather.Fields
}

// parseHourlyReport parses the whitespace-delimited surface report. The
// column order is taken from the header line starting "# YYMMDDHHMI"; rows
// are filtered to the given station. Sentinel values become nil fields.
func parseHourlyReport(text, station string) ([]hourlyRow, error) {
	var headers []string
	var dataLines []string

	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "# YYMMDDHHMI"):
			headers = strings.Fields(strings.TrimSpace(strings.ReplaceAll(s, "#", "")))
		case s != "" && !strings.HasPrefix(s, "#"):
			dataLines = append(dataLines, s)
		}
	}

	if len(headers) == 0 || len(dataLines) == 0 {
		return nil, ErrNoData
	}

	stnIdx := indexOf(headers, "STN")
	taIdx := indexOf(headers, "TA")
	hmIdx := indexOf(headers, "HM")
	paIdx := indexOf(headers, "PA")
	if stnIdx < 0 || taIdx < 0 || hmIdx < 0 || paIdx < 0 {
		return nil, fmt.Errorf("hourly report header missing expected columns: %v", headers)
	}

	var rows []hourlyRow
	for _, line := range dataLines {
		vals := strings.Fields(line)
		if len(vals) <= max(stnIdx, max(taIdx, max(hmIdx, paIdx))) {
			log.Printf("ERROR: kma-hourly: short row dropped: %q", line)
			continue
		}
		if vals[stnIdx] != station {
			continue
		}

		ts, err := time.ParseInLocation("200601021504", vals[0], weather.KST)
		if err != nil {
			log.Printf("ERROR: kma-hourly: bad row time %q, dropping row", vals[0])
			continue
		}

		fields := weather.Fields{
			Temperature: parseObservation(vals[taIdx]),
			Humidity:    parseObservation(vals[hmIdx]),
			Pressure:    parseObservation(vals[paIdx]),
		}

		rows = append(rows, hourlyRow{Timestamp: ts, Fields: fields})
	}

	return rows, nil
}

// parseObservation converts a raw column value to a field value. Sentinels
// mark a missing observation and map to nil, never to the sentinel number.
func parseObservation(raw string) *float64 {
	switch raw {
	case "", "-999", "-999.0", "-99.0":
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	if v <= -99 {
		return nil
	}
	return &v
}

func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}
