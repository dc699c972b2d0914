package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
	"github.com/sony/gobreaker"
)

// maxSlotFallback caps how many earlier 10-minute slots are tried when the
// freshest slot has not been published yet.
const maxSlotFallback = 5

// NearRealTimeCollector polls the KMA near-real-time observation endpoint
// every 10-minute boundary and upserts temperature/humidity readings.
type NearRealTimeCollector struct {
	store   weather.Store
	authKey string
	station string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNearRealTimeCollector(client *http.Client, store weather.Store, authKey, station, baseURL string) *NearRealTimeCollector {
	return &NearRealTimeCollector{
		store:   store,
		authKey: authKey,
		station: station,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newBreaker("kma-nrt"),
	}
}

// Collect fetches the most recent completed 10-minute slot as of now. If
// the endpoint has no data for it yet, up to maxSlotFallback earlier slots
// are tried; the first slot that yields data wins.
func (c *NearRealTimeCollector) Collect(ctx context.Context, now time.Time) error {
	if c.authKey == "" {
		return fmt.Errorf("kma auth key is not configured")
	}

	// The slot labelled floor(now) is still accumulating; the one before
	// it is the most recent whose window has closed.
	slot := weather.FloorToSlot(now).Add(-weather.SlotInterval)

	for i := 0; i <= maxSlotFallback; i++ {
		trySlot := slot.Add(-time.Duration(i) * weather.SlotInterval)

		fields, err := c.fetchSlot(ctx, trySlot)
		if errors.Is(err, ErrNoData) {
			log.Printf("INFO: kma-nrt: no data for slot %s, trying earlier slot", trySlot.Format("15:04"))
			continue
		}
		if err != nil {
			return err
		}

		if err := c.store.Upsert(ctx, weather.SourceNearRealTime, trySlot, fields); err != nil {
			return fmt.Errorf("storing near-real-time reading: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: no slot within fallback range of %s", ErrNoData, slot.Format("15:04"))
}

// nrtResponse mirrors the KMA observation payload; values arrive as one
// item per category code.
type nrtResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []struct {
					Category  string `json:"category"`
					ObsrValue string `json:"obsrValue"`
				} `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func (c *NearRealTimeCollector) fetchSlot(ctx context.Context, slot time.Time) (weather.Fields, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("authKey", c.authKey)
		values.Set("stn", c.station)
		values.Set("base_date", slot.Format("20060102"))
		values.Set("base_time", slot.Format("1504"))

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return weather.Fields{}, err
	}
	defer resp.Body.Close()

	var payload nrtResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Fields{}, fmt.Errorf("decoding near-real-time payload: %w", err)
	}

	// "03" is the upstream NO_DATA result code.
	if code := payload.Response.Header.ResultCode; code != "00" {
		if code == "03" {
			return weather.Fields{}, ErrNoData
		}
		return weather.Fields{}, fmt.Errorf("upstream result %s: %s", code, payload.Response.Header.ResultMsg)
	}

	var fields weather.Fields
	for _, item := range payload.Response.Body.Items.Item {
		v, err := strconv.ParseFloat(item.ObsrValue, 64)
		if err != nil {
			log.Printf("ERROR: kma-nrt: unparseable %s value %q, skipping", item.Category, item.ObsrValue)
			continue
		}
		switch item.Category {
		case "T1H":
			fields.Temperature = &v
		case "REH":
			fields.Humidity = &v
		}
	}

	if fields.Empty() {
		return weather.Fields{}, ErrNoData
	}
	return fields, nil
}
