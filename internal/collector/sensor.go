package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
)

// StreamOpener opens the sensor byte stream. The physical transport (a
// serial port in production) is injected so the loop can be exercised
// against any reader.
type StreamOpener func() (io.ReadCloser, error)

// SensorCollector consumes newline-delimited comma-separated samples from
// the attached sensor and inserts at most one reading per minute.
type SensorCollector struct {
	store      weather.Store
	open       StreamOpener
	retryDelay time.Duration
	now        func() time.Time

	lastMinute time.Time
}

func NewSensorCollector(store weather.Store, open StreamOpener) *SensorCollector {
	return &SensorCollector{
		store:      store,
		open:       open,
		retryDelay: 5 * time.Second,
		now:        time.Now,
	}
}

// Run opens the stream and consumes it until ctx is cancelled. Transport
// failures are logged and the connection is retried after a fixed delay;
// no failure terminates the loop.
func (c *SensorCollector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := c.open()
		if err != nil {
			log.Printf("ERROR: sensor: open failed: %v, retrying in %s", err, c.retryDelay)
			if !sleepCtx(ctx, c.retryDelay) {
				return
			}
			continue
		}

		err = c.consume(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("ERROR: sensor: read failed: %v, reconnecting in %s", err, c.retryDelay)
		}
		if !sleepCtx(ctx, c.retryDelay) {
			return
		}
	}
}

// consume reads lines until the stream ends or errors. Malformed lines are
// dropped; duplicate-minute samples are discarded before touching the
// store, and duplicate-key inserts are silently ignored.
func (c *SensorCollector) consume(ctx context.Context, stream io.Reader) error {
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields, err := parseSensorLine(line)
		if err != nil {
			log.Printf("ERROR: sensor: dropping line %q: %v", line, err)
			continue
		}

		// At most one accepted sample per minute. The timestamp is
		// floored to that minute so the (source, timestamp) key stays
		// stable across sub-minute jitter.
		minute := weather.FloorToMinute(c.now())
		if minute.Equal(c.lastMinute) {
			continue
		}

		err = c.store.Insert(ctx, weather.SourceSensor, minute, fields)
		if err != nil && !errors.Is(err, weather.ErrDuplicateKey) {
			log.Printf("ERROR: sensor: insert failed: %v", err)
			continue
		}
		c.lastMinute = minute
	}
	return scanner.Err()
}

// parseSensorLine parses "temperature,humidity[,pressure]".
func parseSensorLine(line string) (weather.Fields, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return weather.Fields{}, fmt.Errorf("expected 2 or 3 fields, got %d", len(parts))
	}

	var fields weather.Fields
	dests := []**float64{&fields.Temperature, &fields.Humidity, &fields.Pressure}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return weather.Fields{}, fmt.Errorf("field %d: %w", i, err)
		}
		*dests[i] = &v
	}
	return fields, nil
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
