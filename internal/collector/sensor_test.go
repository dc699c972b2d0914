package collector

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
)

func TestParseSensorLine(t *testing.T) {
	fields, err := parseSensorLine("23.5,45.2,1013.1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *fields.Temperature != 23.5 || *fields.Humidity != 45.2 || *fields.Pressure != 1013.1 {
		t.Errorf("parsed %+v, want 23.5/45.2/1013.1", fields)
	}

	fields, err = parseSensorLine("23.5, 45.2")
	if err != nil {
		t.Fatalf("parse two fields: %v", err)
	}
	if fields.Pressure != nil {
		t.Errorf("pressure = %v, want nil when absent", *fields.Pressure)
	}

	for _, bad := range []string{"23.5", "a,b", "1,2,3,4", "23.5,,1013"} {
		if _, err := parseSensorLine(bad); err == nil {
			t.Errorf("parseSensorLine(%q) succeeded, want error", bad)
		}
	}
}

func TestSensorConsumeOneSamplePerMinute(t *testing.T) {
	db := &stubStore{}
	c := NewSensorCollector(db, nil)

	clock := time.Date(2026, 8, 26, 10, 0, 5, 0, weather.KST)

	stream := strings.NewReader(
		"21.5,40.1\n" + // accepted for 10:00
			"21.6,40.2\n" + // same minute, discarded
			"garbage line\n" + // malformed, dropped without a clock call
			"21.7,40.3\n", // accepted once the clock has advanced
	)

	// The clock is read once per well-formed line; advance it on the
	// third read so the last sample lands in the next minute.
	calls := 0
	c.now = func() time.Time {
		calls++
		if calls >= 3 {
			return clock.Add(time.Minute)
		}
		return clock
	}

	if err := c.consume(context.Background(), stream); err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(db.inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(db.inserts))
	}

	first, second := db.inserts[0], db.inserts[1]
	if !first.ts.Equal(time.Date(2026, 8, 26, 10, 0, 0, 0, weather.KST)) {
		t.Errorf("first ts = %s, want 10:00 floored", first.ts)
	}
	if *first.fields.Temperature != 21.5 {
		t.Errorf("first temperature = %v, want the minute's first sample 21.5", *first.fields.Temperature)
	}
	if !second.ts.Equal(time.Date(2026, 8, 26, 10, 1, 0, 0, weather.KST)) {
		t.Errorf("second ts = %s, want 10:01 floored", second.ts)
	}
	if first.source != weather.SourceSensor || second.source != weather.SourceSensor {
		t.Error("inserts must use the sensor source")
	}
}

func TestSensorConsumeIgnoresDuplicateKey(t *testing.T) {
	db := &stubStore{insertErr: weather.ErrDuplicateKey}
	c := NewSensorCollector(db, nil)
	c.now = func() time.Time { return time.Date(2026, 8, 26, 10, 0, 5, 0, weather.KST) }

	if err := c.consume(context.Background(), strings.NewReader("21.5,40.1\n")); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// The duplicate still counts as this minute's accepted sample.
	want := time.Date(2026, 8, 26, 10, 0, 0, 0, weather.KST)
	if !c.lastMinute.Equal(want) {
		t.Errorf("lastMinute = %s, want %s", c.lastMinute, want)
	}
}

func TestSensorRunReopensAfterOpenFailure(t *testing.T) {
	db := &stubStore{}

	opens := 0
	opener := func() (io.ReadCloser, error) {
		opens++
		if opens == 1 {
			return nil, io.ErrUnexpectedEOF
		}
		return io.NopCloser(strings.NewReader("21.5,40.1\n")), nil
	}

	c := NewSensorCollector(db, opener)
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		db.mu.Lock()
		n := len(db.inserts)
		db.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no insert after reconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if opens < 2 {
		t.Errorf("opens = %d, want reconnect after failed open", opens)
	}
}
