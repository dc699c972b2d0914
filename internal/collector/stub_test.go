package collector

import (
	"context"
	"sync"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
)

// recordedWrite captures one store mutation for assertions.
type recordedWrite struct {
	source weather.Source
	ts     time.Time
	fields weather.Fields
}

// stubStore records writes in memory; reads are unused by collectors.
type stubStore struct {
	mu        sync.Mutex
	upserts   []recordedWrite
	inserts   []recordedWrite
	insertErr error
}

func (s *stubStore) Upsert(_ context.Context, source weather.Source, ts time.Time, fields weather.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, recordedWrite{source, ts, fields})
	return nil
}

func (s *stubStore) Insert(_ context.Context, source weather.Source, ts time.Time, fields weather.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts = append(s.inserts, recordedWrite{source, ts, fields})
	return nil
}

func (s *stubStore) QueryRange(context.Context, []weather.Source, time.Time, time.Time) ([]weather.Reading, error) {
	return nil, nil
}

func (s *stubStore) QueryLatestSince(context.Context, []weather.Source, time.Time) (weather.Reading, error) {
	return weather.Reading{}, weather.ErrNotFound
}
