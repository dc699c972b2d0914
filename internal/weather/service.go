package weather

import (
	"context"
	"errors"
	"log"
	"time"
)

// Service is the stateless read side: it maps dashboard queries onto the
// reconciler, the comparison engine and the store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new Service. now is injected so the current-day
// window is testable; pass time.Now in production.
func NewService(store Store, now func() time.Time) *Service {
	return &Service{store: store, now: now}
}

// ChartSeries reconciles the current KST day for one category. The window
// runs from midnight through now; if that is shorter than one slot the
// start is extended one extra slot back so charts always have two points.
func (s *Service) ChartSeries(ctx context.Context, category Category) (Series, error) {
	now := s.now()
	start := StartOfDay(now)
	if now.In(KST).Sub(start) < SlotInterval {
		start = start.Add(-SlotInterval)
	}
	return BuildSeries(ctx, s.store, category, start, now)
}

// CompareSeries reconciles the current day and computes the percentage
// error of the sensor against the reference.
func (s *Service) CompareSeries(ctx context.Context, category Category) (Series, ErrorSeries, error) {
	series, err := s.ChartSeries(ctx, category)
	if err != nil {
		return Series{}, ErrorSeries{}, err
	}
	return series, ComputeErrors(series.Sensor, series.Reference), nil
}

// Latest is the most recent reference and sensor reading of the current
// KST day. Either side may be absent.
type Latest struct {
	DisplayDate time.Time
	Reference   *Reading
	Sensor      *Reading
}

// LatestReadings returns the freshest reading per side since midnight KST.
// A side with no reading today is nil, not an error.
func (s *Service) LatestReadings(ctx context.Context) (Latest, error) {
	now := s.now()
	since := StartOfDay(now)
	latest := Latest{DisplayDate: now.In(KST)}

	ref, err := s.store.QueryLatestSince(ctx, ReferenceSources, since)
	switch {
	case err == nil:
		latest.Reference = &ref
	case errors.Is(err, ErrNotFound):
		log.Printf("INFO: no reference reading yet for %s", since.Format("2006-01-02"))
	default:
		return Latest{}, err
	}

	sensor, err := s.store.QueryLatestSince(ctx, []Source{SourceSensor}, since)
	switch {
	case err == nil:
		latest.Sensor = &sensor
	case errors.Is(err, ErrNotFound):
		log.Printf("INFO: no sensor reading yet for %s", since.Format("2006-01-02"))
	default:
		return Latest{}, err
	}

	return latest, nil
}
