package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/icheolgyu/station-compare/internal/weather"
)

// Collector is a single remote-source collection cycle.
type Collector interface {
	Collect(ctx context.Context, now time.Time) error
}

// Scheduler runs the remote collectors on wall-clock-aligned cadences: the
// near-real-time collector on every 10-minute boundary, the hourly
// collector at the top of each hour.
type Scheduler struct {
	scheduler *gocron.Scheduler
	realtime  Collector
	hourly    Collector
	timeout   time.Duration
}

// New creates a new Scheduler. Either collector may be nil when its
// configuration is missing; that cycle is then skipped entirely.
func New(realtime, hourly Collector) *Scheduler {
	s := gocron.NewScheduler(weather.KST)
	return &Scheduler{
		scheduler: s,
		realtime:  realtime,
		hourly:    hourly,
		timeout:   2 * time.Minute,
	}
}

// Start schedules the cron-aligned jobs, fires each collector once
// immediately to seed the store, and starts the scheduler. A failed cycle
// is logged and waits for the next boundary; it never stops the scheduler.
func (s *Scheduler) Start() error {
	if s.realtime == nil && s.hourly == nil {
		log.Println("scheduler: no remote collectors configured; nothing to schedule")
		return nil
	}

	if s.realtime != nil {
		if _, err := s.scheduler.Cron("*/10 * * * *").Do(func() {
			s.runCycle("near-real-time", s.realtime)
		}); err != nil {
			return err
		}
	}

	if s.hourly != nil {
		if _, err := s.scheduler.Cron("0 * * * *").Do(func() {
			s.runCycle("hourly", s.hourly)
		}); err != nil {
			return err
		}
	}

	// Seed the current day without waiting for the first boundary.
	go func() {
		if s.hourly != nil {
			s.runCycle("hourly", s.hourly)
		}
		if s.realtime != nil {
			s.runCycle("near-real-time", s.realtime)
		}
	}()

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runCycle(name string, c Collector) {
	log.Printf("scheduler: running %s collection cycle", name)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := c.Collect(ctx, time.Now()); err != nil {
		log.Printf("scheduler: %s cycle failed: %v", name, err)
		return
	}
	log.Printf("scheduler: completed %s cycle", name)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
