package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/metrics"
)

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Cache        *Cache
	Detector     *Detector
	Interval     time.Duration
	InitialDelay time.Duration
}

// Scheduler drives the watch pipeline: one poll shortly after startup,
// then one per interval. A tick that fires while the previous poll is
// still running is skipped, never queued; the next regular tick picks
// up. Manual triggers bypass the tick cadence but share the same
// in-flight fetch.
type Scheduler struct {
	cache    *Cache
	detector *Detector
	interval time.Duration
	initial  time.Duration
	health   *Health

	polling atomic.Bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		cache:    cfg.Cache,
		detector: cfg.Detector,
		interval: cfg.Interval,
		initial:  cfg.InitialDelay,
		health:   NewHealth(),
	}
}

// Run starts the scheduler main loop.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("starting scheduler", "interval", s.interval, "initial_delay", s.initial)

	// First poll after a short delay so startup work settles first.
	initial := time.NewTimer(s.initial)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-initial.C:
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	go s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			go s.poll(ctx)
		}
	}
}

// poll runs one pipeline pass unless the previous one is still running.
func (s *Scheduler) poll(ctx context.Context) {
	if !s.polling.CompareAndSwap(false, true) {
		metrics.TickSkipped()
		slog.Debug("previous poll still running, tick skipped")
		return
	}
	defer s.polling.Store(false)

	runID := uuid.NewString()[:8]
	slog.Debug("poll started", "run_id", runID)

	res := s.cache.Get(ctx, false)
	outcome := s.detector.Process(ctx, res)
	s.observe(res)

	slog.Info("poll complete", "run_id", runID, "outcome", outcome)
}

// TriggerNow refreshes the page immediately and runs the result through
// change detection. A trigger that lands while a fetch is in flight
// joins that fetch instead of starting a second one.
func (s *Scheduler) TriggerNow(ctx context.Context) (Result, Outcome) {
	res := s.cache.Get(ctx, true)
	outcome := s.detector.Process(ctx, res)
	s.observe(res)
	return res, outcome
}

func (s *Scheduler) observe(res Result) {
	switch res.Kind {
	case KindSuccess:
		s.health.SetHealthy("watch", string(res.Status))
	case KindNotFound:
		s.health.SetUnhealthy("watch", errors.New("status token not found on page"))
	case KindError:
		s.health.SetUnhealthy("watch", res.Err)
	}
}

// Health returns the health tracker.
func (s *Scheduler) Health() *Health {
	return s.health
}
