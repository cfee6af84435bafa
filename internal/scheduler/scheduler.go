package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"news_crawler/internal/domain"
)

// Runner executes one crawl cycle.
type Runner interface {
	RunOnce(ctx context.Context) domain.CrawlOutcome
}

// perRunTimeout bounds a single cycle. A cycle is a handful of HTTP fetches
// plus two model calls, so anything longer than this is stuck.
const perRunTimeout = 10 * time.Minute

// Scheduler triggers crawl cycles on a fixed interval. Cycles never overlap:
// if a tick fires while the previous cycle is still running, that tick is
// skipped rather than queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start runs one cycle immediately, then one per interval until the context
// is cancelled. It waits for an in-flight cycle before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous cycle still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		runCtx, cancel := context.WithTimeout(ctx, perRunTimeout)
		defer cancel()

		outcome := s.runner.RunOnce(runCtx)
		switch outcome.Kind {
		case domain.OutcomeStored:
			s.logger.Info("cycle stored article",
				"attempted", outcome.Attempted,
				"external_index", outcome.Article.ExternalIndex,
			)
		case domain.OutcomeSkipped:
			s.logger.Info("cycle found nothing new", "attempted", outcome.Attempted)
		case domain.OutcomeFailed:
			s.logger.Error("cycle failed", "attempted", outcome.Attempted, "error", outcome.Err)
		}
	}()
}
