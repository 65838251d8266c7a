package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs Mirror.SyncAll on a cron schedule. Runs never overlap.
type Scheduler struct {
	mirror *Mirror
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewScheduler(mirror *Mirror) *Scheduler {
	return &Scheduler{
		mirror: mirror,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the job under schedule and starts the cron loop. The first
// sync runs immediately.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	run := func() {
		if err := s.mirror.SyncAll(ctx); err != nil {
			slog.ErrorContext(ctx, "Mirror sync failed", "error", err)
		}
	}
	if _, err := s.cron.AddFunc(schedule, run); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	go run()
	s.cron.Start()

	slog.InfoContext(ctx, "Mirror scheduler started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sync until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.InfoContext(ctx, "Mirror scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
