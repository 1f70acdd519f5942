// Package scheduler runs monthly bill generation in-process on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/services"
	"github.com/robfig/cron/v3"
)

type Generator interface {
	GenerateCurrent(ctx context.Context) (services.GenerationResult, error)
}

// BillScheduler triggers the generator on Schedule, evaluated in the billing timezone.
type BillScheduler struct {
	generator Generator
	cfg       config.CronConfig

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

func New(generator Generator, cfg config.CronConfig, loc *time.Location) (*BillScheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := slogLogger{}
	s := &BillScheduler{
		generator: generator,
		cfg:       cfg,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid bill generation schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins the scheduler.
func (s *BillScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		slog.Info("[Scheduler] Disabled, not starting")
		return
	}
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	slog.Info("[Scheduler] Started", "schedule", s.cfg.Schedule)
}

// Stop waits for a running generation to finish or ctx to expire.
func (s *BillScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	select {
	case <-s.cron.Stop().Done():
		slog.Info("[Scheduler] Stopped")
	case <-ctx.Done():
		slog.Warn("[Scheduler] Stopped before running job finished", "error", ctx.Err())
	}
}

func (s *BillScheduler) runOnce() {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	result, err := s.generator.GenerateCurrent(ctx)
	if err != nil {
		slog.Error("[Scheduler] Bill generation failed", "error", err)
		return
	}
	slog.Info("[Scheduler] Bill generation completed",
		"period", fmt.Sprintf("%04d-%02d", result.Year, result.Month),
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"excluded", result.Excluded,
		"duration", time.Since(started),
	)
}

// slogLogger routes cron's own messages through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("[Scheduler] "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("[Scheduler] "+msg, append(keysAndValues, "error", err)...)
}
