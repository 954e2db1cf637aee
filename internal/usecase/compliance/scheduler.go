package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
)

var ErrSchedulerRunning = errors.New("scheduler is already running")

// RunSchedulerCycle runs at most one auto scan and reports how long to wait
// before the next cycle. It never fails; problems are logged and recorded.
func (s *Service) RunSchedulerCycle(ctx context.Context) (result CycleResult) {
	fallback := s.options.FallbackInterval
	if fallback <= 0 {
		fallback = domaincompliance.FallbackInterval
	}
	result = CycleResult{NextDelay: fallback}
	if ctx == nil {
		return result
	}

	cycleCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.scheduler"))
	defer func() {
		if recovered := recover(); recovered != nil {
			err := errs.WithStack(fmt.Errorf("scheduler cycle panic: %v", recovered))
			logging.Error(cycleCtx, "scheduler cycle panicked", slog.Any("err", errs.Loggable(err)))
			result = CycleResult{NextDelay: fallback}
		}
		s.recordCycle(ctx, result)
	}()

	if err := ctx.Err(); err != nil {
		return result
	}

	cfg, err := s.EnsureSystemConfig(ctx)
	if err != nil {
		logging.Error(cycleCtx, "load system config failed", slog.Any("err", errs.Loggable(err)))
		return result
	}
	if !cfg.AutoScanEnabled {
		logging.Debug(cycleCtx, "auto scan disabled")
		return result
	}

	result.NextDelay = cfg.Interval()
	scan, err := s.RunAutoScan(ctx)
	if err != nil && scan.ScanID == 0 {
		logging.Error(cycleCtx, "auto scan not recorded", slog.Any("err", errs.Loggable(err)))
		return result
	}
	result.Ran = true
	result.ScanID = scan.ScanID
	result.Status = scan.Status
	return result
}

func (s *Service) recordCycle(ctx context.Context, result CycleResult) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	now := s.now().UTC()
	status := "IDLE"
	if result.Ran {
		status = string(result.Status)
	}
	s.setCacheBestEffort(ctx, cacheKeySchedulerLastCycle, now.Format(time.RFC3339))
	s.setCacheBestEffort(ctx, cacheKeySchedulerStatus, status)
	s.setCacheBestEffort(ctx, cacheKeySchedulerNextCycle, now.Add(result.NextDelay).Format(time.RFC3339))
}

// Scheduler drives RunSchedulerCycle until its context ends. Only one Run may
// be active per Scheduler.
type Scheduler struct {
	service *Service
	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
	// cycles is called after every cycle; used by tests.
	cycles func(CycleResult)
}

func NewScheduler(service *Service) *Scheduler {
	return &Scheduler{service: service, sleep: sleepContext}
}

// Run blocks until ctx is cancelled and then returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s.service == nil {
		return errors.New("compliance service is required")
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer s.running.Store(false)

	runCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.scheduler"))
	logging.Info(runCtx, "scheduler started")

	for {
		if ctx.Err() != nil {
			logging.Info(runCtx, "scheduler stopped")
			return nil
		}

		result := s.service.RunSchedulerCycle(ctx)
		if s.cycles != nil {
			s.cycles(result)
		}
		logging.Debug(runCtx, "scheduler cycle done",
			slog.Bool("ran", result.Ran),
			slog.Duration("next_delay", result.NextDelay),
		)

		if err := s.sleep(ctx, result.NextDelay); err != nil {
			logging.Info(runCtx, "scheduler stopped")
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
