package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCycleInProgress  = errors.New("trigger cycle already running")
	ErrSchedulerStopped = errors.New("alert scheduler stopped")
)

type SchedulerConfig struct {
	CheckInterval        time.Duration
	NotificationInterval time.Duration
	CleanupInterval      time.Duration
	Warmup               time.Duration
	RetentionDays        int
}

// Sweeper is the trigger side of a cycle.
type Sweeper interface {
	Sweep(ctx context.Context) (TriggerCounts, error)
}

// PendingDispatcher is the delivery side of a cycle.
type PendingDispatcher interface {
	DispatchPending(ctx context.Context) (DispatchResult, error)
}

type CycleResult struct {
	Price     int `json:"price"`
	Stock     int `json:"stock"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type SchedulerStatus struct {
	Running     bool         `json:"running"`
	Armed       bool         `json:"armed"`
	ActiveJobs  []string     `json:"active_jobs"`
	LastCycleAt *time.Time   `json:"last_cycle_at,omitempty"`
	LastCycle   *CycleResult `json:"last_cycle,omitempty"`
}

// AlertScheduler drives periodic trigger sweeps, pending-notification
// sweeps and retention cleanup. One instance is owned by the application.
// A cycle requested while another is running is skipped, not queued.
type AlertScheduler struct {
	sweeper    Sweeper
	dispatcher PendingDispatcher
	alerts     domain.AlertRepository
	cfg        SchedulerConfig
	metrics    *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time

	cycleRunning    atomic.Bool
	dispatchRunning atomic.Bool
	inFlight        sync.WaitGroup

	mu          sync.Mutex
	stop        chan struct{}
	stopped     bool
	jobs        sync.WaitGroup
	lastCycleAt *time.Time
	lastCycle   *CycleResult
}

func NewAlertScheduler(
	sweeper Sweeper,
	dispatcher PendingDispatcher,
	alerts domain.AlertRepository,
	cfg SchedulerConfig,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *AlertScheduler {
	return &AlertScheduler{
		sweeper:    sweeper,
		dispatcher: dispatcher,
		alerts:     alerts,
		cfg:        cfg,
		metrics:    recorder,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start arms the timers and schedules one cycle after the warm-up delay.
// Calling Start on an armed scheduler is a no-op, and a stopped scheduler
// stays stopped.
func (s *AlertScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("alert scheduler already stopped, not restarting")
		return
	}
	if s.stop != nil {
		s.logger.Warn("alert scheduler already started")
		return
	}
	stop := make(chan struct{})
	s.stop = stop

	runCtx := context.WithoutCancel(ctx)
	s.arm(stop, "warmup", s.cfg.Warmup, false, func() { s.runCycleLogged(runCtx) })
	s.arm(stop, "trigger_check", s.cfg.CheckInterval, true, func() { s.runCycleLogged(runCtx) })
	s.arm(stop, "notification_dispatch", s.cfg.NotificationInterval, true, func() { s.runDispatchLogged(runCtx) })
	s.arm(stop, "cleanup", s.cfg.CleanupInterval, true, func() { s.runCleanupLogged(runCtx) })

	s.logger.Info("alert scheduler started",
		zap.Duration("check_interval", s.cfg.CheckInterval),
		zap.Duration("notification_interval", s.cfg.NotificationInterval),
		zap.Duration("cleanup_interval", s.cfg.CleanupInterval),
	)
}

// Stop disarms every timer. In-flight cycles finish on their own; use Wait
// to block until they do.
// Runs requested after Stop fail with ErrSchedulerStopped.
func (s *AlertScheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.stopped = true
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	s.logger.Info("alert scheduler stopped")
}

// Wait blocks until in-flight work drains or the timeout elapses and
// reports whether it drained.
func (s *AlertScheduler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("timed out waiting for scheduler work to finish", zap.Duration("timeout", timeout))
		return false
	}
}

func (s *AlertScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:    s.cycleRunning.Load(),
		Armed:      s.stop != nil,
		ActiveJobs: []string{},
	}
	if status.Armed {
		status.ActiveJobs = []string{"trigger_check", "notification_dispatch", "cleanup"}
	}
	if s.lastCycleAt != nil {
		at := *s.lastCycleAt
		status.LastCycleAt = &at
	}
	if s.lastCycle != nil {
		last := *s.lastCycle
		status.LastCycle = &last
	}
	return status
}

// RunCycle runs one trigger sweep and, when anything triggered, a pending
// dispatch sweep. It returns ErrCycleInProgress when another cycle holds the
// guard.
func (s *AlertScheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.cycleRunning.CompareAndSwap(false, true) {
		s.metrics.Cycle("skipped")
		s.logger.Info("trigger cycle already running, skipping")
		return CycleResult{}, ErrCycleInProgress
	}
	defer s.cycleRunning.Store(false)

	if err := s.begin(); err != nil {
		return CycleResult{}, err
	}
	defer s.inFlight.Done()

	cycleID := uuid.NewString()
	logger := s.logger.With(zap.String("cycle_id", cycleID))
	started := s.now()
	logger.Info("trigger cycle started")

	var result CycleResult
	counts, err := s.timedSweep(ctx)
	result.Price = counts.Price
	result.Stock = counts.Stock

	if counts.Total() > 0 {
		dispatched, dispatchErr := s.dispatchPending(ctx)
		if !errors.Is(dispatchErr, ErrCycleInProgress) {
			result.Delivered = dispatched.Delivered
			result.Failed = dispatched.Failed
			err = errors.Join(err, dispatchErr)
		}
	}

	s.mu.Lock()
	s.lastCycleAt = &started
	s.lastCycle = &result
	s.mu.Unlock()

	outcome := "completed"
	if err != nil {
		outcome = "error"
	}
	s.metrics.Cycle(outcome)
	logger.Info("trigger cycle finished",
		zap.Int("price_triggered", result.Price),
		zap.Int("stock_triggered", result.Stock),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", s.now().Sub(started)),
		zap.Bool("errors", err != nil),
	)
	return result, err
}

// DispatchPending runs one pending-notification sweep under its own guard.
func (s *AlertScheduler) DispatchPending(ctx context.Context) (DispatchResult, error) {
	if err := s.begin(); err != nil {
		return DispatchResult{}, err
	}
	defer s.inFlight.Done()
	return s.dispatchPending(ctx)
}

// dispatchPending is DispatchPending for callers already counted in inFlight.
func (s *AlertScheduler) dispatchPending(ctx context.Context) (DispatchResult, error) {
	if !s.dispatchRunning.CompareAndSwap(false, true) {
		s.logger.Debug("notification sweep already running, skipping")
		return DispatchResult{}, ErrCycleInProgress
	}
	defer s.dispatchRunning.Store(false)

	started := time.Now()
	defer s.metrics.ObserveSweep("dispatch", started)
	return s.dispatcher.DispatchPending(ctx)
}

// Cleanup deletes alerts that were triggered and notified more than
// retentionDays ago. It reports the number removed per kind.
func (s *AlertScheduler) Cleanup(ctx context.Context, retentionDays int) (map[domain.AlertKind]int64, error) {
	if retentionDays < 0 {
		retentionDays = 0
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.inFlight.Done()

	started := time.Now()
	defer s.metrics.ObserveSweep("cleanup", started)

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	removed := make(map[domain.AlertKind]int64, len(domain.AlertKinds))
	var errs []error
	for _, kind := range domain.AlertKinds {
		n, err := s.alerts.DeleteNotifiedBefore(ctx, kind, cutoff)
		if err != nil {
			s.logger.Error("alert cleanup failed", zap.String("kind", string(kind)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		removed[kind] = n
		s.metrics.AlertsCleaned(string(kind), n)
	}

	s.logger.Info("alert cleanup complete",
		zap.Int("retention_days", retentionDays),
		zap.Int64("price_removed", removed[domain.AlertKindPrice]),
		zap.Int64("stock_removed", removed[domain.AlertKindStock]),
	)
	return removed, errors.Join(errs...)
}

// begin registers a run with inFlight. The check and the Add share mu with
// Stop, so no run is added once Wait may be draining.
func (s *AlertScheduler) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.inFlight.Add(1)
	return nil
}

func (s *AlertScheduler) timedSweep(ctx context.Context) (TriggerCounts, error) {
	started := time.Now()
	defer s.metrics.ObserveSweep("trigger", started)
	return s.sweeper.Sweep(ctx)
}

// arm starts one job goroutine. Non-repeating jobs fire once after delay.
// A non-positive interval leaves the job disarmed.
func (s *AlertScheduler) arm(stop <-chan struct{}, name string, interval time.Duration, repeat bool, job func()) {
	if interval <= 0 {
		if repeat {
			s.logger.Warn("scheduler job disabled", zap.String("job", name))
			return
		}
		interval = time.Millisecond
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()

		if !repeat {
			timer := time.NewTimer(interval)
			defer timer.Stop()
			select {
			case <-stop:
			case <-timer.C:
				job()
			}
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				job()
			}
		}
	}()
}

func (s *AlertScheduler) runCycleLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) && !errors.Is(err, ErrSchedulerStopped) {
		s.logger.Warn("scheduled trigger cycle finished with errors", zap.Error(err))
	}
}

func (s *AlertScheduler) runDispatchLogged(ctx context.Context) {
	if _, err := s.DispatchPending(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) && !errors.Is(err, ErrSchedulerStopped) {
		s.logger.Warn("scheduled notification sweep finished with errors", zap.Error(err))
	}
}

func (s *AlertScheduler) runCleanupLogged(ctx context.Context) {
	if _, err := s.Cleanup(ctx, s.cfg.RetentionDays); err != nil && !errors.Is(err, ErrSchedulerStopped) {
		s.logger.Warn("scheduled cleanup finished with errors", zap.Error(err))
	}
}
