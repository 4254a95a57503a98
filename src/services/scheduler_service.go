package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

const (
	minIntervalMinutes = 1
	maxIntervalMinutes = 1440
)

// Syncer runs one full sync.
type Syncer interface {
	RunAllSyncs(ctx context.Context) models.SyncOutcome
}

// AlertEvaluator returns the alerts that fired for the first time this month.
type AlertEvaluator interface {
	Evaluate() ([]models.AlertResult, error)
}

// SchedulerService runs a sync on every tick, then evaluates alerts and
// notifies for the new ones.
type SchedulerService struct {
	syncer     Syncer
	alerts     AlertEvaluator
	notifier   Notifier
	logger     *lib.Logger
	runOnStart bool
	unit       time.Duration
	mutex      sync.Mutex
	minutes    int
	reloadChan chan time.Duration
	running    atomic.Bool
	onCycle    func(models.SyncOutcome)
}

// NewSchedulerService creates a scheduler ticking every intervalMinutes.
// notifier may be nil.
func NewSchedulerService(syncer Syncer, alerts AlertEvaluator, notifier Notifier, intervalMinutes int) *SchedulerService {
	return &SchedulerService{
		syncer:     syncer,
		alerts:     alerts,
		notifier:   notifier,
		logger:     lib.NewLogger("scheduler"),
		unit:       time.Minute,
		minutes:    intervalMinutes,
		reloadChan: make(chan time.Duration, 1),
	}
}

// SetRunOnStart makes Run perform a cycle before the first tick.
func (s *SchedulerService) SetRunOnStart(enabled bool) { s.runOnStart = enabled }

// SetOnCycle registers a callback invoked after every cycle.
func (s *SchedulerService) SetOnCycle(callback func(models.SyncOutcome)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onCycle = callback
}

// IntervalMinutes returns the current tick interval.
func (s *SchedulerService) IntervalMinutes() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.minutes
}

func validateInterval(minutes int) error {
	if minutes < minIntervalMinutes || minutes > maxIntervalMinutes {
		return lib.ValidationError("interval must be between 1 and 1440 minutes").
			WithContext("intervalMinutes", minutes)
	}
	return nil
}

// Reload changes the tick interval. A running loop picks it up without
// restarting.
func (s *SchedulerService) Reload(minutes int) error {
	if err := validateInterval(minutes); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.minutes == minutes {
		return nil
	}
	s.minutes = minutes

	interval := time.Duration(minutes) * s.unit
	select {
	case <-s.reloadChan:
	default:
	}
	s.reloadChan <- interval

	s.logger.Info("Scheduler interval changed", map[string]interface{}{
		"intervalMinutes": minutes,
	})
	return nil
}

// Run ticks until ctx is cancelled. A cycle in flight when ctx is cancelled
// completes so that its lock is released.
func (s *SchedulerService) Run(ctx context.Context) error {
	minutes := s.IntervalMinutes()
	if err := validateInterval(minutes); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return lib.SyncError("scheduler is already running")
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(time.Duration(minutes) * s.unit)
	defer ticker.Stop()

	s.logger.Info("Scheduler started", map[string]interface{}{
		"intervalMinutes": minutes,
		"runOnStart":      s.runOnStart,
	})

	if s.runOnStart {
		s.RunCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case interval := <-s.reloadChan:
			ticker.Reset(interval)
		case <-ticker.C:
			s.logger.Debug("Scheduler tick")
			s.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sync, alert evaluation and notification pass and
// returns the sync outcome. Alert and notification failures are logged only.
func (s *SchedulerService) RunCycle(ctx context.Context) models.SyncOutcome {
	outcome := s.runCycle(context.WithoutCancel(ctx))

	s.mutex.Lock()
	callback := s.onCycle
	s.mutex.Unlock()
	if callback != nil {
		callback(outcome)
	}
	return outcome
}

func (s *SchedulerService) runCycle(ctx context.Context) models.SyncOutcome {
	outcome := s.syncer.RunAllSyncs(ctx)
	switch outcome.Status {
	case models.SyncSkipped:
		s.logger.Info("Scheduled sync skipped, another run holds the lock")
		return outcome
	case models.SyncError:
		s.logger.Error("Scheduled sync failed", map[string]interface{}{
			"error":      outcome.Error,
			"durationMs": outcome.DurationMs,
		})
		return outcome
	}

	fired, err := s.alerts.Evaluate()
	if err != nil {
		s.logger.Error("Alert evaluation failed", map[string]interface{}{
			"error": err.Error(),
			"code":  lib.GetErrorCode(err),
		})
		return outcome
	}

	for _, alert := range fired {
		s.logger.Warn("Budget alert", map[string]interface{}{
			"alertKey": alert.AlertKey,
			"level":    alert.Level,
			"message":  alert.Message,
		})
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.logger.Warn("Notification failed", map[string]interface{}{
				"alertKey": alert.AlertKey,
				"error":    err.Error(),
				"code":     lib.GetErrorCode(err),
			})
		}
	}
	return outcome
}
