package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// SyncStep is one external data pull run by the sync manager.
type SyncStep interface {
	Name() string
	Run(ctx context.Context) error
}

// SyncService runs every sync step and regenerates analytics under the
// cross-process lock, then records the outcome in sync-status.json.
type SyncService struct {
	store     *DataStore
	analytics *AnalyticsService
	steps     []SyncStep
	lock      *syncLock
	logger    *lib.Logger
	now       func() time.Time
	newRunID  func() string
}

// NewSyncService creates a SyncService. Steps run in the given order.
func NewSyncService(store *DataStore, analytics *AnalyticsService, steps ...SyncStep) *SyncService {
	logger := lib.NewLogger("sync-service")
	return &SyncService{
		store:     store,
		analytics: analytics,
		steps:     steps,
		lock:      newSyncLock(store.Paths().Lock(), logger),
		logger:    logger,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// SetClock replaces the time source of the manager and its lock.
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
	s.lock.now = now
}

// RunAllSyncs runs one full sync. Lock contention returns a skipped outcome
// without touching sync-status.json. The lock is always released before
// returning.
func (s *SyncService) RunAllSyncs(ctx context.Context) models.SyncOutcome {
	runID := s.newRunID()

	acquired, err := s.lock.Acquire(runID)
	if err != nil {
		s.logger.Error("Failed to acquire sync lock", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
		return s.finish(models.SyncError, 0, err)
	}
	if !acquired {
		return models.SyncOutcome{Status: models.SyncSkipped}
	}
	defer s.lock.Release(runID)

	start := s.now()
	s.logger.Info("Sync started", map[string]interface{}{
		"runId": runID,
		"steps": len(s.steps),
	})

	runErr := s.runSteps(ctx, runID)
	duration := s.now().Sub(start).Milliseconds()

	if runErr != nil {
		s.logger.Error("Sync failed", map[string]interface{}{
			"runId":      runID,
			"durationMs": duration,
			"error":      runErr.Error(),
		})
		return s.finish(models.SyncError, duration, runErr)
	}

	s.logger.Info("Sync completed", map[string]interface{}{
		"runId":      runID,
		"durationMs": duration,
	})
	return s.finish(models.SyncSuccess, duration, nil)
}

func (s *SyncService) runSteps(ctx context.Context, runID string) error {
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return lib.WrapError(err, lib.ErrCodeSync, "sync cancelled before "+step.Name())
		}

		s.logger.Debug("Running sync step", map[string]interface{}{
			"runId": runID,
			"step":  step.Name(),
		})
		if err := step.Run(ctx); err != nil {
			return lib.WrapError(err, lib.ErrCodeSync, fmt.Sprintf("%s sync failed", step.Name())).
				WithContext("step", step.Name())
		}
	}

	if _, err := s.analytics.Generate(); err != nil {
		return lib.WrapError(err, lib.ErrCodeSync, "analytics generation failed")
	}
	return nil
}

func (s *SyncService) finish(state models.SyncState, durationMs int64, runErr error) models.SyncOutcome {
	outcome := models.SyncOutcome{Status: state, DurationMs: durationMs}
	status := &models.SyncStatus{
		LastSync:   s.now().UTC(),
		Status:     state,
		DurationMs: &durationMs,
	}
	if runErr != nil {
		outcome.Error = runErr.Error()
		status.Error = runErr.Error()
	}

	if err := s.store.SaveSyncStatus(status); err != nil {
		s.logger.Error("Failed to persist sync status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return outcome
}

// Status returns the last persisted sync status.
func (s *SyncService) Status() (*models.SyncStatus, error) {
	return s.store.LoadSyncStatus()
}

// IsRunning reports whether a live sync lock exists.
func (s *SyncService) IsRunning() bool {
	return s.lock.Held()
}
