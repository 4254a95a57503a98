package models

import (
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// SyncState is the result of a sync run.
type SyncState string

const (
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
	// SyncSkipped means another run held the lock. It is never persisted.
	SyncSkipped SyncState = "skipped"
)

// SyncStatus is the sync-status.json document, overwritten after every run
// that acquired the lock.
type SyncStatus struct {
	LastSync   time.Time `json:"lastSync" validate:"required"`
	Status     SyncState `json:"status" validate:"oneof=success error"`
	DurationMs *int64    `json:"durationMs,omitempty" validate:"omitempty,gte=0"`
	Error      string    `json:"error,omitempty" validate:"required_if=Status error"`
}

// Validate checks the persisted status.
func (s *SyncStatus) Validate() error {
	return lib.ValidateStruct("sync status", s)
}

// SyncOutcome is what a caller of RunAllSyncs gets back.
type SyncOutcome struct {
	Status     SyncState `json:"status"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the run completed successfully.
func (o SyncOutcome) OK() bool {
	return o.Status == SyncSuccess
}

// SyncLock is the content of the .sync-lock marker.
type SyncLock struct {
	AcquiredAt time.Time `json:"acquiredAt" validate:"required"`
	RunID      string    `json:"runId" validate:"notblank"`
	PID        int       `json:"pid"`
}

// Age returns how long ago the lock was acquired.
func (l *SyncLock) Age(now time.Time) time.Duration {
	return now.Sub(l.AcquiredAt)
}

// Validate checks the marker fields.
func (l *SyncLock) Validate() error {
	return lib.ValidateStruct("sync lock", l)
}
