package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// staleLockAge is how old a marker must be before it is treated as left
// behind by a crashed run.
const staleLockAge = time.Hour

// syncLock is an advisory single-host lock backed by a marker file.
// Creation uses O_EXCL so two processes can never both acquire it.
type syncLock struct {
	path   string
	now    func() time.Time
	logger *lib.Logger

	// beforeReclaim runs between judging a marker stale and reclaiming it.
	beforeReclaim func()
}

func newSyncLock(path string, logger *lib.Logger) *syncLock {
	return &syncLock{path: path, now: time.Now, logger: logger}
}

// Acquire tries to take the lock for runID. It returns false when a live
// marker is held by someone else. An abandoned marker is reclaimed and
// acquisition is retried once.
func (l *syncLock) Acquire(runID string) (bool, error) {
	ok, err := l.create(runID)
	if ok || err != nil {
		return ok, err
	}

	held, owner := l.inspect(l.path)
	if held {
		l.logger.Info("Sync lock held, skipping", map[string]interface{}{
			"owner": owner,
		})
		return false, nil
	}

	if l.beforeReclaim != nil {
		l.beforeReclaim()
	}
	reclaimed, err := l.reclaim(runID)
	if !reclaimed || err != nil {
		return false, err
	}

	l.logger.Warn("Reclaimed abandoned sync lock", map[string]interface{}{
		"path":  l.path,
		"owner": owner,
	})
	return l.create(runID)
}

// reclaim moves the marker aside and judges the moved file again. Rename is
// atomic, so among concurrent reclaimers only one takes a given marker. If
// the taken marker turns out to be live, it was created by a reclaimer that
// won the race, and it is linked back into place.
func (l *syncLock) reclaim(runID string) (bool, error) {
	aside := l.path + ".stale-" + runID
	if err := os.Rename(l.path, aside); err != nil {
		if os.IsNotExist(err) {
			// Another reclaimer moved it first; try to create below.
			return true, nil
		}
		return false, lib.WrapError(err, lib.ErrCodeLock, "failed to move stale sync lock").
			WithContext("path", l.path)
	}
	defer os.Remove(aside)

	held, owner := l.inspect(aside)
	if !held {
		return true, nil
	}

	if err := os.Link(aside, l.path); err != nil {
		return false, lib.LockError("sync lock was replaced while reclaiming").
			WithContext("path", l.path).
			WithContext("owner", owner)
	}
	l.logger.Info("Sync lock taken by a concurrent run, skipping", map[string]interface{}{
		"owner": owner,
	})
	return false, nil
}

func (l *syncLock) create(runID string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, lib.WrapError(err, lib.ErrCodeLock, "failed to create data directory")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, lib.WrapError(err, lib.ErrCodeLock, "failed to create sync lock").
			WithContext("path", l.path)
	}
	defer f.Close()

	marker := models.SyncLock{AcquiredAt: l.now().UTC(), RunID: runID, PID: os.Getpid()}
	if err := json.NewEncoder(f).Encode(marker); err != nil {
		_ = os.Remove(l.path)
		return false, lib.WrapError(err, lib.ErrCodeLock, "failed to write sync lock").
			WithContext("path", l.path)
	}
	return true, nil
}

// inspect reports whether the marker at path is live, and its owner run id.
// A marker that cannot be parsed is judged by its modification time, since a
// concurrent holder may not have finished writing it yet.
func (l *syncLock) inspect(path string) (bool, string) {
	now := l.now()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, ""
	}

	var marker models.SyncLock
	if err == nil && json.Unmarshal(data, &marker) == nil && marker.Validate() == nil {
		return marker.Age(now) < staleLockAge, marker.RunID
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return false, ""
	}
	return now.Sub(info.ModTime()) < staleLockAge, ""
}

// Release removes the marker. A marker owned by another run is still
// removed, with a warning.
func (l *syncLock) Release(runID string) {
	data, err := os.ReadFile(l.path)
	if err == nil {
		var marker models.SyncLock
		if json.Unmarshal(data, &marker) == nil && marker.RunID != runID {
			l.logger.Warn("Releasing sync lock owned by another run", map[string]interface{}{
				"owner": marker.RunID,
				"runId": runID,
			})
		}
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Error("Failed to remove sync lock", map[string]interface{}{
			"path":  l.path,
			"error": err.Error(),
		})
	}
}

// Held reports whether a live marker currently exists.
func (l *syncLock) Held() bool {
	held, _ := l.inspect(l.path)
	return held
}
