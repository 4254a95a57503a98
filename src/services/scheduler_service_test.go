package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

type fakeSyncer struct {
	outcome models.SyncOutcome
	calls   atomic.Int32
	run     func(ctx context.Context)
}

func (f *fakeSyncer) RunAllSyncs(ctx context.Context) models.SyncOutcome {
	f.calls.Add(1)
	if f.run != nil {
		f.run(ctx)
	}
	return f.outcome
}

type fakeEvaluator struct {
	alerts []models.AlertResult
	err    error
	calls  atomic.Int32
}

func (f *fakeEvaluator) Evaluate() ([]models.AlertResult, error) {
	f.calls.Add(1)
	return f.alerts, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	keys    []string
	failFor string
}

func (r *recordingNotifier) Notify(_ context.Context, alert models.AlertResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, alert.AlertKey)
	if alert.AlertKey == r.failFor {
		return lib.NewError(lib.ErrCodeNotify, "notify-send not found")
	}
	return nil
}

func (r *recordingNotifier) notified() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

var twoAlerts = []models.AlertResult{
	{Type: models.AlertTypeGlobal, Level: models.LevelWarning, AlertKey: "global-75"},
	{Type: models.AlertTypeGlobal, Level: models.LevelCritical, AlertKey: "global-90"},
}

func TestSchedulerService_RunCycleNotifiesNewAlerts(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	evaluator := &fakeEvaluator{alerts: twoAlerts}
	notifier := &recordingNotifier{failFor: "global-75"}
	s := NewSchedulerService(syncer, evaluator, notifier, 15)

	outcome := s.RunCycle(context.Background())

	assert.True(t, outcome.OK())
	assert.Equal(t, int32(1), evaluator.calls.Load())
	assert.Equal(t, []string{"global-75", "global-90"}, notifier.notified(),
		"a failed notification does not stop the rest")
}

func TestSchedulerService_OnCycleCallback(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncError, Error: "boom"}}
	s := NewSchedulerService(syncer, &fakeEvaluator{}, nil, 15)
	var got []models.SyncOutcome
	s.SetOnCycle(func(o models.SyncOutcome) { got = append(got, o) })

	s.RunCycle(context.Background())

	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Error)
}

func TestSchedulerService_RunCycleSkipsAlertsUnlessSuccessful(t *testing.T) {
	for _, status := range []models.SyncState{models.SyncSkipped, models.SyncError} {
		t.Run(string(status), func(t *testing.T) {
			syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: status, Error: "boom"}}
			evaluator := &fakeEvaluator{alerts: twoAlerts}
			notifier := &recordingNotifier{}
			s := NewSchedulerService(syncer, evaluator, notifier, 15)

			outcome := s.RunCycle(context.Background())

			assert.Equal(t, status, outcome.Status)
			assert.Zero(t, evaluator.calls.Load())
			assert.Empty(t, notifier.notified())
		})
	}
}

func TestSchedulerService_RunCycleEvaluationError(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	evaluator := &fakeEvaluator{alerts: twoAlerts, err: errors.New("alert-state.json is not valid JSON")}
	notifier := &recordingNotifier{}
	s := NewSchedulerService(syncer, evaluator, notifier, 15)

	outcome := s.RunCycle(context.Background())

	assert.True(t, outcome.OK(), "alert failures do not change the sync outcome")
	assert.Empty(t, notifier.notified())
}

func TestSchedulerService_NilNotifier(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	s := NewSchedulerService(syncer, &fakeEvaluator{alerts: twoAlerts}, nil, 15)

	assert.NotPanics(t, func() { s.RunCycle(context.Background()) })
}

func TestSchedulerService_RunTicksUntilCancelled(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	s := NewSchedulerService(syncer, &fakeEvaluator{}, nil, 5)
	s.unit = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerService_RunOnStart(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	s := NewSchedulerService(syncer, &fakeEvaluator{}, nil, maxIntervalMinutes)
	s.SetRunOnStart(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	assert.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerService_InFlightCycleSurvivesCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var innerErr atomic.Value
	syncer := &fakeSyncer{
		outcome: models.SyncOutcome{Status: models.SyncSuccess},
		run: func(ctx context.Context) {
			close(started)
			<-release
			innerErr.Store(ctx.Err() == nil)
		},
	}
	s := NewSchedulerService(syncer, &fakeEvaluator{}, nil, maxIntervalMinutes)
	s.SetRunOnStart(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, true, innerErr.Load(), "the running sync must not see the cancellation")
}

func TestSchedulerService_Reload(t *testing.T) {
	syncer := &fakeSyncer{outcome: models.SyncOutcome{Status: models.SyncSuccess}}
	s := NewSchedulerService(syncer, &fakeEvaluator{}, nil, maxIntervalMinutes)
	s.unit = time.Millisecond

	assert.True(t, lib.IsErrorCode(s.Reload(0), lib.ErrCodeValidation))
	assert.True(t, lib.IsErrorCode(s.Reload(1441), lib.ErrCodeValidation))
	assert.Equal(t, maxIntervalMinutes, s.IntervalMinutes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	// 1440ms between ticks until the reload lands.
	require.NoError(t, s.Reload(2))
	assert.Equal(t, 2, s.IntervalMinutes())
	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 5 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerService_RejectsSecondRun(t *testing.T) {
	s := NewSchedulerService(&fakeSyncer{}, &fakeEvaluator{}, nil, 15)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	require.Eventually(t, s.running.Load, time.Second, 5*time.Millisecond)

	err := s.Run(ctx)
	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeSync))
}

func TestSchedulerService_InvalidInterval(t *testing.T) {
	s := NewSchedulerService(&fakeSyncer{}, &fakeEvaluator{}, nil, 0)

	err := s.Run(context.Background())

	assert.True(t, lib.IsErrorCode(err, lib.ErrCodeValidation))
}

func TestSchedulerService_EndToEndFiresOncePerMonth(t *testing.T) {
	store := NewDataStore(t.TempDir())
	now := time.Now()
	saveLedger(t, store, ledgerEntry(daysAgo(now, 0), "claude-sonnet", 190))

	syncs := NewSyncService(store, NewAnalyticsService(store))
	notifier := &recordingNotifier{}
	s := NewSchedulerService(syncs, NewAlertService(store), notifier, 15)

	require.True(t, s.RunCycle(context.Background()).OK())
	assert.Equal(t, []string{"global-75", "global-90"}, notifier.notified())

	require.True(t, s.RunCycle(context.Background()).OK())
	assert.Len(t, notifier.notified(), 2, "alerts fire once per month")
}
