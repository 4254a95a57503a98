package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Telepatic-Kodes/rei-os/src/models"
)

func startConfigWatcher(t *testing.T) (*SchedulerService, *ConfigService) {
	t.Helper()
	cs := NewConfigService()
	cs.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, cs.Save(models.ConfigDefaults()))

	scheduler := NewSchedulerService(&fakeSyncer{}, &fakeEvaluator{}, nil, 15)
	w := NewConfigWatcher(cs, scheduler)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}
	return scheduler, cs
}

func TestConfigWatcher_AppliesNewInterval(t *testing.T) {
	scheduler, cs := startConfigWatcher(t)

	config := models.ConfigDefaults()
	config.IntervalMinutes = 30
	require.NoError(t, cs.Save(config))

	assert.Eventually(t, func() bool { return scheduler.IntervalMinutes() == 30 },
		2*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_IgnoresInvalidConfig(t *testing.T) {
	scheduler, cs := startConfigWatcher(t)

	require.NoError(t, os.WriteFile(cs.GetConfigPath(), []byte("interval_minutes: 0\n"), 0o600))

	assert.Never(t, func() bool { return scheduler.IntervalMinutes() != 15 },
		300*time.Millisecond, 20*time.Millisecond)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	scheduler, cs := startConfigWatcher(t)

	other := filepath.Join(filepath.Dir(cs.GetConfigPath()), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("interval_minutes: 45\n"), 0o600))

	assert.Never(t, func() bool { return scheduler.IntervalMinutes() != 15 },
		300*time.Millisecond, 20*time.Millisecond)
}
