package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

const configReloadDebounce = 200 * time.Millisecond

// ConfigWatcher reloads the config file when it changes and applies the
// new interval and log level to a running scheduler.
type ConfigWatcher struct {
	configService *ConfigService
	scheduler     *SchedulerService
	logger        *lib.Logger
	debounce      time.Duration
	ready         chan struct{}
}

// NewConfigWatcher creates a watcher for the file behind configService.
func NewConfigWatcher(configService *ConfigService, scheduler *SchedulerService) *ConfigWatcher {
	return &ConfigWatcher{
		configService: configService,
		scheduler:     scheduler,
		logger:        lib.NewLogger("config-watcher"),
		debounce:      configReloadDebounce,
		ready:         make(chan struct{}),
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that editors replacing the file by rename are noticed.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to create file watcher")
	}
	defer watcher.Close()

	path := filepath.Clean(w.configService.GetConfigPath())
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to watch config directory").
			WithContext("path", path)
	}
	close(w.ready)

	w.logger.Info("Watching config file", map[string]interface{}{
		"path": path,
	})

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			// Removal is ignored: Load would recreate the file with defaults.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", map[string]interface{}{
				"error": err.Error(),
			})

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	config, err := w.configService.Load()
	if err != nil {
		w.logger.Error("Config reload failed, keeping current settings", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	lib.SetGlobalLevel(config.GetLogLevel())

	if config.IntervalMinutes != w.scheduler.IntervalMinutes() {
		if err := w.scheduler.Reload(config.IntervalMinutes); err != nil {
			w.logger.Error("Failed to apply new interval", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
