package main

import (
	"log"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
	"github.com/Telepatic-Kodes/rei-os/src/services"
)

// app holds the services shared by every command.
type app struct {
	configService *services.ConfigService
	config        *models.Config
	store         *services.DataStore
	history       *services.HistoryService
	analytics     *services.AnalyticsService
	alerts        *services.AlertService
	syncs         *services.SyncService
}

// newApp loads configuration from configPath (or the XDG default when
// empty) and wires the services. An unreadable or invalid config falls
// back to defaults.
func newApp(configPath string) *app {
	configService := services.NewConfigService()
	if configPath != "" {
		configService.SetConfigPath(configPath)
	}

	config, err := configService.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		log.Printf("Using default configuration")
		config = models.ConfigDefaults()
	}
	lib.SetGlobalLevel(config.GetLogLevel())

	store := services.NewDataStore(config.DataDir)
	history := services.NewHistoryService(store.Paths().History())
	analytics := services.NewAnalyticsService(store)

	syncs := services.NewSyncService(store, analytics,
		services.NewTokenSyncStep(config, store, history),
		services.NewQualitySyncStep(config, store, history),
		services.NewProjectSyncStep(config, store, history),
	)

	return &app{
		configService: configService,
		config:        config,
		store:         store,
		history:       history,
		analytics:     analytics,
		alerts:        services.NewAlertService(store),
		syncs:         syncs,
	}
}

// newScheduler builds a scheduler that notifies on the desktop.
func (a *app) newScheduler() *services.SchedulerService {
	return services.NewSchedulerService(a.syncs, a.alerts,
		services.NewDesktopNotifier(a.config), a.config.IntervalMinutes)
}
