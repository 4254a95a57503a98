package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getlantern/systray"
	"github.com/spf13/cobra"

	"github.com/Telepatic-Kodes/rei-os/src/models"
	"github.com/Telepatic-Kodes/rei-os/src/services"
)

const trayDetailItems = 6

func emojiForStatus(status models.AlertStatus) string {
	switch status {
	case models.Green:
		return "🟢"
	case models.Yellow:
		return "🟡"
	case models.Red:
		return "🔴"
	case models.Unknown:
		return "⚪️"
	default:
		return "⚪️"
	}
}

// trayState is what the tray shows after a cycle.
type trayState struct {
	MonthSpend  float64
	Available   bool
	Alerts      []models.AlertResult
	LastOutcome *models.SyncOutcome
	UpdatedAt   time.Time
}

func trayTitle(s trayState) string {
	status := models.StatusFromAlerts(s.Alerts, s.Available)
	if !s.Available {
		return "REI " + emojiForStatus(status)
	}
	return "REI " + emojiForStatus(status) + " " + models.FormatUSD(s.MonthSpend)
}

func trayDetails(s trayState) []string {
	if !s.Available {
		return []string{"⚠️ Analytics unavailable, run a sync"}
	}

	lines := []string{fmt.Sprintf("💰 30-day spend: %s", models.FormatUSD(s.MonthSpend))}
	if s.LastOutcome != nil {
		switch s.LastOutcome.Status {
		case models.SyncSuccess:
			lines = append(lines, fmt.Sprintf("🔄 Last sync: ok (%dms)", s.LastOutcome.DurationMs))
		case models.SyncSkipped:
			lines = append(lines, "🔄 Last sync: skipped")
		default:
			lines = append(lines, "❌ Last sync failed")
		}
	}
	for _, a := range s.Alerts {
		icon := "⚠️"
		if a.Level == models.LevelCritical {
			icon = "🚨"
		}
		lines = append(lines, icon+" "+a.Message)
	}
	lines = append(lines, fmt.Sprintf("📅 Updated: %s", s.UpdatedAt.Format("2006-01-02 15:04:05")))
	return lines
}

// readTrayState collects the tray contents from the data directory.
func readTrayState(a *app, outcome *models.SyncOutcome) trayState {
	state := trayState{LastOutcome: outcome, UpdatedAt: time.Now()}
	analytics, err := a.store.LoadAnalytics()
	if err != nil {
		return state
	}
	state.Available = true
	state.MonthSpend = analytics.Windows.Month.TotalCost
	state.Alerts = a.alerts.Active()
	return state
}

type trayUI struct {
	app       *app
	scheduler *services.SchedulerService
	items     []*systray.MenuItem
	cancel    context.CancelFunc
}

func newTrayCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Show budget status in the system tray and sync on the interval",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a := get()
			ui := &trayUI{app: a, scheduler: a.newScheduler()}
			systray.Run(ui.onReady, ui.onExit)
		},
	}
}

func (t *trayUI) onReady() {
	systray.SetTitle("REI Loading...")
	systray.SetTooltip("rei-os budget monitor")

	for i := 0; i < trayDetailItems; i++ {
		t.items = append(t.items, systray.AddMenuItem("Loading...", "Loading..."))
	}
	systray.AddSeparator()
	mSync := systray.AddMenuItem("Sync Now", "Run all syncs now")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	t.refresh(nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.scheduler.SetOnCycle(func(outcome models.SyncOutcome) {
		t.refresh(&outcome)
	})
	t.scheduler.SetRunOnStart(true)
	go func() {
		if err := t.scheduler.Run(ctx); err != nil {
			log.Printf("Scheduler stopped: %v", err)
		}
	}()

	go func() {
		for {
			select {
			case <-mSync.ClickedCh:
				systray.SetTitle("REI Syncing...")
				go t.scheduler.RunCycle(ctx)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *trayUI) refresh(outcome *models.SyncOutcome) {
	state := readTrayState(t.app, outcome)
	systray.SetTitle(trayTitle(state))

	details := trayDetails(state)
	for i, item := range t.items {
		if i < len(details) {
			item.Show()
			item.SetTitle(details[i])
		} else {
			item.Hide()
		}
	}
}

func (t *trayUI) onExit() {
	if t.cancel != nil {
		t.cancel()
	}
}
