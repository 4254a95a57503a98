package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/Telepatic-Kodes/rei-os/src/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB020"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
)

func field(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

func renderOutcome(o models.SyncOutcome) string {
	switch o.Status {
	case models.SyncSuccess:
		return okStyle.Render("✔ Sync completed") + mutedStyle.Render(fmt.Sprintf(" in %dms", o.DurationMs))
	case models.SyncSkipped:
		return warnStyle.Render("Sync already in progress, skipped")
	default:
		return errorStyle.Render("✘ Sync failed: ") + o.Error
	}
}

func renderAnalytics(a *models.Analytics) string {
	lines := []string{
		headingStyle.Render("Spend analytics"),
		field("Generated", a.GeneratedAt.Local().Format("2006-01-02 15:04:05")),
	}

	for _, days := range models.WindowDays {
		w, _ := a.Windows.Get(days)
		lines = append(lines, "",
			headingStyle.Render(fmt.Sprintf("Last %d days", days)),
			field("Total", models.FormatUSD(w.TotalCost)),
			field("Burn rate", models.FormatUSD(w.BurnRate)+"/day"),
			field("Tokens", fmt.Sprintf("%d in / %d out", w.TokensIn, w.TokensOut)),
		)

		modelNames := lo.Keys(w.ByModel)
		slices.Sort(modelNames)
		for _, name := range modelNames {
			usage := w.ByModel[name]
			lines = append(lines, field("  "+name, models.FormatUSD(usage.Cost)))
		}
	}
	return strings.Join(lines, "\n")
}

func alertStyle(level models.AlertLevel) lipgloss.Style {
	if level == models.LevelCritical {
		return errorStyle
	}
	return warnStyle
}

func renderAlerts(title string, alerts []models.AlertResult) string {
	if len(alerts) == 0 {
		return okStyle.Render("No alerts")
	}

	lines := []string{headingStyle.Render(title)}
	for _, a := range alerts {
		lines = append(lines, alertStyle(a.Level).Render(fmt.Sprintf("[%s]", a.Level))+" "+a.Message)
	}
	return strings.Join(lines, "\n")
}

// statusView is everything the status command shows.
type statusView struct {
	ConfigPath string
	DataDir    string
	Interval   int
	Sync       *models.SyncStatus
	Running    bool
	Alerts     []models.AlertResult
}

func renderStatus(v statusView, now time.Time) string {
	lines := []string{
		headingStyle.Render("rei-os status"),
		field("Config", v.ConfigPath),
		field("Data", v.DataDir),
		field("Interval", fmt.Sprintf("%d min", v.Interval)),
	}

	switch {
	case v.Running:
		lines = append(lines, field("Last sync", warnStyle.Render("running now")))
	case v.Sync == nil:
		lines = append(lines, field("Last sync", mutedStyle.Render("never synced")))
	default:
		ago := now.Sub(v.Sync.LastSync).Truncate(time.Second)
		when := fmt.Sprintf("%s (%s ago)", v.Sync.LastSync.Local().Format("2006-01-02 15:04:05"), ago)
		lines = append(lines, field("Last sync", when))
		if v.Sync.Status == models.SyncError {
			lines = append(lines, field("Result", errorStyle.Render("error: ")+v.Sync.Error))
		} else {
			lines = append(lines, field("Result", okStyle.Render(string(v.Sync.Status))))
		}
	}

	status := models.StatusFromAlerts(v.Alerts, true)
	lines = append(lines, field("Budget", emojiForStatus(status)+" "+status.String()))
	for _, a := range v.Alerts {
		lines = append(lines, "  "+alertStyle(a.Level).Render(a.Message))
	}
	return strings.Join(lines, "\n")
}
