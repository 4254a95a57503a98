package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Telepatic-Kodes/rei-os/src/models"
)

func TestRenderOutcome(t *testing.T) {
	assert.Contains(t, renderOutcome(models.SyncOutcome{Status: models.SyncSuccess, DurationMs: 42}), "in 42ms")
	assert.Contains(t, renderOutcome(models.SyncOutcome{Status: models.SyncSkipped}), "already in progress")
	assert.Contains(t, renderOutcome(models.SyncOutcome{Status: models.SyncError, Error: "boom"}), "boom")
}

func TestRenderAlerts(t *testing.T) {
	assert.Contains(t, renderAlerts("New alerts", nil), "No alerts")

	out := renderAlerts("New alerts", []models.AlertResult{
		{Level: models.LevelWarning, Message: "Project acme at 80%"},
	})
	assert.Contains(t, out, "New alerts")
	assert.Contains(t, out, "[warning] Project acme at 80%")
}

func TestRenderStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	base := statusView{ConfigPath: "/cfg.yaml", DataDir: "/data", Interval: 30}

	tests := []struct {
		name     string
		view     func(v statusView) statusView
		contains []string
	}{
		{
			name:     "never synced",
			view:     func(v statusView) statusView { return v },
			contains: []string{"never synced", "30 min", "🟢 OK"},
		},
		{
			name: "running",
			view: func(v statusView) statusView {
				v.Running = true
				return v
			},
			contains: []string{"running now"},
		},
		{
			name: "failed sync with critical alert",
			view: func(v statusView) statusView {
				v.Sync = &models.SyncStatus{LastSync: now.Add(-90 * time.Second), Status: models.SyncError, Error: "api down"}
				v.Alerts = []models.AlertResult{{Level: models.LevelCritical, Message: "Global spend at 95%"}}
				return v
			},
			contains: []string{"1m30s ago", "error: api down", "🔴 Critical", "Global spend at 95%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderStatus(tt.view(base), now)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}
