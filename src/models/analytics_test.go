package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyAnalytics(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	a := EmptyAnalytics(now)

	assert.Equal(t, now, a.GeneratedAt)
	for _, days := range WindowDays {
		w, ok := a.Windows.Get(days)
		require.True(t, ok)
		assert.Zero(t, w.TotalCost)
		assert.NotNil(t, w.ByModel)
	}
	assert.NoError(t, a.Validate())
}

func TestAnalyticsWindows_JSONKeys(t *testing.T) {
	a := EmptyAnalytics(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	a.Windows.Month.TotalCost = 10

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var generic struct {
		GeneratedAt string                            `json:"generatedAt"`
		Windows     map[string]map[string]interface{} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "2026-03-14T12:00:00Z", generic.GeneratedAt)
	windows := generic.Windows
	assert.Contains(t, windows, "7d")
	assert.Contains(t, windows, "30d")
	assert.Contains(t, windows, "90d")
	assert.Equal(t, 10.0, windows["30d"]["totalCost"])
	assert.Equal(t, map[string]interface{}{}, windows["90d"]["byModel"])
}

func TestAnalyticsWindows_GetSet(t *testing.T) {
	var windows AnalyticsWindows
	w := EmptyWindow()
	w.TotalCost = 3

	require.NoError(t, windows.Set(90, w))
	got, ok := windows.Get(90)
	require.True(t, ok)
	assert.Equal(t, 3.0, got.TotalCost)

	_, ok = windows.Get(14)
	assert.False(t, ok)
	assert.Error(t, windows.Set(14, w))
}

func TestAnalytics_Validate(t *testing.T) {
	a := EmptyAnalytics(time.Time{})
	a.Windows.Week.TotalCost = -1
	a.Windows.Quarter.ByModel = nil
	a.Windows.Month.ByModel["m"] = ModelUsage{Cost: -2}

	err := a.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "generatedAt")
	assert.Contains(t, err.Error(), "windows.7d.totalCost")
	assert.Contains(t, err.Error(), "windows.90d.byModel")
	assert.Contains(t, err.Error(), "windows.30d.byModel.m.cost")
}
