package models

import (
	"fmt"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// WindowDays lists the rolling windows kept in analytics.json.
var WindowDays = []int{7, 30, 90}

// ModelUsage is spend for one model inside a window.
type ModelUsage struct {
	Cost      float64 `json:"cost" validate:"gte=0"`
	TokensIn  int64   `json:"tokensIn" validate:"gte=0"`
	TokensOut int64   `json:"tokensOut" validate:"gte=0"`
}

// AnalyticsWindow aggregates ledger rows over a rolling window.
type AnalyticsWindow struct {
	TotalCost float64               `json:"totalCost" validate:"gte=0"`
	TokensIn  int64                 `json:"tokensIn" validate:"gte=0"`
	TokensOut int64                 `json:"tokensOut" validate:"gte=0"`
	ByModel   map[string]ModelUsage `json:"byModel" validate:"required,dive"`
	BurnRate  float64               `json:"burnRate" validate:"gte=0"` // totalCost / window days
}

// EmptyWindow returns an all-zero window.
func EmptyWindow() AnalyticsWindow {
	return AnalyticsWindow{ByModel: map[string]ModelUsage{}}
}

// AnalyticsWindows holds the 7, 30 and 90 day windows.
type AnalyticsWindows struct {
	Week    AnalyticsWindow `json:"7d"`
	Month   AnalyticsWindow `json:"30d"`
	Quarter AnalyticsWindow `json:"90d"`
}

// Get returns the window for days, which must be one of WindowDays.
func (w *AnalyticsWindows) Get(days int) (AnalyticsWindow, bool) {
	switch days {
	case 7:
		return w.Week, true
	case 30:
		return w.Month, true
	case 90:
		return w.Quarter, true
	}
	return AnalyticsWindow{}, false
}

// Set stores window under days.
func (w *AnalyticsWindows) Set(days int, window AnalyticsWindow) error {
	switch days {
	case 7:
		w.Week = window
	case 30:
		w.Month = window
	case 90:
		w.Quarter = window
	default:
		return lib.ValidationError(fmt.Sprintf("unsupported analytics window: %dd", days))
	}
	return nil
}

// Analytics is the derived analytics.json document.
type Analytics struct {
	GeneratedAt time.Time        `json:"generatedAt" validate:"required"`
	Windows     AnalyticsWindows `json:"windows"`
}

// EmptyAnalytics returns a well-formed document with three empty windows.
func EmptyAnalytics(generatedAt time.Time) *Analytics {
	return &Analytics{
		GeneratedAt: generatedAt,
		Windows: AnalyticsWindows{
			Week:    EmptyWindow(),
			Month:   EmptyWindow(),
			Quarter: EmptyWindow(),
		},
	}
}

// Validate checks the generation timestamp and every window.
func (a *Analytics) Validate() error {
	return lib.ValidateStruct("analytics", a)
}
