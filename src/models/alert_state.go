package models

import (
	"slices"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// MonthLayout formats calendar months as used by alert state and history files.
const MonthLayout = "2006-01"

// MonthKey returns the UTC calendar month of t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// AlertState records which alert keys have fired in the current month.
//
// FiredAlerts only ever holds keys for Month; MaybeRollMonth must be called
// before the state is consulted so that a new calendar month starts empty.
type AlertState struct {
	FiredAlerts []string  `json:"firedAlerts" validate:"required,dive,notblank"`
	LastReset   time.Time `json:"lastReset" validate:"required"`
	Month       string    `json:"month" validate:"datetime=2006-01"`
}

// NewAlertState returns an empty state for the month of now.
func NewAlertState(now time.Time) *AlertState {
	return &AlertState{
		FiredAlerts: []string{},
		LastReset:   now.UTC(),
		Month:       MonthKey(now),
	}
}

// MaybeRollMonth clears the fired set when now falls in a different month
// than the state. It reports whether a reset happened.
func (s *AlertState) MaybeRollMonth(now time.Time) bool {
	current := MonthKey(now)
	if s.Month == current {
		return false
	}
	s.FiredAlerts = []string{}
	s.Month = current
	s.LastReset = now.UTC()
	return true
}

// HasFired reports whether key already fired this month.
func (s *AlertState) HasFired(key string) bool {
	return slices.Contains(s.FiredAlerts, key)
}

// MarkFired records key. Recording an already fired key is a no-op.
func (s *AlertState) MarkFired(key string) {
	if !s.HasFired(key) {
		s.FiredAlerts = append(s.FiredAlerts, key)
	}
}

// Validate checks the month format and fired keys.
func (s *AlertState) Validate() error {
	return lib.ValidateStruct("alert state", s)
}
