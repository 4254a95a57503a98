package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-03", MonthKey(time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)))

	// 2026-04-01 00:30 in UTC+2 is still March in UTC.
	tz := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, "2026-03", MonthKey(time.Date(2026, 4, 1, 0, 30, 0, 0, tz)))
}

func TestAlertState_MaybeRollMonth(t *testing.T) {
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	state := NewAlertState(march)
	state.MarkFired("global-75")

	assert.False(t, state.MaybeRollMonth(march.Add(48*time.Hour)))
	assert.True(t, state.HasFired("global-75"))
	assert.Equal(t, march, state.LastReset)

	april := time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)
	assert.True(t, state.MaybeRollMonth(april))
	assert.False(t, state.HasFired("global-75"))
	assert.Empty(t, state.FiredAlerts)
	assert.NotNil(t, state.FiredAlerts)
	assert.Equal(t, "2026-04", state.Month)
	assert.Equal(t, april, state.LastReset)

	assert.False(t, state.MaybeRollMonth(april))
}

func TestAlertState_MarkFiredIsIdempotent(t *testing.T) {
	state := NewAlertState(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	state.MarkFired("global-75")
	state.MarkFired("global-75")
	state.MarkFired("project-acme-limit")

	assert.Equal(t, []string{"global-75", "project-acme-limit"}, state.FiredAlerts)
}

func TestAlertState_Validate(t *testing.T) {
	assert.NoError(t, NewAlertState(time.Now()).Validate())

	state := &AlertState{Month: "March", FiredAlerts: []string{""}}
	err := state.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "month: must be a YYYY-MM month")
	assert.Contains(t, err.Error(), "lastReset")
	assert.Contains(t, err.Error(), "firedAlerts[0]: is required")
}
