package models

import (
	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// AlertThreshold fires when global spend reaches Percent of the budget.
type AlertThreshold struct {
	Percent float64 `json:"percent" validate:"between=0 100"`
	Label   string  `json:"label,omitempty"`
}

// AlertConfig is the user-editable config/alerts.json document.
type AlertConfig struct {
	GlobalBudget     float64            `json:"globalBudget" validate:"gte=1"`
	GlobalThresholds []AlertThreshold   `json:"globalThresholds" validate:"required,dive"`
	PerProjectLimits map[string]float64 `json:"perProjectLimits" validate:"required,dive,gte=0"`
}

// DefaultAlertConfig is used when config/alerts.json is missing or invalid.
func DefaultAlertConfig() *AlertConfig {
	return &AlertConfig{
		GlobalBudget: 200,
		GlobalThresholds: []AlertThreshold{
			{Percent: 75, Label: "Warning"},
			{Percent: 90, Label: "Critical"},
		},
		PerProjectLimits: map[string]float64{},
	}
}

// Validate checks the budget, thresholds and per-project limits.
func (c *AlertConfig) Validate() error {
	return lib.ValidateStruct("alert config", c)
}
