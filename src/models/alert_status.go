// Package models contains domain models and configuration types.
package models

// AlertType says what an alert was measured against.
type AlertType string

const (
	AlertTypeGlobal  AlertType = "global"
	AlertTypeProject AlertType = "project"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	LevelWarning  AlertLevel = "warning"
	LevelCritical AlertLevel = "critical"
)

// CriticalPercent is the global threshold at or above which alerts are critical.
const CriticalPercent = 90

// AlertResult is one breached threshold. It is produced per evaluation and
// never persisted.
type AlertResult struct {
	Type        AlertType  `json:"type"`
	Level       AlertLevel `json:"level"`
	Message     string     `json:"message"`
	AlertKey    string     `json:"alertKey"`
	ProjectName string     `json:"projectName,omitempty"`
}

// AlertStatus represents the overall alert level shown in the tray and CLI.
type AlertStatus int

const (
	Green   AlertStatus = iota // Nothing breached
	Yellow                     // At least one warning
	Red                        // At least one critical alert
	Unknown                    // Alert data unavailable
)

// String returns human-readable alert status.
func (a AlertStatus) String() string {
	switch a {
	case Green:
		return "OK"
	case Yellow:
		return "Warning"
	case Red:
		return "Critical"
	case Unknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// StatusFromAlerts folds active alerts into a single status. The worst
// level wins.
func StatusFromAlerts(alerts []AlertResult, isAvailable bool) AlertStatus {
	if !isAvailable {
		return Unknown
	}

	status := Green
	for _, a := range alerts {
		switch a.Level {
		case LevelCritical:
			return Red
		case LevelWarning:
			status = Yellow
		}
	}
	return status
}
