package models

import (
	"fmt"
	"time"
)

// NotificationData is the data available to notification title and body
// templates.
type NotificationData struct {
	Level       string `json:"level"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	AlertKey    string `json:"alertKey"`
	ProjectName string `json:"projectName"`
	Month       string `json:"month"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// NewNotificationData creates NotificationData for an alert raised at now.
func NewNotificationData(alert AlertResult, now time.Time) *NotificationData {
	return &NotificationData{
		Level:       string(alert.Level),
		Type:        string(alert.Type),
		Message:     alert.Message,
		AlertKey:    alert.AlertKey,
		ProjectName: alert.ProjectName,
		Month:       MonthKey(now),
		Date:        now.Format(DateLayout),
		Time:        now.Format("15:04"),
	}
}

// FormatUSD renders amount the way alert messages and the CLI show money.
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
