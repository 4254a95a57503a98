// Package models contains domain models and configuration types.
package models

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

const (
	defaultIntervalMinutes    = 15
	defaultRetentionMonths    = 6
	defaultCmdTimeoutSeconds  = 10
	defaultHTTPTimeoutSeconds = 30
	defaultUsageAPIURL        = "https://api.anthropic.com"
	defaultListenAddr         = "127.0.0.1:8787"

	defaultNotificationTitle = `{{if eq .Level "critical"}}Critical Budget Alert{{else}}Budget Warning{{end}}`
	defaultNotificationBody  = `{{.Message}}`
)

// Config represents the application configuration structure.
type Config struct {
	DataDir           string `yaml:"data_dir" validate:"notblank"`
	ProjectsDir       string `yaml:"projects_dir" validate:"notblank"`
	IntervalMinutes   int    `yaml:"interval_minutes" validate:"between=1 1440"`
	RetentionMonths   int    `yaml:"retention_months" validate:"between=1 120"`
	UsageAPIURL       string `yaml:"usage_api_url" validate:"http_url"`
	CmdTimeout        int    `yaml:"cmd_timeout" validate:"between=1 300"`  // Subprocess timeout in seconds
	HTTPTimeout       int    `yaml:"http_timeout" validate:"between=1 300"` // Usage API timeout in seconds
	ListenAddr        string `yaml:"listen_addr" validate:"notblank"`
	Notifications     bool   `yaml:"notifications"`
	NotificationTitle string `yaml:"notification_title" validate:"notblank,template"`
	NotificationBody  string `yaml:"notification_body" validate:"notblank,template"`
	DebugLevel        string `yaml:"debug_level" validate:"loglevel"`
}

// ConfigDefaults returns a Config struct with default values.
func ConfigDefaults() *Config {
	return &Config{
		DataDir:           filepath.Join(xdg.DataHome, "rei-os"),
		ProjectsDir:       filepath.Join(xdg.Home, "projects"),
		IntervalMinutes:   defaultIntervalMinutes,
		RetentionMonths:   defaultRetentionMonths,
		UsageAPIURL:       defaultUsageAPIURL,
		CmdTimeout:        defaultCmdTimeoutSeconds,
		HTTPTimeout:       defaultHTTPTimeoutSeconds,
		ListenAddr:        defaultListenAddr,
		Notifications:     true,
		NotificationTitle: defaultNotificationTitle,
		NotificationBody:  defaultNotificationBody,
		DebugLevel:        "INFO",
	}
}

// Validate checks configuration values for correctness and reports every
// invalid field.
func (c *Config) Validate() error {
	return lib.ValidateStruct("config", c)
}

// GetLogLevel converts the debug level string to a LogLevel.
// Returns INFO level if the string is invalid.
func (c *Config) GetLogLevel() lib.LogLevel {
	return lib.ParseLogLevel(c.DebugLevel)
}
