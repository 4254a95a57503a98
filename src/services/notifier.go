package services

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/models"
)

// Notifier delivers alert notifications.
type Notifier interface {
	Notify(ctx context.Context, alert models.AlertResult) error
}

// DesktopNotifier shows alerts through the platform notification command:
// osascript on macOS, notify-send elsewhere.
type DesktopNotifier struct {
	enabled       bool
	titleTemplate string
	bodyTemplate  string
	goos          string
	commandPath   string
	cmdTimeout    time.Duration
	logger        *lib.Logger
	now           func() time.Time
}

// NewDesktopNotifier creates a notifier from config.
func NewDesktopNotifier(config *models.Config) *DesktopNotifier {
	return &DesktopNotifier{
		enabled:       config.Notifications,
		titleTemplate: config.NotificationTitle,
		bodyTemplate:  config.NotificationBody,
		goos:          runtime.GOOS,
		cmdTimeout:    time.Duration(config.CmdTimeout) * time.Second,
		logger:        lib.NewLogger("notifier"),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for template data.
func (n *DesktopNotifier) SetClock(now func() time.Time) { n.now = now }

// SetCommandPath overrides the notification binary. The arguments stay
// those of the platform command.
func (n *DesktopNotifier) SetCommandPath(path string) { n.commandPath = path }

// Render executes the title and body templates for alert.
func (n *DesktopNotifier) Render(alert models.AlertResult) (string, string, error) {
	data := models.NewNotificationData(alert, n.now())

	title, err := lib.ExecuteTemplate(n.titleTemplate, data)
	if err != nil {
		return "", "", err
	}
	body, err := lib.ExecuteTemplate(n.bodyTemplate, data)
	if err != nil {
		return "", "", err
	}
	return title, body, nil
}

// Notify implements Notifier. It is a no-op when notifications are disabled.
func (n *DesktopNotifier) Notify(ctx context.Context, alert models.AlertResult) error {
	if !n.enabled {
		n.logger.Debug("Notifications disabled, skipping alert", map[string]interface{}{
			"alertKey": alert.AlertKey,
		})
		return nil
	}

	title, body, err := n.Render(alert)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeNotify, "failed to render notification").
			WithContext("alertKey", alert.AlertKey)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cmdTimeout)
	defer cancel()

	name, args := n.command(alert.Level, title, body)
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 fixed command, template output passed as arguments
	if output, err := cmd.CombinedOutput(); err != nil {
		return lib.WrapError(err, lib.ErrCodeNotify, "notification command failed").
			WithContextMap(map[string]interface{}{
				"command":  name,
				"alertKey": alert.AlertKey,
				"output":   truncateOutput(output),
			})
	}

	n.logger.Info("Notification sent", map[string]interface{}{
		"alertKey": alert.AlertKey,
		"level":    alert.Level,
	})
	return nil
}

func (n *DesktopNotifier) command(level models.AlertLevel, title, body string) (string, []string) {
	var name string
	var args []string
	if n.goos == "darwin" {
		name = "osascript"
		args = []string{"-e", `display notification "` + appleScriptEscape(body) +
			`" with title "` + appleScriptEscape(title) + `"`}
	} else {
		urgency := "normal"
		if level == models.LevelCritical {
			urgency = "critical"
		}
		name = "notify-send"
		args = []string{"-a", "rei-os", "-u", urgency, title, body}
	}

	if n.commandPath != "" {
		name = n.commandPath
	}
	return name, args
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

const maxLoggedOutputLength = 128

func truncateOutput(output []byte) string {
	if len(output) <= maxLoggedOutputLength {
		return string(output)
	}
	return string(output[:maxLoggedOutputLength]) + "..."
}
