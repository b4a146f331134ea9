package notify

import (
	"log/slog"
	"sync"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// LogAlerter renders alerts into the structured log, the default toast sink
// for headless deployments.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter creates a log-backed alert sink. A nil logger falls back to
// the default logger.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAlerter{logger: logger}
}

// Notify logs the alert, at warn level for destructive alerts.
func (a *LogAlerter) Notify(alert domain.Alert) {
	attrs := []any{"title", alert.Title, "description", alert.Description}
	if alert.Variant == domain.AlertVariantDestructive {
		a.logger.Warn("alert", attrs...)
		return
	}
	a.logger.Info("alert", attrs...)
}

// Desktop abstracts an OS-level notification channel that requires a
// one-time permission grant before it can deliver anything.
type Desktop interface {
	// Granted reports whether delivery permission has been granted.
	Granted() bool
	// Request asks for permission and reports whether it was granted.
	Request() bool
	// Push delivers a notification.
	Push(title, body string) error
}

// DesktopAlerter forwards alerts to an OS-level notification channel.
// Permission is requested lazily on the first alert and never re-requested:
// a denial silently disables delivery for the rest of the session.
type DesktopAlerter struct {
	desktop Desktop

	once    sync.Once
	granted bool
}

// NewDesktopAlerter wraps a desktop notification channel.
func NewDesktopAlerter(desktop Desktop) *DesktopAlerter {
	return &DesktopAlerter{desktop: desktop}
}

// Notify delivers the alert if permission is (or becomes) granted.
func (a *DesktopAlerter) Notify(alert domain.Alert) {
	a.once.Do(func() {
		if a.desktop.Granted() {
			a.granted = true
			return
		}
		a.granted = a.desktop.Request()
	})
	if !a.granted {
		return
	}

	if err := a.desktop.Push(alert.Title, alert.Description); err != nil {
		slog.Warn("desktop notification failed", "title", alert.Title, "error", err)
	}
}

// MultiAlerter fans one alert out to several sinks.
type MultiAlerter []domain.Alerter

// Notify forwards the alert to every sink in order.
func (m MultiAlerter) Notify(alert domain.Alert) {
	for _, a := range m {
		a.Notify(alert)
	}
}
