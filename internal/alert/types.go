// Package alert turns severity transitions into notifications. It owns the
// persisted last-severity-per-signal state, so repeated identical findings
// across runs never re-alert; only transitions do.
package alert

import (
	"time"

	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/sensor"
)

// Event records one severity transition for one signal.
type Event struct {
	SignalKey string
	Kind      sensor.Kind
	Previous  health.Severity
	New       health.Severity
	Message   string
	Timestamp time.Time
}

// DispatchResult reports how an event left the process.
type DispatchResult string

const (
	// Sent means the notification channel accepted the event.
	Sent DispatchResult = "sent"
	// LoggedOnly means the event reached only the durable health log,
	// because no channel is configured or the channel failed.
	LoggedOnly DispatchResult = "logged_only"
)
