package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/logging"
	"github.com/pimedic/pimedic/internal/sensor"
)

// Dispatcher tracks per-signal severity and emits one Event per transition.
// It never fails the run: an unreachable channel degrades every dispatch to
// LoggedOnly and is itself reported once per run as a meta-warning.
type Dispatcher struct {
	states    map[string]string
	notifier  Notifier // nil when unconfigured
	healthLog *logging.HealthLog
	log       zerolog.Logger

	channelWarned bool
	events        []Event
	now           func() time.Time
}

// NewDispatcher returns a dispatcher over the given loaded state map. The
// caller owns persisting the map back via States after the run.
func NewDispatcher(states map[string]string, notifier Notifier, healthLog *logging.HealthLog, log zerolog.Logger) *Dispatcher {
	if states == nil {
		states = map[string]string{}
	}
	return &Dispatcher{
		states:    states,
		notifier:  notifier,
		healthLog: healthLog,
		log:       log,
		now:       time.Now,
	}
}

// Observe feeds one severity observation for a signal key. On a transition
// it creates and dispatches an Event and returns it; in steady state it
// returns nil. De-escalations dispatch too: a recovery is news.
func (d *Dispatcher) Observe(ctx context.Context, key string, kind sensor.Kind, sev health.Severity, message string) *Event {
	previous := health.ParseSeverity(d.states[key])
	stored := d.states[key]
	d.states[key] = sev.String()

	if stored != "" && previous == sev {
		return nil
	}
	if stored == "" && sev == health.Normal {
		// First sighting of a healthy signal is not an alert.
		return nil
	}

	ev := Event{
		SignalKey: key,
		Kind:      kind,
		Previous:  previous,
		New:       sev,
		Message:   message,
		Timestamp: d.now(),
	}
	if sev == health.Normal {
		ev.Message = fmt.Sprintf("recovered: %s", message)
	}
	d.events = append(d.events, ev)
	d.Dispatch(ctx, ev)
	return &ev
}

// ObserveUnmonitored records an absent sensor. The notice is logged once;
// subsequent runs stay quiet until the sensor reappears.
func (d *Dispatcher) ObserveUnmonitored(key string, kind sensor.Kind) {
	if d.states[key] == stateUnmonitored {
		return
	}
	d.states[key] = stateUnmonitored
	d.log.Info().Str("signal", key).Msg("sensor unavailable, signal unmonitored")
	if err := d.healthLog.Append("info", "%s: unmonitored (sensor unavailable)", key); err != nil {
		d.log.Warn().Err(err).Msg("health log append failed")
	}
}

// Dispatch delivers one event: always to the durable health log, and to the
// notification channel when one is configured and reachable.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) DispatchResult {
	tag := ev.New.String()
	if err := d.healthLog.Append(tag, "%s: %s -> %s: %s", ev.SignalKey, ev.Previous, ev.New, ev.Message); err != nil {
		d.log.Warn().Err(err).Msg("health log append failed")
	}

	if d.notifier == nil {
		return LoggedOnly
	}

	subject := fmt.Sprintf("[%s] %s", ev.New, ev.SignalKey)
	if err := d.notifier.Notify(ctx, subject, ev.Message); err != nil {
		if !d.channelWarned {
			d.channelWarned = true
			d.log.Warn().Err(err).Msg("notification channel unreachable, alerts degraded to log only")
			if logErr := d.healthLog.Append("warning", "notification channel unreachable: %v", err); logErr != nil {
				d.log.Warn().Err(logErr).Msg("health log append failed")
			}
		}
		return LoggedOnly
	}
	return Sent
}

// Events returns the events emitted during this run.
func (d *Dispatcher) Events() []Event { return d.events }

// States returns the severity map to persist at the end of the run.
func (d *Dispatcher) States() map[string]string { return d.states }
