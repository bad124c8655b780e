package alert

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/logging"
	"github.com/pimedic/pimedic/internal/sensor"
)

// stubNotifier records deliveries and optionally fails every attempt.
type stubNotifier struct {
	sent []string
	err  error
}

func (s *stubNotifier) Notify(_ context.Context, subject, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, subject+": "+message)
	return nil
}

func newTestDispatcher(states map[string]string, n Notifier) (*Dispatcher, *bytes.Buffer) {
	var healthBuf bytes.Buffer
	d := NewDispatcher(states, n, logging.NewHealthLog(&healthBuf), zerolog.Nop())
	return d, &healthBuf
}

func Test_Dispatcher_Observe_Transitions_Cases(t *testing.T) {
	key := "temperature"

	tests := []struct {
		name       string
		sequence   []health.Severity
		initial    map[string]string
		wantEvents int
	}{
		{
			name:       "repeated critical readings alert once",
			sequence:   []health.Severity{health.Critical, health.Critical, health.Critical},
			wantEvents: 1,
		},
		{
			name:       "steady normal never alerts",
			sequence:   []health.Severity{health.Normal, health.Normal},
			wantEvents: 0,
		},
		{
			name:       "escalation and full de-escalation alert per transition",
			sequence:   []health.Severity{health.Critical, health.Warning, health.Normal},
			wantEvents: 3,
		},
		{
			name:       "previous run state carries across processes",
			initial:    map[string]string{"temperature": "critical"},
			sequence:   []health.Severity{health.Critical},
			wantEvents: 0,
		},
		{
			name:       "de-escalation from persisted critical alerts",
			initial:    map[string]string{"temperature": "critical"},
			sequence:   []health.Severity{health.Warning},
			wantEvents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &stubNotifier{}
			d, _ := newTestDispatcher(tt.initial, notifier)

			events := 0
			for _, sev := range tt.sequence {
				if ev := d.Observe(context.Background(), key, sensor.KindTemperature, sev, "temp reading"); ev != nil {
					events++
				}
			}
			if events != tt.wantEvents {
				t.Errorf("emitted %d events, want %d", events, tt.wantEvents)
			}
			if len(d.Events()) != tt.wantEvents {
				t.Errorf("Events() has %d, want %d", len(d.Events()), tt.wantEvents)
			}
			if len(notifier.sent) != tt.wantEvents {
				t.Errorf("notifier got %d deliveries, want %d", len(notifier.sent), tt.wantEvents)
			}
		})
	}
}

func Test_Dispatcher_RecoveredEventMessage(t *testing.T) {
	d, healthBuf := newTestDispatcher(map[string]string{"temperature": "critical"}, &stubNotifier{})

	ev := d.Observe(context.Background(), "temperature", sensor.KindTemperature, health.Normal, "temperature 52.0°C")
	if ev == nil {
		t.Fatal("expected a recovery event")
	}
	if !strings.HasPrefix(ev.Message, "recovered:") {
		t.Errorf("Message = %q, want recovered prefix", ev.Message)
	}
	if !strings.Contains(healthBuf.String(), "critical -> normal") {
		t.Errorf("health log %q missing transition record", healthBuf.String())
	}
}

func Test_Dispatcher_Dispatch_Fallbacks_Cases(t *testing.T) {
	tests := []struct {
		name       string
		notifier   Notifier
		want       DispatchResult
		metaWarned bool
	}{
		{
			name:     "configured and reachable channel",
			notifier: &stubNotifier{},
			want:     Sent,
		},
		{
			name:     "unconfigured channel degrades to logged only",
			notifier: nil,
			want:     LoggedOnly,
		},
		{
			name:       "unreachable channel degrades to logged only",
			notifier:   &stubNotifier{err: errors.New("connection refused")},
			want:       LoggedOnly,
			metaWarned: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, healthBuf := newTestDispatcher(nil, tt.notifier)
			ev := Event{SignalKey: "temperature", Kind: sensor.KindTemperature, Previous: health.Normal, New: health.Critical, Message: "hot"}

			if got := d.Dispatch(context.Background(), ev); got != tt.want {
				t.Fatalf("Dispatch() = %q, want %q", got, tt.want)
			}
			// The event always reaches the durable log.
			if !strings.Contains(healthBuf.String(), "hot") {
				t.Errorf("health log %q missing event", healthBuf.String())
			}

			// A failing channel is reported once per run, not per signal.
			d.Dispatch(context.Background(), ev)
			d.Dispatch(context.Background(), ev)
			warnings := strings.Count(healthBuf.String(), "notification channel unreachable")
			wantWarnings := 0
			if tt.metaWarned {
				wantWarnings = 1
			}
			if warnings != wantWarnings {
				t.Errorf("meta-warnings = %d, want %d", warnings, wantWarnings)
			}
		})
	}
}

func Test_Dispatcher_ObserveUnmonitored_LoggedOnce(t *testing.T) {
	d, healthBuf := newTestDispatcher(nil, nil)

	d.ObserveUnmonitored("smart_status:/dev/sda", sensor.KindSmart)
	d.ObserveUnmonitored("smart_status:/dev/sda", sensor.KindSmart)

	if got := strings.Count(healthBuf.String(), "unmonitored"); got != 1 {
		t.Errorf("unmonitored notices = %d, want 1", got)
	}
	if len(d.Events()) != 0 {
		t.Errorf("Events() = %d, want 0; unavailable sensors never alert", len(d.Events()))
	}
}
