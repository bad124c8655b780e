package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/systemd"
)

// stubManager scripts unit states and records restart calls.
type stubManager struct {
	active       map[string]bool
	restartErr   error
	restartCalls []string
	// activeAfterRestart controls whether a restarted unit reports active
	// on the follow-up query.
	activeAfterRestart bool
}

var _ systemd.Manager = (*stubManager)(nil)

func (s *stubManager) IsActive(_ context.Context, unit string) (bool, error) {
	return s.active[unit], nil
}

func (s *stubManager) Restart(_ context.Context, unit string) error {
	s.restartCalls = append(s.restartCalls, unit)
	if s.restartErr != nil {
		return s.restartErr
	}
	if s.active == nil {
		s.active = map[string]bool{}
	}
	s.active[unit] = s.activeAfterRestart
	return nil
}

func Test_Controller_EnsureRunning_Cases(t *testing.T) {
	tests := []struct {
		name          string
		units         *stubManager
		wantAction    Action
		wantRestarts  int
		wantSucceeded *bool
	}{
		{
			name:       "active service needs no action",
			units:      &stubManager{active: map[string]bool{"jellyfin.service": true}},
			wantAction: ActionNone,
		},
		{
			name:          "inactive service restarted successfully",
			units:         &stubManager{activeAfterRestart: true},
			wantAction:    ActionRestartAttempted,
			wantRestarts:  1,
			wantSucceeded: boolPtr(true),
		},
		{
			name:          "restart command fails",
			units:         &stubManager{restartErr: errors.New("unit not found")},
			wantAction:    ActionRestartAttempted,
			wantRestarts:  1,
			wantSucceeded: boolPtr(false),
		},
		{
			name:          "restart succeeds but unit stays dead",
			units:         &stubManager{activeAfterRestart: false},
			wantAction:    ActionRestartAttempted,
			wantRestarts:  1,
			wantSucceeded: boolPtr(false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.units, zerolog.Nop())
			result := c.EnsureRunning(context.Background(), "jellyfin.service")

			if result.ActionTaken != tt.wantAction {
				t.Errorf("ActionTaken = %q, want %q", result.ActionTaken, tt.wantAction)
			}
			if len(tt.units.restartCalls) != tt.wantRestarts {
				t.Errorf("restart calls = %d, want %d", len(tt.units.restartCalls), tt.wantRestarts)
			}
			switch {
			case tt.wantSucceeded == nil && result.RestartSucceeded != nil:
				t.Errorf("RestartSucceeded = %v, want nil", *result.RestartSucceeded)
			case tt.wantSucceeded != nil && result.RestartSucceeded == nil:
				t.Error("RestartSucceeded = nil, want a value")
			case tt.wantSucceeded != nil && *result.RestartSucceeded != *tt.wantSucceeded:
				t.Errorf("RestartSucceeded = %v, want %v", *result.RestartSucceeded, *tt.wantSucceeded)
			}
		})
	}
}

// One restart per service per run, no matter how many signals reference it.
func Test_Controller_RestartBudgetPerRun(t *testing.T) {
	units := &stubManager{restartErr: errors.New("still broken")}
	c := NewController(units, zerolog.Nop())

	for i := 0; i < 4; i++ {
		c.EnsureRunning(context.Background(), "transmission.service")
	}
	if len(units.restartCalls) != 1 {
		t.Errorf("restart calls = %d, want exactly 1", len(units.restartCalls))
	}

	// A different unit has its own budget.
	c.EnsureRunning(context.Background(), "sonarr.service")
	if len(units.restartCalls) != 2 {
		t.Errorf("restart calls = %d, want 2 after second unit", len(units.restartCalls))
	}
}

func boolPtr(b bool) *bool { return &b }
