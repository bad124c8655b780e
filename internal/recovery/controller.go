// Package recovery restarts inactive services with a strictly bounded
// attempt budget. One restart per service per run; repeated attempts come
// from the external scheduling cadence, never from an in-process loop.
package recovery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/systemd"
)

// restartAttemptsPerRun is the explicit retry policy: a single attempt per
// invocation. The scheduler re-invoking the check is the retry mechanism.
const restartAttemptsPerRun = 1

// Action describes what the controller did for a service.
type Action string

const (
	// ActionNone means the service was active; nothing to do.
	ActionNone Action = "none"
	// ActionRestartAttempted means a restart was issued.
	ActionRestartAttempted Action = "restart_attempted"
)

// ServiceCheckResult reports the outcome for one service.
type ServiceCheckResult struct {
	ServiceName      string
	WasActive        bool
	ActionTaken      Action
	RestartSucceeded *bool // nil unless a restart was attempted
}

// Controller checks services and restarts the inactive ones.
type Controller struct {
	units    systemd.Manager
	log      zerolog.Logger
	attempts map[string]int
}

// NewController returns a Controller over the given unit manager.
func NewController(units systemd.Manager, log zerolog.Logger) *Controller {
	return &Controller{
		units:    units,
		log:      log,
		attempts: make(map[string]int),
	}
}

// EnsureRunning checks one service and, if inactive, issues at most
// restartAttemptsPerRun restart attempts. A service already attempted in
// this run is never retried, no matter how many signals reference it.
func (c *Controller) EnsureRunning(ctx context.Context, unit string) ServiceCheckResult {
	result := ServiceCheckResult{ServiceName: unit, ActionTaken: ActionNone}

	active, err := c.units.IsActive(ctx, unit)
	if err != nil {
		c.log.Warn().Err(err).Str("unit", unit).Msg("service state query failed, treating as inactive")
	}
	result.WasActive = active
	if active {
		return result
	}

	if c.attempts[unit] >= restartAttemptsPerRun {
		// Budget for this run is spent; report the earlier attempt
		// without acting again.
		result.ActionTaken = ActionRestartAttempted
		return result
	}
	c.attempts[unit]++

	result.ActionTaken = ActionRestartAttempted
	c.log.Info().Str("unit", unit).Msg("service inactive, attempting restart")

	restartErr := c.units.Restart(ctx, unit)
	succeeded := restartErr == nil
	if succeeded {
		// Confirm the unit actually came up; a restart that "succeeds"
		// into a crash loop still counts as failed here.
		if nowActive, checkErr := c.units.IsActive(ctx, unit); checkErr != nil || !nowActive {
			succeeded = false
		}
	} else {
		c.log.Error().Err(restartErr).Str("unit", unit).Msg("restart failed")
	}
	result.RestartSucceeded = &succeeded
	return result
}
