// Package systemd wraps the systemctl query and restart primitives used by
// the health engine. Both are treated as fallible external calls.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Manager queries and restarts named service units.
type Manager interface {
	// IsActive reports whether the named unit is currently active.
	IsActive(ctx context.Context, unit string) (bool, error)
	// Restart restarts the named unit and returns an error on failure.
	Restart(ctx context.Context, unit string) error
}

const maxUnitNameLength = 256

// validUnitName keeps unit names safe to pass to systemctl: alphanumerics,
// hyphens, underscores, periods, and the @ of template instances.
var validUnitName = regexp.MustCompile(`^[a-zA-Z0-9\-_.@]+$`)

var (
	// ErrInvalidUnitName is returned for unit names that fail validation.
	ErrInvalidUnitName = errors.New("systemd: invalid unit name")
)

// Compile-time interface check.
var _ Manager = (*SystemctlManager)(nil)

// SystemctlManager implements Manager by shelling out to systemctl.
type SystemctlManager struct {
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSystemctlManager returns a Manager backed by the systemctl binary.
func NewSystemctlManager() *SystemctlManager {
	return &SystemctlManager{
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

func validateUnitName(unit string) error {
	if unit == "" || len(unit) > maxUnitNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidUnitName, unit)
	}
	if !validUnitName.MatchString(unit) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidUnitName, unit)
	}
	return nil
}

// IsActive runs `systemctl is-active <unit>`. systemctl exits non-zero for
// every inactive state, so a command error with output still yields a valid
// answer rather than an error.
func (m *SystemctlManager) IsActive(ctx context.Context, unit string) (bool, error) {
	if err := validateUnitName(unit); err != nil {
		return false, err
	}
	out, err := m.runCommand(ctx, "systemctl", "is-active", unit)
	state := strings.TrimSpace(string(out))
	if state == "active" {
		return true, nil
	}
	if err != nil && state == "" {
		return false, fmt.Errorf("systemd: query %s: %w", unit, err)
	}
	return false, nil
}

// Restart runs `systemctl restart <unit>`.
func (m *SystemctlManager) Restart(ctx context.Context, unit string) error {
	if err := validateUnitName(unit); err != nil {
		return err
	}
	if _, err := m.runCommand(ctx, "systemctl", "restart", unit); err != nil {
		return fmt.Errorf("systemd: restart %s: %w", unit, err)
	}
	return nil
}
