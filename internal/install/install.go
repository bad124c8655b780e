// Package install provisions the scheduled triggers and log rotation policy
// for pimedic: systemd service/timer pairs for the full check, the
// temperature check, and the config backup. Installation is idempotent;
// unit files are rewritten only when their content changed.
package install

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Installer writes unit and logrotate files and enables the timers.
type Installer struct {
	systemdDir   string // normally /etc/systemd/system
	logrotateDir string // normally /etc/logrotate.d
	binPath      string // path to the pimedic binary
	healthLog    string // health log path, for the logrotate stanza
	log          zerolog.Logger
	runCommand   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewInstaller returns an Installer writing to the given directories.
func NewInstaller(systemdDir, logrotateDir, binPath, healthLog string, log zerolog.Logger) *Installer {
	return &Installer{
		systemdDir:   systemdDir,
		logrotateDir: logrotateDir,
		binPath:      binPath,
		healthLog:    healthLog,
		log:          log,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// trigger is one scheduled invocation.
type trigger struct {
	name        string
	description string
	subcommand  string
	onCalendar  string
}

var triggers = []trigger{
	{"pimedic-check", "pimedic full health check", "check", "*:0/15"},
	{"pimedic-temps", "pimedic temperature check", "temps", "*:0/2"},
	{"pimedic-backup", "pimedic config snapshot backup", "backup", "*-*-* 03:30:00"},
}

// Install writes all unit files and the logrotate policy, reloads systemd
// when anything changed, and enables the timers.
func (i *Installer) Install(ctx context.Context) error {
	changed := false
	for _, t := range triggers {
		serviceChanged, err := i.writeIfChanged(
			filepath.Join(i.systemdDir, t.name+".service"), i.serviceUnit(t))
		if err != nil {
			return err
		}
		timerChanged, err := i.writeIfChanged(
			filepath.Join(i.systemdDir, t.name+".timer"), i.timerUnit(t))
		if err != nil {
			return err
		}
		changed = changed || serviceChanged || timerChanged
	}

	if _, err := i.writeIfChanged(filepath.Join(i.logrotateDir, "pimedic"), i.logrotatePolicy()); err != nil {
		return err
	}

	if changed {
		if out, err := i.runCommand(ctx, "systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("install: daemon-reload: %w: %s", err, out)
		}
	}
	for _, t := range triggers {
		if out, err := i.runCommand(ctx, "systemctl", "enable", "--now", t.name+".timer"); err != nil {
			return fmt.Errorf("install: enable %s.timer: %w: %s", t.name, err, out)
		}
	}
	i.log.Info().Bool("units_changed", changed).Msg("scheduled triggers installed")
	return nil
}

// writeIfChanged writes content to path only when the current content
// differs, and reports whether a write happened.
func (i *Installer) writeIfChanged(path, content string) (bool, error) {
	current, err := os.ReadFile(path)
	if err == nil && string(current) == content {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("install: create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("install: write %s: %w", path, err)
	}
	i.log.Info().Str("path", path).Msg("wrote unit file")
	return true, nil
}

func (i *Installer) serviceUnit(t trigger) string {
	return fmt.Sprintf(`[Unit]
Description=%s
After=network-online.target

[Service]
Type=oneshot
ExecStart=%s %s
`, t.description, i.binPath, t.subcommand)
}

func (i *Installer) timerUnit(t trigger) string {
	return fmt.Sprintf(`[Unit]
Description=Timer for %s

[Timer]
OnCalendar=%s
Persistent=true
RandomizedDelaySec=30

[Install]
WantedBy=timers.target
`, t.description, t.onCalendar)
}

func (i *Installer) logrotatePolicy() string {
	return fmt.Sprintf(`%s {
    weekly
    rotate 8
    compress
    delaycompress
    missingok
    notifempty
    copytruncate
}
`, i.healthLog)
}
