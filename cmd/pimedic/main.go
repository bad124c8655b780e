// Package main is the entry point for pimedic, the Pi media-server health
// and backup engine. Each subcommand is one short-lived run, triggered by a
// systemd timer (or invoked by hand).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/alert"
	"github.com/pimedic/pimedic/internal/backup"
	"github.com/pimedic/pimedic/internal/config"
	"github.com/pimedic/pimedic/internal/docker"
	"github.com/pimedic/pimedic/internal/engine"
	"github.com/pimedic/pimedic/internal/install"
	"github.com/pimedic/pimedic/internal/lock"
	"github.com/pimedic/pimedic/internal/logging"
	"github.com/pimedic/pimedic/internal/sensor"
	"github.com/pimedic/pimedic/internal/systemd"
)

const defaultConfigPath = "/etc/pimedic/config.yaml"

// Exit codes: 0 clean, 1 unresolved critical findings, 2 aborted run
// (lock held, backup failure, bad usage).
const (
	exitOK       = 0
	exitCritical = 1
	exitAborted  = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pimedic", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	if err := fs.Parse(args); err != nil {
		return exitAborted
	}
	if fs.NArg() < 1 {
		usage()
		return exitAborted
	}
	command := fs.Arg(0)

	cfg := loadConfig(*configPath)
	config.ApplyEnvOverrides(cfg)

	log, err := logging.NewConsole(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		return exitAborted
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "check":
		return runCheck(ctx, cfg, log, engine.FullCheck)
	case "temps":
		return runCheck(ctx, cfg, log, engine.TemperatureCheck)
	case "backup":
		return runBackup(ctx, cfg, log)
	case "image":
		return runImage(ctx, cfg, log)
	case "install":
		return runInstall(ctx, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		usage()
		return exitAborted
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pimedic [-config path] <command>

commands:
  check    full health check: sensors, disks, services, containers, network
  temps    temperature/throttle/voltage check only
  backup   config snapshot backup with retention pruning
  image    full block-level image of the configured device (long-running)
  install  provision systemd timers and log rotation`)
}

// loadConfig falls back to defaults when no config file exists; a present
// but invalid file is fatal.
func loadConfig(path string) *config.Config {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.DefaultConfig()
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(exitAborted)
	}
	return cfg
}

func openHealthLog(cfg *config.Config, log zerolog.Logger) (*logging.HealthLog, func()) {
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.HealthLog), 0o755); err != nil {
		log.Warn().Err(err).Msg("could not create health log directory")
	}
	f, err := os.OpenFile(cfg.Paths.HealthLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Degrade to stderr; findings must land somewhere durable-ish.
		log.Warn().Err(err).Msg("could not open health log, appending to stderr")
		return logging.NewHealthLog(os.Stderr), func() {}
	}
	return logging.NewHealthLog(f), func() { _ = f.Close() }
}

func runCheck(ctx context.Context, cfg *config.Config, log zerolog.Logger, mode engine.Mode) int {
	healthLog, closeLog := openHealthLog(cfg, log)
	defer closeLog()

	units := systemd.NewSystemctlManager()

	var containerLister docker.Lister
	if cfg.Paths.DockerSocket != "" {
		if client, err := docker.NewClient(cfg.Paths.DockerSocket); err == nil {
			containerLister = client
		} else {
			log.Warn().Err(err).Msg("container runtime unavailable, container state unmonitored")
		}
	}

	collector := sensor.NewCollector(
		sensor.NewFirmwareProbe(cfg.Paths.Sys, cfg.Paths.Vcgencmd),
		sensor.NewStorageHealthProbe(cfg.Paths.KernLog, cfg.Paths.Smartctl, cfg.Storage.SmartDevices),
		sensor.NewNetworkProbe(cfg.Network.ProbeTargets, cfg.Network.DNSNames),
		units,
		containerLister,
		cfg.Services,
	)

	var notifier alert.Notifier
	if cfg.Notify.Enabled {
		if wh := alert.NewWebhookNotifier(cfg.Notify.WebhookURL); wh != nil {
			notifier = wh
		}
	}

	runner := engine.NewRunner(
		cfg,
		collector,
		units,
		notifier,
		alert.NewStateStore(cfg.Paths.StateFile),
		lock.New(cfg.Paths.LockFile),
		healthLog,
		log,
	)

	report, err := runner.Run(ctx, mode)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			log.Warn().Msg("another pimedic run is active, exiting")
			return exitAborted
		}
		log.Error().Err(err).Msg("health check aborted")
		return exitAborted
	}
	if report.Criticals > 0 {
		return exitCritical
	}
	return exitOK
}

func runBackup(ctx context.Context, cfg *config.Config, log zerolog.Logger) int {
	healthLog, closeLog := openHealthLog(cfg, log)
	defer closeLog()

	runLock := lock.New(cfg.Paths.LockFile)
	if err := runLock.Acquire(); err != nil {
		log.Warn().Err(err).Msg("another pimedic run is active, exiting")
		return exitAborted
	}
	defer func() { _ = runLock.Release() }()

	manager := backup.NewManager(cfg.Backup.Destination, cfg.Backup.Allowlist, cfg.Backup.RetentionDays, log)
	record, err := manager.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("config snapshot failed")
		if logErr := healthLog.Append("critical", "config snapshot failed: %v", err); logErr != nil {
			log.Warn().Err(logErr).Msg("health log append failed")
		}
		return exitAborted
	}
	if err := healthLog.Append("info", "config snapshot %s written (%d bytes)", record.Path, record.SizeBytes); err != nil {
		log.Warn().Err(err).Msg("health log append failed")
	}
	return exitOK
}

func runImage(ctx context.Context, cfg *config.Config, log zerolog.Logger) int {
	healthLog, closeLog := openHealthLog(cfg, log)
	defer closeLog()

	runLock := lock.New(cfg.Paths.LockFile)
	if err := runLock.Acquire(); err != nil {
		log.Warn().Err(err).Msg("another pimedic run is active, exiting")
		return exitAborted
	}
	defer func() { _ = runLock.Release() }()

	manager := backup.NewManager(cfg.Backup.Destination, cfg.Backup.Allowlist, cfg.Backup.RetentionDays, log)
	record, err := manager.Image(ctx, cfg.Backup.ImageDevice)
	if err != nil {
		log.Error().Err(err).Msg("full image backup failed")
		if logErr := healthLog.Append("critical", "full image backup failed: %v", err); logErr != nil {
			log.Warn().Err(logErr).Msg("health log append failed")
		}
		return exitAborted
	}
	if err := healthLog.Append("info", "full image %s written (%d bytes)", record.Path, record.SizeBytes); err != nil {
		log.Warn().Err(err).Msg("health log append failed")
	}
	return exitOK
}

func runInstall(ctx context.Context, cfg *config.Config, log zerolog.Logger) int {
	binPath, err := os.Executable()
	if err != nil {
		log.Error().Err(err).Msg("cannot determine binary path")
		return exitAborted
	}
	installer := install.NewInstaller("/etc/systemd/system", "/etc/logrotate.d", binPath, cfg.Paths.HealthLog, log)
	if err := installer.Install(ctx); err != nil {
		log.Error().Err(err).Msg("install failed")
		return exitAborted
	}
	return exitOK
}
