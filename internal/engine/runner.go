// Package engine orchestrates one health-check invocation: acquire the run
// lock, collect readings, evaluate them, dispatch transitions, attempt
// recovery, and persist the alert state for the next run.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pimedic/pimedic/internal/alert"
	"github.com/pimedic/pimedic/internal/config"
	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/lock"
	"github.com/pimedic/pimedic/internal/logging"
	"github.com/pimedic/pimedic/internal/recovery"
	"github.com/pimedic/pimedic/internal/sensor"
	"github.com/pimedic/pimedic/internal/systemd"
)

// Mode selects which signals a run covers.
type Mode int

const (
	// FullCheck runs every configured signal plus recovery.
	FullCheck Mode = iota
	// TemperatureCheck runs only the firmware signals; cheap enough for
	// high-frequency scheduling.
	TemperatureCheck
)

// Report summarises one run.
type Report struct {
	Findings  []health.Finding
	Events    []alert.Event
	Services  []recovery.ServiceCheckResult
	Criticals int
}

// Runner wires the collaborators for health-check runs.
type Runner struct {
	cfg       *config.Config
	collector *sensor.Collector
	units     systemd.Manager
	notifier  alert.Notifier
	store     *alert.StateStore
	runLock   *lock.Lock
	healthLog *logging.HealthLog
	log       zerolog.Logger
}

// NewRunner returns a Runner. notifier may be nil (alerts degrade to the
// health log only).
func NewRunner(
	cfg *config.Config,
	collector *sensor.Collector,
	units systemd.Manager,
	notifier alert.Notifier,
	store *alert.StateStore,
	runLock *lock.Lock,
	healthLog *logging.HealthLog,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		cfg:       cfg,
		collector: collector,
		units:     units,
		notifier:  notifier,
		store:     store,
		runLock:   runLock,
		healthLog: healthLog,
		log:       log,
	}
}

// Run executes one check invocation. It returns lock.ErrLockHeld (wrapped)
// when another invocation is active, having mutated nothing.
func (r *Runner) Run(ctx context.Context, mode Mode) (*Report, error) {
	if err := r.runLock.Acquire(); err != nil {
		if logErr := r.healthLog.Append("warning", "run skipped: %v", err); logErr != nil {
			r.log.Warn().Err(logErr).Msg("health log append failed")
		}
		return nil, err
	}
	defer func() {
		if err := r.runLock.Release(); err != nil {
			r.log.Warn().Err(err).Msg("lock release failed")
		}
	}()

	states, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	dispatcher := alert.NewDispatcher(states, r.notifier, r.healthLog, r.log)
	controller := recovery.NewController(r.units, r.log)

	var readings []sensor.Reading
	if mode == TemperatureCheck {
		readings = r.collector.Temperatures(ctx)
	} else {
		readings = r.collector.All(ctx)
	}

	report := &Report{}
	for _, reading := range readings {
		r.checkOne(ctx, reading, dispatcher, controller, report)
	}

	report.Events = dispatcher.Events()
	r.summarise(report)

	if err := r.store.Save(dispatcher.States()); err != nil {
		return report, fmt.Errorf("engine: %w", err)
	}
	return report, nil
}

// checkOne evaluates a single reading. A panic in one signal's evaluation is
// contained so the remaining signals still run.
func (r *Runner) checkOne(
	ctx context.Context,
	reading sensor.Reading,
	dispatcher *alert.Dispatcher,
	controller *recovery.Controller,
	report *Report,
) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("kind", string(reading.Kind)).
				Msg("signal evaluation panicked, continuing with remaining signals")
		}
	}()

	finding := health.Evaluate(reading, r.cfg.ThresholdFor(reading.Kind))
	report.Findings = append(report.Findings, finding)
	key := health.SignalKey(reading)

	if finding.Unmonitored {
		dispatcher.ObserveUnmonitored(key, reading.Kind)
		return
	}

	severity := finding.Severity
	message := describe(finding, r.cfg)

	// A down service goes through recovery before it is alerted; the
	// alert severity reflects the recovery outcome, not the raw reading.
	if reading.Kind == sensor.KindServiceState && severity == health.Critical {
		result := controller.EnsureRunning(ctx, reading.Subject)
		report.Services = append(report.Services, result)
		switch {
		case result.WasActive:
			severity = health.Normal
			message = fmt.Sprintf("service %s active", reading.Subject)
		case result.RestartSucceeded != nil && *result.RestartSucceeded:
			severity = health.Warning
			message = fmt.Sprintf("service %s was down, restart succeeded", reading.Subject)
		default:
			severity = health.Critical
			message = fmt.Sprintf("service %s is down, restart failed", reading.Subject)
		}
	}

	dispatcher.Observe(ctx, key, reading.Kind, severity, message)
	if severity == health.Critical {
		report.Criticals++
	}
}

// summarise appends the per-run summary line every run gets, regardless of
// outcome.
func (r *Runner) summarise(report *Report) {
	warnings := 0
	for _, f := range report.Findings {
		if f.Severity == health.Warning {
			warnings++
		}
	}
	tag := "info"
	if report.Criticals > 0 {
		tag = "critical"
	} else if warnings > 0 {
		tag = "warning"
	}
	err := r.healthLog.Append(tag, "check complete: %d signals, %d warning, %d critical, %d alerts sent",
		len(report.Findings), warnings, report.Criticals, len(report.Events))
	if err != nil {
		r.log.Warn().Err(err).Msg("health log append failed")
	}
}

// describe renders a finding for the health log and notifications.
func describe(f health.Finding, cfg *config.Config) string {
	r := f.Reading
	switch r.Kind {
	case sensor.KindTemperature:
		return fmt.Sprintf("temperature %.1f%s (warning %.0f, critical %.0f)",
			r.Value, r.Unit, cfg.Thresholds.Temperature.Warning, cfg.Thresholds.Temperature.Critical)
	case sensor.KindThrottleFlags:
		if r.Detail == "" {
			return "no throttling"
		}
		return "firmware reports: " + r.Detail
	case sensor.KindVoltage:
		return fmt.Sprintf("core voltage %.4f%s (warning %.2f, critical %.2f)",
			r.Value, r.Unit, cfg.Thresholds.Voltage.Warning, cfg.Thresholds.Voltage.Critical)
	case sensor.KindDiskUsage:
		return fmt.Sprintf("disk usage %s at %.1f%% (warning %.0f, critical %.0f)",
			r.Subject, r.Value, cfg.Thresholds.DiskUsage.Warning, cfg.Thresholds.DiskUsage.Critical)
	case sensor.KindSdCardErrors:
		return fmt.Sprintf("%.0f SD-card errors in kernel log", r.Value)
	case sensor.KindSmart:
		if r.Value == 0 {
			return fmt.Sprintf("SMART health %s passed", r.Subject)
		}
		return fmt.Sprintf("SMART health %s: %s", r.Subject, r.Detail)
	case sensor.KindContainers:
		if r.Value == 0 {
			return "no exited containers"
		}
		return r.Detail
	case sensor.KindNetwork:
		if r.Value == 0 {
			if r.Detail != "" {
				return "connectivity up, " + r.Detail
			}
			return "connectivity up"
		}
		return r.Detail
	case sensor.KindDNS:
		if r.Value == 0 {
			return "DNS resolution ok"
		}
		return "DNS resolution broken: " + r.Detail
	case sensor.KindServiceState:
		if r.Value == 0 {
			return fmt.Sprintf("service %s active", r.Subject)
		}
		return fmt.Sprintf("service %s inactive", r.Subject)
	default:
		return fmt.Sprintf("%s=%.2f%s", r.Kind, r.Value, r.Unit)
	}
}
