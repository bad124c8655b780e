// Package health derives severities from sensor readings. Evaluation is a
// pure function of a reading and its threshold; all side effects (alerting,
// recovery) live elsewhere.
package health

import (
	"fmt"

	"github.com/pimedic/pimedic/internal/sensor"
)

// Severity classifies a reading. The ordering Normal < Warning < Critical is
// relied on for transition detection.
type Severity int

const (
	// Normal means the reading is within its configured bounds.
	Normal Severity = iota
	// Warning means the warning level is reached but not the critical one.
	Warning
	// Critical means the critical level is reached.
	Critical
)

// String returns the lowercase severity name used in logs and state records.
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// ParseSeverity is the inverse of String. Unknown input parses as Normal so
// a corrupted state record degrades to re-alerting rather than crashing.
func ParseSeverity(s string) Severity {
	switch s {
	case "warning":
		return Warning
	case "critical":
		return Critical
	default:
		return Normal
	}
}

// Threshold holds the warning and critical levels for one signal kind, in
// the same unit as the reading. Direction controls the comparison: most
// signals go bad high (temperature, disk usage), voltage goes bad low.
type Threshold struct {
	Warning   float64
	Critical  float64
	Direction Direction
}

// Direction is the sense of a threshold comparison.
type Direction int

const (
	// HighIsBad triggers at value >= level.
	HighIsBad Direction = iota
	// LowIsBad triggers at value <= level.
	LowIsBad
)

// Finding is one evaluated reading.
type Finding struct {
	Reading  sensor.Reading
	Severity Severity
	// Unmonitored marks an Unavailable reading: Normal severity, logged
	// once, never alerted.
	Unmonitored bool
}

// Evaluate maps a reading to a severity against its threshold. Unavailable
// readings evaluate to Normal with the Unmonitored tag. Flag-style signals
// (throttling, service state, SMART, network, DNS) ignore the numeric
// threshold: anything bad right now is Critical, anything that only
// occurred since boot is Warning.
func Evaluate(r sensor.Reading, th Threshold) Finding {
	f := Finding{Reading: r}
	if r.Unavailable {
		f.Unmonitored = true
		return f
	}

	switch r.Kind {
	case sensor.KindThrottleFlags:
		flags := sensor.DecodeThrottle(r)
		switch {
		case flags.ActiveNow():
			f.Severity = Critical
		case flags.SinceBoot():
			f.Severity = Warning
		}
	case sensor.KindServiceState, sensor.KindSmart, sensor.KindNetwork, sensor.KindDNS:
		if r.Value != 0 {
			f.Severity = Critical
		}
	case sensor.KindContainers:
		if r.Value != 0 {
			f.Severity = Warning
		}
	default:
		f.Severity = compare(r.Value, th)
	}
	return f
}

func compare(value float64, th Threshold) Severity {
	if th.Direction == LowIsBad {
		switch {
		case value <= th.Critical:
			return Critical
		case value <= th.Warning:
			return Warning
		}
		return Normal
	}
	switch {
	case value >= th.Critical:
		return Critical
	case value >= th.Warning:
		return Warning
	}
	return Normal
}

// SignalKey identifies the per-signal alert state entry for a finding.
// Subject-qualified signals (disk mounts, service units, SMART devices) get
// one entry per subject so a full /boot cannot mask a full /srv.
func SignalKey(r sensor.Reading) string {
	if r.Subject == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.Subject)
}
