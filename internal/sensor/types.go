// Package sensor collects typed health readings from the host: firmware
// temperature and throttle state, disk usage, SD-card wear, SMART status,
// systemd unit activity, container state, and network reachability.
package sensor

import (
	"time"
)

// Kind identifies the class of signal a Reading carries.
type Kind string

// Signal kinds produced by the collector.
const (
	KindTemperature   Kind = "temperature"
	KindThrottleFlags Kind = "throttle_flags"
	KindVoltage       Kind = "voltage"
	KindDiskUsage     Kind = "disk_usage"
	KindSdCardErrors  Kind = "sdcard_errors"
	KindSmart         Kind = "smart_status"
	KindServiceState  Kind = "service_state"
	KindContainers    Kind = "container_state"
	KindNetwork       Kind = "network_reachability"
	KindDNS           Kind = "dns_resolution"
)

// Reading is a single immutable observation of one signal. A Reading whose
// Unavailable field is set carries no value; the sensor or tool behind it is
// absent on this host (for example no thermal zone, or smartctl not
// installed). That is not an error condition.
type Reading struct {
	Kind        Kind
	Value       float64
	Unit        string
	Timestamp   time.Time
	SourceHost  string
	Unavailable bool

	// Subject qualifies readings that exist per object rather than per
	// host: the mountpoint for disk usage, the unit name for service
	// state, the probe target for reachability.
	Subject string

	// Detail carries a human-readable fragment for the health log, such
	// as the list of exited container names.
	Detail string
}

// ThrottleFlags is the firmware throttle bitset as reported by
// `vcgencmd get_throttled`. Bits are independent booleans; several may be
// asserted at once.
type ThrottleFlags uint32

// Raw mask values documented by the firmware.
const (
	maskUnderVoltageNow       ThrottleFlags = 0x1
	maskFreqCappedNow         ThrottleFlags = 0x2
	maskThrottledNow          ThrottleFlags = 0x4
	maskUnderVoltageSinceBoot ThrottleFlags = 0x10000
	maskThrottledSinceBoot    ThrottleFlags = 0x20000
)

// UnderVoltageNow reports whether the supply is under-voltage right now.
func (f ThrottleFlags) UnderVoltageNow() bool { return f&maskUnderVoltageNow != 0 }

// FreqCappedNow reports whether the ARM frequency is currently capped.
func (f ThrottleFlags) FreqCappedNow() bool { return f&maskFreqCappedNow != 0 }

// ThrottledNow reports whether the SoC is actively throttled.
func (f ThrottleFlags) ThrottledNow() bool { return f&maskThrottledNow != 0 }

// UnderVoltageSinceBoot reports whether under-voltage occurred at any point
// since boot.
func (f ThrottleFlags) UnderVoltageSinceBoot() bool { return f&maskUnderVoltageSinceBoot != 0 }

// ThrottledSinceBoot reports whether throttling occurred at any point since
// boot.
func (f ThrottleFlags) ThrottledSinceBoot() bool { return f&maskThrottledSinceBoot != 0 }

// ActiveNow reports whether any of the "happening right now" bits is set.
func (f ThrottleFlags) ActiveNow() bool {
	return f.UnderVoltageNow() || f.FreqCappedNow() || f.ThrottledNow()
}

// SinceBoot reports whether any of the "occurred since boot" bits is set.
func (f ThrottleFlags) SinceBoot() bool {
	return f.UnderVoltageSinceBoot() || f.ThrottledSinceBoot()
}

// Describe returns the names of every asserted flag, in mask order.
func (f ThrottleFlags) Describe() []string {
	var names []string
	if f.UnderVoltageNow() {
		names = append(names, "under-voltage now")
	}
	if f.FreqCappedNow() {
		names = append(names, "frequency capped now")
	}
	if f.ThrottledNow() {
		names = append(names, "throttled now")
	}
	if f.UnderVoltageSinceBoot() {
		names = append(names, "under-voltage since boot")
	}
	if f.ThrottledSinceBoot() {
		names = append(names, "throttled since boot")
	}
	return names
}
