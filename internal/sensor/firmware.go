package sensor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FirmwareProbe reads temperature, throttle flags, and core voltage from the
// Raspberry Pi firmware. Temperature prefers the sysfs thermal zone and falls
// back to vcgencmd; throttle flags and voltage have no sysfs equivalent and
// always go through vcgencmd.
type FirmwareProbe struct {
	sysPath    string // normally /sys
	vcgencmd   string // normally "vcgencmd"
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewFirmwareProbe returns a FirmwareProbe reading from the given sys
// filesystem root and vcgencmd binary.
func NewFirmwareProbe(sysPath, vcgencmd string) *FirmwareProbe {
	return &FirmwareProbe{
		sysPath:  sysPath,
		vcgencmd: vcgencmd,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Temperature returns the SoC temperature in degrees Celsius.
func (p *FirmwareProbe) Temperature(ctx context.Context) Reading {
	r := Reading{Kind: KindTemperature, Unit: "°C", Timestamp: time.Now()}

	// thermal_zone0 is the SoC sensor on every Pi model; value is
	// millidegrees.
	path := filepath.Join(p.sysPath, "class", "thermal", "thermal_zone0", "temp")
	if data, err := os.ReadFile(path); err == nil {
		if milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil {
			r.Value = milli / 1000.0
			return r
		}
	}

	// Fall back to `vcgencmd measure_temp` -> "temp=47.2'C".
	out, err := p.runCommand(ctx, p.vcgencmd, "measure_temp")
	if err != nil {
		r.Unavailable = true
		return r
	}
	v, err := parseVcgencmdValue(string(out), "temp=", "'C")
	if err != nil {
		r.Unavailable = true
		return r
	}
	r.Value = v
	return r
}

// Throttle returns the raw firmware throttle bitset. The Reading value is the
// decoded integer; use DecodeThrottle to interpret it.
func (p *FirmwareProbe) Throttle(ctx context.Context) Reading {
	r := Reading{Kind: KindThrottleFlags, Unit: "bitset", Timestamp: time.Now()}

	// `vcgencmd get_throttled` -> "throttled=0x50000".
	out, err := p.runCommand(ctx, p.vcgencmd, "get_throttled")
	if err != nil {
		r.Unavailable = true
		return r
	}
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(out)), "throttled="))
	bits, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 32)
	if err != nil {
		r.Unavailable = true
		return r
	}
	r.Value = float64(bits)
	flags := ThrottleFlags(bits)
	if names := flags.Describe(); len(names) > 0 {
		r.Detail = strings.Join(names, ", ")
	}
	return r
}

// Voltage returns the core voltage rail in volts.
func (p *FirmwareProbe) Voltage(ctx context.Context) Reading {
	r := Reading{Kind: KindVoltage, Unit: "V", Timestamp: time.Now()}

	// `vcgencmd measure_volts core` -> "volt=0.8563V".
	out, err := p.runCommand(ctx, p.vcgencmd, "measure_volts", "core")
	if err != nil {
		r.Unavailable = true
		return r
	}
	v, err := parseVcgencmdValue(string(out), "volt=", "V")
	if err != nil {
		r.Unavailable = true
		return r
	}
	r.Value = v
	return r
}

// DecodeThrottle converts a throttle Reading back into its typed bitset.
func DecodeThrottle(r Reading) ThrottleFlags {
	return ThrottleFlags(uint32(r.Value))
}

// parseVcgencmdValue extracts the numeric payload from vcgencmd's
// "key=<value><suffix>" output format.
func parseVcgencmdValue(out, prefix, suffix string) (float64, error) {
	s := strings.TrimSpace(out)
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("unexpected vcgencmd output %q", s)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse vcgencmd value %q: %w", s, err)
	}
	return v, nil
}
