package sensor

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// StorageHealthProbe checks the two ways a Pi media host loses its storage:
// SD-card I/O errors accumulating in the kernel log, and SMART failures on
// attached USB/SATA disks.
type StorageHealthProbe struct {
	kernLogPath string   // normally /var/log/kern.log
	smartctl    string   // normally "smartctl"
	devices     []string // e.g. /dev/sda
	runCommand  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewStorageHealthProbe returns a probe scanning the given kernel log for
// MMC errors and running smartctl against the given devices.
func NewStorageHealthProbe(kernLogPath, smartctl string, devices []string) *StorageHealthProbe {
	return &StorageHealthProbe{
		kernLogPath: kernLogPath,
		smartctl:    smartctl,
		devices:     devices,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// mmcErrorMarkers are kernel log substrings indicating SD-card trouble.
var mmcErrorMarkers = []string{
	"mmc0: error",
	"mmcblk0: error",
	"I/O error, dev mmcblk",
}

// SdCardErrors counts SD-card error lines in the kernel log. A missing log
// file yields an Unavailable reading (journald-only hosts).
func (p *StorageHealthProbe) SdCardErrors(_ context.Context) Reading {
	r := Reading{Kind: KindSdCardErrors, Unit: "errors", Timestamp: time.Now()}

	f, err := os.Open(p.kernLogPath)
	if err != nil {
		r.Unavailable = true
		return r
	}
	defer func() { _ = f.Close() }()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, marker := range mmcErrorMarkers {
			if strings.Contains(line, marker) {
				count++
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		r.Unavailable = true
		return r
	}
	r.Value = float64(count)
	return r
}

// SmartStatus runs `smartctl -H` on each configured device and returns one
// Reading per device: 0 for a passing health check, 1 for a failing one.
// A host without smartctl or without configured devices reports a single
// Unavailable reading.
func (p *StorageHealthProbe) SmartStatus(ctx context.Context) []Reading {
	now := time.Now()
	if len(p.devices) == 0 {
		return []Reading{{Kind: KindSmart, Unit: "status", Timestamp: now, Unavailable: true}}
	}

	var readings []Reading
	for _, dev := range p.devices {
		r := Reading{Kind: KindSmart, Unit: "status", Timestamp: now, Subject: dev}
		out, err := p.runCommand(ctx, p.smartctl, "-H", dev)
		switch {
		case err != nil && len(out) == 0:
			// smartctl missing entirely.
			r.Unavailable = true
		case strings.Contains(string(out), "PASSED") || strings.Contains(string(out), "OK"):
			r.Value = 0
		default:
			r.Value = 1
			r.Detail = "SMART overall-health self-assessment failed"
		}
		readings = append(readings, r)
	}
	return readings
}
