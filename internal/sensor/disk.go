package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// pseudoFsTypes are filesystem types excluded from disk-usage evaluation;
// they are always full or meaningless (tmpfs, squashfs snaps, devfs).
var pseudoFsTypes = map[string]bool{
	"tmpfs":    true,
	"devtmpfs": true,
	"squashfs": true,
	"overlay":  true,
	"proc":     true,
	"sysfs":    true,
}

// DiskUsage returns one Reading per real mounted filesystem with its used
// percentage. Each mount is reported independently so one full filesystem
// cannot mask another.
func DiskUsage(ctx context.Context) []Reading {
	now := time.Now()

	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return []Reading{{Kind: KindDiskUsage, Unit: "%", Timestamp: now, Unavailable: true}}
	}

	var readings []Reading
	for _, p := range partitions {
		if pseudoFsTypes[p.Fstype] || strings.HasPrefix(p.Mountpoint, "/snap") {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		readings = append(readings, Reading{
			Kind:      KindDiskUsage,
			Value:     usage.UsedPercent,
			Unit:      "%",
			Timestamp: now,
			Subject:   p.Mountpoint,
		})
	}
	if len(readings) == 0 {
		return []Reading{{Kind: KindDiskUsage, Unit: "%", Timestamp: now, Unavailable: true}}
	}
	return readings
}
