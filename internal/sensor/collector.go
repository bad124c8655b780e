package sensor

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pimedic/pimedic/internal/docker"
	"github.com/pimedic/pimedic/internal/systemd"
)

// Collector gathers all configured readings for one health-check run. Every
// probe is independent: a failed or missing sensor yields an Unavailable
// reading and never stops the others.
type Collector struct {
	firmware *FirmwareProbe
	storage  *StorageHealthProbe
	network  *NetworkProbe
	units    systemd.Manager
	dockerC  docker.Lister // nil when the socket is not configured
	services []string
	hostname string
}

// NewCollector wires the individual probes into a collector. dockerClient
// may be nil on hosts without a container runtime.
func NewCollector(
	firmware *FirmwareProbe,
	storage *StorageHealthProbe,
	network *NetworkProbe,
	units systemd.Manager,
	dockerClient docker.Lister,
	services []string,
) *Collector {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Collector{
		firmware: firmware,
		storage:  storage,
		network:  network,
		units:    units,
		dockerC:  dockerClient,
		services: services,
		hostname: hostname,
	}
}

// Temperatures collects only the firmware signals: temperature, throttle
// flags, and core voltage. This is the lightweight high-frequency check.
func (c *Collector) Temperatures(ctx context.Context) []Reading {
	readings := []Reading{
		c.firmware.Temperature(ctx),
		c.firmware.Throttle(ctx),
		c.firmware.Voltage(ctx),
	}
	return c.stamp(readings)
}

// All collects every configured signal.
func (c *Collector) All(ctx context.Context) []Reading {
	readings := c.Temperatures(ctx)
	readings = append(readings, DiskUsage(ctx)...)
	readings = append(readings, c.storage.SdCardErrors(ctx))
	readings = append(readings, c.storage.SmartStatus(ctx)...)
	readings = append(readings, c.ServiceStates(ctx)...)
	readings = append(readings, c.ContainerState(ctx))
	readings = append(readings, c.network.Reachability(ctx))
	readings = append(readings, c.network.Resolution(ctx))
	return c.stamp(readings)
}

// ServiceStates reports one reading per monitored unit: 0 when active,
// 1 when inactive. A query failure counts as inactive; from the health
// engine's point of view a service whose state cannot be read is down.
func (c *Collector) ServiceStates(ctx context.Context) []Reading {
	now := time.Now()
	var readings []Reading
	for _, unit := range c.services {
		r := Reading{Kind: KindServiceState, Unit: "status", Timestamp: now, Subject: unit}
		active, err := c.units.IsActive(ctx, unit)
		if err != nil {
			r.Value = 1
			r.Detail = err.Error()
		} else if !active {
			r.Value = 1
		}
		readings = append(readings, r)
	}
	return readings
}

// ContainerState reports the count of exited containers, with their names in
// the detail. Without a configured container runtime the reading is
// Unavailable.
func (c *Collector) ContainerState(ctx context.Context) Reading {
	r := Reading{Kind: KindContainers, Unit: "containers", Timestamp: time.Now()}
	if c.dockerC == nil {
		r.Unavailable = true
		return r
	}
	exited, err := docker.ListExited(ctx, c.dockerC)
	if err != nil {
		r.Unavailable = true
		r.Detail = err.Error()
		return r
	}
	r.Value = float64(len(exited))
	if len(exited) > 0 {
		r.Detail = "exited: " + strings.Join(exited, ", ")
	}
	return r
}

func (c *Collector) stamp(readings []Reading) []Reading {
	for i := range readings {
		readings[i].SourceHost = c.hostname
	}
	return readings
}
