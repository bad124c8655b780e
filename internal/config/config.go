// Package config provides configuration loading and defaults for pimedic.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/logging"
	"github.com/pimedic/pimedic/internal/sensor"
)

// PathsConfig holds filesystem paths and external binaries. The sysfs root
// and log paths are overridable so tests can point them at fixtures.
type PathsConfig struct {
	Sys          string `yaml:"sys"`
	KernLog      string `yaml:"kern_log"`
	Vcgencmd     string `yaml:"vcgencmd"`
	Smartctl     string `yaml:"smartctl"`
	DockerSocket string `yaml:"docker_socket"`
	StateFile    string `yaml:"state_file"`
	HealthLog    string `yaml:"health_log"`
	LockFile     string `yaml:"lock_file"`
}

// ThresholdConfig is one warning/critical pair in the reading's unit.
type ThresholdConfig struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// ThresholdsConfig groups the numeric thresholds per signal kind. Flag-type
// signals (throttling, service state, SMART, network) have fixed semantics
// and take no thresholds.
type ThresholdsConfig struct {
	Temperature  ThresholdConfig `yaml:"temperature"`
	DiskUsage    ThresholdConfig `yaml:"disk_usage"`
	Voltage      ThresholdConfig `yaml:"voltage"` // low is bad
	SdCardErrors ThresholdConfig `yaml:"sdcard_errors"`
}

// NetworkConfig lists the reachability probe endpoints and DNS check names.
type NetworkConfig struct {
	// ProbeTargets are host:port TCP endpoints. At least two independent
	// endpoints are required so a single remote outage is not read as a
	// local connectivity failure.
	ProbeTargets []string `yaml:"probe_targets"`
	DNSNames     []string `yaml:"dns_names"`
}

// NotifyConfig controls the notification channel.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// StorageConfig lists disks monitored via SMART.
type StorageConfig struct {
	SmartDevices []string `yaml:"smart_devices"`
}

// BackupConfig controls the snapshot and image paths.
type BackupConfig struct {
	Destination   string   `yaml:"destination"`
	Allowlist     []string `yaml:"allowlist"`
	RetentionDays int      `yaml:"retention_days"`
	ImageDevice   string   `yaml:"image_device"`
}

// Config is the top-level configuration for pimedic.
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Paths      PathsConfig      `yaml:"paths"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Services   []string         `yaml:"services"`
	Storage    StorageConfig    `yaml:"storage"`
	Network    NetworkConfig    `yaml:"network"`
	Notify     NotifyConfig     `yaml:"notify"`
	Backup     BackupConfig     `yaml:"backup"`
}

// DefaultConfig returns the configuration a stock Pi media host runs with.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.Config{Level: "info"},
		Paths: PathsConfig{
			Sys:          "/sys",
			KernLog:      "/var/log/kern.log",
			Vcgencmd:     "vcgencmd",
			Smartctl:     "smartctl",
			DockerSocket: "/var/run/docker.sock",
			StateFile:    "/var/lib/pimedic/state.json",
			HealthLog:    "/var/log/pimedic/health.log",
			LockFile:     "/run/pimedic.lock",
		},
		Thresholds: ThresholdsConfig{
			Temperature:  ThresholdConfig{Warning: 70, Critical: 80},
			DiskUsage:    ThresholdConfig{Warning: 80, Critical: 90},
			Voltage:      ThresholdConfig{Warning: 0.83, Critical: 0.80},
			SdCardErrors: ThresholdConfig{Warning: 1, Critical: 10},
		},
		Services: []string{"docker.service"},
		Network: NetworkConfig{
			ProbeTargets: []string{"1.1.1.1:443", "8.8.8.8:53"},
			DNSNames:     []string{"debian.org"},
		},
		Backup: BackupConfig{
			Destination: "/srv/backups/pimedic",
			Allowlist: []string{
				"/etc/fstab",
				"/etc/docker/daemon.json",
				"/etc/pimedic",
				"/opt/stack/docker-compose.yml",
			},
			RetentionDays: 30,
			ImageDevice:   "/dev/mmcblk0",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file, layered over the
// defaults so a partial file is valid.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides lets the environment override fields that carry secrets
// or vary per deployment without editing the YAML.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PIMEDIC_WEBHOOK_URL"); v != "" {
		cfg.Notify.Enabled = true
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("PIMEDIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIMEDIC_BACKUP_DEST"); v != "" {
		cfg.Backup.Destination = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	for _, th := range []struct {
		name string
		cfg  ThresholdConfig
		low  bool
	}{
		{"temperature", c.Thresholds.Temperature, false},
		{"disk_usage", c.Thresholds.DiskUsage, false},
		{"voltage", c.Thresholds.Voltage, true},
		{"sdcard_errors", c.Thresholds.SdCardErrors, false},
	} {
		bad := th.cfg.Warning >= th.cfg.Critical
		if th.low {
			bad = th.cfg.Warning <= th.cfg.Critical
		}
		if bad {
			return fmt.Errorf("config: %s threshold: warning %v must precede critical %v",
				th.name, th.cfg.Warning, th.cfg.Critical)
		}
	}
	if len(c.Network.ProbeTargets) == 1 {
		return fmt.Errorf("config: network.probe_targets needs at least two endpoints, got 1")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("config: backup.retention_days must not be negative")
	}
	return nil
}

// ThresholdFor maps a signal kind to its evaluator threshold.
func (c *Config) ThresholdFor(kind sensor.Kind) health.Threshold {
	switch kind {
	case sensor.KindTemperature:
		return health.Threshold{Warning: c.Thresholds.Temperature.Warning, Critical: c.Thresholds.Temperature.Critical}
	case sensor.KindDiskUsage:
		return health.Threshold{Warning: c.Thresholds.DiskUsage.Warning, Critical: c.Thresholds.DiskUsage.Critical}
	case sensor.KindVoltage:
		return health.Threshold{
			Warning:   c.Thresholds.Voltage.Warning,
			Critical:  c.Thresholds.Voltage.Critical,
			Direction: health.LowIsBad,
		}
	case sensor.KindSdCardErrors:
		return health.Threshold{Warning: c.Thresholds.SdCardErrors.Warning, Critical: c.Thresholds.SdCardErrors.Critical}
	default:
		return health.Threshold{}
	}
}
