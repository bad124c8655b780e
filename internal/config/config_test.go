package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pimedic/pimedic/internal/health"
	"github.com/pimedic/pimedic/internal/sensor"
)

// writeTempFile creates a temporary file with the given content and returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file %s: %v", path, err)
	}
	return path
}

func Test_LoadConfig_Cases(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "partial file layers over defaults",
			content: `
thresholds:
  temperature:
    warning: 65
    critical: 75
services:
  - jellyfin.service
  - transmission.service
`,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Thresholds.Temperature.Warning != 65 || cfg.Thresholds.Temperature.Critical != 75 {
					t.Errorf("temperature thresholds = %+v, want 65/75", cfg.Thresholds.Temperature)
				}
				// Untouched sections keep their defaults.
				if cfg.Thresholds.DiskUsage.Critical != 90 {
					t.Errorf("disk critical = %v, want default 90", cfg.Thresholds.DiskUsage.Critical)
				}
				if len(cfg.Services) != 2 || cfg.Services[0] != "jellyfin.service" {
					t.Errorf("services = %v", cfg.Services)
				}
				if cfg.Paths.StateFile == "" {
					t.Error("default state file path lost")
				}
			},
		},
		{
			name:        "invalid yaml is rejected",
			content:     "thresholds: [not a map",
			wantErr:     true,
			errContains: "unmarshal",
		},
		{
			name: "inverted threshold is rejected",
			content: `
thresholds:
  temperature:
    warning: 85
    critical: 75
`,
			wantErr:     true,
			errContains: "temperature threshold",
		},
		{
			name: "single probe target is rejected",
			content: `
network:
  probe_targets:
    - 1.1.1.1:443
`,
			wantErr:     true,
			errContains: "at least two endpoints",
		},
		{
			name: "voltage thresholds are low-is-bad ordered",
			content: `
thresholds:
  voltage:
    warning: 0.75
    critical: 0.80
`,
			wantErr:     true,
			errContains: "voltage threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "config.yaml", tt.content)
			cfg, err := LoadConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadConfig() error = nil, want error")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error: %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func Test_LoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}

func Test_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("PIMEDIC_WEBHOOK_URL", "https://ntfy.example/pi")
	t.Setenv("PIMEDIC_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if !cfg.Notify.Enabled || cfg.Notify.WebhookURL != "https://ntfy.example/pi" {
		t.Errorf("notify = %+v, want enabled with env URL", cfg.Notify)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func Test_ThresholdFor_Cases(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		kind          sensor.Kind
		wantWarning   float64
		wantDirection health.Direction
	}{
		{sensor.KindTemperature, 70, health.HighIsBad},
		{sensor.KindDiskUsage, 80, health.HighIsBad},
		{sensor.KindVoltage, 0.83, health.LowIsBad},
		{sensor.KindSdCardErrors, 1, health.HighIsBad},
		{sensor.KindThrottleFlags, 0, health.HighIsBad}, // flag signals take no threshold
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			th := cfg.ThresholdFor(tt.kind)
			if th.Warning != tt.wantWarning {
				t.Errorf("Warning = %v, want %v", th.Warning, tt.wantWarning)
			}
			if th.Direction != tt.wantDirection {
				t.Errorf("Direction = %v, want %v", th.Direction, tt.wantDirection)
			}
		})
	}
}
