package alert

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_StateStore_LoadSave_Cases(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, path string)
		validate func(t *testing.T, states map[string]string)
	}{
		{
			name:  "missing file is an empty map",
			setup: func(*testing.T, string) {},
			validate: func(t *testing.T, states map[string]string) {
				t.Helper()
				if len(states) != 0 {
					t.Errorf("states = %v, want empty", states)
				}
			},
		},
		{
			name: "existing record round-trips",
			setup: func(t *testing.T, path string) {
				t.Helper()
				s := NewStateStore(path)
				if err := s.Save(map[string]string{"temperature": "critical", "disk_usage:/srv": "warning"}); err != nil {
					t.Fatalf("Save() error: %v", err)
				}
			},
			validate: func(t *testing.T, states map[string]string) {
				t.Helper()
				if states["temperature"] != "critical" {
					t.Errorf("temperature = %q, want critical", states["temperature"])
				}
				if states["disk_usage:/srv"] != "warning" {
					t.Errorf("disk_usage:/srv = %q, want warning", states["disk_usage:/srv"])
				}
			},
		},
		{
			name: "corrupt record degrades to empty, not error",
			setup: func(t *testing.T, path string) {
				t.Helper()
				if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
					t.Fatalf("write corrupt file: %v", err)
				}
			},
			validate: func(t *testing.T, states map[string]string) {
				t.Helper()
				if len(states) != 0 {
					t.Errorf("states = %v, want empty", states)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			tt.setup(t, path)

			states, err := NewStateStore(path).Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			tt.validate(t, states)
		})
	}
}

func Test_StateStore_Save_AtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "state.json")
	s := NewStateStore(path)

	if err := s.Save(map[string]string{"temperature": "warning"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save(map[string]string{"temperature": "normal"}); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	// No temp file may survive a completed save.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file still present after save")
	}
	states, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if states["temperature"] != "normal" {
		t.Errorf("temperature = %q, want normal", states["temperature"])
	}
}
