package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// stateUnmonitored is the pseudo-severity stored for signals whose sensor is
// absent, so the "unmonitored" notice is logged once and not repeated.
const stateUnmonitored = "unmonitored"

// StateStore persists the last known severity per signal key between runs.
// Each run is a fresh process; without this record no transition could be
// detected. Writes are atomic: a temp file is renamed over the old record.
type StateStore struct {
	path string
}

// NewStateStore returns a store persisting to path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the severity map. A missing file is an empty map, not an
// error: the first run on a host has no history.
func (s *StateStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("alert state: read %s: %w", s.path, err)
	}

	states := map[string]string{}
	if err := json.Unmarshal(data, &states); err != nil {
		// A corrupt record is discarded; the cost is one round of
		// re-alerts, which beats refusing to run.
		return map[string]string{}, nil
	}
	return states, nil
}

// Save atomically replaces the severity map on disk.
func (s *StateStore) Save(states map[string]string) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("alert state: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("alert state: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("alert state: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("alert state: rename: %w", err)
	}
	return nil
}
