package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateSchemaVersion = 1

// State is the persisted runtime state. OwnersMigrated is the one-shot
// migration guard: once true, the legacy-owner pass never runs again on its
// own. A missing file reads as the zero State.
type State struct {
	SchemaVersion  int  `json:"schema_version"`
	OwnersMigrated bool `json:"owners_migrated"`
}

func LoadState(path string) (State, error) {
	var st State
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{SchemaVersion: stateSchemaVersion}, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("parse state file: %w", err)
	}
	if st.SchemaVersion == 0 {
		st.SchemaVersion = stateSchemaVersion
	}
	return st, nil
}

// SaveState writes atomically so a crash mid-write never half-persists the
// migration guard.
func SaveState(path string, st State) error {
	if st.SchemaVersion == 0 {
		st.SchemaVersion = stateSchemaVersion
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(b, '\n'))
}

func writeFileAtomic(path string, b []byte) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
