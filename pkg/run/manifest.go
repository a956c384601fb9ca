package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest is the designrun.json at a run's root: identity plus the URLs that
// make runs resumable (the ChatGPT conversation and the generator projects).
type Manifest struct {
	RunID             string `json:"run_id"`
	CreatedTS         int64  `json:"created_ts"`
	ChatURL           string `json:"chat_url,omitempty"`
	AuraProjectURL    string `json:"aura_project_url,omitempty"`
	VariantProjectURL string `json:"variant_project_url,omitempty"`
}

// NewManifest creates a manifest for a fresh run.
func NewManifest(runID string) *Manifest {
	return &Manifest{
		RunID:     runID,
		CreatedTS: nowTS(),
	}
}

// nowTS is the event/manifest timestamp: unix milliseconds.
func nowTS() int64 {
	return time.Now().UnixMilli()
}

// ReadManifest loads designrun.json from a run directory. A missing file
// yields an empty manifest, matching how updates against uninitialized runs
// behave.
func ReadManifest(runDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "designrun.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest writes designrun.json into the run directory.
func WriteManifest(runDir string, m *Manifest) error {
	if err := os.MkdirAll(runDir, 0750); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "designrun.json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// UpdateManifest applies fn to the run's manifest read-modify-write.
func UpdateManifest(runDir string, fn func(*Manifest)) error {
	m, err := ReadManifest(runDir)
	if err != nil {
		return err
	}
	fn(m)
	return WriteManifest(runDir, m)
}
