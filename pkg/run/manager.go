// Package run owns the on-disk state of a design automation run: the
// runs/<run-id>/ folder tree, the designrun.json manifest, the events.ndjson
// event log, and the per-step layout the operators read from and write into.
//
// Layout of one step:
//
//	steps/S01_dna_01/
//	  input/                  user_text.txt, mode.txt
//	  references/images/      ref_001.png ... + ../map.json
//	  gpt/                    raw.txt, blocks.json, extracted.json, outputs/
//	  generators/aura/        exports/, captures/
//	  generators/variant/     exports/, captures/
package run

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Step modes. A step carries exactly one, set by SetStepInput.
const (
	ModeDNA        = "DNA"
	ModeVariations = "VARIATIONS"
	ModeFeedback   = "FEEDBACK"
)

// Reference image limits, enforced when adding references and again when
// collecting them for an operator (manually dropped-in files count too).
const (
	MaxReferenceImages = 2
	MaxImageSizeBytes  = 5 * 1024 * 1024
	DefaultRunsDir     = "runs"
	runsDirEnv         = "DESIGN_RUNS_DIR"
)

// Manager resolves and mutates run state under a single runs root.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at the given runs directory.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// ResolveRunsDir picks the runs root: explicit flag value, then the
// DESIGN_RUNS_DIR environment variable, then the configured default, then
// "runs".
func ResolveRunsDir(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(runsDirEnv); env != "" {
		return env
	}
	if configured != "" {
		return configured
	}
	return DefaultRunsDir
}

// Root returns the runs root directory.
func (m *Manager) Root() string { return m.root }

// RunDir returns the directory of a run.
func (m *Manager) RunDir(runID string) string {
	return filepath.Join(m.root, runID)
}

// StepDir returns the directory of a step within a run.
func (m *Manager) StepDir(runID, stepID string) string {
	return filepath.Join(m.root, runID, "steps", stepID)
}

// InitRun creates the run folder, manifest and event log. Calling it on an
// existing run is a no-op for the manifest.
func (m *Manager) InitRun(runID string) (string, error) {
	runDir := m.RunDir(runID)
	if err := os.MkdirAll(filepath.Join(runDir, "steps"), 0750); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	manifestPath := filepath.Join(runDir, "designrun.json")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		manifest := NewManifest(runID)
		if err := WriteManifest(runDir, manifest); err != nil {
			return "", err
		}
	}

	eventsPath := filepath.Join(runDir, "events.ndjson")
	if _, err := os.Stat(eventsPath); os.IsNotExist(err) {
		if err := AppendEvent(runDir, "run_created", map[string]interface{}{"run_id": runID}); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// AddStep creates the next step S<NN>_<name> with its full layout and
// returns the step id.
func (m *Manager) AddStep(runID, name string) (string, error) {
	if _, err := m.InitRun(runID); err != nil {
		return "", err
	}
	num, err := m.nextStepNumber(runID)
	if err != nil {
		return "", err
	}
	stepID := fmt.Sprintf("S%02d_%s", num, name)
	if err := ensureStepLayout(m.StepDir(runID, stepID)); err != nil {
		return "", err
	}
	if err := AppendEvent(m.RunDir(runID), "step_created", map[string]interface{}{"step_id": stepID}); err != nil {
		return "", err
	}
	return stepID, nil
}

// ListStepIDs returns the run's step ids in lexical (and therefore creation)
// order.
func (m *Manager) ListStepIDs(runID string) ([]string, error) {
	stepsDir := filepath.Join(m.RunDir(runID), "steps")
	entries, err := os.ReadDir(stepsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "S") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// nextStepNumber scans existing step ids (S01_name form) for the highest
// number; malformed names are skipped.
func (m *Manager) nextStepNumber(runID string) (int, error) {
	ids, err := m.ListStepIDs(runID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, id := range ids {
		prefix, _, ok := strings.Cut(id, "_")
		if !ok || len(prefix) < 2 {
			continue
		}
		if n, err := strconv.Atoi(prefix[1:]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// ensureStepLayout creates the full step folder structure.
func ensureStepLayout(stepDir string) error {
	dirs := []string{
		filepath.Join(stepDir, "input"),
		filepath.Join(stepDir, "references", "images"),
		filepath.Join(stepDir, "gpt", "outputs"),
		filepath.Join(stepDir, "generators", "aura", "exports"),
		filepath.Join(stepDir, "generators", "aura", "captures"),
		filepath.Join(stepDir, "generators", "variant", "exports"),
		filepath.Join(stepDir, "generators", "variant", "captures"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0750); err != nil {
			return fmt.Errorf("failed to create step layout: %w", err)
		}
	}
	return nil
}

// SetStepInput writes the step's user text and mode.
func (m *Manager) SetStepInput(runID, stepID, userText, mode string) error {
	switch mode {
	case ModeDNA, ModeVariations, ModeFeedback:
	default:
		return fmt.Errorf("mode must be one of %s, %s, %s; got %q", ModeDNA, ModeVariations, ModeFeedback, mode)
	}
	stepDir := m.StepDir(runID, stepID)
	if err := ensureStepLayout(stepDir); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stepDir, "input", "user_text.txt"), []byte(userText), 0600); err != nil {
		return fmt.Errorf("failed to write user text: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stepDir, "input", "mode.txt"), []byte(mode), 0600); err != nil {
		return fmt.Errorf("failed to write mode: %w", err)
	}
	return AppendEvent(m.RunDir(runID), "step_input_saved", map[string]interface{}{"step_id": stepID})
}

// StepMode reads the step's mode, normalized to upper case.
func (m *Manager) StepMode(runID, stepID string) (string, error) {
	path := filepath.Join(m.StepDir(runID, stepID), "input", "mode.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("step mode not set: %s (set input first)", path)
	}
	return strings.ToUpper(strings.TrimSpace(string(data))), nil
}

// AddReferences copies images into the step's references/images/ as
// ref_001.<ext>, ref_002.<ext>, ... and writes references/map.json mapping
// each stored filename to a label. At most MaxReferenceImages images, each
// under MaxImageSizeBytes.
func (m *Manager) AddReferences(runID, stepID string, imagePaths []string, labels map[string]string) error {
	if err := ValidateReferenceImages(imagePaths); err != nil {
		return err
	}
	stepDir := m.StepDir(runID, stepID)
	if err := ensureStepLayout(stepDir); err != nil {
		return err
	}
	refDir := filepath.Join(stepDir, "references", "images")
	mapData := make(map[string]string, len(imagePaths))
	for i, src := range imagePaths {
		ext := filepath.Ext(src)
		if ext == "" {
			ext = ".png"
		}
		destName := fmt.Sprintf("ref_%03d%s", i+1, ext)
		if err := copyFile(src, filepath.Join(refDir, destName)); err != nil {
			return err
		}
		label, ok := labels[src]
		if !ok {
			label, ok = labels[filepath.Base(src)]
		}
		if !ok {
			label = fmt.Sprintf("Reference %d", i+1)
		}
		mapData[destName] = label
	}
	if err := writeJSON(filepath.Join(stepDir, "references", "map.json"), mapData); err != nil {
		return err
	}
	return AppendEvent(m.RunDir(runID), "references_saved", map[string]interface{}{
		"step_id": stepID,
		"count":   len(imagePaths),
	})
}

// ValidateReferenceImages checks count, existence and size limits.
func ValidateReferenceImages(imagePaths []string) error {
	if len(imagePaths) > MaxReferenceImages {
		return fmt.Errorf("at most %d reference images allowed, got %d", MaxReferenceImages, len(imagePaths))
	}
	for _, src := range imagePaths {
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("reference image not found: %s", src)
		}
		if info.Size() >= MaxImageSizeBytes {
			return fmt.Errorf("reference image too large: %s (%.2f MB, maximum %d MB)",
				filepath.Base(src), float64(info.Size())/(1024*1024), MaxImageSizeBytes/(1024*1024))
		}
	}
	return nil
}

// ReferenceImages returns the step's stored reference images in name order,
// skipping oversized files and capping at MaxReferenceImages. Missing
// directory means no references.
func (m *Manager) ReferenceImages(runID, stepID string) ([]string, error) {
	refDir := filepath.Join(m.StepDir(runID, stepID), "references", "images")
	entries, err := os.ReadDir(refDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() >= MaxImageSizeBytes {
			continue
		}
		images = append(images, filepath.Join(refDir, e.Name()))
		if len(images) >= MaxReferenceImages {
			break
		}
	}
	return images, nil
}

// SaveArtifact writes an arbitrary artifact under the step directory, creating
// parent directories as needed, and returns the absolute destination path.
// The relative path is guarded: it cannot climb out of the step directory.
func (m *Manager) SaveArtifact(runID, stepID, relativePath string, content []byte) (string, error) {
	guard, err := NewGuard(m.StepDir(runID, stepID))
	if err != nil {
		return "", err
	}
	dest, err := guard.Resolve(relativePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(dest, content, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
