package run

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir())
}

func TestInitRunCreatesLayout(t *testing.T) {
	m := newTestManager(t)
	runDir, err := m.InitRun("r1")
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(runDir, "steps"))
	assert.FileExists(t, filepath.Join(runDir, "designrun.json"))
	assert.FileExists(t, filepath.Join(runDir, "events.ndjson"))

	manifest, err := ReadManifest(runDir)
	require.NoError(t, err)
	assert.Equal(t, "r1", manifest.RunID)
	assert.NotZero(t, manifest.CreatedTS)

	events, err := ReadEvents(runDir)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "run_created", events[0]["event"])
}

func TestInitRunIdempotent(t *testing.T) {
	m := newTestManager(t)
	runDir, err := m.InitRun("r1")
	require.NoError(t, err)
	require.NoError(t, UpdateManifest(runDir, func(mf *Manifest) { mf.ChatURL = "https://chatgpt.com/c/abc" }))

	_, err = m.InitRun("r1")
	require.NoError(t, err)

	manifest, err := ReadManifest(runDir)
	require.NoError(t, err)
	assert.Equal(t, "https://chatgpt.com/c/abc", manifest.ChatURL, "re-init must not reset the manifest")

	events, err := ReadEvents(runDir)
	require.NoError(t, err)
	assert.Len(t, events, 1, "re-init must not append a second run_created")
}

func TestAddStepNumbering(t *testing.T) {
	m := newTestManager(t)

	s1, err := m.AddStep("r1", "dna_01")
	require.NoError(t, err)
	assert.Equal(t, "S01_dna_01", s1)

	s2, err := m.AddStep("r1", "variations")
	require.NoError(t, err)
	assert.Equal(t, "S02_variations", s2)

	// Full step layout exists.
	stepDir := m.StepDir("r1", s1)
	for _, sub := range []string{
		"input",
		filepath.Join("references", "images"),
		filepath.Join("gpt", "outputs"),
		filepath.Join("generators", "aura", "exports"),
		filepath.Join("generators", "aura", "captures"),
		filepath.Join("generators", "variant", "exports"),
		filepath.Join("generators", "variant", "captures"),
	} {
		assert.DirExists(t, filepath.Join(stepDir, sub))
	}

	ids, err := m.ListStepIDs("r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S01_dna_01", "S02_variations"}, ids)
}

func TestAddStepSkipsMalformedDirs(t *testing.T) {
	m := newTestManager(t)
	_, err := m.InitRun("r1")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(m.RunDir("r1"), "steps", "Sbogus"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(m.RunDir("r1"), "steps", "notastep"), 0750))

	s, err := m.AddStep("r1", "first")
	require.NoError(t, err)
	assert.Equal(t, "S01_first", s)
}

func TestSetStepInput(t *testing.T) {
	m := newTestManager(t)
	stepID, err := m.AddStep("r1", "dna")
	require.NoError(t, err)

	require.NoError(t, m.SetStepInput("r1", stepID, "dark landing page", ModeDNA))

	text, err := os.ReadFile(filepath.Join(m.StepDir("r1", stepID), "input", "user_text.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dark landing page", string(text))

	mode, err := m.StepMode("r1", stepID)
	require.NoError(t, err)
	assert.Equal(t, ModeDNA, mode)
}

func TestSetStepInputRejectsUnknownMode(t *testing.T) {
	m := newTestManager(t)
	err := m.SetStepInput("r1", "S01_x", "text", "SOMETHING")
	assert.ErrorContains(t, err, "mode must be one of")
}

func TestStepModeNormalized(t *testing.T) {
	m := newTestManager(t)
	stepID, err := m.AddStep("r1", "fb")
	require.NoError(t, err)
	inputDir := filepath.Join(m.StepDir("r1", stepID), "input")
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "mode.txt"), []byte(" feedback \n"), 0600))

	mode, err := m.StepMode("r1", stepID)
	require.NoError(t, err)
	assert.Equal(t, ModeFeedback, mode)
}

func writeTestImage(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0600))
	return path
}

func TestAddReferences(t *testing.T) {
	m := newTestManager(t)
	stepID, err := m.AddStep("r1", "dna")
	require.NoError(t, err)

	srcDir := t.TempDir()
	img1 := writeTestImage(t, srcDir, "hero.png", 1024)
	img2 := writeTestImage(t, srcDir, "palette.jpg", 2048)

	err = m.AddReferences("r1", stepID, []string{img1, img2}, map[string]string{"hero.png": "Hero section"})
	require.NoError(t, err)

	refDir := filepath.Join(m.StepDir("r1", stepID), "references", "images")
	assert.FileExists(t, filepath.Join(refDir, "ref_001.png"))
	assert.FileExists(t, filepath.Join(refDir, "ref_002.jpg"))

	mapData, err := os.ReadFile(filepath.Join(m.StepDir("r1", stepID), "references", "map.json"))
	require.NoError(t, err)
	var labels map[string]string
	require.NoError(t, json.Unmarshal(mapData, &labels))
	assert.Equal(t, "Hero section", labels["ref_001.png"])
	assert.Equal(t, "Reference 2", labels["ref_002.jpg"])
}

func TestAddReferencesLimits(t *testing.T) {
	m := newTestManager(t)
	srcDir := t.TempDir()
	img := writeTestImage(t, srcDir, "a.png", 16)

	t.Run("too many", func(t *testing.T) {
		err := m.AddReferences("r1", "S01_x", []string{img, img, img}, nil)
		assert.ErrorContains(t, err, "at most 2 reference images")
	})

	t.Run("missing file", func(t *testing.T) {
		err := m.AddReferences("r1", "S01_x", []string{filepath.Join(srcDir, "absent.png")}, nil)
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("too large", func(t *testing.T) {
		big := writeTestImage(t, srcDir, "big.png", MaxImageSizeBytes)
		err := m.AddReferences("r1", "S01_x", []string{big}, nil)
		assert.ErrorContains(t, err, "too large")
	})
}

func TestReferenceImagesSkipsOversized(t *testing.T) {
	m := newTestManager(t)
	stepID, err := m.AddStep("r1", "dna")
	require.NoError(t, err)

	refDir := filepath.Join(m.StepDir("r1", stepID), "references", "images")
	writeTestImage(t, refDir, "ref_001.png", 64)
	// Dropped in manually, over the limit: collected set must skip it.
	writeTestImage(t, refDir, "ref_002.png", MaxImageSizeBytes)
	writeTestImage(t, refDir, "ref_003.png", 64)

	images, err := m.ReferenceImages("r1", stepID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "ref_001.png", filepath.Base(images[0]))
	assert.Equal(t, "ref_003.png", filepath.Base(images[1]))
}

func TestSaveArtifact(t *testing.T) {
	m := newTestManager(t)
	stepID, err := m.AddStep("r1", "dna")
	require.NoError(t, err)

	dest, err := m.SaveArtifact("r1", stepID, filepath.Join("gpt", "debug", "page.html"), []byte("<html></html>"))
	require.NoError(t, err)
	assert.FileExists(t, dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestResolveRunsDir(t *testing.T) {
	t.Setenv("DESIGN_RUNS_DIR", "")
	assert.Equal(t, "flagged", ResolveRunsDir("flagged", "configured"))
	assert.Equal(t, "configured", ResolveRunsDir("", "configured"))
	assert.Equal(t, DefaultRunsDir, ResolveRunsDir("", ""))

	t.Setenv("DESIGN_RUNS_DIR", "/from/env")
	assert.Equal(t, "/from/env", ResolveRunsDir("", "configured"))
	assert.Equal(t, "flagged", ResolveRunsDir("flagged", "configured"))
}
