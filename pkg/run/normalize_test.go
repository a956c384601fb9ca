package run

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGPTOutput(t *testing.T) {
	gptDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "raw.txt"), []byte("full answer text"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "blocks.json"), []byte(`["a","b","c"]`), 0600))
	extracted := `{
  "design_dna_for_aura": "dark, grid-heavy, mono type",
  "variant_prompt": "four hero variations",
  "notes": {"tone": "brutalist"}
}`
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "extracted.json"), []byte(extracted), 0600))

	require.NoError(t, NormalizeGPTOutput(gptDir))

	data, err := os.ReadFile(filepath.Join(gptDir, "response.json"))
	require.NoError(t, err)
	var response struct {
		Raw           string   `json:"raw"`
		BlocksCount   int      `json:"blocks_count"`
		ExtractedKeys []string `json:"extracted_keys"`
	}
	require.NoError(t, json.Unmarshal(data, &response))
	assert.Equal(t, "full answer text", response.Raw)
	assert.Equal(t, 3, response.BlocksCount)
	// Keys are sorted so response.json is byte-stable across runs.
	assert.Equal(t, []string{"design_dna_for_aura", "notes", "variant_prompt"}, response.ExtractedKeys)

	dna, err := os.ReadFile(filepath.Join(gptDir, "outputs", "aura_dna.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dark, grid-heavy, mono type", string(dna))

	vp, err := os.ReadFile(filepath.Join(gptDir, "outputs", "variant_prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "four hero variations", string(vp))

	// Keys without a mapping produce no output file.
	assert.NoFileExists(t, filepath.Join(gptDir, "outputs", "notes.txt"))
	assert.NoFileExists(t, filepath.Join(gptDir, "outputs", "aura_edit.txt"))
}

func TestNormalizeGPTOutputStructuredValue(t *testing.T) {
	gptDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "raw.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "extracted.json"),
		[]byte(`{"variant_prompt": {"theme": "neon", "count": 4}}`), 0600))

	require.NoError(t, NormalizeGPTOutput(gptDir))

	data, err := os.ReadFile(filepath.Join(gptDir, "outputs", "variant_prompt.txt"))
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed), "structured values are written as JSON")
	assert.Equal(t, "neon", parsed["theme"])
}

func TestNormalizeGPTOutputNoRaw(t *testing.T) {
	gptDir := t.TempDir()
	require.NoError(t, NormalizeGPTOutput(gptDir))
	assert.NoFileExists(t, filepath.Join(gptDir, "response.json"))
}

func TestNormalizeGPTOutputMalformedSidecars(t *testing.T) {
	gptDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "raw.txt"), []byte("answer"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "blocks.json"), []byte("{broken"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(gptDir, "extracted.json"), []byte("not json"), 0600))

	require.NoError(t, NormalizeGPTOutput(gptDir))

	data, err := os.ReadFile(filepath.Join(gptDir, "response.json"))
	require.NoError(t, err)
	var response struct {
		BlocksCount   int      `json:"blocks_count"`
		ExtractedKeys []string `json:"extracted_keys"`
	}
	require.NoError(t, json.Unmarshal(data, &response))
	assert.Zero(t, response.BlocksCount)
	assert.Empty(t, response.ExtractedKeys)
}
