package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// extractedKeyToFile maps keys of the GPT operator's extracted.json to the
// per-generator prompt files under gpt/outputs/. The aura and variant
// operators read these files, never extracted.json directly.
var extractedKeyToFile = map[string]string{
	"design_dna_for_aura":    "aura_dna.txt",
	"variant_prompt":         "variant_prompt.txt",
	"aura_edit_instructions": "aura_edit.txt",
}

// gptResponse is the normalized response.json summary.
type gptResponse struct {
	Raw           string   `json:"raw"`
	BlocksCount   int      `json:"blocks_count"`
	ExtractedKeys []string `json:"extracted_keys"`
}

// NormalizeGPTOutput turns the GPT operator's raw artifacts (raw.txt,
// blocks.json, extracted.json) into response.json plus the per-key prompt
// files under outputs/. Without raw.txt there is nothing to normalize and the
// call is a no-op. Malformed blocks.json or extracted.json degrade to empty
// rather than failing the step.
func NormalizeGPTOutput(gptDir string) error {
	rawData, err := os.ReadFile(filepath.Join(gptDir, "raw.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read raw output: %w", err)
	}

	blocksCount := 0
	if data, err := os.ReadFile(filepath.Join(gptDir, "blocks.json")); err == nil {
		var blocks []interface{}
		if json.Unmarshal(data, &blocks) == nil {
			blocksCount = len(blocks)
		}
	}

	extracted := map[string]interface{}{}
	if data, err := os.ReadFile(filepath.Join(gptDir, "extracted.json")); err == nil {
		var parsed map[string]interface{}
		if json.Unmarshal(data, &parsed) == nil {
			extracted = parsed
		}
	}

	keys := make([]string, 0, len(extracted))
	for k := range extracted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	response := gptResponse{
		Raw:           string(rawData),
		BlocksCount:   blocksCount,
		ExtractedKeys: keys,
	}
	if err := writeJSON(filepath.Join(gptDir, "response.json"), response); err != nil {
		return err
	}

	outputsDir := filepath.Join(gptDir, "outputs")
	if err := os.MkdirAll(outputsDir, 0750); err != nil {
		return fmt.Errorf("failed to create outputs directory: %w", err)
	}
	for key, filename := range extractedKeyToFile {
		val, ok := extracted[key]
		if !ok || val == nil {
			continue
		}
		var text string
		switch v := val.(type) {
		case string:
			text = v
		default:
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode extracted %s: %w", key, err)
			}
			text = string(data)
		}
		if err := os.WriteFile(filepath.Join(outputsDir, filename), []byte(text), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	return nil
}

// writeJSON writes v as indented JSON.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
