package operator

import (
	"encoding/json"
	"regexp"
	"strings"
)

// PromptBlockKeys are the named outputs a design-analysis response is
// expected to carry. Each key maps to a downstream generator prompt.
var PromptBlockKeys = []string{
	"design_dna_for_aura",
	"variant_prompt",
	"aura_edit_instructions",
}

var codeFenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]+)?\\n(.*?)```")

// CodeBlock is a single fenced code block lifted from a raw response.
type CodeBlock struct {
	Lang    string `json:"lang"`
	Content string `json:"content"`
}

// ExtractCodeBlocks returns every fenced code block in raw, in document
// order. The language tag is empty for anonymous fences.
func ExtractCodeBlocks(raw string) []CodeBlock {
	matches := codeFenceRe.FindAllStringSubmatch(raw, -1)
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, CodeBlock{
			Lang:    strings.ToLower(strings.TrimSpace(m[1])),
			Content: strings.TrimSpace(m[2]),
		})
	}
	return blocks
}

// ParseResponseJSON attempts to interpret raw as a JSON object. It first
// tries the whole trimmed string, then the body of the first ```json
// fence. Returns nil when neither parses to an object.
func ParseResponseJSON(raw string) map[string]interface{} {
	trimmed := strings.TrimSpace(raw)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		return parsed
	}
	for _, block := range ExtractCodeBlocks(raw) {
		if block.Lang != "json" {
			continue
		}
		parsed = nil
		if err := json.Unmarshal([]byte(block.Content), &parsed); err == nil {
			return parsed
		}
	}
	return nil
}

// ExtractPromptBlocks pulls the known prompt blocks out of a raw
// response. Values are looked up in the parsed JSON first (an "outputs"
// object takes precedence over top-level keys), then fences named after
// a block key override whatever the JSON carried. Non-string JSON
// values are re-serialized so the block is still usable as text.
func ExtractPromptBlocks(raw string) map[string]string {
	blocks := make(map[string]string)

	if parsed := ParseResponseJSON(raw); parsed != nil {
		outputs, _ := parsed["outputs"].(map[string]interface{})
		for _, key := range PromptBlockKeys {
			val, ok := outputs[key]
			if !ok {
				val, ok = parsed[key]
			}
			if !ok || val == nil {
				continue
			}
			if s, isStr := val.(string); isStr {
				blocks[key] = s
				continue
			}
			if encoded, err := json.MarshalIndent(val, "", "  "); err == nil {
				blocks[key] = string(encoded)
			}
		}
	}

	for _, fence := range ExtractCodeBlocks(raw) {
		for _, key := range PromptBlockKeys {
			if fence.Lang == key {
				blocks[key] = fence.Content
			}
		}
	}

	return blocks
}
