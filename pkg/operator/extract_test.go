package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlocks(t *testing.T) {
	raw := "intro\n```json\n{\"a\": 1}\n```\nmiddle\n```\nplain\n```\n```variant_prompt\nmake it blue\n```\n"

	blocks := ExtractCodeBlocks(raw)
	require.Len(t, blocks, 3)

	assert.Equal(t, "json", blocks[0].Lang)
	assert.Equal(t, `{"a": 1}`, blocks[0].Content)
	assert.Equal(t, "", blocks[1].Lang)
	assert.Equal(t, "plain", blocks[1].Content)
	assert.Equal(t, "variant_prompt", blocks[2].Lang)
	assert.Equal(t, "make it blue", blocks[2].Content)
}

func TestExtractCodeBlocksNone(t *testing.T) {
	assert.Empty(t, ExtractCodeBlocks("no fences here"))
}

func TestParseResponseJSONWholeString(t *testing.T) {
	parsed := ParseResponseJSON(`  {"outputs": {"variant_prompt": "v"}}  `)
	require.NotNil(t, parsed)
	assert.Contains(t, parsed, "outputs")
}

func TestParseResponseJSONFromFence(t *testing.T) {
	raw := "Here you go:\n```json\n{\"variant_prompt\": \"v\"}\n```\nThanks!"
	parsed := ParseResponseJSON(raw)
	require.NotNil(t, parsed)
	assert.Equal(t, "v", parsed["variant_prompt"])
}

func TestParseResponseJSONNothingParses(t *testing.T) {
	assert.Nil(t, ParseResponseJSON("prose only"))
	assert.Nil(t, ParseResponseJSON("```json\nnot json\n```"))
	// A JSON array is not an object response.
	assert.Nil(t, ParseResponseJSON(`[1, 2, 3]`))
}

func TestExtractPromptBlocksFromOutputs(t *testing.T) {
	raw := `{"outputs": {"design_dna_for_aura": "dna text", "variant_prompt": "vp text"}, "aura_edit_instructions": "top level"}`

	blocks := ExtractPromptBlocks(raw)
	assert.Equal(t, "dna text", blocks["design_dna_for_aura"])
	assert.Equal(t, "vp text", blocks["variant_prompt"])
	// Keys absent from outputs fall back to the top level.
	assert.Equal(t, "top level", blocks["aura_edit_instructions"])
}

func TestExtractPromptBlocksStructuredValue(t *testing.T) {
	raw := `{"outputs": {"design_dna_for_aura": {"palette": ["#fff"]}}}`

	blocks := ExtractPromptBlocks(raw)
	require.Contains(t, blocks, "design_dna_for_aura")
	assert.Contains(t, blocks["design_dna_for_aura"], `"palette"`)
}

func TestExtractPromptBlocksFencesOverrideJSON(t *testing.T) {
	raw := "```json\n{\"variant_prompt\": \"from json\"}\n```\n```variant_prompt\nfrom fence\n```"

	blocks := ExtractPromptBlocks(raw)
	assert.Equal(t, "from fence", blocks["variant_prompt"])
}

func TestExtractPromptBlocksFencesOnly(t *testing.T) {
	raw := "Some analysis.\n```aura_edit_instructions\ntighten spacing\n```"

	blocks := ExtractPromptBlocks(raw)
	assert.Equal(t, map[string]string{"aura_edit_instructions": "tighten spacing"}, blocks)
}

func TestExtractPromptBlocksUnknownKeysIgnored(t *testing.T) {
	raw := `{"outputs": {"notes": "irrelevant"}}`
	assert.Empty(t, ExtractPromptBlocks(raw))
}
