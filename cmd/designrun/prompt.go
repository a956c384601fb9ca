package main

import (
	"fmt"
	"strings"

	"github.com/entrhq/designrun/pkg/operator"
	"github.com/entrhq/designrun/pkg/run"
)

// buildAnalysisPrompt assembles the prompt submitted to the analysis
// model. The response contract is a JSON object with an "outputs" map
// carrying the named prompt blocks; the extractor also accepts fenced
// blocks named after the keys, so the instructions mention both.
func buildAnalysisPrompt(mode, userText string, refCount int) string {
	var b strings.Builder

	b.WriteString("You are a senior product designer analyzing reference material for a design pipeline.\n\n")
	if refCount > 0 {
		fmt.Fprintf(&b, "Attached are %d reference screenshot(s) of the design to analyze.\n\n", refCount)
	}
	b.WriteString("Brief from the user:\n")
	b.WriteString(strings.TrimSpace(userText))
	b.WriteString("\n\n")

	switch mode {
	case run.ModeDNA:
		b.WriteString("Extract the design DNA of the references: palette, typography, spacing rhythm, component shapes, imagery style and overall tone.\n")
	case run.ModeVariations:
		b.WriteString("Write a generation prompt that would produce several distinct variations honoring the brief and the references.\n")
	case run.ModeFeedback:
		b.WriteString("Turn the brief into concrete edit instructions for an existing generated page.\n")
	}

	b.WriteString("\nRespond with a single JSON object of this shape:\n")
	b.WriteString("{\n  \"outputs\": {\n")
	for i, key := range operator.PromptBlockKeys {
		fmt.Fprintf(&b, "    %q: \"...\"", key)
		if i < len(operator.PromptBlockKeys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n}\n")
	b.WriteString("Put the JSON in a ```json fence. Long prompt text may instead go in a fence named after its key.\n")
	return b.String()
}
