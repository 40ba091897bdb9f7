package user

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed unit_prompt_template_v1.md
var unitPromptTemplateV1 string

//go:embed coherence_prompt_template_v1.md
var coherencePromptTemplateV1 string

var (
	unitPromptTemplate      *template.Template
	coherencePromptTemplate *template.Template
)

func init() {
	unitPromptTemplate = template.Must(
		template.New("unit_prompt").Parse(unitPromptTemplateV1),
	)
	coherencePromptTemplate = template.Must(
		template.New("coherence_prompt").Parse(coherencePromptTemplateV1),
	)
}

// UnitPromptData holds the data for the per-unit rewrite prompt
type UnitPromptData struct {
	Blocks []string // One rendered commit block per commit in the unit
}

// RenderUnitPrompt formats the user prompt for one unit. Blocks come from
// the detail renderer, already reduced to the level that fit the budget.
func RenderUnitPrompt(blocks []string) (string, error) {
	var buf bytes.Buffer
	if err := unitPromptTemplate.Execute(&buf, UnitPromptData{Blocks: blocks}); err != nil {
		return "", fmt.Errorf("failed to execute unit prompt template: %w", err)
	}
	return buf.String(), nil
}

// CoherenceItem is one successful per-unit suggestion fed into the
// reconciliation pass.
type CoherenceItem struct {
	SHA      string
	Category string
	Message  string
}

// CoherencePromptData holds the data for the coherence prompt template
type CoherencePromptData struct {
	Items []CoherenceItem
}

// RenderCoherencePrompt formats the user prompt for the cross-commit
// reconciliation call.
func RenderCoherencePrompt(items []CoherenceItem) (string, error) {
	var buf bytes.Buffer
	if err := coherencePromptTemplate.Execute(&buf, CoherencePromptData{Items: items}); err != nil {
		return "", fmt.Errorf("failed to execute coherence prompt template: %w", err)
	}
	return buf.String(), nil
}
