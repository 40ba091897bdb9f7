package system

import (
	_ "embed"
	"log/slog"

	"commit-message-refiner/internal/config"
)

//go:embed system_prompt_v1.md
var systemPromptV1 string

//go:embed system_prompt_v2.md
var systemPromptV2 string

//go:embed coherence_prompt_v1.md
var coherencePromptV1 string

// GetSystemPrompt returns the appropriate rewrite system prompt based on the config's SystemPromptVersion
func GetSystemPrompt(cfg *config.Config) string {
	version := cfg.SystemPromptVersion

	switch version {
	case "v1":
		slog.Debug("Using system prompt v1")
		return systemPromptV1
	case "v2":
		slog.Debug("Using system prompt v2")
		return systemPromptV2
	default:
		slog.Warn("Unknown system prompt version, falling back to v1",
			"version", version,
			"supported_versions", []string{"v1", "v2"})
		return systemPromptV1
	}
}

// GetCoherencePrompt returns the system prompt for the cross-commit
// reconciliation pass.
func GetCoherencePrompt() string {
	return coherencePromptV1
}
