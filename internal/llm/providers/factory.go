package providers

import (
	"fmt"

	"commit-message-refiner/internal/config"
)

// NewClient creates the appropriate LLM client based on configuration
func NewClient(cfg *config.Config) (Client, error) {
	switch cfg.ModelProvider {
	case "claude":
		return NewClaude(cfg), nil

	case "gemini":
		return NewGemini(cfg), nil

	case "openai":
		return NewOpenAI(cfg), nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}
