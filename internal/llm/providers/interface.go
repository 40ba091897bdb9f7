package providers

import "context"

// Metadata describes the provider's declared limits, supplied once per run
// to derive the token budget.
type Metadata struct {
	ProviderName     string
	ModelID          string
	MaxContextTokens int
	MaxOutputTokens  int
}

// Client is the narrow surface the rest of the tool depends on: an opaque,
// possibly-slow, possibly-failing remote call plus its declared limits.
// Implementations are stateless per call and safe for concurrent use.
type Client interface {
	Send(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Metadata() Metadata
}
