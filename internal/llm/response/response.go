package response

import (
	"encoding/json"
	"fmt"
	"strings"

	"commit-message-refiner/internal/commit"
	llmerrors "commit-message-refiner/internal/llm/errors"
)

// ParseSuggestions decodes the provider's JSON array payload into
// suggestions and checks it covers exactly the requested commits.
// expected holds the full hashes of the commits the prompt asked about,
// in prompt order. Any structural problem is a *MalformedResponseError
// retaining the raw payload.
func ParseSuggestions(raw string, expected []string) ([]commit.Suggestion, error) {
	payload := stripFences(raw)

	var suggestions []commit.Suggestion
	if err := json.Unmarshal([]byte(payload), &suggestions); err != nil {
		return nil, malformed(raw, "response is not a JSON suggestion array: %v", err)
	}

	seen := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		sha := resolveSHA(s.SHA, expected)
		if sha == "" {
			return nil, malformed(raw, "suggestion references unknown commit %q", s.SHA)
		}
		if seen[sha] {
			return nil, malformed(raw, "duplicate suggestion for commit %s", sha)
		}
		if strings.TrimSpace(s.Message) == "" {
			return nil, malformed(raw, "empty suggested message for commit %s", sha)
		}
		seen[sha] = true
	}

	for _, sha := range expected {
		if !seen[sha] {
			return nil, malformed(raw, "missing suggestion for commit %s", sha)
		}
	}

	// Normalize hashes and return in prompt order
	ordered := make([]commit.Suggestion, 0, len(expected))
	for _, sha := range expected {
		for _, s := range suggestions {
			if resolveSHA(s.SHA, expected) == sha {
				s.SHA = sha
				ordered = append(ordered, s)
				break
			}
		}
	}
	return ordered, nil
}

func malformed(raw, format string, args ...any) error {
	return &llmerrors.MalformedResponseError{
		Raw:   raw,
		Cause: fmt.Errorf(format, args...),
	}
}

// resolveSHA maps a possibly abbreviated hash from the model back to the
// full hash it refers to. Returns "" when nothing matches unambiguously.
func resolveSHA(got string, expected []string) string {
	got = strings.TrimSpace(got)
	if got == "" {
		return ""
	}

	var match string
	for _, sha := range expected {
		if sha == got || strings.HasPrefix(sha, got) {
			if match != "" {
				return ""
			}
			match = sha
		}
	}
	return match
}

// stripFences removes a surrounding markdown code fence that models
// sometimes wrap JSON output in.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json" etc.)
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
