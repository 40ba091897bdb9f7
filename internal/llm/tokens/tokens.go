package tokens

import (
	llmerrors "commit-message-refiner/internal/llm/errors"
)

// Token estimation approximates provider tokenization as one token per 3.5
// characters, inflated by a 10% safety margin. Both factors fold into the
// exact integer ratio 11/35, keeping the estimator pure and float-free.
const (
	estimateNumerator   = 11
	estimateDenominator = 35
)

// Estimate returns the estimated token cost of a text blob:
// ceil(len(text) / 3.5 * 1.10). Deterministic and allocation-free.
func Estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n*estimateNumerator + estimateDenominator - 1) / estimateDenominator
}

// MaxChars returns the largest character count whose estimate does not
// exceed the given token count. Inverse of Estimate, used to convert a
// remaining token allowance into a diff character budget.
func MaxChars(tokenCount int) int {
	if tokenCount <= 0 {
		return 0
	}
	return tokenCount * estimateDenominator / estimateNumerator
}

// Budget describes the provider's context window and what must be held
// back from it. Supplied once per run from provider metadata; immutable.
type Budget struct {
	MaxContextTokens     int
	ReservedOutputTokens int
	SafetyMarginRatio    float64
}

// AvailableInput returns the input token budget after reserving output
// space and the safety margin:
// floor((max_context - reserved_output) / (1 + safety_margin_ratio)).
func (b Budget) AvailableInput() int {
	usable := b.MaxContextTokens - b.ReservedOutputTokens
	if usable <= 0 {
		return 0
	}
	if b.SafetyMarginRatio <= 0 {
		return usable
	}
	return int(float64(usable) / (1 + b.SafetyMarginRatio))
}

// Validate is the last-line check before a provider call: the rendered
// system and user prompts together must fit the available input budget.
// Returns *llmerrors.PromptTooLargeError with the numeric shortfall
// when they do not.
func (b Budget) Validate(systemPrompt, userPrompt string) error {
	required := Estimate(systemPrompt) + Estimate(userPrompt)
	available := b.AvailableInput()
	if required > available {
		return &llmerrors.PromptTooLargeError{
			RequiredTokens:  required,
			AvailableTokens: available,
		}
	}
	return nil
}
