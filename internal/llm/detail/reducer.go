package detail

import (
	"commit-message-refiner/internal/commit"
	llmerrors "commit-message-refiner/internal/llm/errors"
	"commit-message-refiner/internal/llm/tokens"
)

// EstimateCommit renders the commit at the given level and estimates the
// token cost of the result. budgetTokens only matters at the Truncated
// level (see Render).
func EstimateCommit(c *commit.CommitUnit, level Level, budgetTokens int) (int, error) {
	rendered, err := Render(c, level, budgetTokens)
	if err != nil {
		return 0, err
	}
	return tokens.Estimate(rendered), nil
}

// Fit selects the most detailed level whose rendered estimate fits
// budgetTokens, walking Full downward. When even FileListOnly exceeds the
// budget it returns *llmerrors.PromptTooLargeError carrying the shortfall.
func Fit(c *commit.CommitUnit, budgetTokens int) (Level, int, error) {
	var cheapest int
	for _, level := range Levels() {
		estimated, err := EstimateCommit(c, level, budgetTokens)
		if err != nil {
			return 0, 0, err
		}
		if estimated <= budgetTokens {
			return level, estimated, nil
		}
		cheapest = estimated
	}

	return FileListOnly, cheapest, &llmerrors.PromptTooLargeError{
		RequiredTokens:  cheapest,
		AvailableTokens: budgetTokens,
	}
}
