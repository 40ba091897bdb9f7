// Package coherence runs the optional second pass that reconciles
// terminology, categories, and tone across the per-unit suggestions.
// The pass is strictly best-effort: any failure leaves the first-pass
// suggestions untouched.
package coherence

import (
	"context"
	"log/slog"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/llm/prompts/system"
	"commit-message-refiner/internal/llm/prompts/user"
	"commit-message-refiner/internal/llm/providers"
	"commit-message-refiner/internal/llm/response"
	"commit-message-refiner/internal/llm/tokens"
	"commit-message-refiner/internal/run"
)

// Refiner reconciles the successful suggestions of a finished run with
// one extra provider call.
type Refiner struct {
	Client  providers.Client
	Budget  tokens.Budget
	Retrier run.Retrier
}

// Refine updates report in place with reconciled messages. The pass is
// skipped when fewer than two units ran or when no unit succeeded;
// there is nothing to reconcile across. Returns true when suggestions
// were updated.
func (r *Refiner) Refine(ctx context.Context, report *run.Report) bool {
	if len(report.Results) < 2 {
		slog.Debug("Coherence pass skipped", "reason", "fewer than two units")
		return false
	}
	if report.SucceededUnits == 0 {
		slog.Debug("Coherence pass skipped", "reason", "no successful units")
		return false
	}

	var items []user.CoherenceItem
	var shas []string
	for _, o := range report.Outcomes {
		if o.Suggestion == nil {
			continue
		}
		items = append(items, user.CoherenceItem{
			SHA:      o.Commit.SHA,
			Category: o.Suggestion.Category,
			Message:  o.Suggestion.Message,
		})
		shas = append(shas, o.Commit.SHA)
	}
	if len(items) < 2 {
		slog.Debug("Coherence pass skipped", "reason", "fewer than two suggestions")
		return false
	}

	systemPrompt := system.GetCoherencePrompt()
	userPrompt, err := user.RenderCoherencePrompt(items)
	if err != nil {
		slog.Warn("Coherence pass abandoned, prompt rendering failed", "error", err)
		return false
	}

	if err := r.Budget.Validate(systemPrompt, userPrompt); err != nil {
		slog.Warn("Coherence pass abandoned, combined suggestions exceed the token budget", "error", err)
		return false
	}

	raw, attempts, err := r.Retrier.Do(ctx, "coherence", func(ctx context.Context) (string, error) {
		return r.Client.Send(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		slog.Warn("Coherence pass abandoned, provider call failed",
			"attempts", attempts, "error", err)
		return false
	}

	reconciled, err := response.ParseSuggestions(raw, shas)
	if err != nil {
		slog.Warn("Coherence pass abandoned, response could not be parsed", "error", err)
		return false
	}

	for _, s := range reconciled {
		report.ReplaceSuggestion(s.SHA, commit.Suggestion{
			Message:  s.Message,
			Category: s.Category,
		})
	}

	slog.Info("Coherence pass applied", "suggestions", len(reconciled), "attempts", attempts)
	return true
}
