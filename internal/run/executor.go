package run

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/plan"
)

// Task produces suggestions for one unit: render the prompt, validate
// it against the budget, call the provider through the retrier, and
// parse the payload. It returns the suggestions and the number of
// provider attempts made.
type Task func(ctx context.Context, unit plan.Unit) ([]commit.Suggestion, int, error)

// UnitResult is the outcome of one unit. Exactly one of Suggestions and
// Err is meaningful.
type UnitResult struct {
	Unit        plan.Unit
	Suggestions []commit.Suggestion
	Attempts    int
	Err         error
}

// Succeeded reports whether the unit produced suggestions.
func (r UnitResult) Succeeded() bool { return r.Err == nil }

// Progress is called after each unit finishes, with the number of
// completed units and the total.
type Progress func(done, total int)

// Executor fans units out to a bounded pool of workers. A unit failure
// never cancels or degrades its siblings; every unit runs to completion.
type Executor struct {
	Concurrency int
	OnProgress  Progress
}

// Run executes every unit and returns one result per unit, in the same
// order as the input slice. Units pre-failed by the planner are recorded
// without a provider call.
func (e *Executor) Run(ctx context.Context, units []plan.Unit, task Task) []UnitResult {
	concurrency := e.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]UnitResult, len(units))
	total := len(units)
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, unit := range units {
		g.Go(func() error {
			results[i] = e.runUnit(ctx, unit, task)

			if e.OnProgress != nil {
				e.OnProgress(int(done.Add(1)), total)
			}
			return nil
		})
	}

	// Workers never return errors; failures live in the result slots
	g.Wait()
	return results
}

func (e *Executor) runUnit(ctx context.Context, unit plan.Unit, task Task) UnitResult {
	if unit.Err != nil {
		return UnitResult{Unit: unit, Err: unit.Err}
	}

	suggestions, attempts, err := task(ctx, unit)
	if err != nil {
		slog.Error("Unit failed", "unit", unit.ID(), "attempts", attempts, "error", err)
		return UnitResult{Unit: unit, Attempts: attempts, Err: err}
	}

	slog.Debug("Unit completed", "unit", unit.ID(), "attempts", attempts)
	return UnitResult{Unit: unit, Suggestions: suggestions, Attempts: attempts}
}
