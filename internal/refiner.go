// Package internal wires the pipeline together: fetch commits, plan
// units against the token budget, execute them concurrently, run the
// optional coherence pass, and hand back a report.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"commit-message-refiner/internal/coherence"
	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/config"
	"commit-message-refiner/internal/llm/detail"
	"commit-message-refiner/internal/llm/prompts/system"
	"commit-message-refiner/internal/llm/prompts/user"
	"commit-message-refiner/internal/llm/providers"
	"commit-message-refiner/internal/llm/response"
	"commit-message-refiner/internal/llm/tokens"
	"commit-message-refiner/internal/plan"
	"commit-message-refiner/internal/report"
	"commit-message-refiner/internal/run"
	"commit-message-refiner/internal/source"
)

// Options are the per-invocation knobs on top of the environment config
type Options struct {
	Concurrency     int  // Overrides the configured concurrency when > 0
	LegacyBatchSize int  // Enables legacy batch mode when > 0
	NoCoherence     bool // Skips the coherence pass regardless of config
}

// Refiner runs the improvement pipeline against one model provider.
type Refiner struct {
	cfg          *config.Config
	client       providers.Client
	budget       tokens.Budget
	retrier      run.Retrier
	systemPrompt string
}

// New creates a Refiner from the loaded configuration.
func New(cfg *config.Config) (*Refiner, error) {
	client, err := providers.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	md := client.Metadata()
	budget := tokens.Budget{
		MaxContextTokens:     md.MaxContextTokens,
		ReservedOutputTokens: md.MaxOutputTokens,
		SafetyMarginRatio:    cfg.SafetyMarginRatio(),
	}

	slog.Debug("Token budget established",
		"max_context", budget.MaxContextTokens,
		"reserved_output", budget.ReservedOutputTokens,
		"available_input", budget.AvailableInput())

	return &Refiner{
		cfg:    cfg,
		client: client,
		budget: budget,
		retrier: run.Retrier{
			MaxAttempts: cfg.MaxRetryAttempts,
			BaseDelay:   time.Duration(cfg.RetryBaseDelayMillis) * time.Millisecond,
		},
		systemPrompt: system.GetSystemPrompt(cfg),
	}, nil
}

// Refine fetches commits from every source in order and runs the full
// pipeline over them.
func (r *Refiner) Refine(ctx context.Context, sources []source.Source, opts Options) (run.Report, report.Metadata, error) {
	md := report.Metadata{
		Provider:       r.client.Metadata().ProviderName,
		ModelID:        r.client.Metadata().ModelID,
		GenerationTime: time.Now(),
	}

	var commits []*commit.CommitUnit
	for _, src := range sources {
		fetched, err := src.Commits(ctx)
		if err != nil {
			return run.Report{}, md, fmt.Errorf("failed to fetch commits from %s: %w", src.Name(), err)
		}
		slog.Info("Fetched commits", "source", src.Name(), "count", len(fetched))
		commits = append(commits, fetched...)
	}

	if len(commits) == 0 {
		slog.Info("No commits in range, nothing to do")
		return run.Report{}, md, nil
	}

	units, err := plan.Plan(commits, r.budget, plan.Options{LegacyBatchSize: opts.LegacyBatchSize})
	if err != nil {
		return run.Report{}, md, err
	}
	slog.Info("Planned units", "commits", len(commits), "units", len(units))

	concurrency := r.cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	executor := &run.Executor{
		Concurrency: concurrency,
		OnProgress: func(done, total int) {
			slog.Info("Progress", "done", done, "total", total)
		},
	}
	results := executor.Run(ctx, units, r.unitTask)
	rep := run.NewReport(results)

	slog.Info("Run complete", "succeeded", rep.SucceededUnits, "failed", rep.FailedUnits)

	if r.cfg.CoherenceEnabled && !opts.NoCoherence {
		refiner := &coherence.Refiner{Client: r.client, Budget: r.budget, Retrier: r.retrier}
		md.CoherenceApplied = refiner.Refine(ctx, &rep)
	}

	return rep, md, nil
}

// unitTask renders one unit's prompt at its planned detail levels,
// validates it against the budget, calls the provider through the
// retrier, and parses the suggestion payload.
func (r *Refiner) unitTask(ctx context.Context, unit plan.Unit) ([]commit.Suggestion, int, error) {
	capacity := r.budget.AvailableInput() - plan.PromptOverheadTokens

	blocks := make([]string, len(unit.Commits))
	shas := make([]string, len(unit.Commits))
	for i, pc := range unit.Commits {
		rendered, err := detail.Render(pc.Commit, pc.Level, capacity)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to render commit %s: %w", pc.Commit.ShortSHA, err)
		}
		blocks[i] = rendered
		shas[i] = pc.Commit.SHA
	}

	userPrompt, err := user.RenderUnitPrompt(blocks)
	if err != nil {
		return nil, 0, err
	}

	if err := r.budget.Validate(r.systemPrompt, userPrompt); err != nil {
		return nil, 0, err
	}

	raw, attempts, err := r.retrier.Do(ctx, unit.ID(), func(ctx context.Context) (string, error) {
		return r.client.Send(ctx, r.systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, attempts, err
	}

	suggestions, err := response.ParseSuggestions(raw, shas)
	if err != nil {
		return nil, attempts, err
	}
	return suggestions, attempts, nil
}
