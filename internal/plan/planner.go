package plan

import (
	"fmt"
	"log/slog"
	"sort"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/llm/detail"
	"commit-message-refiner/internal/llm/tokens"
)

// PromptOverheadTokens is the fixed allowance for the system instructions
// and the prompt envelope around the commit blocks. Subtracted from the
// available input budget before any commit content is sized.
const PromptOverheadTokens = 1200

// PlannedCommit is one commit frozen into a unit with the detail level
// that fit the budget and its estimated cost at that level.
type PlannedCommit struct {
	Commit          *commit.CommitUnit
	Index           int // Position in the original input order
	Level           detail.Level
	EstimatedTokens int
}

// Unit is the smallest item submitted to the executor: one commit in the
// default per-commit mode, or one packed bin of commits in legacy batch
// mode. A unit with Err set could not be sized to fit even at the
// cheapest detail level and is recorded as failed without a provider call.
type Unit struct {
	Commits         []PlannedCommit
	EstimatedTokens int
	Err             error
}

// ID identifies the unit in logs: the short hash for a singleton, the
// hash range for a bin.
func (u Unit) ID() string {
	switch len(u.Commits) {
	case 0:
		return "empty"
	case 1:
		return u.Commits[0].Commit.ShortSHA
	default:
		return fmt.Sprintf("%s..%s (%d commits)",
			u.Commits[0].Commit.ShortSHA,
			u.Commits[len(u.Commits)-1].Commit.ShortSHA,
			len(u.Commits))
	}
}

// FirstIndex returns the input position of the unit's earliest commit,
// used to re-establish input order in the report.
func (u Unit) FirstIndex() int {
	first := u.Commits[0].Index
	for _, pc := range u.Commits[1:] {
		if pc.Index < first {
			first = pc.Index
		}
	}
	return first
}

// Options selects the planning strategy. LegacyBatchSize > 0 opts into the
// deprecated multi-commit batch mode; zero means the default per-commit
// concurrency mode.
type Options struct {
	LegacyBatchSize int
}

// Plan groups the input commits into units whose estimated cost fits the
// budget. Every input commit lands in exactly one unit; commits that
// cannot fit even at the cheapest detail level become isolated failed
// units instead of corrupting a shared bin. Planning never reorders the
// final report; bin membership only affects how many provider calls are
// made.
func Plan(commits []*commit.CommitUnit, budget tokens.Budget, opts Options) ([]Unit, error) {
	capacity := budget.AvailableInput() - PromptOverheadTokens
	if capacity <= 0 {
		return nil, fmt.Errorf("token budget too small: %d input tokens available, %d reserved for prompt overhead",
			budget.AvailableInput(), PromptOverheadTokens)
	}

	if len(commits) == 0 {
		return nil, nil
	}

	if opts.LegacyBatchSize > 0 {
		return planBatched(commits, capacity, opts.LegacyBatchSize)
	}
	return planPerCommit(commits, capacity)
}

// planPerCommit makes every commit its own unit, reduced against the full
// per-call capacity.
func planPerCommit(commits []*commit.CommitUnit, capacity int) ([]Unit, error) {
	units := make([]Unit, 0, len(commits))
	for i, c := range commits {
		level, estimated, err := fitCommit(c, capacity)
		if err != nil {
			slog.Warn("Commit cannot fit the token budget at any detail level",
				"commit", c.ShortSHA, "error", err)
			units = append(units, Unit{
				Commits: []PlannedCommit{{Commit: c, Index: i, Level: detail.FileListOnly, EstimatedTokens: estimated}},
				Err:     err,
			})
			continue
		}

		if level != detail.Full {
			slog.Debug("Reduced commit detail to fit budget",
				"commit", c.ShortSHA, "level", level.String(), "estimated_tokens", estimated)
		}
		units = append(units, Unit{
			Commits:         []PlannedCommit{{Commit: c, Index: i, Level: level, EstimatedTokens: estimated}},
			EstimatedTokens: estimated,
		})
	}
	return units, nil
}

// bin is a unit under construction during batch planning
type bin struct {
	commits []PlannedCommit
	used    int
}

// planBatched packs commits into bins by first-fit-decreasing: commits
// sorted by descending estimated size, each placed in the first bin with
// room at the commit's best-fitting detail level, bounded additionally by
// the legacy fixed batch size.
func planBatched(commits []*commit.CommitUnit, capacity, batchSize int) ([]Unit, error) {
	type sized struct {
		commit    *commit.CommitUnit
		index     int
		level     detail.Level
		estimated int
		err       error
	}

	order := make([]sized, len(commits))
	for i, c := range commits {
		level, estimated, err := fitCommit(c, capacity)
		order[i] = sized{commit: c, index: i, level: level, estimated: estimated, err: err}
	}

	// Decreasing size; stable so equal-size commits keep input order
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].estimated > order[b].estimated
	})

	var bins []*bin
	var failed []Unit

	for _, s := range order {
		if s.err != nil {
			slog.Warn("Commit excluded from bin packing",
				"commit", s.commit.ShortSHA, "error", s.err)
			failed = append(failed, Unit{
				Commits: []PlannedCommit{{Commit: s.commit, Index: s.index, Level: s.level, EstimatedTokens: s.estimated}},
				Err:     s.err,
			})
			continue
		}

		planned := PlannedCommit{Commit: s.commit, Index: s.index, Level: s.level, EstimatedTokens: s.estimated}

		// First fit: bins in creation order
		placed := false
		for _, b := range bins {
			if b.used+s.estimated <= capacity && len(b.commits) < batchSize {
				b.commits = append(b.commits, planned)
				b.used += s.estimated
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, &bin{commits: []PlannedCommit{planned}, used: s.estimated})
		}
	}

	units := make([]Unit, 0, len(bins)+len(failed))
	for _, b := range bins {
		// Commits inside a bin run in input order
		sort.Slice(b.commits, func(a, z int) bool {
			return b.commits[a].Index < b.commits[z].Index
		})
		units = append(units, Unit{Commits: b.commits, EstimatedTokens: b.used})
	}
	units = append(units, failed...)

	slog.Debug("Planned batched units",
		"commits", len(commits), "bins", len(bins), "unfittable", len(failed))
	return units, nil
}

// fitCommit wraps the detail reducer, keeping the cheapest estimate for
// failed-unit reporting.
func fitCommit(c *commit.CommitUnit, capacity int) (detail.Level, int, error) {
	return detail.Fit(c, capacity)
}
