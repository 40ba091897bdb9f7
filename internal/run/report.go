package run

import (
	"sort"

	"commit-message-refiner/internal/commit"
)

// CommitOutcome is the per-commit view of a run: the original commit, the
// suggestion produced for it (nil when its unit failed), and the failure
// that applies to it.
type CommitOutcome struct {
	Commit     *commit.CommitUnit
	Index      int
	Suggestion *commit.Suggestion
	Attempts   int
	Err        error
}

// Improved reports whether a suggestion exists for this commit.
func (o CommitOutcome) Improved() bool { return o.Suggestion != nil }

// Report aggregates a finished run. Outcomes are flattened back to the
// original commit order regardless of how commits were grouped into units.
type Report struct {
	Results  []UnitResult
	Outcomes []CommitOutcome

	SucceededUnits int
	FailedUnits    int
}

// NewReport assembles a report from the executor's results. Unit results
// are ordered by their earliest commit; outcomes by commit input order.
func NewReport(results []UnitResult) Report {
	report := Report{Results: append([]UnitResult(nil), results...)}

	sort.SliceStable(report.Results, func(a, b int) bool {
		return report.Results[a].Unit.FirstIndex() < report.Results[b].Unit.FirstIndex()
	})

	for _, result := range report.Results {
		if result.Succeeded() {
			report.SucceededUnits++
		} else {
			report.FailedUnits++
		}

		bySHA := make(map[string]*commit.Suggestion, len(result.Suggestions))
		for i := range result.Suggestions {
			bySHA[result.Suggestions[i].SHA] = &result.Suggestions[i]
		}

		for _, pc := range result.Unit.Commits {
			outcome := CommitOutcome{
				Commit:   pc.Commit,
				Index:    pc.Index,
				Attempts: result.Attempts,
				Err:      result.Err,
			}
			if s, ok := bySHA[pc.Commit.SHA]; ok {
				outcome.Suggestion = s
			}
			report.Outcomes = append(report.Outcomes, outcome)
		}
	}

	sort.SliceStable(report.Outcomes, func(a, b int) bool {
		return report.Outcomes[a].Index < report.Outcomes[b].Index
	})
	return report
}

// ReplaceSuggestion swaps the suggestion for one commit, keeping both the
// unit results and the flattened outcomes consistent. Used by the
// coherence pass. Commits without an existing suggestion are left alone.
func (r *Report) ReplaceSuggestion(sha string, s commit.Suggestion) {
	for i := range r.Results {
		for j := range r.Results[i].Suggestions {
			if r.Results[i].Suggestions[j].SHA == sha {
				r.Results[i].Suggestions[j].Message = s.Message
				if s.Category != "" {
					r.Results[i].Suggestions[j].Category = s.Category
				}
			}
		}
	}
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		if o.Commit.SHA == sha && o.Suggestion != nil {
			o.Suggestion.Message = s.Message
			if s.Category != "" {
				o.Suggestion.Category = s.Category
			}
		}
	}
}
