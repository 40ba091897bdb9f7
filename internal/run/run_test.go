package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"commit-message-refiner/internal/commit"
	llmerrors "commit-message-refiner/internal/llm/errors"
	"commit-message-refiner/internal/plan"
)

func testUnit(sha string, index int) plan.Unit {
	c := commit.New(
		sha+strings.Repeat("0", 40-len(sha)),
		"Dev",
		"old message",
		nil,
		commit.StaticDiff("diff"),
	)
	return plan.Unit{
		Commits:         []plan.PlannedCommit{{Commit: c, Index: index}},
		EstimatedTokens: 100,
	}
}

func suggestionFor(u plan.Unit) []commit.Suggestion {
	return []commit.Suggestion{{
		SHA:     u.Commits[0].Commit.SHA,
		Message: "fix: improved " + u.Commits[0].Commit.ShortSHA,
	}}
}

func TestRetrierDo_SucceedsFirstAttempt(t *testing.T) {
	r := Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	result, attempts, err := r.Do(context.Background(), "u", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if result != "ok" || attempts != 1 || calls != 1 {
		t.Errorf("result=%q attempts=%d calls=%d", result, attempts, calls)
	}
}

func TestRetrierDo_RetriesTransientThenSucceeds(t *testing.T) {
	r := Retrier{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	result, attempts, err := r.Do(context.Background(), "u", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &llmerrors.TransientError{Provider: "test", StatusCode: 503, Message: "overloaded"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetrierDo_PermanentErrorNotRetried(t *testing.T) {
	r := Retrier{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	_, attempts, err := r.Do(context.Background(), "u", func(context.Context) (string, error) {
		calls++
		return "", &llmerrors.PermanentError{Provider: "test", StatusCode: 401, Message: "bad key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("calls=%d attempts=%d, permanent error must not be retried", calls, attempts)
	}
}

func TestRetrierDo_ExhaustsAttempts(t *testing.T) {
	r := Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	_, attempts, err := r.Do(context.Background(), "u", func(context.Context) (string, error) {
		calls++
		return "", &llmerrors.TransientError{Provider: "test", StatusCode: 429, Message: "rate limited"}
	})
	if !llmerrors.IsTransient(err) {
		t.Fatalf("final error should be the last transient failure, got %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("calls=%d attempts=%d, want 3", calls, attempts)
	}
}

func TestRetrierDo_ContextCancelledDuringBackoff(t *testing.T) {
	r := Retrier{MaxAttempts: 3, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := r.Do(ctx, "u", func(context.Context) (string, error) {
		return "", &llmerrors.TransientError{Provider: "test", Message: "nope"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetrierBackoffDoubles(t *testing.T) {
	r := Retrier{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := r.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestExecutorRun_AllSucceed(t *testing.T) {
	units := []plan.Unit{testUnit("aaaa", 0), testUnit("bbbb", 1), testUnit("cccc", 2)}
	e := &Executor{Concurrency: 2}

	results := e.Run(context.Background(), units, func(_ context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		return suggestionFor(u), 1, nil
	})

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if !res.Succeeded() {
			t.Errorf("unit %d failed: %v", i, res.Err)
		}
		if res.Unit.Commits[0].Index != i {
			t.Errorf("result %d holds unit with index %d, order not preserved", i, res.Unit.Commits[0].Index)
		}
	}
}

func TestExecutorRun_FailureIsolation(t *testing.T) {
	units := []plan.Unit{testUnit("aaaa", 0), testUnit("bbbb", 1), testUnit("cccc", 2)}
	e := &Executor{Concurrency: 3}

	results := e.Run(context.Background(), units, func(_ context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		if u.Commits[0].Index == 1 {
			return nil, 3, &llmerrors.PermanentError{Provider: "test", Message: "boom"}
		}
		return suggestionFor(u), 1, nil
	})

	if !results[0].Succeeded() || !results[2].Succeeded() {
		t.Error("failure of one unit must not affect its siblings")
	}
	if results[1].Succeeded() {
		t.Error("failed unit reported as succeeded")
	}
	if results[1].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", results[1].Attempts)
	}
}

func TestExecutorRun_ConcurrencyBound(t *testing.T) {
	var units []plan.Unit
	for i := 0; i < 20; i++ {
		units = append(units, testUnit(fmt.Sprintf("%04x", i), i))
	}

	var active, peak atomic.Int64
	var mu sync.Mutex

	e := &Executor{Concurrency: 4}
	e.Run(context.Background(), units, func(_ context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		n := active.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return suggestionFor(u), 1, nil
	})

	if peak.Load() > 4 {
		t.Errorf("peak concurrency %d exceeds limit 4", peak.Load())
	}
}

func TestExecutorRun_PreFailedUnitSkipsTask(t *testing.T) {
	preFailed := testUnit("aaaa", 0)
	preFailed.Err = &llmerrors.PromptTooLargeError{RequiredTokens: 9000, AvailableTokens: 100}
	units := []plan.Unit{preFailed, testUnit("bbbb", 1)}

	taskCalls := 0
	e := &Executor{Concurrency: 1}
	results := e.Run(context.Background(), units, func(_ context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		taskCalls++
		return suggestionFor(u), 1, nil
	})

	if taskCalls != 1 {
		t.Errorf("task called %d times, pre-failed unit must be skipped", taskCalls)
	}
	var tooLarge *llmerrors.PromptTooLargeError
	if !errors.As(results[0].Err, &tooLarge) {
		t.Errorf("pre-failed unit error lost: %v", results[0].Err)
	}
}

func TestExecutorRun_ProgressReachesTotal(t *testing.T) {
	units := []plan.Unit{testUnit("aaaa", 0), testUnit("bbbb", 1), testUnit("cccc", 2)}

	var mu sync.Mutex
	var final int
	e := &Executor{
		Concurrency: 2,
		OnProgress: func(done, total int) {
			mu.Lock()
			if done > final {
				final = done
			}
			if total != 3 {
				t.Errorf("total = %d", total)
			}
			mu.Unlock()
		},
	}
	e.Run(context.Background(), units, func(_ context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		return suggestionFor(u), 1, nil
	})

	if final != 3 {
		t.Errorf("final progress %d, want 3", final)
	}
}

func TestExecutorRun_TransientUnitRecoversWithoutAffectingOthers(t *testing.T) {
	var units []plan.Unit
	for i := 0; i < 10; i++ {
		units = append(units, testUnit(fmt.Sprintf("%04x", i), i))
	}

	retrier := Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond}
	var flaky atomic.Int64

	e := &Executor{Concurrency: 3}
	results := e.Run(context.Background(), units, func(ctx context.Context, u plan.Unit) ([]commit.Suggestion, int, error) {
		_, attempts, err := retrier.Do(ctx, u.ID(), func(context.Context) (string, error) {
			if u.Commits[0].Index == 6 && flaky.Add(1) < 3 {
				return "", &llmerrors.TransientError{Provider: "test", StatusCode: 503, Message: "busy"}
			}
			return "ok", nil
		})
		if err != nil {
			return nil, attempts, err
		}
		return suggestionFor(u), attempts, nil
	})

	for i, res := range results {
		if !res.Succeeded() {
			t.Errorf("unit %d failed: %v", i, res.Err)
		}
	}
	if results[6].Attempts != 3 {
		t.Errorf("flaky unit attempts = %d, want 3", results[6].Attempts)
	}
	if results[0].Attempts != 1 {
		t.Errorf("healthy unit attempts = %d, want 1", results[0].Attempts)
	}
}

func TestNewReport_CountsAndOrder(t *testing.T) {
	// Units deliberately out of commit order
	results := []UnitResult{
		{Unit: testUnit("cccc", 2), Suggestions: []commit.Suggestion{{SHA: "cccc" + strings.Repeat("0", 36), Message: "fix: c"}}, Attempts: 1},
		{Unit: testUnit("aaaa", 0), Err: errors.New("boom"), Attempts: 3},
		{Unit: testUnit("bbbb", 1), Suggestions: []commit.Suggestion{{SHA: "bbbb" + strings.Repeat("0", 36), Message: "fix: b"}}, Attempts: 2},
	}

	report := NewReport(results)

	if report.SucceededUnits != 2 || report.FailedUnits != 1 {
		t.Errorf("counts = %d/%d, want 2/1", report.SucceededUnits, report.FailedUnits)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("got %d outcomes", len(report.Outcomes))
	}
	for i, o := range report.Outcomes {
		if o.Index != i {
			t.Errorf("outcome %d has index %d, not in input order", i, o.Index)
		}
	}
	if report.Outcomes[0].Improved() {
		t.Error("failed commit should have no suggestion")
	}
	if !report.Outcomes[1].Improved() || report.Outcomes[1].Suggestion.Message != "fix: b" {
		t.Error("suggestion not matched to its commit")
	}
	if report.Outcomes[0].Err == nil {
		t.Error("unit failure not propagated to its commit outcome")
	}
}

func TestNewReport_BinFlattened(t *testing.T) {
	cA := commit.New("aaaa"+strings.Repeat("0", 36), "Dev", "m1", nil, nil)
	cB := commit.New("bbbb"+strings.Repeat("0", 36), "Dev", "m2", nil, nil)
	bin := plan.Unit{Commits: []plan.PlannedCommit{
		{Commit: cA, Index: 0},
		{Commit: cB, Index: 1},
	}}

	report := NewReport([]UnitResult{{
		Unit: bin,
		Suggestions: []commit.Suggestion{
			{SHA: cA.SHA, Message: "fix: a"},
			{SHA: cB.SHA, Message: "fix: b"},
		},
		Attempts: 1,
	}})

	if len(report.Outcomes) != 2 {
		t.Fatalf("bin of 2 should flatten to 2 outcomes, got %d", len(report.Outcomes))
	}
	if report.Outcomes[0].Suggestion.Message != "fix: a" || report.Outcomes[1].Suggestion.Message != "fix: b" {
		t.Error("bin suggestions not matched per commit")
	}
}

func TestReplaceSuggestion(t *testing.T) {
	u := testUnit("aaaa", 0)
	sha := u.Commits[0].Commit.SHA
	report := NewReport([]UnitResult{{
		Unit:        u,
		Suggestions: []commit.Suggestion{{SHA: sha, Message: "fix: original", Category: "fix"}},
		Attempts:    1,
	}})

	report.ReplaceSuggestion(sha, commit.Suggestion{Message: "fix: unified wording"})

	if report.Outcomes[0].Suggestion.Message != "fix: unified wording" {
		t.Errorf("outcome message = %q", report.Outcomes[0].Suggestion.Message)
	}
	if report.Outcomes[0].Suggestion.Category != "fix" {
		t.Error("empty category must not clobber the original")
	}
	if report.Results[0].Suggestions[0].Message != "fix: unified wording" {
		t.Error("unit result not updated")
	}
}
