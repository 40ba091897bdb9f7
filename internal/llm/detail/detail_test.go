package detail

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"commit-message-refiner/internal/commit"
	llmerrors "commit-message-refiner/internal/llm/errors"
	"commit-message-refiner/internal/llm/tokens"
)

func testCommit(diffSize int) *commit.CommitUnit {
	diff := strings.Repeat("+added line of code in the change\n", diffSize/34+1)
	return commit.New(
		"a1b2c3d4e5f60718",
		"dev@example.com",
		"update stuff",
		[]commit.FileChange{
			{Path: "internal/server/handler.go", Status: "modified", Additions: 40, Deletions: 12},
			{Path: "internal/server/handler_test.go", Status: "modified", Additions: 80, Deletions: 3},
			{Path: "docs/api.md", Status: "added", Additions: 20},
		},
		commit.StaticDiff(diff),
	)
}

func TestLevel_Ordering(t *testing.T) {
	levels := Levels()
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(levels))
	}
	if levels[0] != Full || levels[3] != FileListOnly {
		t.Error("levels must be ordered Full..FileListOnly")
	}
}

func TestLevel_Next(t *testing.T) {
	next, ok := Full.Next()
	if !ok || next != Truncated {
		t.Errorf("Full.Next() = %v, %v", next, ok)
	}
	next, ok = StatOnly.Next()
	if !ok || next != FileListOnly {
		t.Errorf("StatOnly.Next() = %v, %v", next, ok)
	}
	if _, ok := FileListOnly.Next(); ok {
		t.Error("FileListOnly should have no successor")
	}
}

func TestRender_MonotonicReduction(t *testing.T) {
	// estimate(FileListOnly) <= estimate(StatOnly) <= estimate(Truncated) <= estimate(Full)
	for _, diffSize := range []int{0, 500, 5000, 50000} {
		c := testCommit(diffSize)
		budget := 1000

		var estimates []int
		for _, level := range []Level{FileListOnly, StatOnly, Truncated, Full} {
			est, err := EstimateCommit(c, level, budget)
			if err != nil {
				t.Fatalf("EstimateCommit(%v): %v", level, err)
			}
			estimates = append(estimates, est)
		}

		for i := 1; i < len(estimates); i++ {
			if estimates[i] < estimates[i-1] {
				t.Errorf("diffSize=%d: estimates not monotonic: %v", diffSize, estimates)
			}
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	c := testCommit(10000)
	for _, level := range Levels() {
		first, err := Render(c, level, 800)
		if err != nil {
			t.Fatalf("Render(%v): %v", level, err)
		}
		second, err := Render(c, level, 800)
		if err != nil {
			t.Fatalf("Render(%v): %v", level, err)
		}
		if first != second {
			t.Errorf("Render(%v) is not deterministic", level)
		}
	}
}

func TestRender_FileListOnly(t *testing.T) {
	c := testCommit(1000)
	out, err := Render(c, FileListOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "internal/server/handler.go") {
		t.Error("file list should contain paths")
	}
	if strings.Contains(out, "+40") {
		t.Error("file list should not contain line counts")
	}
	if strings.Contains(out, "+added line") {
		t.Error("file list should not contain diff content")
	}
	if !strings.Contains(out, "update stuff") {
		t.Error("every level includes the original message")
	}
}

func TestRender_StatOnly(t *testing.T) {
	c := testCommit(1000)
	out, err := Render(c, StatOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "internal/server/handler.go | +40 -12") {
		t.Errorf("stat rendering missing counts:\n%s", out)
	}
	if strings.Contains(out, "+added line") {
		t.Error("stat-only should not contain hunk content")
	}
}

func TestRender_TruncatedKeepsDiffHead(t *testing.T) {
	c := testCommit(50000)
	budget := 2000

	out, err := Render(c, Truncated, budget)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "+added line of code") {
		t.Error("truncated rendering should keep the start of the diff")
	}
	if !strings.Contains(out, "[diff truncated") {
		t.Error("truncated rendering should carry an omission marker")
	}
	if got := tokens.Estimate(out); got > budget {
		t.Errorf("truncated rendering estimates %d tokens, over budget %d", got, budget)
	}
}

func TestRender_TruncatedMarkerCountsShownCharacters(t *testing.T) {
	// 315 tokens allow a 4-digit character budget while the line-boundary
	// cut lands the head at 3 digits, so the marker width shifts
	diff := strings.Repeat("+line of diff content under truncation\n", 4000)
	remainingTokens := 315
	charBudget := tokens.MaxChars(remainingTokens)

	var b strings.Builder
	writeTruncatedDiff(&b, diff, remainingTokens)
	out := b.String()

	markerIdx := strings.Index(out, "... [diff truncated")
	if markerIdx < 0 {
		t.Fatalf("no omission marker in output:\n%s", out)
	}
	head := out[len("Diff:\n"):markerIdx]

	var shown, total int
	if _, err := fmt.Sscanf(out[markerIdx:], "... [diff truncated, %d of %d characters shown]", &shown, &total); err != nil {
		t.Fatalf("unparseable marker: %v", err)
	}
	if shown != len(head) {
		t.Errorf("marker reports %d characters shown, head is %d", shown, len(head))
	}
	if total != len(diff) {
		t.Errorf("marker reports %d total characters, diff is %d", total, len(diff))
	}
	if len(out) > charBudget {
		t.Errorf("section is %d characters, budget is %d", len(out), charBudget)
	}
}

func TestRender_TruncatedSmallDiffUntouched(t *testing.T) {
	c := testCommit(200)
	out, err := Render(c, Truncated, 100000)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "[diff truncated") {
		t.Error("small diff under budget should not be truncated")
	}

	full, err := Render(c, Full, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != full {
		t.Error("untruncated rendering should equal Full")
	}
}

func TestRender_PRContext(t *testing.T) {
	c := commit.New("a1b2c3d4", "dev", "msg", nil, nil)
	c.PRNumber = 42
	c.PRTitle = "Add retry controller"

	out, err := Render(c, StatOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "#42 Add retry controller") {
		t.Errorf("rendering should include PR context:\n%s", out)
	}
}

func TestFit_SelectsFirstFittingLevel(t *testing.T) {
	// 50k character diff is roughly 15.7k tokens at Full; a 20k budget
	// fits Full outright, a 2k budget needs Truncated.
	c := testCommit(50000)

	level, est, err := Fit(c, 20000)
	if err != nil {
		t.Fatal(err)
	}
	if level != Full {
		t.Errorf("level = %v, expected Full", level)
	}
	if est > 20000 {
		t.Errorf("estimate %d exceeds budget", est)
	}

	level, est, err = Fit(c, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if level != Truncated {
		t.Errorf("level = %v, expected Truncated", level)
	}
	if est > 2000 {
		t.Errorf("estimate %d exceeds budget", est)
	}
}

func TestFit_DegradesToStats(t *testing.T) {
	c := testCommit(50000)

	// Budget too small for any diff content but enough for stats
	statEst, err := EstimateCommit(c, StatOnly, 0)
	if err != nil {
		t.Fatal(err)
	}

	level, est, err := Fit(c, statEst)
	if err != nil {
		t.Fatal(err)
	}
	if level != Truncated && level != StatOnly {
		t.Errorf("level = %v, expected Truncated or StatOnly at stat-sized budget", level)
	}
	if est > statEst {
		t.Errorf("estimate %d exceeds budget %d", est, statEst)
	}
}

func TestFit_ExhaustionReturnsSizedError(t *testing.T) {
	c := testCommit(1000)

	_, _, err := Fit(c, 5)
	if err == nil {
		t.Fatal("expected PromptTooLarge when even FileListOnly cannot fit")
	}

	var tooLarge *llmerrors.PromptTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected *PromptTooLargeError, got %T", err)
	}
	if tooLarge.AvailableTokens != 5 {
		t.Errorf("AvailableTokens = %d, expected 5", tooLarge.AvailableTokens)
	}
	if tooLarge.RequiredTokens <= 5 {
		t.Errorf("RequiredTokens = %d, expected the FileListOnly cost", tooLarge.RequiredTokens)
	}
	if tooLarge.Shortfall() == 0 {
		t.Error("shortfall should be non-zero")
	}
}
