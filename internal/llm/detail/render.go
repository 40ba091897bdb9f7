package detail

import (
	"fmt"
	"strings"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/llm/tokens"
)

// Render produces the prompt block for one commit at the given detail
// level. budgetTokens is the token allowance for the whole block; it only
// influences the Truncated level, which cuts the diff to the characters
// remaining after the metadata envelope. Rendering is pure per level, so
// repeated calls on the same inputs return identical output.
func Render(c *commit.CommitUnit, level Level, budgetTokens int) (string, error) {
	var b strings.Builder
	writeHeader(&b, c)

	switch level {
	case FileListOnly:
		writeFileList(&b, c)
	case StatOnly:
		writeStats(&b, c)
	case Truncated:
		writeStats(&b, c)
		diff, err := c.Diff()
		if err != nil {
			return "", err
		}
		envelope := tokens.Estimate(b.String())
		writeTruncatedDiff(&b, diff, budgetTokens-envelope)
	case Full:
		writeStats(&b, c)
		diff, err := c.Diff()
		if err != nil {
			return "", err
		}
		if diff != "" {
			b.WriteString("Diff:\n")
			b.WriteString(diff)
			if !strings.HasSuffix(diff, "\n") {
				b.WriteString("\n")
			}
		}
	}

	return b.String(), nil
}

func writeHeader(b *strings.Builder, c *commit.CommitUnit) {
	fmt.Fprintf(b, "Commit %s", c.SHA)
	if c.Author != "" {
		fmt.Fprintf(b, " by %s", c.Author)
	}
	b.WriteString("\n")
	if c.PRNumber > 0 {
		fmt.Fprintf(b, "Pull request: #%d %s\n", c.PRNumber, c.PRTitle)
	}
	b.WriteString("Original message:\n")
	b.WriteString(strings.TrimRight(c.Message, "\n"))
	b.WriteString("\n")
}

func writeFileList(b *strings.Builder, c *commit.CommitUnit) {
	fmt.Fprintf(b, "Files changed (%d):\n", len(c.Files))
	for _, f := range c.Files {
		b.WriteString("  ")
		b.WriteString(f.Path)
		b.WriteString("\n")
	}
}

func writeStats(b *strings.Builder, c *commit.CommitUnit) {
	stats := c.Stats()
	fmt.Fprintf(b, "Files changed (%d, +%d -%d):\n",
		stats.TotalFiles, stats.TotalAdditions, stats.TotalDeletions)
	for _, f := range c.Files {
		fmt.Fprintf(b, "  %s | +%d -%d", f.Path, f.Additions, f.Deletions)
		if f.Status == "renamed" && f.PreviousPath != "" {
			fmt.Fprintf(b, " (renamed from %s)", f.PreviousPath)
		}
		b.WriteString("\n")
	}
}

// writeTruncatedDiff appends the head of the diff cut to the character
// budget implied by the remaining tokens, preserving the start of the
// diff where the most relevant context lives. The cut lands on a line
// boundary and is skipped entirely when it would not actually save more
// than the omission marker costs.
func writeTruncatedDiff(b *strings.Builder, diff string, remainingTokens int) {
	if diff == "" {
		return
	}

	const label = "Diff:\n"
	charBudget := tokens.MaxChars(remainingTokens)

	if len(label)+len(diff) <= charBudget {
		b.WriteString(label)
		b.WriteString(diff)
		if !strings.HasSuffix(diff, "\n") {
			b.WriteString("\n")
		}
		return
	}

	// Reserve room for the label and the omission marker at its widest
	// possible count (the head can never exceed charBudget, so its digit
	// width can never exceed this reservation)
	reserve := len(fmt.Sprintf("... [diff truncated, %d of %d characters shown]\n", charBudget, len(diff)))
	avail := charBudget - len(label) - reserve
	if avail <= 0 {
		return
	}

	head := diff[:avail]
	// Cut at the last complete line so hunks stay readable
	if idx := strings.LastIndexByte(head, '\n'); idx > 0 {
		head = head[:idx+1]
	}
	marker := fmt.Sprintf("... [diff truncated, %d of %d characters shown]\n", len(head), len(diff))

	b.WriteString(label)
	b.WriteString(head)
	if !strings.HasSuffix(head, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(marker)
}
