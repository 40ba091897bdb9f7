// Package apply writes accepted suggestions back into a local
// repository. The HEAD commit is amended directly; older commits get a
// prepared reword plan, since rewriting non-HEAD history cannot be done
// safely without an interactive rebase.
package apply

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"commit-message-refiner/internal/run"
)

// Applier applies suggestions to the repository at RepoPath. Prompts for
// confirmation on Stdin/Stdout unless AssumeYes is set.
type Applier struct {
	RepoPath  string
	AssumeYes bool
	Stdin     io.Reader
	Stdout    io.Writer
}

// Apply amends HEAD when it has a suggestion and prints a reword plan
// for any older improved commits. Returns the number of commits amended.
func (a *Applier) Apply(ctx context.Context, rep run.Report) (int, error) {
	improved := 0
	for _, o := range rep.Outcomes {
		if o.Suggestion != nil {
			improved++
		}
	}
	if improved == 0 {
		fmt.Fprintln(a.Stdout, "No suggestions to apply.")
		return 0, nil
	}

	if !a.AssumeYes {
		ok, err := a.confirm(improved)
		if err != nil {
			return 0, err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Aborted, no commits changed.")
			return 0, nil
		}
	}

	headSHA, err := a.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return 0, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	headSHA = strings.TrimSpace(headSHA)

	amended := 0
	var older []run.CommitOutcome

	for _, o := range rep.Outcomes {
		if o.Suggestion == nil {
			continue
		}
		if o.Commit.SHA == headSHA {
			if err := a.amendHead(ctx, o.Suggestion.Message); err != nil {
				return amended, err
			}
			fmt.Fprintf(a.Stdout, "Amended %s: %s\n", o.Commit.ShortSHA, o.Suggestion.Subject())
			amended++
			continue
		}
		older = append(older, o)
	}

	if len(older) > 0 {
		a.printRewordPlan(older)
	}

	return amended, nil
}

func (a *Applier) confirm(count int) (bool, error) {
	fmt.Fprintf(a.Stdout, "Apply %d suggested message(s) to the repository? [y/N] ", count)

	reader := bufio.NewReader(a.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (a *Applier) amendHead(ctx context.Context, message string) error {
	slog.Debug("Amending HEAD commit message")
	if _, err := a.git(ctx, "commit", "--amend", "--no-edit", "-m", message); err != nil {
		return fmt.Errorf("failed to amend HEAD: %w", err)
	}
	return nil
}

// printRewordPlan emits the rebase todo lines and messages the user needs
// to reword older commits by hand.
func (a *Applier) printRewordPlan(older []run.CommitOutcome) {
	oldest := older[0]

	fmt.Fprintf(a.Stdout, "\n%d commit(s) are not at HEAD and need an interactive rebase:\n\n", len(older))
	fmt.Fprintf(a.Stdout, "  git rebase -i %s^\n\n", oldest.Commit.ShortSHA)
	fmt.Fprintln(a.Stdout, "Mark these commits as 'reword' and use the suggested messages:")
	for _, o := range older {
		fmt.Fprintf(a.Stdout, "\n  reword %s  (was: %s)\n", o.Commit.ShortSHA, o.Commit.Subject)
		for _, line := range strings.Split(o.Suggestion.Message, "\n") {
			fmt.Fprintf(a.Stdout, "    %s\n", line)
		}
	}
}

func (a *Applier) git(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", a.RepoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), detail)
	}
	return stdout.String(), nil
}
