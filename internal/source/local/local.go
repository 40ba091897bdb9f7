// Package local reads commits from a git repository on disk using the
// git CLI.
package local

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"commit-message-refiner/internal/commit"
)

// Source yields commits from a revision range of a local repository.
type Source struct {
	repoPath  string
	rangeSpec string // e.g. "HEAD~5..HEAD" or "main..feature"
}

// New creates a local source for the given repository path and revision
// range.
func New(repoPath, rangeSpec string) *Source {
	return &Source{repoPath: repoPath, rangeSpec: rangeSpec}
}

// Name returns the platform name
func (s *Source) Name() string {
	return "local git"
}

// Commits lists the commits in the range, oldest first. Each unit carries
// its file summary up front and loads the full diff on demand.
func (s *Source) Commits(ctx context.Context) ([]*commit.CommitUnit, error) {
	out, err := s.git(ctx, "rev-list", "--reverse", "--no-merges", s.rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision range %q: %w", s.rangeSpec, err)
	}

	shas := strings.Fields(out)
	slog.Debug("Resolved revision range", "range", s.rangeSpec, "commits", len(shas))

	units := make([]*commit.CommitUnit, 0, len(shas))
	for _, sha := range shas {
		unit, err := s.loadCommit(ctx, sha)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func (s *Source) loadCommit(ctx context.Context, sha string) (*commit.CommitUnit, error) {
	meta, err := s.git(ctx, "show", "--no-patch", "--format=%H%x00%an%x00%B", sha)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", sha[:8], err)
	}

	parts := strings.SplitN(meta, "\x00", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected git show output for commit %s", sha[:8])
	}
	author := parts[1]
	message := strings.TrimRight(parts[2], "\n")

	files, err := s.changedFiles(ctx, sha)
	if err != nil {
		return nil, err
	}

	return commit.New(sha, author, message, files, s.diffLoader(sha)), nil
}

// changedFiles combines name-status (file status, rename detection) with
// numstat (line counts). Both commands emit files in the same order under
// the same diff options.
func (s *Source) changedFiles(ctx context.Context, sha string) ([]commit.FileChange, error) {
	nameStatus, err := s.git(ctx, "show", "--name-status", "--format=", sha)
	if err != nil {
		return nil, fmt.Errorf("failed to read file statuses for %s: %w", sha[:8], err)
	}
	numstat, err := s.git(ctx, "show", "--numstat", "--format=", sha)
	if err != nil {
		return nil, fmt.Errorf("failed to read file stats for %s: %w", sha[:8], err)
	}

	files := parseNameStatus(nameStatus)
	applyNumstat(files, numstat)
	return files, nil
}

// diffLoader defers the expensive full-diff read until rendering needs it.
func (s *Source) diffLoader(sha string) commit.DiffLoader {
	return func() (string, error) {
		out, err := s.git(context.Background(), "show", "--patch", "--format=", sha)
		if err != nil {
			return "", fmt.Errorf("failed to read diff for %s: %w", sha[:8], err)
		}
		return out, nil
	}
}

func (s *Source) git(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", s.repoPath}, args...)
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

// parseNameStatus parses "git show --name-status" lines such as
// "M\tpath", "A\tpath", and "R095\told\tnew".
func parseNameStatus(out string) []commit.FileChange {
	var files []commit.FileChange
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}

		change := commit.FileChange{Path: fields[1]}
		switch fields[0][0] {
		case 'A':
			change.Status = "added"
		case 'D':
			change.Status = "removed"
		case 'R', 'C':
			change.Status = "renamed"
			if len(fields) >= 3 {
				change.PreviousPath = fields[1]
				change.Path = fields[2]
			}
		default:
			change.Status = "modified"
		}
		files = append(files, change)
	}
	return files
}

// applyNumstat fills addition/deletion counts from "git show --numstat"
// output. Binary files report "-" and keep zero counts.
func applyNumstat(files []commit.FileChange, out string) {
	lines := make([]string, 0, len(files))
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != len(files) {
		slog.Warn("Numstat output does not align with name-status output",
			"numstat_lines", len(lines), "files", len(files))
		return
	}

	for i, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err == nil {
			files[i].Additions = n
		}
		if n, err := strconv.Atoi(fields[1]); err == nil {
			files[i].Deletions = n
		}
	}
}
