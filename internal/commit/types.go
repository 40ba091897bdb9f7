package commit

import (
	"fmt"
	"strings"
	"sync"
)

// FileChange represents a file that was changed in a commit
type FileChange struct {
	Path         string
	Status       string // added, modified, removed, renamed
	Additions    int
	Deletions    int
	PreviousPath string // For renames
}

// ChangeStats represents aggregate statistics for a commit's changes
type ChangeStats struct {
	TotalFiles     int
	TotalAdditions int
	TotalDeletions int
}

// DiffLoader produces the full diff text for a commit on demand.
// Diffs can be large, so sources hand out loaders instead of holding
// every diff in memory for the whole run.
type DiffLoader func() (string, error)

// CommitUnit is one commit as supplied by a commit source: identity,
// original message, changed-file summary, and a lazy diff accessor.
// Immutable once constructed.
type CommitUnit struct {
	SHA      string
	ShortSHA string
	Author   string
	Subject  string // First line of the original message
	Message  string // Full original message
	PRNumber int    // Associated PR/MR number (0 if none)
	PRTitle  string // Associated PR/MR title (empty if none)
	Files    []FileChange

	loadDiff DiffLoader

	diffOnce sync.Once
	diffText string
	diffErr  error
}

// New constructs a CommitUnit. The loader may be nil for commits with no
// reachable diff content (the diff then renders as empty).
func New(sha, author, message string, files []FileChange, loader DiffLoader) *CommitUnit {
	subject := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		subject = message[:idx]
	}
	return &CommitUnit{
		SHA:      sha,
		ShortSHA: shortSHA(sha),
		Author:   author,
		Subject:  strings.TrimSpace(subject),
		Message:  message,
		Files:    files,
		loadDiff: loader,
	}
}

// StaticDiff returns a loader that serves a diff already held in memory.
func StaticDiff(diff string) DiffLoader {
	return func() (string, error) { return diff, nil }
}

// Diff returns the commit's full diff text, loading it on first use.
// The loaded text (or the load error) is cached for subsequent calls so
// repeated rendering at different detail levels stays deterministic.
func (c *CommitUnit) Diff() (string, error) {
	c.diffOnce.Do(func() {
		if c.loadDiff == nil {
			return
		}
		c.diffText, c.diffErr = c.loadDiff()
	})
	if c.diffErr != nil {
		return "", fmt.Errorf("load diff for %s: %w", c.ShortSHA, c.diffErr)
	}
	return c.diffText, nil
}

// Stats aggregates the per-file counts.
func (c *CommitUnit) Stats() ChangeStats {
	stats := ChangeStats{TotalFiles: len(c.Files)}
	for _, f := range c.Files {
		stats.TotalAdditions += f.Additions
		stats.TotalDeletions += f.Deletions
	}
	return stats
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// Suggestion is the provider's proposed rewrite for a single commit
type Suggestion struct {
	SHA      string `json:"commit" yaml:"commit"`
	Message  string `json:"message" yaml:"message"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"` // conventional-commit type, e.g. "fix", "feat"
}

// Subject returns the first line of the suggested message.
func (s Suggestion) Subject() string {
	if idx := strings.IndexByte(s.Message, '\n'); idx >= 0 {
		return strings.TrimSpace(s.Message[:idx])
	}
	return strings.TrimSpace(s.Message)
}
