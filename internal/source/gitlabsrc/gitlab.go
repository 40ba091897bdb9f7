// Package gitlabsrc reads commits from a GitLab compare URL, enriching
// them with associated merge request metadata.
package gitlabsrc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/config"
	httputil "commit-message-refiner/internal/http"
)

// compareURLRegex matches GitLab compare URLs and extracts components.
// Subgroups are allowed in the project path:
// https://gitlab.example.com/group/subgroup/repo/-/compare/base...head
var compareURLRegex = regexp.MustCompile(`^https?://([^/]+)/(.+)/-/compare/([^.]+)\.\.\.([^?#]+)`)

// IsCompareURL checks if a URL is a GitLab compare URL
func IsCompareURL(url string) bool {
	return compareURLRegex.MatchString(url)
}

// parseCompareURL extracts host, project path, base, and head from a
// GitLab compare URL.
func parseCompareURL(compareURL string) (host, projectPath, base, head string, err error) {
	matches := compareURLRegex.FindStringSubmatch(compareURL)
	if len(matches) != 5 {
		return "", "", "", "", fmt.Errorf("invalid GitLab compare URL format: %s", compareURL)
	}
	return matches[1], matches[2], matches[3], matches[4], nil
}

// Source fetches commits for one compare range via the GitLab API.
type Source struct {
	client      *gitlab.Client
	projectPath string // URL-encoded for API calls
	base        string
	head        string
}

// New creates a GitLab source for a compare URL using the configured
// token and base URL.
func New(cfg *config.Config, compareURL string) (*Source, error) {
	_, projectPath, base, head, err := parseCompareURL(compareURL)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &Source{
		client:      client,
		projectPath: url.PathEscape(projectPath),
		base:        base,
		head:        head,
	}, nil
}

func newClient(cfg *config.Config) (*gitlab.Client, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.GitLabBaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.GitLabBaseURL))
	}
	if cfg.GitLabSkipSSLVerify {
		opts = append(opts, gitlab.WithHTTPClient(httputil.NewClient(0, true)))
	}
	return gitlab.NewClient(cfg.GitLabToken, opts...)
}

// Name returns the platform name
func (s *Source) Name() string {
	return "GitLab"
}

// Commits fetches the compare range, oldest first. GitLab's compare
// already reports commits in history order.
func (s *Source) Commits(ctx context.Context) ([]*commit.CommitUnit, error) {
	compareOpts := &gitlab.CompareOptions{
		From:     &s.base,
		To:       &s.head,
		Straight: gitlab.Ptr(false), // Three-dot comparison, like GitHub
	}
	compare, _, err := s.client.Repositories.Compare(s.projectPath, compareOpts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comparison: %w", err)
	}

	slog.Debug("GitLab comparison fetched", "project", s.projectPath, "commits", len(compare.Commits))

	units := make([]*commit.CommitUnit, 0, len(compare.Commits))
	for _, glCommit := range compare.Commits {
		unit, err := s.buildUnit(ctx, glCommit)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func (s *Source) buildUnit(ctx context.Context, glCommit *gitlab.Commit) (*commit.CommitUnit, error) {
	if glCommit == nil || glCommit.ID == "" {
		return nil, fmt.Errorf("comparison returned a commit without an ID")
	}

	diffs, _, err := s.client.Commits.GetCommitDiff(s.projectPath, glCommit.ID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diff for %s: %w", glCommit.ShortID, err)
	}

	files, diffText := convertDiffs(diffs)
	unit := commit.New(glCommit.ID, glCommit.AuthorName, strings.TrimRight(glCommit.Message, "\n"),
		files, commit.StaticDiff(diffText))

	mrIID, mrTitle, err := s.findMergedMR(ctx, glCommit.ID)
	if err != nil {
		slog.Warn("Failed to find MR for commit", "commit", unit.ShortSHA, "error", err)
	} else if mrIID != 0 {
		unit.PRNumber = mrIID
		unit.PRTitle = mrTitle
		slog.Debug("Enriched commit with MR", "commit", unit.ShortSHA, "mr", mrIID)
	}

	return unit, nil
}

// findMergedMR resolves the merge request a commit landed through,
// preferring merged MRs.
func (s *Source) findMergedMR(ctx context.Context, sha string) (int, string, error) {
	mrs, _, err := s.client.Commits.ListMergeRequestsByCommit(s.projectPath, sha, gitlab.WithContext(ctx))
	if err != nil {
		return 0, "", err
	}
	if len(mrs) == 0 {
		return 0, "", nil
	}

	for _, mr := range mrs {
		if mr.State == "merged" {
			return int(mr.IID), mr.Title, nil
		}
	}
	return int(mrs[0].IID), mrs[0].Title, nil
}

// convertDiffs builds the file summary and assembles the commit's diff
// text from the per-file patches. GitLab does not report line counts
// directly, so they are parsed from each patch.
func convertDiffs(diffs []*gitlab.Diff) ([]commit.FileChange, string) {
	files := make([]commit.FileChange, 0, len(diffs))
	var diffText strings.Builder

	for _, d := range diffs {
		if d == nil {
			continue
		}

		change := commit.FileChange{Path: d.NewPath}
		switch {
		case d.NewFile:
			change.Status = "added"
		case d.DeletedFile:
			change.Status = "removed"
			change.Path = d.OldPath
		case d.RenamedFile:
			change.Status = "renamed"
			change.PreviousPath = d.OldPath
		default:
			change.Status = "modified"
		}

		change.Additions, change.Deletions = parsePatchStats(d.Diff)
		files = append(files, change)

		fmt.Fprintf(&diffText, "--- a/%s\n+++ b/%s\n%s", d.OldPath, d.NewPath, d.Diff)
		if !strings.HasSuffix(d.Diff, "\n") {
			diffText.WriteByte('\n')
		}
	}

	return files, diffText.String()
}

// parsePatchStats counts additions and deletions from a unified diff patch
func parsePatchStats(patch string) (additions, deletions int) {
	if patch == "" {
		return 0, 0
	}

	for _, line := range strings.Split(patch, "\n") {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			if !strings.HasPrefix(line, "+++") {
				additions++
			}
		case '-':
			if !strings.HasPrefix(line, "---") {
				deletions++
			}
		}
	}

	return additions, deletions
}
