// Package githubsrc reads commits from a GitHub compare URL, enriching
// them with associated pull request metadata.
package githubsrc

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/go-github/v80/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"commit-message-refiner/internal/commit"
	"commit-message-refiner/internal/config"
)

// enrichConcurrency bounds parallel per-commit API calls
const enrichConcurrency = 10

// compareURLRegex matches GitHub compare URLs and extracts components
var compareURLRegex = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/compare/([^.]+)\.\.\.([^?#]+)$`)

// IsCompareURL checks if a URL is a GitHub compare URL
func IsCompareURL(url string) bool {
	return compareURLRegex.MatchString(url)
}

// parseCompareURL extracts owner, repo, base, and head from a GitHub
// compare URL (https://github.com/owner/repo/compare/base...head).
func parseCompareURL(compareURL string) (owner, repo, base, head string, err error) {
	matches := compareURLRegex.FindStringSubmatch(compareURL)
	if len(matches) != 5 {
		return "", "", "", "", fmt.Errorf("invalid GitHub compare URL format: %s", compareURL)
	}
	return matches[1], matches[2], matches[3], matches[4], nil
}

// Source fetches commits for one compare range. The REST API serves the
// comparison and diffs; GraphQL serves PR association when a token is
// available.
type Source struct {
	client  *github.Client
	graphql *githubv4.Client // nil without a token
	owner   string
	repo    string
	base    string
	head    string
}

// New creates a GitHub source for a compare URL. An empty token falls
// back to unauthenticated REST access without PR enrichment.
func New(cfg *config.Config, compareURL string) (*Source, error) {
	owner, repo, base, head, err := parseCompareURL(compareURL)
	if err != nil {
		return nil, err
	}

	src := &Source{
		client: github.NewClient(nil),
		owner:  owner,
		repo:   repo,
		base:   base,
		head:   head,
	}

	if cfg.GitHubToken != "" {
		src.client = src.client.WithAuthToken(cfg.GitHubToken)

		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		src.graphql = githubv4.NewClient(oauth2.NewClient(context.Background(), tokenSource))
	}

	return src, nil
}

// Name returns the platform name
func (s *Source) Name() string {
	return "GitHub"
}

// Commits fetches the compare range with full commit pagination, loads
// per-commit file summaries concurrently, and enriches each commit with
// its merged PR when possible.
func (s *Source) Commits(ctx context.Context) ([]*commit.CommitUnit, error) {
	allCommits, err := s.fetchComparisonWithPagination(ctx)
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetched GitHub comparison",
		"owner", s.owner, "repo", s.repo, "commits", len(allCommits))

	units := make([]*commit.CommitUnit, len(allCommits))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, ghCommit := range allCommits {
		g.Go(func() error {
			unit, err := s.buildUnit(gCtx, ghCommit)
			if err != nil {
				return err
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return units, nil
}

func (s *Source) fetchComparisonWithPagination(ctx context.Context) ([]*github.RepositoryCommit, error) {
	var allCommits []*github.RepositoryCommit
	page := 1

	for {
		comparison, resp, err := s.client.Repositories.CompareCommits(ctx, s.owner, s.repo, s.base, s.head,
			&github.ListOptions{Page: page, PerPage: 100})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch comparison (page %d, %s/%s %s...%s): %w",
				page, s.owner, s.repo, s.base, s.head, err)
		}

		allCommits = append(allCommits, comparison.Commits...)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return allCommits, nil
}

func (s *Source) buildUnit(ctx context.Context, ghCommit *github.RepositoryCommit) (*commit.CommitUnit, error) {
	sha := ghCommit.GetSHA()
	if sha == "" {
		return nil, fmt.Errorf("comparison returned a commit without a SHA")
	}

	message := ghCommit.GetCommit().GetMessage()
	author := ghCommit.GetCommit().GetAuthor().GetName()

	files, err := s.fetchFiles(ctx, sha)
	if err != nil {
		return nil, err
	}

	unit := commit.New(sha, author, message, files, s.diffLoader(sha))

	prNumber, prTitle, err := s.findMergedPR(ctx, sha)
	if err != nil {
		slog.Warn("Failed to find PR for commit", "commit", unit.ShortSHA, "error", err)
	} else if prNumber != 0 {
		unit.PRNumber = prNumber
		unit.PRTitle = prTitle
		slog.Debug("Enriched commit with PR", "commit", unit.ShortSHA, "pr", prNumber)
	}

	return unit, nil
}

// fetchFiles loads the per-commit file summary needed for planning
func (s *Source) fetchFiles(ctx context.Context, sha string) ([]commit.FileChange, error) {
	ghCommit, _, err := s.client.Repositories.GetCommit(ctx, s.owner, s.repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commit %s: %w", sha[:8], err)
	}

	files := make([]commit.FileChange, 0, len(ghCommit.Files))
	for _, f := range ghCommit.Files {
		files = append(files, commit.FileChange{
			Path:         f.GetFilename(),
			Status:       f.GetStatus(),
			Additions:    f.GetAdditions(),
			Deletions:    f.GetDeletions(),
			PreviousPath: f.GetPreviousFilename(),
		})
	}
	return files, nil
}

// diffLoader fetches the commit's raw diff only when rendering needs it
func (s *Source) diffLoader(sha string) commit.DiffLoader {
	return func() (string, error) {
		raw, _, err := s.client.Repositories.GetCommitRaw(context.Background(), s.owner, s.repo, sha,
			github.RawOptions{Type: github.Diff})
		if err != nil {
			return "", fmt.Errorf("failed to fetch diff for %s: %w", sha[:8], err)
		}
		return raw, nil
	}
}

type commitPRQuery struct {
	Repository struct {
		Object struct {
			Commit struct {
				AssociatedPullRequests struct {
					Nodes []struct {
						Number   int
						Title    string
						MergedAt githubv4.DateTime
					}
				} `graphql:"associatedPullRequests(first: 10)"`
			} `graphql:"... on Commit"`
		} `graphql:"object(oid: $oid)"`
	} `graphql:"repository(owner: $owner, name: $repo)"`
}

// findMergedPR resolves the merged PR a commit landed through. GraphQL is
// preferred (one query carries number and title); REST serves as the
// fallback when GraphQL is unavailable.
func (s *Source) findMergedPR(ctx context.Context, sha string) (int, string, error) {
	if s.graphql != nil {
		var query commitPRQuery
		variables := map[string]interface{}{
			"owner": githubv4.String(s.owner),
			"repo":  githubv4.String(s.repo),
			"oid":   githubv4.GitObjectID(sha),
		}

		if err := s.graphql.Query(ctx, &query, variables); err != nil {
			return 0, "", err
		}

		for _, pr := range query.Repository.Object.Commit.AssociatedPullRequests.Nodes {
			if pr.MergedAt.IsZero() {
				continue
			}
			return pr.Number, pr.Title, nil
		}
		return 0, "", nil
	}

	prs, _, err := s.client.PullRequests.ListPullRequestsWithCommit(ctx, s.owner, s.repo, sha, nil)
	if err != nil {
		return 0, "", err
	}

	for _, pr := range prs {
		if !pr.GetMergedAt().IsZero() {
			return pr.GetNumber(), pr.GetTitle(), nil
		}
	}
	return 0, "", nil
}
