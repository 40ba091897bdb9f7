// Package source abstracts where commits come from: a local repository
// range, a GitHub compare URL, or a GitLab compare URL.
package source

import (
	"context"

	"commit-message-refiner/internal/commit"
)

// Source yields the commits to improve, in history order (oldest first).
type Source interface {
	// Name returns the platform name for logging
	Name() string

	// Commits fetches the commit units. Diff content is loaded lazily
	// through each unit's loader, not during this call.
	Commits(ctx context.Context) ([]*commit.CommitUnit, error)
}
