package driving

import (
	"context"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// ProgressFunc receives a notification after each committed page.
// Optional extension point for callers that stream progress (CLI spinner,
// HTTP status endpoint); nil disables notifications.
type ProgressFunc func(classID string, page, records int)

// SyncEngine coordinates authentication, page walking, reconciliation and
// persistence against the configured LMS provider.
type SyncEngine interface {
	// Run syncs every active class sequentially. Classes fail
	// independently: the returned stats carry per-class errors, and a
	// non-nil error is reserved for run-level failures (authentication,
	// store discovery, cancellation).
	Run(ctx context.Context, mode domain.SyncMode) (domain.SyncStats, error)

	// RunClass syncs a single class by provider ID.
	RunClass(ctx context.Context, classID string, mode domain.SyncMode) (domain.SyncStats, error)

	// DiscoverClasses fetches the provider's class list and persists any
	// classes not yet known locally.
	DiscoverClasses(ctx context.Context) ([]domain.Class, error)

	// SetProgressFunc installs the per-page progress callback.
	SetProgressFunc(fn ProgressFunc)
}
