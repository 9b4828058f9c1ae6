package driven

import (
	"context"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// ClassStore persists the class roster and activation flags.
type ClassStore interface {
	// Save stores or updates a class.
	Save(ctx context.Context, class domain.Class) error

	// Get retrieves a class by provider ID.
	Get(ctx context.Context, id string) (*domain.Class, error)

	// GetByFriendlyID retrieves a class by its human-readable handle.
	GetByFriendlyID(ctx context.Context, friendlyID string) (*domain.Class, error)

	// List returns all known classes, active and inactive.
	List(ctx context.Context) ([]domain.Class, error)

	// ListActive returns the classes included in sync runs.
	ListActive(ctx context.Context) ([]domain.Class, error)

	// SetActive toggles a class's activation flag.
	SetActive(ctx context.Context, id string, active bool) error

	// TouchSyncedAt records the completion time of a successful sync.
	TouchSyncedAt(ctx context.Context, id string, at time.Time) error
}

// RosterBatch is the write surface available inside one page transaction.
// Upserts overwrite all mutable fields keyed by provider ID. The engine
// calls them in foreign-key order: students and assignments before the
// progress records that reference them.
type RosterBatch interface {
	UpsertStudent(student domain.Student) error
	UpsertAssignment(assignment domain.Assignment) error
	UpsertProgressRecord(record domain.ProgressRecord) error
}

// RosterStore persists synced roster data with per-page transactions.
type RosterStore interface {
	// ApplyPage runs fn inside one transaction. If fn returns an error the
	// whole page rolls back; previously committed pages are unaffected.
	ApplyPage(ctx context.Context, fn func(batch RosterBatch) error) error

	// RecordExistsUnchanged reports whether a progress record with this ID
	// is already stored with an identical completed-at timestamp. Drives
	// the incremental-sync cutoff heuristic.
	RecordExistsUnchanged(ctx context.Context, id string, completedAt time.Time) (bool, error)

	// Counts used by status reporting.
	StudentCount(ctx context.Context, classID string) (int64, error)
	AssignmentCount(ctx context.Context, classID string) (int64, error)
	ProgressRecordCount(ctx context.Context, classID string) (int64, error)

	// Listings for the HTTP API.
	ListStudents(ctx context.Context, classID string) ([]domain.Student, error)
	ListAssignments(ctx context.Context, classID string) ([]domain.Assignment, error)
	ListProgressRecords(ctx context.Context, classID string) ([]domain.ProgressRecord, error)
}

// SyncLogStore persists the append-only sync provenance trail.
type SyncLogStore interface {
	// Append writes one event. Events are never updated or deleted.
	Append(ctx context.Context, event domain.SyncEvent) error

	// LastSyncTime returns the most recent event time for a class, or nil
	// if the class has never been synced.
	LastSyncTime(ctx context.Context, classID string) (*time.Time, error)

	// LastSyncTimeAny returns the most recent event time across all
	// classes, for the health endpoint.
	LastSyncTimeAny(ctx context.Context) (*time.Time, error)

	// ListEvents returns events for a class, newest first.
	ListEvents(ctx context.Context, classID string) ([]domain.SyncEvent, error)
}
