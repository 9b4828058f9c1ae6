package domain

import "time"

// SyncMode selects how far a sync run walks the provider's pages.
type SyncMode string

const (
	// SyncFull walks every page until the provider reports no more.
	SyncFull SyncMode = "full"

	// SyncIncremental stops early once the walk reaches pages whose
	// records are already present and unchanged in the store.
	SyncIncremental SyncMode = "incremental"
)

// SyncEvent is one append-only provenance row, written after each page's
// transaction commits. Events are never updated or deleted; they record
// exactly how far every sync got.
type SyncEvent struct {
	// RunID groups all events of one engine run.
	RunID string

	ClassID string

	// Page is the zero-based page index that was committed.
	Page int

	// Records is the number of records on that page.
	Records int

	SyncedAt time.Time
}

// SyncStats summarises a sync run. A run where some classes failed and
// others succeeded is a partial success: callers inspect PerClassErrors
// rather than receiving a fatal error.
type SyncStats struct {
	PagesFetched int
	TotalRecords int

	StudentsUpserted    int
	AssignmentsUpserted int
	RecordsUpserted     int

	// PerClassErrors maps class ID to the error that stopped that class's
	// sync. Classes absent from the map synced cleanly.
	PerClassErrors map[string]error
}

// Merge folds another run's counters into s. Per-class errors are copied
// over; overlapping class IDs keep the incoming error.
func (s *SyncStats) Merge(other SyncStats) {
	s.PagesFetched += other.PagesFetched
	s.TotalRecords += other.TotalRecords
	s.StudentsUpserted += other.StudentsUpserted
	s.AssignmentsUpserted += other.AssignmentsUpserted
	s.RecordsUpserted += other.RecordsUpserted
	for classID, err := range other.PerClassErrors {
		if s.PerClassErrors == nil {
			s.PerClassErrors = make(map[string]error)
		}
		s.PerClassErrors[classID] = err
	}
}

// Failed reports whether any class failed during the run.
func (s *SyncStats) Failed() bool {
	return len(s.PerClassErrors) > 0
}
