package domain

import "time"

// Student is a learner discovered through fetched progress records.
// Students are created on first appearance and have name/email refreshed
// on later syncs; sync never deletes them.
type Student struct {
	// ID is the provider-assigned student identifier.
	ID string

	// ClassID scopes the student to a class.
	ClassID string

	FirstName string
	LastName  string
	Email     string

	// Region and Night are optional operator-supplied groupings.
	// The provider API never populates them.
	Region *string
	Night  *string
}

// AssignmentType enumerates the kinds of assignment the provider reports.
type AssignmentType string

const (
	AssignmentLesson AssignmentType = "lesson"
	AssignmentQuiz   AssignmentType = "quiz"
)

// Assignment is a unit of coursework, scoped to a class.
// Same create/update/no-delete lifecycle as Student.
type Assignment struct {
	ID      string
	ClassID string
	Name    string
	Type    AssignmentType

	// Section is the unit/section label from the class structure.
	// Nil when the structure fetch was unavailable.
	Section *string
}

// ProgressRecord is one student's completion data for one assignment.
// The provider record ID is the primary key: re-fetching the same record
// overwrites in place, never duplicates.
type ProgressRecord struct {
	// ID is the provider-assigned record identifier.
	ID string

	ClassID      string
	StudentID    string
	AssignmentID string

	// Grade is in [0.0, 1.0]. Nil for ungraded work.
	Grade *float64

	StartedAt   time.Time
	CompletedAt time.Time

	// ReviewedAt is nil until a mentor reviews the work.
	ReviewedAt *time.Time

	// SyncedAt is the wall-clock time of the local write, not a provider
	// timestamp.
	SyncedAt time.Time
}
