package domain

import "time"

// Class represents one cohort on the LMS provider.
// Classes are discovered via the provider's class listing and must be
// marked active before they are included in a sync run.
type Class struct {
	// ID is the provider-assigned class identifier.
	ID string

	// Name is the display name from the provider.
	Name string

	// FriendlyID is the provider's short human-readable handle.
	FriendlyID string

	// Active marks whether sync runs include this class.
	Active bool

	// SyncedAt is when the last successful sync of this class completed.
	// Nil if the class has never been synced.
	SyncedAt *time.Time
}
