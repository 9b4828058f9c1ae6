package domain

import "time"

// Session is an authenticated provider session. It is an explicit value
// threaded through provider calls rather than client-internal state, which
// keeps the sync engine testable with mocked sessions.
type Session struct {
	// Token is the bearer token returned by the login exchange.
	Token string
}

// ProgressEntry is one raw progress record as fetched from the provider,
// with its embedded student and assignment sub-records already lifted into
// domain shapes. Entries are pure data; nothing has been persisted yet.
type ProgressEntry struct {
	ID         string
	Student    Student
	Assignment Assignment

	Grade       *float64
	StartedAt   time.Time
	CompletedAt time.Time
	ReviewedAt  *time.Time
}

// ProgressPage is one page of a paginated progress fetch.
type ProgressPage struct {
	// Entries are ordered as returned by the provider (newest completion
	// first).
	Entries []ProgressEntry

	// Total is the provider's count of records across all pages.
	Total int

	// Page is the zero-based page index this result covers.
	Page int

	// CanLoadMore reports whether another page follows.
	CanLoadMore bool
}
