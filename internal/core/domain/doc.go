// Package domain defines the core business entities for cohort-tracker.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Class: A cohort tracked against the LMS provider
//   - Student / Assignment: Roster entities discovered during sync
//   - ProgressRecord: One student's completion data for one assignment
//   - ProgressPage: A page of raw progress entries from the provider
//   - SyncEvent: Append-only provenance row for one synced page
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
package domain
