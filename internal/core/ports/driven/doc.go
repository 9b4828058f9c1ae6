// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Provider: Authenticates and fetches paginated progress data from the LMS
//   - Pacer: Spaces outbound provider requests
//   - ClassStore: Class roster and activation persistence
//   - RosterStore: Transactional student/assignment/progress persistence
//   - SyncLogStore: Append-only sync provenance
//   - AnalyticsStore: Aggregate queries for the dashboard
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
