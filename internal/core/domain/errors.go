package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Provider Errors.

	// ErrInvalidCredentials indicates the provider rejected the login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates the provider session has expired or was
	// rejected mid-sync. The caller should re-authenticate before retrying.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrClassNotFound indicates the provider does not know the class.
	ErrClassNotFound = errors.New("class not found")

	// ErrMalformedResponse indicates the provider returned a payload that
	// does not match the expected schema. Never silently skipped: partial
	// parsing would corrupt the analytics downstream.
	ErrMalformedResponse = errors.New("malformed provider response")

	// Sync Errors.

	// ErrSyncCancelled indicates a sync run was cancelled between pages.
	// Pages committed before cancellation remain committed.
	ErrSyncCancelled = errors.New("sync cancelled")

	// ErrNoActiveClasses indicates a sync was requested but no class is
	// marked active in the store.
	ErrNoActiveClasses = errors.New("no active classes")
)
