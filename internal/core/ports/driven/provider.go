package driven

import (
	"context"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// Provider fetches class and progress data from an LMS backend.
// The sync engine depends only on this interface, never on a concrete
// provider, so adding another LMS is an adapter, not an engine change.
//
// Implementations must not retry internally: retry and re-authentication
// policy belongs to the sync engine.
type Provider interface {
	// Name returns the provider identifier ("openclass").
	Name() string

	// Authenticate exchanges configured credentials for a session.
	// Returns domain.ErrInvalidCredentials on a rejected login.
	Authenticate(ctx context.Context) (domain.Session, error)

	// FetchClasses lists the classes visible to the session.
	FetchClasses(ctx context.Context, session domain.Session) ([]domain.Class, error)

	// FetchClassStructure maps assignment ID to section label for a class.
	// Best effort: callers may proceed without sections when it fails.
	FetchClassStructure(ctx context.Context, session domain.Session, classID string) (map[string]string, error)

	// FetchProgressPage fetches one page of progress records.
	// Side-effect free given (session, classID, page). Error mapping:
	// domain.ErrUnauthorized for an expired session, domain.ErrClassNotFound
	// for an unknown class, domain.ErrMalformedResponse for schema drift.
	FetchProgressPage(ctx context.Context, session domain.Session, classID string, page int) (*domain.ProgressPage, error)
}

// Pacer throttles outbound provider requests. Wait blocks until at least
// the configured interval has elapsed since the previous Wait returned;
// the first call never blocks.
type Pacer interface {
	Wait(ctx context.Context) error
}
