package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
	"github.com/cohort-tools/cohort-tracker/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// defaultMaxDuplicatePages is the number of consecutive all-duplicate
// pages an incremental run tolerates before stopping. A single duplicate
// page is not enough: provider ordering is only roughly by recency, so
// a new record can appear one page beyond a duplicate one.
const defaultMaxDuplicatePages = 2

// SyncEngine coordinates class progress synchronisation: it
// authenticates against the provider, walks paginated progress data,
// reconciles raw entries into storable entities and persists them one
// page transaction at a time.
type SyncEngine struct {
	provider   driven.Provider
	pacer      driven.Pacer
	classStore driven.ClassStore
	roster     driven.RosterStore
	syncLog    driven.SyncLogStore

	maxDuplicatePages int

	mu         sync.Mutex
	progressFn driving.ProgressFunc
}

// NewSyncEngine creates a new sync engine. The pacer spaces every
// outbound page fetch; it is shared across classes so back-to-back
// class syncs keep the same request spacing.
func NewSyncEngine(
	provider driven.Provider,
	pacer driven.Pacer,
	classStore driven.ClassStore,
	roster driven.RosterStore,
	syncLog driven.SyncLogStore,
) *SyncEngine {
	return &SyncEngine{
		provider:          provider,
		pacer:             pacer,
		classStore:        classStore,
		roster:            roster,
		syncLog:           syncLog,
		maxDuplicatePages: defaultMaxDuplicatePages,
	}
}

// SetProgressFunc installs the per-page progress callback.
func (e *SyncEngine) SetProgressFunc(fn driving.ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressFn = fn
}

func (e *SyncEngine) notifyProgress(classID string, page, records int) {
	e.mu.Lock()
	fn := e.progressFn
	e.mu.Unlock()
	if fn != nil {
		fn(classID, page, records)
	}
}

// Run syncs every active class sequentially. Classes fail
// independently: a class error lands in SyncStats.PerClassErrors and
// the run moves on to the next class. Authentication failure and
// cancellation are run-level errors.
func (e *SyncEngine) Run(ctx context.Context, mode domain.SyncMode) (domain.SyncStats, error) {
	var stats domain.SyncStats

	session, err := e.provider.Authenticate(ctx)
	if err != nil {
		return stats, fmt.Errorf("authenticating: %w", err)
	}

	classes, err := e.classStore.ListActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing active classes: %w", err)
	}
	if len(classes) == 0 {
		return stats, domain.ErrNoActiveClasses
	}

	runID := uuid.NewString()
	logger.Info("Starting %s sync run %s for %d class(es) via %s", mode, runID, len(classes), e.provider.Name())

	for _, class := range classes {
		classStats, err := e.syncClass(ctx, &session, runID, class, mode)
		stats.Merge(classStats)

		if errors.Is(err, domain.ErrSyncCancelled) {
			return stats, err
		}
		if err != nil {
			logger.Warn("Sync failed for class %s: %v", class.ID, err)
			if stats.PerClassErrors == nil {
				stats.PerClassErrors = make(map[string]error)
			}
			stats.PerClassErrors[class.ID] = err
			continue
		}

		if err := e.classStore.TouchSyncedAt(ctx, class.ID, time.Now().UTC()); err != nil {
			logger.Warn("Could not update sync time for class %s: %v", class.ID, err)
		}
	}

	logger.Info("Sync run %s complete: %d pages, %d records, %d class error(s)",
		runID, stats.PagesFetched, stats.TotalRecords, len(stats.PerClassErrors))
	return stats, nil
}

// RunClass syncs a single class by provider ID.
func (e *SyncEngine) RunClass(ctx context.Context, classID string, mode domain.SyncMode) (domain.SyncStats, error) {
	var stats domain.SyncStats

	class, err := e.classStore.Get(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return stats, fmt.Errorf("%w: %s", domain.ErrClassNotFound, classID)
		}
		return stats, fmt.Errorf("getting class: %w", err)
	}

	session, err := e.provider.Authenticate(ctx)
	if err != nil {
		return stats, fmt.Errorf("authenticating: %w", err)
	}

	runID := uuid.NewString()
	logger.Info("Starting %s sync run %s for class %s via %s", mode, runID, class.ID, e.provider.Name())

	classStats, err := e.syncClass(ctx, &session, runID, *class, mode)
	stats.Merge(classStats)

	if errors.Is(err, domain.ErrSyncCancelled) {
		return stats, err
	}
	if err != nil {
		if stats.PerClassErrors == nil {
			stats.PerClassErrors = make(map[string]error)
		}
		stats.PerClassErrors[class.ID] = err
		return stats, nil
	}

	if err := e.classStore.TouchSyncedAt(ctx, class.ID, time.Now().UTC()); err != nil {
		logger.Warn("Could not update sync time for class %s: %v", class.ID, err)
	}
	return stats, nil
}

// DiscoverClasses fetches the provider's class list and persists it.
// Saving preserves local activation and sync-time state on classes that
// are already known.
func (e *SyncEngine) DiscoverClasses(ctx context.Context) ([]domain.Class, error) {
	session, err := e.provider.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	classes, err := e.provider.FetchClasses(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("fetching classes: %w", err)
	}

	for _, class := range classes {
		if err := e.classStore.Save(ctx, class); err != nil {
			return nil, fmt.Errorf("saving class %s: %w", class.ID, err)
		}
	}

	logger.Info("Discovered %d class(es) from %s", len(classes), e.provider.Name())
	return classes, nil
}

// syncClass walks one class's paginated progress data. Each page is
// reconciled and committed in its own transaction before the next fetch,
// so an interruption leaves every finished page durably stored.
//
//nolint:gocognit,gocyclo // Page walk orchestration with sequential steps
func (e *SyncEngine) syncClass(ctx context.Context, session *domain.Session, runID string, class domain.Class, mode domain.SyncMode) (domain.SyncStats, error) {
	var stats domain.SyncStats

	// Section labels are enrichment only: a failed structure fetch must
	// not block the progress walk.
	sections, err := e.provider.FetchClassStructure(ctx, *session, class.ID)
	if err != nil {
		logger.Warn("Could not fetch class structure for %s, continuing without sections: %v", class.ID, err)
		sections = nil
	}

	page := 0
	duplicatePages := 0

	for {
		// Cancellation is cooperative at page boundaries; committed
		// pages stay committed.
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %w", domain.ErrSyncCancelled, err)
		}

		if err := e.pacer.Wait(ctx); err != nil {
			return stats, fmt.Errorf("%w: %w", domain.ErrSyncCancelled, err)
		}

		fetched, err := e.fetchPageWithReauth(ctx, session, class.ID, page)
		if err != nil {
			return stats, err
		}

		if len(fetched.Entries) == 0 {
			logger.Debug("Class %s page %d empty, stopping", class.ID, page)
			break
		}

		syncedAt := time.Now().UTC()
		mutation := reconcilePage(class.ID, fetched.Entries, sections, syncedAt)

		allDuplicates := true
		if mode == domain.SyncIncremental {
			for _, entry := range fetched.Entries {
				unchanged, err := e.roster.RecordExistsUnchanged(ctx, entry.ID, entry.CompletedAt)
				if err != nil {
					return stats, fmt.Errorf("checking record %s: %w", entry.ID, err)
				}
				if !unchanged {
					allDuplicates = false
					break
				}
			}
		}

		err = e.roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
			for _, student := range mutation.students {
				if err := batch.UpsertStudent(student); err != nil {
					return err
				}
			}
			for _, assignment := range mutation.assignments {
				if err := batch.UpsertAssignment(assignment); err != nil {
					return err
				}
			}
			for _, record := range mutation.records {
				if err := batch.UpsertProgressRecord(record); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("persisting page %d: %w", page, err)
		}

		// The provenance row is written for every committed page even
		// when a later page fails.
		event := domain.SyncEvent{
			RunID:    runID,
			ClassID:  class.ID,
			Page:     page,
			Records:  len(fetched.Entries),
			SyncedAt: syncedAt,
		}
		if err := e.syncLog.Append(ctx, event); err != nil {
			return stats, fmt.Errorf("recording sync event for page %d: %w", page, err)
		}

		stats.PagesFetched++
		stats.TotalRecords += len(fetched.Entries)
		stats.StudentsUpserted += len(mutation.students)
		stats.AssignmentsUpserted += len(mutation.assignments)
		stats.RecordsUpserted += len(mutation.records)

		e.notifyProgress(class.ID, page, stats.TotalRecords)
		logger.Debug("Class %s page %d committed: %d records", class.ID, page, len(fetched.Entries))

		if mode == domain.SyncIncremental {
			if allDuplicates {
				duplicatePages++
			} else {
				duplicatePages = 0
			}
			// The cutoff is a heuristic, not a guarantee: provider
			// ordering is only roughly newest-first.
			if duplicatePages >= e.maxDuplicatePages {
				logger.Debug("Class %s: %d consecutive duplicate pages, stopping incremental walk", class.ID, duplicatePages)
				break
			}
		}

		if !fetched.CanLoadMore {
			break
		}
		page++
	}

	return stats, nil
}

// fetchPageWithReauth fetches one page, re-authenticating exactly once
// when the session has expired. A second Unauthorized is fatal for the
// class. The renewed session is written back so sibling classes reuse it.
func (e *SyncEngine) fetchPageWithReauth(ctx context.Context, session *domain.Session, classID string, page int) (*domain.ProgressPage, error) {
	fetched, err := e.provider.FetchProgressPage(ctx, *session, classID, page)
	if err == nil {
		return fetched, nil
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}

	logger.Debug("Session expired, re-authenticating")
	renewed, err := e.provider.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-authenticating: %w", err)
	}
	*session = renewed

	fetched, err = e.provider.FetchProgressPage(ctx, *session, classID, page)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d after re-authentication: %w", page, err)
	}
	return fetched, nil
}
