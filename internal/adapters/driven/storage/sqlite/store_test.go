package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "cohort-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestClass creates a class to satisfy foreign key constraints.
func createTestClass(t *testing.T, store *Store, classID string) {
	t.Helper()
	err := store.ClassStore().Save(context.Background(), domain.Class{
		ID:         classID,
		Name:       "Class " + classID,
		FriendlyID: "friendly-" + classID,
		Active:     true,
	})
	require.NoError(t, err)
}

// seedRosterPage writes one student, one assignment and one record in a
// single page transaction.
func seedRosterPage(t *testing.T, store *Store, classID, studentID, assignmentID, recordID string, completedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	err := store.RosterStore().ApplyPage(ctx, func(batch driven.RosterBatch) error {
		if err := batch.UpsertStudent(domain.Student{
			ID:        studentID,
			ClassID:   classID,
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     studentID + "@example.com",
		}); err != nil {
			return err
		}
		if err := batch.UpsertAssignment(domain.Assignment{
			ID:      assignmentID,
			ClassID: classID,
			Name:    "Assignment " + assignmentID,
			Type:    domain.AssignmentLesson,
		}); err != nil {
			return err
		}
		grade := 0.9
		return batch.UpsertProgressRecord(domain.ProgressRecord{
			ID:           recordID,
			ClassID:      classID,
			StudentID:    studentID,
			AssignmentID: assignmentID,
			Grade:        &grade,
			StartedAt:    completedAt.Add(-time.Hour),
			CompletedAt:  completedAt,
			SyncedAt:     time.Now().UTC(),
		})
	})
	require.NoError(t, err)
}

// ==================== Store Creation Tests ====================

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "cohort-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "cohort.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	assert.NoError(t, store.db.Ping())
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Greater(t, count, 0, "should have at least one migration")

	tables := []string{
		"classes",
		"students",
		"assignments",
		"progressions",
		"sync_history",
	}
	for _, table := range tables {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "cohort-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()
}

// ==================== Class Store Tests ====================

func TestClassStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	classes := store.ClassStore()
	err := classes.Save(ctx, domain.Class{
		ID:         "class-1",
		Name:       "Autumn Cohort",
		FriendlyID: "autumn-2026",
		Active:     true,
	})
	require.NoError(t, err)

	got, err := classes.Get(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Autumn Cohort", got.Name)
	assert.Equal(t, "autumn-2026", got.FriendlyID)
	assert.True(t, got.Active)
	assert.Nil(t, got.SyncedAt)

	byFriendly, err := classes.GetByFriendlyID(ctx, "autumn-2026")
	require.NoError(t, err)
	assert.Equal(t, "class-1", byFriendly.ID)
}

func TestClassStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ClassStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassStore_SavePreservesLocalState(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	classes := store.ClassStore()
	require.NoError(t, classes.Save(ctx, domain.Class{ID: "class-1", Name: "Old Name", FriendlyID: "c1"}))
	require.NoError(t, classes.SetActive(ctx, "class-1", true))
	require.NoError(t, classes.TouchSyncedAt(ctx, "class-1", time.Now()))

	// Re-discovery refreshes the name but must not reset activation or
	// the last sync time.
	require.NoError(t, classes.Save(ctx, domain.Class{ID: "class-1", Name: "New Name", FriendlyID: "c1"}))

	got, err := classes.Get(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.True(t, got.Active)
	assert.NotNil(t, got.SyncedAt)
}

func TestClassStore_SetActive_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.ClassStore().SetActive(context.Background(), "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassStore_ListActive(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	classes := store.ClassStore()
	require.NoError(t, classes.Save(ctx, domain.Class{ID: "a", Name: "Active", FriendlyID: "fa", Active: true}))
	require.NoError(t, classes.Save(ctx, domain.Class{ID: "b", Name: "Dormant", FriendlyID: "fb", Active: false}))

	all, err := classes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := classes.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

// ==================== Roster Store Tests ====================

func TestRosterStore_ApplyPage(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	roster := store.RosterStore()
	students, err := roster.StudentCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), students)

	assignments, err := roster.AssignmentCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), assignments)

	records, err := roster.ProgressRecordCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), records)
}

func TestRosterStore_ApplyPage_Idempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	completedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Applying the same page twice must leave counts unchanged.
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", completedAt)
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", completedAt)

	roster := store.RosterStore()
	records, err := roster.ProgressRecordCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), records)

	students, err := roster.StudentCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), students)
}

func TestRosterStore_ApplyPage_RollsBackOnError(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	roster := store.RosterStore()

	err := roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
		require.NoError(t, batch.UpsertStudent(domain.Student{
			ID: "stu-1", ClassID: "class-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		}))
		// Record referencing a missing assignment violates the FK and
		// must abort the whole page.
		return batch.UpsertProgressRecord(domain.ProgressRecord{
			ID: "rec-1", ClassID: "class-1", StudentID: "stu-1", AssignmentID: "missing",
			StartedAt: time.Now(), CompletedAt: time.Now(), SyncedAt: time.Now(),
		})
	})
	require.Error(t, err)

	students, err := roster.StudentCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), students, "partial page must not persist")
}

func TestRosterStore_UpsertStudent_PreservesGroupings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	roster := store.RosterStore()

	night := "Tuesday"
	err := roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
		return batch.UpsertStudent(domain.Student{
			ID: "stu-1", ClassID: "class-1", FirstName: "Ada", LastName: "Lovelace",
			Email: "ada@example.com", Night: &night,
		})
	})
	require.NoError(t, err)

	// A later sync carries no night. The stored value must survive.
	err = roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
		return batch.UpsertStudent(domain.Student{
			ID: "stu-1", ClassID: "class-1", FirstName: "Ada", LastName: "King",
			Email: "ada@example.com",
		})
	})
	require.NoError(t, err)

	students, err := roster.ListStudents(ctx, "class-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "King", students[0].LastName)
	require.NotNil(t, students[0].Night)
	assert.Equal(t, "Tuesday", *students[0].Night)
}

func TestRosterStore_UpsertAssignment_KeepsSection(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	roster := store.RosterStore()

	section := "Unit 1"
	err := roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
		return batch.UpsertAssignment(domain.Assignment{
			ID: "asn-1", ClassID: "class-1", Name: "Intro", Type: domain.AssignmentLesson, Section: &section,
		})
	})
	require.NoError(t, err)

	// A sync where the structure fetch failed sends a nil section; the
	// stored label must not be cleared.
	err = roster.ApplyPage(ctx, func(batch driven.RosterBatch) error {
		return batch.UpsertAssignment(domain.Assignment{
			ID: "asn-1", ClassID: "class-1", Name: "Intro", Type: domain.AssignmentLesson,
		})
	})
	require.NoError(t, err)

	assignments, err := roster.ListAssignments(ctx, "class-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].Section)
	assert.Equal(t, "Unit 1", *assignments[0].Section)
}

func TestRosterStore_RecordExistsUnchanged(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	completedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", completedAt)

	roster := store.RosterStore()

	exists, err := roster.RecordExistsUnchanged(ctx, "rec-1", completedAt)
	require.NoError(t, err)
	assert.True(t, exists)

	// Same ID, different completion time: the record changed upstream.
	exists, err = roster.RecordExistsUnchanged(ctx, "rec-1", completedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = roster.RecordExistsUnchanged(ctx, "unknown", completedAt)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRosterStore_ListProgressRecords(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", older)
	seedRosterPage(t, store, "class-1", "stu-2", "asn-2", "rec-2", newer)

	records, err := store.RosterStore().ListProgressRecords(ctx, "class-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec-2", records[0].ID, "newest completion first")
	assert.Equal(t, "rec-1", records[1].ID)
	require.NotNil(t, records[0].Grade)
	assert.InDelta(t, 0.9, *records[0].Grade, 0.0001)
}

func TestRosterStore_CountScoping(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	createTestClass(t, store, "class-2")
	seedRosterPage(t, store, "class-1", "stu-1", "asn-1", "rec-1", time.Now().UTC())
	seedRosterPage(t, store, "class-2", "stu-2", "asn-2", "rec-2", time.Now().UTC())

	roster := store.RosterStore()

	scoped, err := roster.StudentCount(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), scoped)

	all, err := roster.StudentCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)
}

// ==================== Sync Log Store Tests ====================

func TestSyncLogStore_AppendAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	syncLog := store.SyncLogStore()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for page := 0; page < 3; page++ {
		err := syncLog.Append(ctx, domain.SyncEvent{
			RunID:    "run-1",
			ClassID:  "class-1",
			Page:     page,
			Records:  30,
			SyncedAt: base.Add(time.Duration(page) * time.Second),
		})
		require.NoError(t, err)
	}

	events, err := syncLog.ListEvents(ctx, "class-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Page, "newest event first")
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, 30, events[0].Records)
}

func TestSyncLogStore_LastSyncTime(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestClass(t, store, "class-1")
	createTestClass(t, store, "class-2")
	syncLog := store.SyncLogStore()

	// Empty history has no last sync time.
	last, err := syncLog.LastSyncTime(ctx, "class-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	any, err := syncLog.LastSyncTimeAny(ctx)
	require.NoError(t, err)
	assert.Nil(t, any)

	earlier := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	require.NoError(t, syncLog.Append(ctx, domain.SyncEvent{RunID: "r1", ClassID: "class-1", Page: 0, Records: 5, SyncedAt: earlier}))
	require.NoError(t, syncLog.Append(ctx, domain.SyncEvent{RunID: "r2", ClassID: "class-2", Page: 0, Records: 5, SyncedAt: later}))

	last, err = syncLog.LastSyncTime(ctx, "class-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(earlier))

	any, err = syncLog.LastSyncTimeAny(ctx)
	require.NoError(t, err)
	require.NotNil(t, any)
	assert.True(t, any.Equal(later))
}
