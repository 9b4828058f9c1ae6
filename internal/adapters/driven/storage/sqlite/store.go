// Package sqlite implements the store ports on a single SQLite database.
//
// All durable state lives here: classes, students, assignments, progress
// records and the append-only sync history. The database runs in WAL
// mode so the dashboard can read while a sync writes; page transactions
// are atomic, so readers only ever see whole committed pages.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cohort-tools/cohort-tracker/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to all
// store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.cohort-tracker/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".cohort-tracker", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cohort.db")

	// WAL mode lets the dashboard read while a sync run writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ClassStore returns a ClassStore interface backed by this store.
func (s *Store) ClassStore() driven.ClassStore {
	return &classStore{store: s}
}

// RosterStore returns a RosterStore interface backed by this store.
func (s *Store) RosterStore() driven.RosterStore {
	return &rosterStore{store: s}
}

// SyncLogStore returns a SyncLogStore interface backed by this store.
func (s *Store) SyncLogStore() driven.SyncLogStore {
	return &syncLogStore{store: s}
}

// AnalyticsStore returns an AnalyticsStore interface backed by this store.
func (s *Store) AnalyticsStore() driven.AnalyticsStore {
	return &analyticsStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Class Store ====================

type classStore struct {
	store *Store
}

var _ driven.ClassStore = (*classStore)(nil)

// Save stores or updates a class. Activation and sync-time flags are
// local state, never overwritten by re-discovery.
func (s *classStore) Save(ctx context.Context, class domain.Class) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, friendly_id, is_active, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			friendly_id = excluded.friendly_id
	`, class.ID, class.Name, class.FriendlyID, class.Active, nullTime(class.SyncedAt))
	if err != nil {
		return fmt.Errorf("saving class: %w", err)
	}
	return nil
}

// Get retrieves a class by provider ID.
func (s *classStore) Get(ctx context.Context, id string) (*domain.Class, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, friendly_id, is_active, synced_at
		FROM classes WHERE id = ?
	`, id)
	return scanClass(row)
}

// GetByFriendlyID retrieves a class by its human-readable handle.
func (s *classStore) GetByFriendlyID(ctx context.Context, friendlyID string) (*domain.Class, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, friendly_id, is_active, synced_at
		FROM classes WHERE friendly_id = ?
	`, friendlyID)
	return scanClass(row)
}

// List returns all known classes.
func (s *classStore) List(ctx context.Context) ([]domain.Class, error) {
	return s.list(ctx, `
		SELECT id, name, friendly_id, is_active, synced_at
		FROM classes ORDER BY name
	`)
}

// ListActive returns the classes included in sync runs.
func (s *classStore) ListActive(ctx context.Context) ([]domain.Class, error) {
	return s.list(ctx, `
		SELECT id, name, friendly_id, is_active, synced_at
		FROM classes WHERE is_active = 1 ORDER BY name
	`)
}

func (s *classStore) list(ctx context.Context, query string) ([]domain.Class, error) {
	rows, err := s.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var classes []domain.Class //nolint:prealloc // size unknown from query
	for rows.Next() {
		var class domain.Class
		var syncedAt sql.NullTime
		if err := rows.Scan(&class.ID, &class.Name, &class.FriendlyID, &class.Active, &syncedAt); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		if syncedAt.Valid {
			t := syncedAt.Time
			class.SyncedAt = &t
		}
		classes = append(classes, class)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating classes: %w", err)
	}
	return classes, nil
}

// SetActive toggles a class's activation flag.
func (s *classStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.store.db.ExecContext(ctx, "UPDATE classes SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("setting class active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking class update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TouchSyncedAt records the completion time of a successful sync.
func (s *classStore) TouchSyncedAt(ctx context.Context, id string, at time.Time) error {
	_, err := s.store.db.ExecContext(ctx, "UPDATE classes SET synced_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating class sync time: %w", err)
	}
	return nil
}

func scanClass(row *sql.Row) (*domain.Class, error) {
	var class domain.Class
	var syncedAt sql.NullTime
	if err := row.Scan(&class.ID, &class.Name, &class.FriendlyID, &class.Active, &syncedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning class: %w", err)
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		class.SyncedAt = &t
	}
	return &class, nil
}

// ==================== Roster Store ====================

type rosterStore struct {
	store *Store
}

var _ driven.RosterStore = (*rosterStore)(nil)

// rosterBatch implements driven.RosterBatch on one open transaction.
type rosterBatch struct {
	ctx context.Context
	tx  *sql.Tx
}

// ApplyPage runs fn inside one transaction.
func (s *rosterStore) ApplyPage(ctx context.Context, fn func(batch driven.RosterBatch) error) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&rosterBatch{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertStudent inserts or refreshes a student. Region and night are
// operator-supplied and survive provider refreshes.
func (b *rosterBatch) UpsertStudent(student domain.Student) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO students (id, class_id, first_name, last_name, email, region, night)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, class_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email
	`, student.ID, student.ClassID, student.FirstName, student.LastName, student.Email,
		student.Region, student.Night)
	if err != nil {
		return fmt.Errorf("upserting student %s: %w", student.ID, err)
	}
	return nil
}

// UpsertAssignment inserts or refreshes an assignment. A nil section
// never clears a previously known section label.
func (b *rosterBatch) UpsertAssignment(assignment domain.Assignment) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO assignments (id, class_id, name, type, section)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, class_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			section = COALESCE(excluded.section, section)
	`, assignment.ID, assignment.ClassID, assignment.Name, string(assignment.Type), assignment.Section)
	if err != nil {
		return fmt.Errorf("upserting assignment %s: %w", assignment.ID, err)
	}
	return nil
}

// UpsertProgressRecord inserts or overwrites a progress record keyed by
// the provider record ID.
func (b *rosterBatch) UpsertProgressRecord(record domain.ProgressRecord) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO progressions
			(id, class_id, student_id, assignment_id, grade, started_at, completed_at, reviewed_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			class_id = excluded.class_id,
			student_id = excluded.student_id,
			assignment_id = excluded.assignment_id,
			grade = excluded.grade,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			reviewed_at = excluded.reviewed_at,
			synced_at = excluded.synced_at
	`, record.ID, record.ClassID, record.StudentID, record.AssignmentID, record.Grade,
		record.StartedAt.UTC(), record.CompletedAt.UTC(), nullTime(record.ReviewedAt), record.SyncedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting progress record %s: %w", record.ID, err)
	}
	return nil
}

// RecordExistsUnchanged reports whether a record is already stored with
// an identical completed-at timestamp.
func (s *rosterStore) RecordExistsUnchanged(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM progressions WHERE id = ? AND completed_at = ?
	`, id, completedAt.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking record: %w", err)
	}
	return count > 0, nil
}

// StudentCount returns the number of students, scoped to a class when
// classID is non-empty.
func (s *rosterStore) StudentCount(ctx context.Context, classID string) (int64, error) {
	return s.count(ctx, "students", classID)
}

// AssignmentCount returns the number of assignments.
func (s *rosterStore) AssignmentCount(ctx context.Context, classID string) (int64, error) {
	return s.count(ctx, "assignments", classID)
}

// ProgressRecordCount returns the number of progress records.
func (s *rosterStore) ProgressRecordCount(ctx context.Context, classID string) (int64, error) {
	return s.count(ctx, "progressions", classID)
}

func (s *rosterStore) count(ctx context.Context, table, classID string) (int64, error) {
	query := "SELECT COUNT(*) FROM " + table
	args := []any{}
	if classID != "" {
		query += " WHERE class_id = ?"
		args = append(args, classID)
	}

	var count int64
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return count, nil
}

// ListStudents returns a class's students ordered by name.
func (s *rosterStore) ListStudents(ctx context.Context, classID string) ([]domain.Student, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, class_id, first_name, last_name, email, region, night
		FROM students WHERE class_id = ?
		ORDER BY last_name, first_name
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var students []domain.Student //nolint:prealloc // size unknown from query
	for rows.Next() {
		var st domain.Student
		var region, night sql.NullString
		if err := rows.Scan(&st.ID, &st.ClassID, &st.FirstName, &st.LastName, &st.Email, &region, &night); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		st.Region = nullStringPtr(region)
		st.Night = nullStringPtr(night)
		students = append(students, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating students: %w", err)
	}
	return students, nil
}

// ListAssignments returns a class's assignments ordered by section.
func (s *rosterStore) ListAssignments(ctx context.Context, classID string) ([]domain.Assignment, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, class_id, name, type, section
		FROM assignments WHERE class_id = ?
		ORDER BY section, name
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.Assignment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a domain.Assignment
		var typ string
		var section sql.NullString
		if err := rows.Scan(&a.ID, &a.ClassID, &a.Name, &typ, &section); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		a.Type = domain.AssignmentType(typ)
		a.Section = nullStringPtr(section)
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return assignments, nil
}

// ListProgressRecords returns a class's records, newest completion first.
func (s *rosterStore) ListProgressRecords(ctx context.Context, classID string) ([]domain.ProgressRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, class_id, student_id, assignment_id, grade, started_at, completed_at, reviewed_at, synced_at
		FROM progressions WHERE class_id = ?
		ORDER BY completed_at DESC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying progress records: %w", err)
	}
	defer rows.Close()

	var records []domain.ProgressRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.ProgressRecord
		var grade sql.NullFloat64
		var reviewedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.AssignmentID, &grade,
			&rec.StartedAt, &rec.CompletedAt, &reviewedAt, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning progress record: %w", err)
		}
		if grade.Valid {
			g := grade.Float64
			rec.Grade = &g
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			rec.ReviewedAt = &t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating progress records: %w", err)
	}
	return records, nil
}

// ==================== Sync Log Store ====================

type syncLogStore struct {
	store *Store
}

var _ driven.SyncLogStore = (*syncLogStore)(nil)

// Append writes one provenance event.
func (s *syncLogStore) Append(ctx context.Context, event domain.SyncEvent) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_history (run_id, class_id, page, records, synced_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.RunID, event.ClassID, event.Page, event.Records, event.SyncedAt.UTC())
	if err != nil {
		return fmt.Errorf("appending sync event: %w", err)
	}
	return nil
}

// LastSyncTime returns the most recent event time for a class.
func (s *syncLogStore) LastSyncTime(ctx context.Context, classID string) (*time.Time, error) {
	return s.lastSync(ctx, "SELECT MAX(synced_at) FROM sync_history WHERE class_id = ?", classID)
}

// LastSyncTimeAny returns the most recent event time across all classes.
func (s *syncLogStore) LastSyncTimeAny(ctx context.Context) (*time.Time, error) {
	return s.lastSync(ctx, "SELECT MAX(synced_at) FROM sync_history")
}

func (s *syncLogStore) lastSync(ctx context.Context, query string, args ...any) (*time.Time, error) {
	var at sql.NullTime
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&at); err != nil {
		return nil, fmt.Errorf("querying last sync time: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	t := at.Time
	return &t, nil
}

// ListEvents returns a class's events, newest first.
func (s *syncLogStore) ListEvents(ctx context.Context, classID string) ([]domain.SyncEvent, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, class_id, page, records, synced_at
		FROM sync_history WHERE class_id = ?
		ORDER BY id DESC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying sync events: %w", err)
	}
	defer rows.Close()

	var events []domain.SyncEvent //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.SyncEvent
		if err := rows.Scan(&e.RunID, &e.ClassID, &e.Page, &e.Records, &e.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning sync event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync events: %w", err)
	}
	return events, nil
}

// ==================== Helper Functions ====================

// nullTime converts an optional time to UTC for storage.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullStringPtr converts a nullable column to an optional string.
func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
