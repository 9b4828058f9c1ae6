package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
)

// analyticsStore runs the aggregate dashboard queries. Every method is
// read-only, so they are safe to call while a sync run is writing.
type analyticsStore struct {
	store *Store
}

var _ driven.AnalyticsStore = (*analyticsStore)(nil)

// ProgressSummary returns the headline numbers for one class.
func (s *analyticsStore) ProgressSummary(ctx context.Context, classID string) (*domain.ProgressSummary, error) {
	roster := &rosterStore{store: s.store}

	students, err := roster.StudentCount(ctx, classID)
	if err != nil {
		return nil, err
	}
	assignments, err := roster.AssignmentCount(ctx, classID)
	if err != nil {
		return nil, err
	}
	records, err := roster.ProgressRecordCount(ctx, classID)
	if err != nil {
		return nil, err
	}

	var avgGrade sql.NullFloat64
	err = s.store.db.QueryRowContext(ctx, `
		SELECT AVG(grade) FROM progressions WHERE grade IS NOT NULL AND class_id = ?
	`, classID).Scan(&avgGrade)
	if err != nil {
		return nil, fmt.Errorf("querying average grade: %w", err)
	}

	summary := &domain.ProgressSummary{
		TotalStudents:    students,
		TotalAssignments: assignments,
		TotalRecords:     records,
	}
	if avgGrade.Valid {
		g := avgGrade.Float64
		summary.AvgGrade = &g
	}
	if expected := students * assignments; expected > 0 {
		summary.CompletionRate = float64(records) / float64(expected)
	}
	return summary, nil
}

// CompletionMetrics ranks a class's assignments by completion count.
func (s *analyticsStore) CompletionMetrics(ctx context.Context, classID string) (*domain.CompletionMetrics, error) {
	roster := &rosterStore{store: s.store}

	students, err := roster.StudentCount(ctx, classID)
	if err != nil {
		return nil, err
	}
	assignments, err := roster.AssignmentCount(ctx, classID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.type,
		       COUNT(p.id) AS completions,
		       AVG(p.grade) AS avg_grade
		FROM assignments a
		LEFT JOIN progressions p ON a.id = p.assignment_id AND a.class_id = p.class_id
		WHERE a.class_id = ?
		GROUP BY a.id, a.name, a.type
		ORDER BY completions DESC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying completion metrics: %w", err)
	}
	defer rows.Close()

	metrics := &domain.CompletionMetrics{TotalAssignments: assignments}
	var totalCompletions int64

	for rows.Next() {
		var ac domain.AssignmentCompletion
		var avgGrade sql.NullFloat64
		if err := rows.Scan(&ac.AssignmentID, &ac.Name, &ac.Type, &ac.Completions, &avgGrade); err != nil {
			return nil, fmt.Errorf("scanning completion metrics: %w", err)
		}
		if avgGrade.Valid {
			g := avgGrade.Float64
			ac.AvgGrade = &g
		}
		if students > 0 {
			ac.CompletionRate = float64(ac.Completions) / float64(students)
		}
		if ac.Completions == 0 {
			metrics.ZeroCompletionCount++
		}
		totalCompletions += ac.Completions
		metrics.Assignments = append(metrics.Assignments, ac)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completion metrics: %w", err)
	}

	if assignments > 0 {
		metrics.AvgStudentsPerAssignment = float64(totalCompletions) / float64(assignments)
	}
	return metrics, nil
}

// Blockers returns the assignments with the fewest completions, the
// likely difficulty spikes in the course material.
func (s *analyticsStore) Blockers(ctx context.Context, classID string, limit int) ([]domain.BlockerAssignment, error) {
	roster := &rosterStore{store: s.store}
	students, err := roster.StudentCount(ctx, classID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.section,
		       COUNT(p.id) AS completions,
		       AVG(p.grade) AS avg_grade
		FROM assignments a
		LEFT JOIN progressions p ON a.id = p.assignment_id AND a.class_id = p.class_id
		WHERE a.class_id = ?
		GROUP BY a.id, a.name, a.section
		ORDER BY completions ASC, avg_grade ASC
		LIMIT ?
	`, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying blockers: %w", err)
	}
	defer rows.Close()

	var blockers []domain.BlockerAssignment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var b domain.BlockerAssignment
		var section sql.NullString
		var avgGrade sql.NullFloat64
		if err := rows.Scan(&b.AssignmentID, &b.Name, &section, &b.Completions, &avgGrade); err != nil {
			return nil, fmt.Errorf("scanning blocker: %w", err)
		}
		b.Section = nullStringPtr(section)
		if avgGrade.Valid {
			g := avgGrade.Float64
			b.AvgGrade = &g
		}
		b.TotalStudents = students
		if students > 0 {
			b.CompletionRate = float64(b.Completions) / float64(students)
		}
		blockers = append(blockers, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blockers: %w", err)
	}
	return blockers, nil
}

// StudentHealth scores every student in a class, most at-risk first.
func (s *analyticsStore) StudentHealth(ctx context.Context, classID string) ([]domain.StudentHealth, error) {
	roster := &rosterStore{store: s.store}
	assignments, err := roster.AssignmentCount(ctx, classID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT s.id, s.first_name, s.last_name, s.email,
		       COUNT(p.id) AS completed,
		       AVG(p.grade) AS avg_grade
		FROM students s
		LEFT JOIN progressions p ON s.id = p.student_id AND s.class_id = p.class_id
		WHERE s.class_id = ?
		GROUP BY s.id, s.first_name, s.last_name, s.email
		ORDER BY completed ASC, avg_grade ASC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying student health: %w", err)
	}
	defer rows.Close()

	var students []domain.StudentHealth //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sh domain.StudentHealth
		var avgGrade sql.NullFloat64
		if err := rows.Scan(&sh.StudentID, &sh.FirstName, &sh.LastName, &sh.Email, &sh.Completed, &avgGrade); err != nil {
			return nil, fmt.Errorf("scanning student health: %w", err)
		}
		if avgGrade.Valid {
			g := avgGrade.Float64
			sh.AvgGrade = &g
		}
		sh.TotalAssignments = assignments
		if assignments > 0 {
			sh.CompletionPct = float64(sh.Completed) / float64(assignments)
		}
		sh.Risk = domain.RiskFor(sh.CompletionPct)
		students = append(students, sh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating student health: %w", err)
	}
	return students, nil
}

// ProgressOverTime returns the weekly completion time series for a class.
func (s *analyticsStore) ProgressOverTime(ctx context.Context, classID string) ([]domain.WeeklyProgress, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT strftime('%Y-%W', completed_at) AS week,
		       COUNT(*) AS completed
		FROM progressions
		WHERE completed_at IS NOT NULL AND completed_at != '' AND class_id = ?
		GROUP BY week
		ORDER BY week ASC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying weekly progress: %w", err)
	}
	defer rows.Close()

	var weekly []domain.WeeklyProgress //nolint:prealloc // size unknown from query
	var cumulative int64
	for rows.Next() {
		var wp domain.WeeklyProgress
		if err := rows.Scan(&wp.Week, &wp.Completed); err != nil {
			return nil, fmt.Errorf("scanning weekly progress: %w", err)
		}
		cumulative += wp.Completed
		wp.Cumulative = cumulative
		weekly = append(weekly, wp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weekly progress: %w", err)
	}
	return weekly, nil
}

// StudentActivity reports engagement recency per student, least recent
// first. A non-nil night restricts the view to one cohort evening.
func (s *analyticsStore) StudentActivity(ctx context.Context, classID string, night *string) ([]domain.StudentActivity, error) {
	roster := &rosterStore{store: s.store}
	assignments, err := roster.AssignmentCount(ctx, classID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, s.first_name, s.last_name, s.email, s.night,
		       MAX(p.completed_at) AS last_activity,
		       COUNT(p.id) AS total_completions
		FROM students s
		LEFT JOIN progressions p ON s.id = p.student_id AND s.class_id = p.class_id
		WHERE s.class_id = ?`
	args := []any{classID}
	if night != nil {
		query += " AND LOWER(s.night) = LOWER(?)"
		args = append(args, *night)
	}
	query += `
		GROUP BY s.id, s.first_name, s.last_name, s.email, s.night
		ORDER BY last_activity ASC NULLS FIRST`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying student activity: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var activities []domain.StudentActivity //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sa domain.StudentActivity
		var nightCol, lastActivity sql.NullString
		if err := rows.Scan(&sa.StudentID, &sa.FirstName, &sa.LastName, &sa.Email,
			&nightCol, &lastActivity, &sa.TotalCompletions); err != nil {
			return nil, fmt.Errorf("scanning student activity: %w", err)
		}
		sa.Night = nullStringPtr(nightCol)
		sa.TotalAssignments = assignments
		if lastActivity.Valid {
			v := lastActivity.String
			sa.LastActivity = &v
			if t, err := parseStoredTime(v); err == nil {
				days := int64(now.Sub(t).Hours() / 24)
				sa.DaysInactive = &days
			}
		}
		activities = append(activities, sa)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating student activity: %w", err)
	}
	return activities, nil
}

// SectionProgress reports how far the class has moved through each
// course section. A student counts as completed on a grade of 0.7 or
// better on at least one assignment in the section.
func (s *analyticsStore) SectionProgress(ctx context.Context, classID string) ([]domain.SectionProgress, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT a.section,
		       COUNT(DISTINCT s.id) AS total_students,
		       COUNT(DISTINCT CASE WHEN p.id IS NOT NULL THEN s.id END) AS students_started,
		       COUNT(DISTINCT CASE WHEN p.id IS NOT NULL AND p.grade >= 0.7 THEN s.id END) AS students_completed
		FROM assignments a
		CROSS JOIN students s
		LEFT JOIN progressions p ON p.assignment_id = a.id AND p.student_id = s.id AND p.class_id = a.class_id
		WHERE a.class_id = ? AND s.class_id = ? AND a.section IS NOT NULL AND a.section != ''
		GROUP BY a.section
		ORDER BY a.section
	`, classID, classID)
	if err != nil {
		return nil, fmt.Errorf("querying section progress: %w", err)
	}
	defer rows.Close()

	var sections []domain.SectionProgress //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sp domain.SectionProgress
		if err := rows.Scan(&sp.Section, &sp.TotalStudents, &sp.StudentsStarted, &sp.StudentsCompleted); err != nil {
			return nil, fmt.Errorf("scanning section progress: %w", err)
		}
		sections = append(sections, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating section progress: %w", err)
	}
	return sections, nil
}

// parseStoredTime reads a timestamp the way the driver stored it.
func parseStoredTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}
