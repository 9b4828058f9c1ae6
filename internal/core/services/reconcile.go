package services

import (
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// pageMutation is the reconciled form of one fetched page: the entities
// to persist, in foreign-key order.
type pageMutation struct {
	students    []domain.Student
	assignments []domain.Assignment
	records     []domain.ProgressRecord
}

// reconcilePage derives storable entities from a page of raw provider
// entries. Pure transformation: no I/O, no store access. Students and
// assignments are deduplicated within the page so each is upserted once;
// sections come from the class structure map when available.
func reconcilePage(classID string, entries []domain.ProgressEntry, sections map[string]string, syncedAt time.Time) pageMutation {
	var m pageMutation
	seenStudents := make(map[string]bool)
	seenAssignments := make(map[string]bool)

	for _, entry := range entries {
		if !seenStudents[entry.Student.ID] {
			seenStudents[entry.Student.ID] = true
			student := entry.Student
			student.ClassID = classID
			m.students = append(m.students, student)
		}

		if !seenAssignments[entry.Assignment.ID] {
			seenAssignments[entry.Assignment.ID] = true
			assignment := entry.Assignment
			assignment.ClassID = classID
			if section, ok := sections[assignment.ID]; ok {
				assignment.Section = &section
			}
			m.assignments = append(m.assignments, assignment)
		}

		m.records = append(m.records, domain.ProgressRecord{
			ID:           entry.ID,
			ClassID:      classID,
			StudentID:    entry.Student.ID,
			AssignmentID: entry.Assignment.ID,
			Grade:        entry.Grade,
			StartedAt:    entry.StartedAt,
			CompletedAt:  entry.CompletedAt,
			ReviewedAt:   entry.ReviewedAt,
			SyncedAt:     syncedAt,
		})
	}

	return m
}
