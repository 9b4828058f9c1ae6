package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
)

// Ensure ReportService implements the interface.
var _ driving.Reports = (*ReportService)(nil)

// ReportService serves aggregate analytics from the local store. It is
// read-only and safe to use while a sync run is writing.
type ReportService struct {
	roster    driven.RosterStore
	syncLog   driven.SyncLogStore
	analytics driven.AnalyticsStore
}

// NewReportService creates a new report service.
func NewReportService(roster driven.RosterStore, syncLog driven.SyncLogStore, analytics driven.AnalyticsStore) *ReportService {
	return &ReportService{
		roster:    roster,
		syncLog:   syncLog,
		analytics: analytics,
	}
}

// Health summarises the local database. An empty classID reports across
// all classes.
func (s *ReportService) Health(ctx context.Context, classID string) (*driving.Health, error) {
	students, err := s.roster.StudentCount(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("counting students: %w", err)
	}
	assignments, err := s.roster.AssignmentCount(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("counting assignments: %w", err)
	}
	records, err := s.roster.ProgressRecordCount(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("counting progress records: %w", err)
	}

	var at *time.Time
	if classID == "" {
		at, err = s.syncLog.LastSyncTimeAny(ctx)
	} else {
		at, err = s.syncLog.LastSyncTime(ctx, classID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting last sync time: %w", err)
	}

	return &driving.Health{
		Students:      students,
		Assignments:   assignments,
		ProgressCount: records,
		LastSync:      at,
	}, nil
}

// Summary returns the headline numbers for one class.
func (s *ReportService) Summary(ctx context.Context, classID string) (*domain.ProgressSummary, error) {
	return s.analytics.ProgressSummary(ctx, classID)
}

// Completion ranks a class's assignments by completion.
func (s *ReportService) Completion(ctx context.Context, classID string) (*domain.CompletionMetrics, error) {
	return s.analytics.CompletionMetrics(ctx, classID)
}

// Blockers returns the hardest assignments, lowest completion first.
func (s *ReportService) Blockers(ctx context.Context, classID string, limit int) ([]domain.BlockerAssignment, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.analytics.Blockers(ctx, classID, limit)
}

// StudentHealth scores every student, most at-risk first.
func (s *ReportService) StudentHealth(ctx context.Context, classID string) ([]domain.StudentHealth, error) {
	return s.analytics.StudentHealth(ctx, classID)
}

// ProgressOverTime returns the weekly completion time series.
func (s *ReportService) ProgressOverTime(ctx context.Context, classID string) ([]domain.WeeklyProgress, error) {
	return s.analytics.ProgressOverTime(ctx, classID)
}

// StudentActivity reports engagement recency, optionally filtered to
// one cohort night.
func (s *ReportService) StudentActivity(ctx context.Context, classID string, night *string) ([]domain.StudentActivity, error) {
	return s.analytics.StudentActivity(ctx, classID, night)
}

// SectionProgress reports per-section class advancement.
func (s *ReportService) SectionProgress(ctx context.Context, classID string) ([]domain.SectionProgress, error) {
	return s.analytics.SectionProgress(ctx, classID)
}
