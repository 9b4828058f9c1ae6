package driven

import (
	"context"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// AnalyticsStore runs the aggregate queries behind the dashboard.
// All methods are read-only and safe to call while a sync is running:
// page transactions are atomic, so readers only ever see whole pages.
type AnalyticsStore interface {
	ProgressSummary(ctx context.Context, classID string) (*domain.ProgressSummary, error)
	CompletionMetrics(ctx context.Context, classID string) (*domain.CompletionMetrics, error)
	Blockers(ctx context.Context, classID string, limit int) ([]domain.BlockerAssignment, error)
	StudentHealth(ctx context.Context, classID string) ([]domain.StudentHealth, error)
	ProgressOverTime(ctx context.Context, classID string) ([]domain.WeeklyProgress, error)
	StudentActivity(ctx context.Context, classID string, night *string) ([]domain.StudentActivity, error)
	SectionProgress(ctx context.Context, classID string) ([]domain.SectionProgress, error)
}
