package driving

import (
	"context"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// Health summarises the local database for the status command and the
// health endpoint.
type Health struct {
	Students      int64      `json:"students"`
	Assignments   int64      `json:"assignments"`
	ProgressCount int64      `json:"progressions"`
	LastSync      *time.Time `json:"last_sync"`
}

// Reports serves aggregate analytics to the CLI and dashboard.
type Reports interface {
	Health(ctx context.Context, classID string) (*Health, error)
	Summary(ctx context.Context, classID string) (*domain.ProgressSummary, error)
	Completion(ctx context.Context, classID string) (*domain.CompletionMetrics, error)
	Blockers(ctx context.Context, classID string, limit int) ([]domain.BlockerAssignment, error)
	StudentHealth(ctx context.Context, classID string) ([]domain.StudentHealth, error)
	ProgressOverTime(ctx context.Context, classID string) ([]domain.WeeklyProgress, error)
	StudentActivity(ctx context.Context, classID string, night *string) ([]domain.StudentActivity, error)
	SectionProgress(ctx context.Context, classID string) ([]domain.SectionProgress, error)
}
