package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-tools/cohort-tracker/internal/adapters/driven/storage/sqlite"
	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

func setupReports(t *testing.T, provider *mockProvider) (*ReportService, *SyncEngine, *sqlite.Store, func()) {
	t.Helper()
	engine, store, cleanup := setupEngine(t, provider)
	reports := NewReportService(store.RosterStore(), store.SyncLogStore(), store.AnalyticsStore())
	return reports, engine, store, cleanup
}

func TestReportService_Health_EmptyStore(t *testing.T) {
	reports, _, _, cleanup := setupReports(t, &mockProvider{})
	defer cleanup()

	health, err := reports.Health(context.Background(), "")
	require.NoError(t, err)

	assert.Zero(t, health.Students)
	assert.Zero(t, health.Assignments)
	assert.Zero(t, health.ProgressCount)
	assert.Nil(t, health.LastSync)
}

func TestReportService_Health_AfterSync(t *testing.T) {
	completedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &mockProvider{
		pages: map[string][]*domain.ProgressPage{
			"class-a": {
				{
					Entries: []domain.ProgressEntry{
						makeEntry("rec-1", "stu-1", "asn-1", completedAt),
						makeEntry("rec-2", "stu-2", "asn-1", completedAt.Add(time.Hour)),
					},
				},
			},
		},
	}

	reports, engine, store, cleanup := setupReports(t, provider)
	defer cleanup()

	ctx := context.Background()
	saveActiveClass(t, store, "class-a")

	_, err := engine.Run(ctx, domain.SyncFull)
	require.NoError(t, err)

	health, err := reports.Health(ctx, "class-a")
	require.NoError(t, err)

	assert.EqualValues(t, 2, health.Students)
	assert.EqualValues(t, 1, health.Assignments)
	assert.EqualValues(t, 2, health.ProgressCount)
	require.NotNil(t, health.LastSync)
	assert.WithinDuration(t, time.Now(), *health.LastSync, time.Minute)

	// An unsynced class reports empty, not the other class's data.
	saveActiveClass(t, store, "class-b")
	other, err := reports.Health(ctx, "class-b")
	require.NoError(t, err)
	assert.Zero(t, other.ProgressCount)
	assert.Nil(t, other.LastSync)

	// The unscoped view spans all classes.
	all, err := reports.Health(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.ProgressCount)
	require.NotNil(t, all.LastSync)
}

func TestReportService_Blockers_DefaultLimit(t *testing.T) {
	reports, _, store, cleanup := setupReports(t, &mockProvider{})
	defer cleanup()

	ctx := context.Background()
	saveActiveClass(t, store, "class-a")

	// A non-positive limit falls back to the default instead of
	// returning nothing.
	blockers, err := reports.Blockers(ctx, "class-a", 0)
	require.NoError(t, err)
	assert.Empty(t, blockers)
}
