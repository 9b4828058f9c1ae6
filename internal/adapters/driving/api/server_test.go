package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-tools/cohort-tracker/internal/adapters/driven/storage/sqlite"
	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
	"github.com/cohort-tools/cohort-tracker/internal/core/services"
)

// setupServer builds a server over a seeded SQLite store, without a
// sync engine.
func setupServer(t *testing.T) (*Server, *sqlite.Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "cohort-test-*")
	require.NoError(t, err)

	store, err := sqlite.NewStore(tempDir)
	require.NoError(t, err)

	reports := services.NewReportService(store.RosterStore(), store.SyncLogStore(), store.AnalyticsStore())
	server := NewServer(reports, nil, store.ClassStore())

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}
	return server, store, cleanup
}

func seedClass(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.ClassStore().Save(ctx, domain.Class{
		ID:         "class-1",
		Name:       "Autumn Cohort",
		FriendlyID: "autumn-2026",
	}))

	section := "Unit 1"
	grade := 0.9
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	err := store.RosterStore().ApplyPage(ctx, func(batch driven.RosterBatch) error {
		if err := batch.UpsertStudent(domain.Student{
			ID: "stu-1", ClassID: "class-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		}); err != nil {
			return err
		}
		if err := batch.UpsertAssignment(domain.Assignment{
			ID: "asn-1", ClassID: "class-1", Name: "Intro", Type: domain.AssignmentLesson, Section: &section,
		}); err != nil {
			return err
		}
		return batch.UpsertProgressRecord(domain.ProgressRecord{
			ID: "rec-1", ClassID: "class-1", StudentID: "stu-1", AssignmentID: "asn-1", Grade: &grade,
			StartedAt: now.Add(-time.Hour), CompletedAt: now, SyncedAt: now,
		})
	})
	require.NoError(t, err)
}

func doRequest(t *testing.T, server *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Students      int64 `json:"students"`
		Assignments   int64 `json:"assignments"`
		ProgressCount int64 `json:"progressions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, int64(1), health.Students)
	assert.Equal(t, int64(1), health.ProgressCount)
}

func TestServer_ListClasses(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/api/classes")
	require.Equal(t, http.StatusOK, rec.Code)

	var classes []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classes))
	require.Len(t, classes, 1)
	assert.Equal(t, "Autumn Cohort", classes[0]["name"])
	assert.Equal(t, "autumn-2026", classes[0]["friendly_id"])
}

func TestServer_Summary_ByFriendlyID(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/api/classes/autumn-2026/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.ProgressSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.TotalStudents)
	assert.InDelta(t, 1.0, summary.CompletionRate, 0.0001)
}

func TestServer_UnknownClass(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	rec := doRequest(t, server, http.MethodGet, "/api/classes/nope/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Blockers_LimitParam(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/api/classes/class-1/blockers?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var blockers []domain.BlockerAssignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blockers))
	assert.Len(t, blockers, 1)
}

func TestServer_Blockers_InvalidLimit(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/api/classes/class-1/blockers?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/classes/class-1/blockers?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StudentHealthAndSections(t *testing.T) {
	server, store, cleanup := setupServer(t)
	defer cleanup()
	seedClass(t, store)

	rec := doRequest(t, server, http.MethodGet, "/api/classes/class-1/students/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var students []domain.StudentHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
	require.Len(t, students, 1)
	assert.Equal(t, domain.RiskLow, students[0].Risk)

	rec = doRequest(t, server, http.MethodGet, "/api/classes/class-1/sections")
	require.Equal(t, http.StatusOK, rec.Code)
	var sections []domain.SectionProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sections))
	require.Len(t, sections, 1)
	assert.Equal(t, "Unit 1", sections[0].Section)
}

func TestServer_SyncDisabledWithoutEngine(t *testing.T) {
	server, _, cleanup := setupServer(t)
	defer cleanup()

	rec := doRequest(t, server, http.MethodPost, "/api/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// syncEngineStub lets the sync route be tested without a provider.
type syncEngineStub struct {
	stats domain.SyncStats
	mode  domain.SyncMode
}

func (s *syncEngineStub) Run(_ context.Context, mode domain.SyncMode) (domain.SyncStats, error) {
	s.mode = mode
	return s.stats, nil
}

func (s *syncEngineStub) RunClass(_ context.Context, _ string, mode domain.SyncMode) (domain.SyncStats, error) {
	s.mode = mode
	return s.stats, nil
}

func (s *syncEngineStub) DiscoverClasses(_ context.Context) ([]domain.Class, error) {
	return nil, nil
}

func (s *syncEngineStub) SetProgressFunc(_ driving.ProgressFunc) {}

func TestServer_SyncRoute(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "cohort-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := sqlite.NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()
	seedClass(t, store)

	stub := &syncEngineStub{stats: domain.SyncStats{PagesFetched: 3, TotalRecords: 90}}
	reports := services.NewReportService(store.RosterStore(), store.SyncLogStore(), store.AnalyticsStore())
	server := NewServer(reports, stub, store.ClassStore())

	rec := doRequest(t, server, http.MethodPost, "/api/sync?mode=full")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SyncFull, stub.mode)

	var resp struct {
		PagesFetched int `json:"pages_fetched"`
		TotalRecords int `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.PagesFetched)
	assert.Equal(t, 90, resp.TotalRecords)
}
