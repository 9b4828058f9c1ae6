// Package api exposes the dashboard HTTP interface: class listings,
// analytics reports and a sync trigger. Routing is chi with the stock
// logging and panic-recovery middleware.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driven"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
	"github.com/cohort-tools/cohort-tracker/internal/logger"
)

// Server serves the dashboard API. The sync engine is optional: a nil
// engine disables the POST /api/sync route, which lets a read-only
// dashboard run without provider credentials.
type Server struct {
	reports    driving.Reports
	engine     driving.SyncEngine
	classStore driven.ClassStore
	router     chi.Router
}

// NewServer creates a dashboard API server.
func NewServer(reports driving.Reports, engine driving.SyncEngine, classStore driven.ClassStore) *Server {
	s := &Server{
		reports:    reports,
		engine:     engine,
		classStore: classStore,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/classes", s.handleListClasses)

		r.Route("/classes/{class}", func(r chi.Router) {
			r.Get("/summary", s.classReport(s.summaryReport))
			r.Get("/completion", s.classReport(s.completionReport))
			r.Get("/blockers", s.classReport(s.blockersReport))
			r.Get("/students/health", s.classReport(s.studentHealthReport))
			r.Get("/progress", s.classReport(s.progressReport))
			r.Get("/activity", s.classReport(s.activityReport))
			r.Get("/sections", s.classReport(s.sectionsReport))
		})

		if engine != nil {
			r.Post("/sync", s.handleSync)
		}
	})

	s.router = r
	return s
}

// Router returns the HTTP handler for mounting or testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("Dashboard listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down dashboard...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.reports.Health(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.classStore.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type classView struct {
		ID         string     `json:"id"`
		Name       string     `json:"name"`
		FriendlyID string     `json:"friendly_id"`
		Active     bool       `json:"active"`
		SyncedAt   *time.Time `json:"synced_at"`
	}
	views := make([]classView, 0, len(classes))
	for _, c := range classes {
		views = append(views, classView{
			ID: c.ID, Name: c.Name, FriendlyID: c.FriendlyID, Active: c.Active, SyncedAt: c.SyncedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// reportFunc produces one report body for a resolved class.
type reportFunc func(r *http.Request, classID string) (any, error)

// classReport resolves the {class} URL parameter (provider ID or
// friendly ID) and renders the report as JSON.
func (s *Server) classReport(fn reportFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "class")

		class, err := s.classStore.Get(r.Context(), ref)
		if errors.Is(err, domain.ErrNotFound) {
			class, err = s.classStore.GetByFriendlyID(r.Context(), ref)
		}
		if err != nil {
			writeError(w, err)
			return
		}

		body, err := fn(r, class.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) summaryReport(r *http.Request, classID string) (any, error) {
	return s.reports.Summary(r.Context(), classID)
}

func (s *Server) completionReport(r *http.Request, classID string) (any, error) {
	return s.reports.Completion(r.Context(), classID)
}

func (s *Server) blockersReport(r *http.Request, classID string) (any, error) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := parsePositiveInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: limit %q", domain.ErrInvalidInput, v)
		}
		limit = parsed
	}
	return s.reports.Blockers(r.Context(), classID, limit)
}

func (s *Server) studentHealthReport(r *http.Request, classID string) (any, error) {
	return s.reports.StudentHealth(r.Context(), classID)
}

func (s *Server) progressReport(r *http.Request, classID string) (any, error) {
	return s.reports.ProgressOverTime(r.Context(), classID)
}

func (s *Server) activityReport(r *http.Request, classID string) (any, error) {
	var night *string
	if v := r.URL.Query().Get("night"); v != "" {
		night = &v
	}
	return s.reports.StudentActivity(r.Context(), classID, night)
}

func (s *Server) sectionsReport(r *http.Request, classID string) (any, error) {
	return s.reports.SectionProgress(r.Context(), classID)
}

// syncResponse is the JSON shape of a finished sync run.
type syncResponse struct {
	PagesFetched    int               `json:"pages_fetched"`
	TotalRecords    int               `json:"total_records"`
	PerClassErrors  map[string]string `json:"per_class_errors,omitempty"`
	Cancelled       bool              `json:"cancelled,omitempty"`
	RecordsUpserted int               `json:"records_upserted"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	mode := domain.SyncIncremental
	if r.URL.Query().Get("mode") == string(domain.SyncFull) {
		mode = domain.SyncFull
	}

	var (
		stats domain.SyncStats
		err   error
	)
	if ref := r.URL.Query().Get("class"); ref != "" {
		class, classErr := s.classStore.Get(r.Context(), ref)
		if errors.Is(classErr, domain.ErrNotFound) {
			class, classErr = s.classStore.GetByFriendlyID(r.Context(), ref)
		}
		if classErr != nil {
			writeError(w, classErr)
			return
		}
		stats, err = s.engine.RunClass(r.Context(), class.ID, mode)
	} else {
		stats, err = s.engine.Run(r.Context(), mode)
	}

	resp := syncResponse{
		PagesFetched:    stats.PagesFetched,
		TotalRecords:    stats.TotalRecords,
		RecordsUpserted: stats.RecordsUpserted,
	}
	for classID, classErr := range stats.PerClassErrors {
		if resp.PerClassErrors == nil {
			resp.PerClassErrors = make(map[string]string)
		}
		resp.PerClassErrors[classID] = classErr.Error()
	}

	switch {
	case errors.Is(err, domain.ErrSyncCancelled):
		resp.Cancelled = true
		writeJSON(w, http.StatusOK, resp)
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Could not encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrClassNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoActiveClasses):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
