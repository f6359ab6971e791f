// Package handler exposes stored runs, snapshots, changes and quality results
// over a read-only JSON API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tlwatch/internal/changes"
	"tlwatch/internal/trustlist/models"
	dErrors "tlwatch/pkg/domain-errors"
	"tlwatch/pkg/platform/httputil"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// Store is the read side of the snapshot store.
type Store interface {
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	GetRun(ctx context.Context, runID int64) (*models.Run, error)
	SourcesForRun(ctx context.Context, runID int64) ([]models.Source, error)
	ServicesForRun(ctx context.Context, runID int64) ([]models.Service, error)
	ChangesForRun(ctx context.Context, runID int64) ([]models.ChangeRecord, error)
	DQResultsForRun(ctx context.Context, runID int64) ([]models.DQResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	store  Store
	logger *slog.Logger
	checks map[string]HealthCheck
}

func New(store Store, logger *slog.Logger, checks map[string]HealthCheck) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger, checks: checks}
}

// Register mounts the API on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Get("/latest", h.HandleLatestRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", h.HandleGetRun)
			r.Get("/sources", h.HandleSources)
			r.Get("/services", h.HandleServices)
			r.Get("/changes", h.HandleChanges)
			r.Get("/dq", h.HandleDQ)
		})
	})
}

// HandleListRuns handles GET /runs?limit=N, newest first.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list runs", err)
		return
	}
	resp := RunsResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, FromRun(run))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleLatestRun handles GET /runs/latest.
func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context(), 1)
	if err != nil {
		h.fail(w, r, "latest run", err)
		return
	}
	if len(runs) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no runs recorded"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRun(runs[0]))
}

// HandleGetRun handles GET /runs/{runID}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRun(*run))
}

func (h *Handler) HandleSources(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	sources, err := h.store.SourcesForRun(r.Context(), run.RunID)
	if err != nil {
		h.fail(w, r, "list sources", err)
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	httputil.WriteJSON(w, http.StatusOK, SourcesResponse{RunID: run.RunID, Sources: sources})
}

// HandleServices handles GET /runs/{runID}/services, optionally filtered by ?country=.
func (h *Handler) HandleServices(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	services, err := h.store.ServicesForRun(r.Context(), run.RunID)
	if err != nil {
		h.fail(w, r, "list services", err)
		return
	}
	country := r.URL.Query().Get("country")
	resp := ServicesResponse{RunID: run.RunID, Services: make([]ServiceResponse, 0, len(services))}
	for _, svc := range services {
		if country != "" && svc.CountryCode != country {
			continue
		}
		resp.Services = append(resp.Services, FromService(svc))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleChanges handles GET /runs/{runID}/changes.
func (h *Handler) HandleChanges(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	records, err := h.store.ChangesForRun(r.Context(), run.RunID)
	if err != nil {
		h.fail(w, r, "list changes", err)
		return
	}
	resp := ChangesResponse{
		RunID:   run.RunID,
		Summary: make(map[string]int),
		Changes: make([]ChangeResponse, 0, len(records)),
	}
	for kind, n := range changes.Summary(records) {
		resp.Summary[string(kind)] = n
	}
	for _, rec := range records {
		resp.Changes = append(resp.Changes, FromChange(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDQ handles GET /runs/{runID}/dq.
func (h *Handler) HandleDQ(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	results, err := h.store.DQResultsForRun(r.Context(), run.RunID)
	if err != nil {
		h.fail(w, r, "list dq results", err)
		return
	}
	if results == nil {
		results = []models.DQResult{}
	}
	httputil.WriteJSON(w, http.StatusOK, DQResponse{RunID: run.RunID, Results: results})
}

// HandleHealth runs every registered check. Any failure yields 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]string{}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
			resp[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

// run resolves {runID}, writing the error response itself when it fails.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil || runID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "run id must be a positive integer"))
		return nil, false
	}
	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		h.fail(w, r, "get run", err)
		return nil, false
	}
	return run, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.From(err).Code == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), op+" failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, err)
}
