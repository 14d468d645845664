package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/service"
)

// CourseRunner is the part of the course service the run endpoints need.
type CourseRunner interface {
	Run(ctx context.Context, req service.RunRequest) (*domain.CourseSummary, error)
	GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error)
	ListRuns(ctx context.Context, state *domain.RunState, limit, offset int) ([]*domain.Run, int, error)
}

// RunHandler handles course run HTTP requests.
type RunHandler struct {
	runner CourseRunner
	logger *slog.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner CourseRunner, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runner: runner,
		logger: logger,
	}
}

// RunResponse is the JSON response of a finished or aborted run.
type RunResponse struct {
	Status  string                `json:"status"`
	Error   string                `json:"error,omitempty"`
	Summary *domain.CourseSummary `json:"summary,omitempty"`
}

// ListRunsResponse is the JSON response for run listings.
type ListRunsResponse struct {
	Runs   []*domain.Run `json:"runs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Create handles POST /api/v1/runs. The request blocks until the run ends;
// the browser window it opens must be logged in by a person.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.runner.Run(r.Context(), req)
	if err != nil {
		status := statusForRunError(err)
		if domain.IsFatal(err) {
			h.logger.Warn("course run aborted", "course_url", req.CourseURL, "status", status, "error", err)
		} else {
			h.logger.Error("course run failed", "course_url", req.CourseURL, "error", err)
		}
		h.writeJSON(w, status, RunResponse{
			Status:  string(domain.RunStateAborted),
			Error:   err.Error(),
			Summary: summary,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, RunResponse{
		Status:  string(domain.RunStateDone),
		Summary: summary,
	})
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	var state *domain.RunState

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	if s := r.URL.Query().Get("state"); s != "" {
		st := domain.RunState(s)
		state = &st
	}

	runs, total, err := h.runner.ListRuns(r.Context(), state, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.Run{}
	}

	h.writeJSON(w, http.StatusOK, ListRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/v1/runs/{runID}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.runner.GetRun(r.Context(), domain.RunID(runID))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", "run_id", runID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

func statusForRunError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLoginTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNavigation):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStructureParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCanceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *RunHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
