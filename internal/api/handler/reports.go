package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/api/response"
	"github.com/sitebrief/sitebrief/internal/cache"
	"github.com/sitebrief/sitebrief/internal/store"
	"github.com/sitebrief/sitebrief/pkg/models"
)

const dateLayout = "2006-01-02"

// JobStore defines the store operations the report handlers depend on.
type JobStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateJob(ctx context.Context, job *models.ReportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ReportJob, error)
	ListJobs(ctx context.Context, limit int) ([]*models.ReportJob, error)
}

// Reports bundles the report job HTTP handlers.
type Reports struct {
	store JobStore
	cache cache.Cache
}

// NewReports creates report handlers. cache may be nil; the status fast path
// is skipped without it.
func NewReports(s JobStore, c cache.Cache) *Reports {
	return &Reports{store: s, cache: c}
}

// Create handles POST /api/v1/reports. It validates the project and period
// and enqueues a pending job; the scheduler picks it up on its next poll.
func (h *Reports) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string `json:"project_id"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "project_id must be a valid UUID", nil)
		return
	}

	start, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "period_start must be a YYYY-MM-DD date", nil)
		return
	}
	end, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "period_end must be a YYYY-MM-DD date", nil)
		return
	}
	if end.Before(start) {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "period_end must not be before period_start", nil)
		return
	}

	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project does not exist", nil)
			return
		}
		slog.Error("failed to load project", "project_id", projectID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	job := &models.ReportJob{
		ID:          uuid.New(),
		ProjectID:   project.ID,
		OrgID:       project.OrgID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      models.JobStatusPending,
	}
	if err := h.store.CreateJob(r.Context(), job); err != nil {
		slog.Error("failed to create report job", "project_id", projectID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create report job", nil)
		return
	}

	response.Created(w, job)
}

// Get handles GET /api/v1/reports/{id}. For jobs that are still in flight it
// consults the cached status mirror first, so polling clients do not hammer
// the database; terminal jobs always come from the store because the response
// carries the artifact path or error message.
func (h *Reports) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a valid UUID", nil)
		return
	}

	if h.cache != nil {
		status, found, cerr := h.cache.GetJobStatus(r.Context(), id)
		if cerr != nil {
			slog.Warn("job status cache lookup failed", "job_id", id, "error", cerr)
		}
		if found && (status == models.JobStatusPending || status == models.JobStatusProcessing) {
			response.JSON(w, map[string]any{"id": id, "status": status})
			return
		}
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Report job does not exist", nil)
			return
		}
		slog.Error("failed to load report job", "job_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	response.JSON(w, job)
}

// List handles GET /api/v1/reports, newest first.
func (h *Reports) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return
		}
		if n > store.MaxListLimit {
			n = store.MaxListLimit
		}
		limit = n
	}

	jobs, err := h.store.ListJobs(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list report jobs", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	response.JSON(w, jobs)
}
