package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/api/response"
	"github.com/sitebrief/sitebrief/internal/store"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// ProjectStore defines the store operations the project handlers depend on.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Projects bundles the project HTTP handlers.
type Projects struct {
	store ProjectStore
}

// NewProjects creates project handlers.
func NewProjects(s ProjectStore) *Projects {
	return &Projects{store: s}
}

// Create handles POST /api/v1/projects.
func (h *Projects) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID       string  `json:"org_id"`
		Name        string  `json:"name"`
		TrackyardID *string `json:"trackyard_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "org_id must be a valid UUID", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
		return
	}

	project := &models.Project{
		ID:          uuid.New(),
		OrgID:       orgID,
		Name:        strings.TrimSpace(req.Name),
		TrackyardID: req.TrackyardID,
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		slog.Error("failed to create project", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project", nil)
		return
	}

	response.Created(w, project)
}

// Get handles GET /api/v1/projects/{id}.
func (h *Projects) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a valid UUID", nil)
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project does not exist", nil)
			return
		}
		slog.Error("failed to load project", "project_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	response.JSON(w, project)
}
