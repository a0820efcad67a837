package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/api/handler"
	"github.com/sitebrief/sitebrief/internal/store"
	"github.com/sitebrief/sitebrief/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProjectStore struct {
	projects map[uuid.UUID]*models.Project
}

func (f *fakeProjectStore) CreateProject(_ context.Context, p *models.Project) error {
	if f.projects == nil {
		f.projects = map[uuid.UUID]*models.Project{}
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeProjectStore) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func TestCreateProject(t *testing.T) {
	st := &fakeProjectStore{}
	h := handler.NewProjects(st)

	rec := postJSON(t, h.Create, map[string]any{
		"org_id":       uuid.NewString(),
		"name":         "  Harbor Bridge Retrofit ",
		"trackyard_id": "ty-42",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, st.projects, 1)
	for _, p := range st.projects {
		assert.Equal(t, "Harbor Bridge Retrofit", p.Name)
		require.NotNil(t, p.TrackyardID)
		assert.Equal(t, "ty-42", *p.TrackyardID)
	}
}

func TestCreateProjectUnlinked(t *testing.T) {
	st := &fakeProjectStore{}
	h := handler.NewProjects(st)

	// A project without a Trackyard link is allowed; report jobs for it fail
	// at pipeline time with a validation message.
	rec := postJSON(t, h.Create, map[string]any{
		"org_id": uuid.NewString(),
		"name":   "Unlinked Yard",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	for _, p := range st.projects {
		assert.Nil(t, p.TrackyardID)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	h := handler.NewProjects(&fakeProjectStore{})

	rec := postJSON(t, h.Create, map[string]any{"org_id": "nope", "name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Create, map[string]any{"org_id": uuid.NewString(), "name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProject(t *testing.T) {
	st := &fakeProjectStore{}
	h := handler.NewProjects(st)

	p := &models.Project{ID: uuid.New(), OrgID: uuid.New(), Name: "Riverside Tower"}
	require.NoError(t, st.CreateProject(context.Background(), p))

	rec := getWithID(t, h.Get, p.ID.String())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getWithID(t, h.Get, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = getWithID(t, h.Get, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
