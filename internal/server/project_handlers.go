package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/services/project"
	"github.com/pixelforge/forge/internal/validation"
)

func (a *api) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, a.validator, validation.SchemaCreateProject, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	in := project.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		TechStack:   req.TechStack,
	}
	if req.Deadline != nil {
		in.Deadline = *req.Deadline
	}

	p, err := a.projects.CreateProject(r.Context(), claims, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// handleListProjects lists every project with assignee names. The optional
// "filter" query parameter is a go-bexpr expression.
func (a *api) handleListProjects(w http.ResponseWriter, r *http.Request) {
	views, err := a.projects.ListProjects(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := make([]projectResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toProjectViewResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleCompleteProject(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.projects.MarkComplete(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.projectViews(r.Context(), []models.Project{*p})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp[0])
}

func (a *api) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.projects.DeleteProject(r.Context(), claims, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAssign(w http.ResponseWriter, r *http.Request) {
	a.handleAssignment(w, r, a.coordinator.Assign)
}

func (a *api) handleUnassign(w http.ResponseWriter, r *http.Request) {
	a.handleAssignment(w, r, a.coordinator.Unassign)
}

type assignmentFunc func(ctx context.Context, actor auth.Claims, projectID, developerID string) (bool, error)

func (a *api) handleAssignment(w http.ResponseWriter, r *http.Request, apply assignmentFunc) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req assignmentRequest
	if err := decodeJSON(w, r, a.validator, validation.SchemaAssignment, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	changed, err := apply(r.Context(), claims, req.ProjectID, req.DeveloperID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentResponse{ProjectID: req.ProjectID, DeveloperID: req.DeveloperID, Changed: changed})
}

// handleListAssigned lists the caller's own assigned projects.
func (a *api) handleListAssigned(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	projects, err := a.coordinator.ListAssignedProjects(r.Context(), claims.Subject)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.projectViews(r.Context(), projects)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// projectViews renders projects with their assignee names resolved.
func (a *api) projectViews(ctx context.Context, projects []models.Project) ([]projectResponse, error) {
	views, err := a.projects.Views(ctx, projects)
	if err != nil {
		return nil, err
	}
	resp := make([]projectResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toProjectViewResponse(v))
	}
	return resp, nil
}
