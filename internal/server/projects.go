// ABOUTME: Project and role handlers, including required-role configuration
// ABOUTME: Project creation grants the implicit creator role in one transaction

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/auth"
	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type projectResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	CreatorID     string              `json:"creator_id"`
	RequiredRoles store.RequiredRoles `json:"required_roles"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toProjectResponse(p *store.Project) projectResponse {
	return projectResponse{
		ID:            p.ID,
		Name:          p.Name,
		CreatorID:     p.CreatorID,
		RequiredRoles: p.RequiredRoles,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type roleResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toRoleResponse(role *store.Role) roleResponse {
	return roleResponse{
		ID:        role.ID,
		ProjectID: role.ProjectID,
		UserID:    role.UserID,
		Name:      string(role.Name),
		CreatedAt: role.CreatedAt,
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string              `json:"name"`
		RequiredRoles store.RequiredRoles `json:"required_roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}

	user := auth.MustUserFromContext(r.Context())
	now := time.Now()
	project := &store.Project{
		ID:            uuid.NewString(),
		Name:          req.Name,
		CreatorID:     user.ID,
		RequiredRoles: req.RequiredRoles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateProject(r.Context(), project, uuid.NewString()); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createProject")
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: id}, authz.ActionViewProject) {
		return
	}

	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name          *string              `json:"name"`
		RequiredRoles *store.RequiredRoles `json:"required_roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: id}, authz.ActionEditProject) {
		return
	}

	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.RequiredRoles != nil {
		project.RequiredRoles = *req.RequiredRoles
	}
	project.UpdatedAt = time.Now()

	if err := s.store.UpdateProject(r.Context(), project); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editProject")
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: id}, authz.ActionEditProject) {
		return
	}

	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteProject")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeValidation(w, "user_id and name are required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: projectID}, authz.ActionEditProject) {
		return
	}

	role := &store.Role{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    req.UserID,
		Name:      store.RoleName(req.Name),
		CreatedAt: time.Now(),
	}
	if err := s.store.AddRole(r.Context(), role); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "addRole")
	writeJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: projectID}, authz.ActionViewProjectRoles) {
		return
	}

	roles, err := s.store.ListProjectRoles(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	roleID := r.PathValue("roleID")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: projectID}, authz.ActionEditProject) {
		return
	}

	if err := s.store.RemoveRole(r.Context(), roleID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "removeRole")
	w.WriteHeader(http.StatusNoContent)
}
