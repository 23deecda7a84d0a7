// ABOUTME: Workflow, step and task handlers plus the audit-log endpoint
// ABOUTME: Tasks carry a role assignment; status transitions are validated

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/auth"
	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type workflowResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

type stepResponse struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Position   int       `json:"position"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type taskResponse struct {
	ID        string    `json:"id"`
	StepID    string    `json:"step_id"`
	RoleID    string    `json:"role_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTaskResponse(t *store.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		StepID:    t.StepID,
		RoleID:    t.RoleID,
		Title:     t.Title,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func validTaskStatus(status string) bool {
	switch status {
	case store.TaskStatusOpen, store.TaskStatusInProgress, store.TaskStatusDone:
		return true
	}
	return false
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProjectID == "" {
		writeValidation(w, "project_id is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: req.ProjectID}, authz.ActionEditWorkflow) {
		return
	}

	wf := &store.Workflow{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editWorkflow")
	writeJSON(w, http.StatusCreated, workflowResponse{wf.ID, wf.ProjectID, wf.CreatedAt})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflow, ID: id}, authz.ActionViewWorkflow) {
		return
	}

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflowResponse{wf.ID, wf.ProjectID, wf.CreatedAt})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflow, ID: id}, authz.ActionEditWorkflow) {
		return
	}

	if err := s.store.DeleteWorkflowCascade(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editWorkflow")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")
	var req struct {
		Position int    `json:"position"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflow, ID: workflowID}, authz.ActionEditWorkflow) {
		return
	}

	step := &store.WorkflowStep{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Position:   req.Position,
		Name:       req.Name,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateWorkflowStep(r.Context(), step); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editWorkflow")
	writeJSON(w, http.StatusCreated, stepResponse{step.ID, step.WorkflowID, step.Position, step.Name, step.CreatedAt})
}

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflow, ID: workflowID}, authz.ActionViewWorkflow) {
		return
	}

	steps, err := s.store.ListWorkflowSteps(r.Context(), workflowID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]stepResponse, 0, len(steps))
	for _, step := range steps {
		out = append(out, stepResponse{step.ID, step.WorkflowID, step.Position, step.Name, step.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflowStep, ID: id}, authz.ActionEditWorkflow) {
		return
	}

	if err := s.store.DeleteWorkflowStep(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editWorkflow")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	stepID := r.PathValue("id")
	var req struct {
		RoleID string `json:"role_id"`
		Title  string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoleID == "" || req.Title == "" {
		writeValidation(w, "role_id and title are required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflowStep, ID: stepID}, authz.ActionManageTasks) {
		return
	}

	now := time.Now()
	t := &store.Task{
		ID:        uuid.NewString(),
		StepID:    stepID,
		RoleID:    req.RoleID,
		Title:     req.Title,
		Status:    store.TaskStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTask(r.Context(), t); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageTasks")
	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	stepID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindWorkflowStep, ID: stepID}, authz.ActionViewTasks) {
		return
	}

	tasks, err := s.store.ListTasksByStep(r.Context(), stepID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Title  *string `json:"title"`
		Status *string `json:"status"`
		RoleID *string `json:"role_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != nil && !validTaskStatus(*req.Status) {
		writeValidation(w, "status must be open, in_progress or done")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindTask, ID: id}, authz.ActionManageTasks) {
		return
	}

	t, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.RoleID != nil {
		t.RoleID = *req.RoleID
	}
	t.UpdatedAt = time.Now()

	if err := s.store.UpdateTask(r.Context(), t); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageTasks")
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindTask, ID: id}, authz.ActionManageTasks) {
		return
	}

	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageTasks")
	w.WriteHeader(http.StatusNoContent)
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// handleListAudit is restricted to full-access users.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	if !user.FullAccess {
		writeReason(w, http.StatusForbidden, "InsufficientRole", "")
		return
	}

	filter := store.AuditFilter{}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeValidation(w, "since must be RFC3339")
			return
		}
		filter.Since = &t
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		filter.UserID = &userID
	}

	entries, err := s.store.ListAuditLog(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{e.ID, e.UserID, e.Action, e.Timestamp})
	}
	writeJSON(w, http.StatusOK, out)
}
