// ABOUTME: Document, CAD file and simulation handlers attached to references
// ABOUTME: All three resolve through the owning reference's project

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type attachmentResponse struct {
	ID          string    `json:"id"`
	ReferenceID string    `json:"reference_id"`
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	referenceID := r.PathValue("id")
	var req struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: referenceID}, authz.ActionEditProject) {
		return
	}

	d := &store.Document{
		ID:          uuid.NewString(),
		ReferenceID: referenceID,
		Name:        req.Name,
		Path:        req.Path,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateDocument(r.Context(), d); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createDocument")
	writeJSON(w, http.StatusCreated, attachmentResponse{ID: d.ID, ReferenceID: d.ReferenceID, Name: d.Name, Path: d.Path, CreatedAt: d.CreatedAt})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindDocument, ID: id}, authz.ActionViewProject) {
		return
	}

	d, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachmentResponse{ID: d.ID, ReferenceID: d.ReferenceID, Name: d.Name, Path: d.Path, CreatedAt: d.CreatedAt})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindDocument, ID: id}, authz.ActionEditProject) {
		return
	}

	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteDocument")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateCADFile(w http.ResponseWriter, r *http.Request) {
	referenceID := r.PathValue("id")
	var req struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: referenceID}, authz.ActionManageCADFiles) {
		return
	}

	f := &store.CADFile{
		ID:          uuid.NewString(),
		ReferenceID: referenceID,
		Name:        req.Name,
		Path:        req.Path,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateCADFile(r.Context(), f); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageCADFiles")
	writeJSON(w, http.StatusCreated, attachmentResponse{ID: f.ID, ReferenceID: f.ReferenceID, Name: f.Name, Path: f.Path, CreatedAt: f.CreatedAt})
}

func (s *Server) handleGetCADFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCADFile, ID: id}, authz.ActionViewCADFiles) {
		return
	}

	f, err := s.store.GetCADFile(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachmentResponse{ID: f.ID, ReferenceID: f.ReferenceID, Name: f.Name, Path: f.Path, CreatedAt: f.CreatedAt})
}

func (s *Server) handleDeleteCADFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCADFile, ID: id}, authz.ActionManageCADFiles) {
		return
	}

	if err := s.store.DeleteCADFile(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageCADFiles")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	referenceID := r.PathValue("id")
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: referenceID}, authz.ActionManageSimulations) {
		return
	}

	sim := &store.Simulation{
		ID:          uuid.NewString(),
		ReferenceID: referenceID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateSimulation(r.Context(), sim); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageSimulations")
	writeJSON(w, http.StatusCreated, attachmentResponse{ID: sim.ID, ReferenceID: sim.ReferenceID, Name: sim.Name, Description: sim.Description, CreatedAt: sim.CreatedAt})
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSimulation, ID: id}, authz.ActionViewSimulations) {
		return
	}

	sim, err := s.store.GetSimulation(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachmentResponse{ID: sim.ID, ReferenceID: sim.ReferenceID, Name: sim.Name, Description: sim.Description, CreatedAt: sim.CreatedAt})
}

func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSimulation, ID: id}, authz.ActionManageSimulations) {
		return
	}

	if err := s.store.DeleteSimulation(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageSimulations")
	w.WriteHeader(http.StatusNoContent)
}
