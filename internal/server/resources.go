// ABOUTME: Resource and supplier handlers
// ABOUTME: Unit cost/time edits fan out to every BOM using the resource

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type resourceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UnitCost   float64   `json:"unit_cost"`
	UnitTime   float64   `json:"unit_time"`
	SupplierID *string   `json:"supplier_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toResourceResponse(res *store.Resource) resourceResponse {
	return resourceResponse{
		ID:         res.ID,
		Name:       res.Name,
		UnitCost:   res.UnitCost,
		UnitTime:   res.UnitTime,
		SupplierID: res.SupplierID,
		CreatedAt:  res.CreatedAt,
		UpdatedAt:  res.UpdatedAt,
	}
}

type supplierResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toSupplierResponse(sup *store.Supplier) supplierResponse {
	return supplierResponse{ID: sup.ID, Name: sup.Name, Email: sup.Email, CreatedAt: sup.CreatedAt}
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string  `json:"name"`
		UnitCost   float64 `json:"unit_cost"`
		UnitTime   float64 `json:"unit_time"`
		SupplierID *string `json:"supplier_id"`
		ProjectID  *string `json:"project_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}
	if req.UnitCost < 0 || req.UnitTime < 0 {
		writeValidation(w, "unit cost and time must not be negative")
		return
	}

	// A fresh resource is not used by any BOM yet, so it has no governing
	// project of its own. Callers creating one for a project pass it
	// explicitly and are checked against it.
	if req.ProjectID != nil {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: *req.ProjectID}, authz.ActionCreateResource) {
			return
		}
	}

	now := time.Now()
	res := &store.Resource{
		ID:         uuid.NewString(),
		Name:       req.Name,
		UnitCost:   req.UnitCost,
		UnitTime:   req.UnitTime,
		SupplierID: req.SupplierID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateResource(r.Context(), res); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createResource")
	writeJSON(w, http.StatusCreated, toResourceResponse(res))
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindResource, ID: id}, authz.ActionViewResources) {
		return
	}

	res, err := s.store.GetResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceResponse(res))
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name       *string  `json:"name"`
		UnitCost   *float64 `json:"unit_cost"`
		UnitTime   *float64 `json:"unit_time"`
		SupplierID *string  `json:"supplier_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindResource, ID: id}, authz.ActionEditResource) {
		return
	}

	res, err := s.store.GetResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	unitsChanged := false
	if req.Name != nil {
		res.Name = *req.Name
	}
	if req.UnitCost != nil {
		if *req.UnitCost < 0 {
			writeValidation(w, "unit cost must not be negative")
			return
		}
		unitsChanged = unitsChanged || res.UnitCost != *req.UnitCost
		res.UnitCost = *req.UnitCost
	}
	if req.UnitTime != nil {
		if *req.UnitTime < 0 {
			writeValidation(w, "unit time must not be negative")
			return
		}
		unitsChanged = unitsChanged || res.UnitTime != *req.UnitTime
		res.UnitTime = *req.UnitTime
	}
	if req.SupplierID != nil {
		res.SupplierID = req.SupplierID
	}
	res.UpdatedAt = time.Now()

	if err := s.store.UpdateResource(r.Context(), res); err != nil {
		s.writeError(w, err)
		return
	}
	if unitsChanged {
		if err := s.costing.ResourceChanged(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.record(r, "editResource")
	writeJSON(w, http.StatusOK, toResourceResponse(res))
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindResource, ID: id}, authz.ActionDeleteResource) {
		return
	}

	// Line items referencing the resource keep it alive; the delete
	// surfaces as a conflict instead of orphaning totals.
	if err := s.store.DeleteResource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteResource")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeValidation(w, "name is required")
		return
	}

	sup := &store.Supplier{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateSupplier(r.Context(), sup); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageSuppliers")
	writeJSON(w, http.StatusCreated, toSupplierResponse(sup))
}

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSupplier, ID: id}, authz.ActionViewSuppliers) {
		return
	}

	sup, err := s.store.GetSupplier(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSupplierResponse(sup))
}

func (s *Server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSupplier, ID: id}, authz.ActionManageSuppliers) {
		return
	}

	sup, err := s.store.GetSupplier(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Name != nil {
		sup.Name = *req.Name
	}
	if req.Email != nil {
		sup.Email = *req.Email
	}
	if err := s.store.UpdateSupplier(r.Context(), sup); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageSuppliers")
	writeJSON(w, http.StatusOK, toSupplierResponse(sup))
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSupplier, ID: id}, authz.ActionManageSuppliers) {
		return
	}

	if err := s.store.DeleteSupplier(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageSuppliers")
	w.WriteHeader(http.StatusNoContent)
}
