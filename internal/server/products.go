// ABOUTME: Product and reference handlers
// ABOUTME: References carry the optional project link the resolver walks

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProductResponse(p *store.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt}
}

type referenceResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	ProductID string    `json:"product_id"`
	ProjectID *string   `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReferenceResponse(ref *store.Reference) referenceResponse {
	return referenceResponse{
		ID:        ref.ID,
		Code:      ref.Code,
		ProductID: ref.ProductID,
		ProjectID: ref.ProjectID,
		CreatedAt: ref.CreatedAt,
		UpdatedAt: ref.UpdatedAt,
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
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

	product := &store.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateProduct(r.Context(), product); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createProduct")
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.record(r, "deleteProduct")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateReference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string  `json:"code"`
		ProductID string  `json:"product_id"`
		ProjectID *string `json:"project_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.ProductID == "" {
		writeValidation(w, "code and product_id are required")
		return
	}

	// A reference born linked to a project is guarded against that
	// project; an unlinked one only needs an authenticated user.
	if req.ProjectID != nil {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: *req.ProjectID}, authz.ActionCreateReference) {
			return
		}
	}

	now := time.Now()
	ref := &store.Reference{
		ID:        uuid.NewString(),
		Code:      req.Code,
		ProductID: req.ProductID,
		ProjectID: req.ProjectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateReference(r.Context(), ref); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createReference")
	writeJSON(w, http.StatusCreated, toReferenceResponse(ref))
}

func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ref, err := s.store.GetReference(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if ref.ProjectID != nil {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: id}, authz.ActionViewProject) {
			return
		}
	}
	writeJSON(w, http.StatusOK, toReferenceResponse(ref))
}

func (s *Server) handleUpdateReference(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Code      *string `json:"code"`
		ProjectID *string `json:"project_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ref, err := s.store.GetReference(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Linked references are guarded; relinking additionally requires the
	// action on the target project.
	if ref.ProjectID != nil {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: id}, authz.ActionUpdateReference) {
			return
		}
	}
	if req.ProjectID != nil && (ref.ProjectID == nil || *ref.ProjectID != *req.ProjectID) {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: *req.ProjectID}, authz.ActionUpdateReference) {
			return
		}
	}

	if req.Code != nil {
		ref.Code = *req.Code
	}
	if req.ProjectID != nil {
		ref.ProjectID = req.ProjectID
	}
	ref.UpdatedAt = time.Now()

	if err := s.store.UpdateReference(r.Context(), ref); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "updateReference")
	writeJSON(w, http.StatusOK, toReferenceResponse(ref))
}

func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ref, err := s.store.GetReference(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if ref.ProjectID != nil {
		if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: id}, authz.ActionDeleteReference) {
			return
		}
	}

	if err := s.store.DeleteReference(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteReference")
	w.WriteHeader(http.StatusNoContent)
}
