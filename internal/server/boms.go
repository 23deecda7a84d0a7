// ABOUTME: BOM, line-item and manufacturing-process handlers
// ABOUTME: Every mutation recomputes affected totals before responding

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/store"
)

type bomResponse struct {
	ID          string    `json:"id"`
	ReferenceID string    `json:"reference_id"`
	TotalCost   float64   `json:"total_cost"`
	TotalTime   float64   `json:"total_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBOMResponse(b *store.BOM) bomResponse {
	return bomResponse{
		ID:          b.ID,
		ReferenceID: b.ReferenceID,
		TotalCost:   b.TotalCost,
		TotalTime:   b.TotalTime,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type lineItemResponse struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	Quantity   float64   `json:"quantity"`
	TotalCost  float64   `json:"total_cost"`
	TotalTime  float64   `json:"total_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleCreateBOM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferenceID string `json:"reference_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReferenceID == "" {
		writeValidation(w, "reference_id is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindReference, ID: req.ReferenceID}, authz.ActionCreateBOM) {
		return
	}

	now := time.Now()
	bom := &store.BOM{
		ID:          uuid.NewString(),
		ReferenceID: req.ReferenceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateBOM(r.Context(), bom); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createBOM")
	writeJSON(w, http.StatusCreated, toBOMResponse(bom))
}

func (s *Server) handleGetBOM(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: id}, authz.ActionViewBOM) {
		return
	}

	bom, err := s.store.GetBOM(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBOMResponse(bom))
}

// handleBOMOverview returns the BOM with its line items and the suppliers
// behind each referenced resource in one response.
func (s *Server) handleBOMOverview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: id}, authz.ActionBOMAndSuppliers) {
		return
	}

	bom, err := s.store.GetBOM(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items, err := s.store.ListBOMResources(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type overviewLine struct {
		lineItemResponse
		ResourceName string  `json:"resource_name"`
		SupplierID   *string `json:"supplier_id"`
		SupplierName string  `json:"supplier_name,omitempty"`
	}
	lines := make([]overviewLine, 0, len(items))
	for _, br := range items {
		line := overviewLine{lineItemResponse: toBOMResourceResponse(br)}
		res, err := s.store.GetResource(r.Context(), br.ResourceID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		line.ResourceName = res.Name
		line.SupplierID = res.SupplierID
		if res.SupplierID != nil {
			sup, err := s.store.GetSupplier(r.Context(), *res.SupplierID)
			if err != nil {
				s.writeError(w, err)
				return
			}
			line.SupplierName = sup.Name
		}
		lines = append(lines, line)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bom":   toBOMResponse(bom),
		"lines": lines,
	})
}

func (s *Server) handleDeleteBOM(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: id}, authz.ActionDeleteBOM) {
		return
	}

	if err := s.store.DeleteBOMCascade(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteBOM")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBOMResource(w http.ResponseWriter, r *http.Request) {
	bomID := r.PathValue("id")
	var req struct {
		ResourceID string  `json:"resource_id"`
		Quantity   float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID == "" {
		writeValidation(w, "resource_id is required")
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: bomID}, authz.ActionEditBOM) {
		return
	}

	now := time.Now()
	br := &store.BOMResource{
		ID:         uuid.NewString(),
		BOMID:      bomID,
		ResourceID: req.ResourceID,
		Quantity:   req.Quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateBOMResource(r.Context(), br); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.BOMResourceChanged(r.Context(), br.ID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetBOMResource(r.Context(), br.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBOMResourceResponse(fresh))
}

func toBOMResourceResponse(br *store.BOMResource) lineItemResponse {
	return lineItemResponse{
		ID:         br.ID,
		ResourceID: br.ResourceID,
		Quantity:   br.Quantity,
		TotalCost:  br.TotalCost,
		TotalTime:  br.TotalTime,
		CreatedAt:  br.CreatedAt,
		UpdatedAt:  br.UpdatedAt,
	}
}

func (s *Server) handleListBOMResources(w http.ResponseWriter, r *http.Request) {
	bomID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: bomID}, authz.ActionViewBOM) {
		return
	}

	items, err := s.store.ListBOMResources(r.Context(), bomID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]lineItemResponse, 0, len(items))
	for _, br := range items {
		out = append(out, toBOMResourceResponse(br))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateBOMResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOMResource, ID: id}, authz.ActionEditBOM) {
		return
	}

	br, err := s.store.GetBOMResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetBOMResource(r.Context(), id, req.Quantity, br.TotalCost, br.TotalTime); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.BOMResourceChanged(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetBOMResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBOMResourceResponse(fresh))
}

func (s *Server) handleDeleteBOMResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOMResource, ID: id}, authz.ActionEditBOM) {
		return
	}

	br, err := s.store.GetBOMResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteBOMResource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.RecomputeBOM(r.Context(), br.BOMID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	bomID := r.PathValue("id")
	var req struct {
		ResourceID string  `json:"resource_id"`
		Quantity   float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID == "" {
		writeValidation(w, "resource_id is required")
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: bomID}, authz.ActionEditBOM) {
		return
	}

	now := time.Now()
	mp := &store.ManufacturingProcess{
		ID:         uuid.NewString(),
		BOMID:      bomID,
		ResourceID: req.ResourceID,
		Quantity:   req.Quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateManufacturingProcess(r.Context(), mp); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.ProcessChanged(r.Context(), mp.ID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetManufacturingProcess(r.Context(), mp.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcessResponse(fresh))
}

func toProcessResponse(mp *store.ManufacturingProcess) lineItemResponse {
	return lineItemResponse{
		ID:         mp.ID,
		ResourceID: mp.ResourceID,
		Quantity:   mp.Quantity,
		TotalCost:  mp.TotalCost,
		TotalTime:  mp.TotalTime,
		CreatedAt:  mp.CreatedAt,
		UpdatedAt:  mp.UpdatedAt,
	}
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	bomID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindBOM, ID: bomID}, authz.ActionViewBOM) {
		return
	}

	processes, err := s.store.ListManufacturingProcesses(r.Context(), bomID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]lineItemResponse, 0, len(processes))
	for _, mp := range processes {
		out = append(out, toProcessResponse(mp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindManufacturingProcess, ID: id}, authz.ActionEditBOM) {
		return
	}

	mp, err := s.store.GetManufacturingProcess(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetManufacturingProcess(r.Context(), id, req.Quantity, mp.TotalCost, mp.TotalTime); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.ProcessChanged(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetManufacturingProcess(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessResponse(fresh))
}

func (s *Server) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindManufacturingProcess, ID: id}, authz.ActionEditBOM) {
		return
	}

	mp, err := s.store.GetManufacturingProcess(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteManufacturingProcess(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.RecomputeBOM(r.Context(), mp.BOMID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProcessResource(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	var req struct {
		ResourceID string  `json:"resource_id"`
		Quantity   float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ResourceID == "" {
		writeValidation(w, "resource_id is required")
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindManufacturingProcess, ID: processID}, authz.ActionEditBOM) {
		return
	}

	now := time.Now()
	pr := &store.ProcessResource{
		ID:         uuid.NewString(),
		ProcessID:  processID,
		ResourceID: req.ResourceID,
		Quantity:   req.Quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateProcessResource(r.Context(), pr); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.ProcessResourceChanged(r.Context(), pr.ID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetProcessResource(r.Context(), pr.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcessResourceResponse(fresh))
}

func toProcessResourceResponse(pr *store.ProcessResource) lineItemResponse {
	return lineItemResponse{
		ID:         pr.ID,
		ResourceID: pr.ResourceID,
		Quantity:   pr.Quantity,
		TotalCost:  pr.TotalCost,
		TotalTime:  pr.TotalTime,
		CreatedAt:  pr.CreatedAt,
		UpdatedAt:  pr.UpdatedAt,
	}
}

func (s *Server) handleListProcessResources(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindManufacturingProcess, ID: processID}, authz.ActionViewBOM) {
		return
	}

	items, err := s.store.ListProcessResources(r.Context(), processID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]lineItemResponse, 0, len(items))
	for _, pr := range items {
		out = append(out, toProcessResourceResponse(pr))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateProcessResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		writeValidation(w, "quantity must not be negative")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProcessResource, ID: id}, authz.ActionEditBOM) {
		return
	}

	pr, err := s.store.GetProcessResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetProcessResource(r.Context(), id, req.Quantity, pr.TotalCost, pr.TotalTime); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.ProcessResourceChanged(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	fresh, err := s.store.GetProcessResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcessResourceResponse(fresh))
}

func (s *Server) handleDeleteProcessResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProcessResource, ID: id}, authz.ActionEditBOM) {
		return
	}

	pr, err := s.store.GetProcessResource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mp, err := s.store.GetManufacturingProcess(r.Context(), pr.ProcessID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteProcessResource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.costing.RecomputeBOM(r.Context(), mp.BOMID); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "editBOM")
	w.WriteHeader(http.StatusNoContent)
}
