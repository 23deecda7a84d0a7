// ABOUTME: Customer chain handlers: needs, requirements, specifications, invoices
// ABOUTME: Access to the chain resolves through the customer's invoiced projects

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/invoice"
	"github.com/partforge/partforge/internal/store"
)

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toCustomerResponse(c *store.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
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

	c := &store.Customer{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateCustomer(r.Context(), c); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "createCustomer")
	writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCustomer, ID: id}, authz.ActionManageNeeds) {
		return
	}

	if err := s.store.DeleteCustomerCascade(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "deleteCustomer")
	w.WriteHeader(http.StatusNoContent)
}

type needResponse struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleCreateNeed(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("id")
	var req struct {
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Description == "" {
		writeValidation(w, "description is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCustomer, ID: customerID}, authz.ActionManageNeeds) {
		return
	}

	n := &store.CustomerNeed{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateCustomerNeed(r.Context(), n); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageCustomerNeeds")
	writeJSON(w, http.StatusCreated, needResponse{n.ID, n.CustomerID, n.Description, n.CreatedAt})
}

func (s *Server) handleGetNeed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCustomerNeed, ID: id}, authz.ActionViewReqs) {
		return
	}

	n, err := s.store.GetCustomerNeed(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, needResponse{n.ID, n.CustomerID, n.Description, n.CreatedAt})
}

func (s *Server) handleDeleteNeed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCustomerNeed, ID: id}, authz.ActionManageNeeds) {
		return
	}

	if err := s.store.DeleteCustomerNeed(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageCustomerNeeds")
	w.WriteHeader(http.StatusNoContent)
}

type requirementResponse struct {
	ID             string    `json:"id"`
	CustomerNeedID string    `json:"customer_need_id"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Server) handleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	needID := r.PathValue("id")
	var req struct {
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Description == "" {
		writeValidation(w, "description is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindCustomerNeed, ID: needID}, authz.ActionManageReqs) {
		return
	}

	rq := &store.Requirement{
		ID:             uuid.NewString(),
		CustomerNeedID: needID,
		Description:    req.Description,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateRequirement(r.Context(), rq); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageRequirements")
	writeJSON(w, http.StatusCreated, requirementResponse{rq.ID, rq.CustomerNeedID, rq.Description, rq.CreatedAt})
}

func (s *Server) handleGetRequirement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindRequirement, ID: id}, authz.ActionViewReqs) {
		return
	}

	rq, err := s.store.GetRequirement(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requirementResponse{rq.ID, rq.CustomerNeedID, rq.Description, rq.CreatedAt})
}

func (s *Server) handleDeleteRequirement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindRequirement, ID: id}, authz.ActionManageReqs) {
		return
	}

	if err := s.store.DeleteRequirement(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageRequirements")
	w.WriteHeader(http.StatusNoContent)
}

type specificationResponse struct {
	ID            string    `json:"id"`
	RequirementID string    `json:"requirement_id"`
	BOMID         *string   `json:"bom_id"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) handleCreateSpecification(w http.ResponseWriter, r *http.Request) {
	requirementID := r.PathValue("id")
	var req struct {
		Description string  `json:"description"`
		BOMID       *string `json:"bom_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Description == "" {
		writeValidation(w, "description is required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindRequirement, ID: requirementID}, authz.ActionManageReqs) {
		return
	}

	sp := &store.Specification{
		ID:            uuid.NewString(),
		RequirementID: requirementID,
		BOMID:         req.BOMID,
		Description:   req.Description,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateSpecification(r.Context(), sp); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageRequirements")
	writeJSON(w, http.StatusCreated, specificationResponse{sp.ID, sp.RequirementID, sp.BOMID, sp.Description, sp.CreatedAt})
}

func (s *Server) handleGetSpecification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSpecification, ID: id}, authz.ActionViewReqs) {
		return
	}

	sp, err := s.store.GetSpecification(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, specificationResponse{sp.ID, sp.RequirementID, sp.BOMID, sp.Description, sp.CreatedAt})
}

func (s *Server) handleDeleteSpecification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindSpecification, ID: id}, authz.ActionManageReqs) {
		return
	}

	if err := s.store.DeleteSpecification(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageRequirements")
	w.WriteHeader(http.StatusNoContent)
}

type invoiceResponse struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProjectID  string    `json:"project_id"`
	BOMID      *string   `json:"bom_id"`
	TotalCost  float64   `json:"total_cost"`
	TotalTime  float64   `json:"total_time"`
	LineCount  int       `json:"line_count"`
	IssuedAt   time.Time `json:"issued_at"`
}

func toInvoiceResponse(inv *store.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		ProjectID:  inv.ProjectID,
		BOMID:      inv.BOMID,
		TotalCost:  inv.TotalCost,
		TotalTime:  inv.TotalTime,
		LineCount:  inv.LineCount,
		IssuedAt:   inv.IssuedAt,
	}
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		ProjectID  string `json:"project_id"`
		BOMID      string `json:"bom_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CustomerID == "" || req.ProjectID == "" || req.BOMID == "" {
		writeValidation(w, "customer_id, project_id and bom_id are required")
		return
	}
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindProject, ID: req.ProjectID}, authz.ActionManageInvoices) {
		return
	}
	if _, err := s.store.GetCustomer(r.Context(), req.CustomerID); err != nil {
		s.writeError(w, err)
		return
	}

	snapshot, err := invoice.TakeSnapshot(r.Context(), s.store, req.BOMID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	inv := &store.Invoice{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		ProjectID:  req.ProjectID,
		BOMID:      &snapshot.BOMID,
		TotalCost:  snapshot.TotalCost,
		TotalTime:  snapshot.TotalTime,
		LineCount:  snapshot.LineCount,
		IssuedAt:   time.Now(),
	}
	if err := s.store.CreateInvoice(r.Context(), inv); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageInvoices")
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindInvoice, ID: id}, authz.ActionManageInvoices) {
		return
	}

	inv, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (s *Server) handleRenderInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindInvoice, ID: id}, authz.ActionManageInvoices) {
		return
	}

	inv, err := s.store.GetInvoice(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	customer, err := s.store.GetCustomer(r.Context(), inv.CustomerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	project, err := s.store.GetProject(r.Context(), inv.ProjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	bomID := ""
	if inv.BOMID != nil {
		bomID = *inv.BOMID
	}
	doc, err := s.renderer.Render(invoice.Snapshot{
		BOMID:     bomID,
		TotalCost: inv.TotalCost,
		TotalTime: inv.TotalTime,
		LineCount: inv.LineCount,
	}, customer, project)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s", inv.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, authz.Ref{Kind: authz.KindInvoice, ID: id}, authz.ActionManageInvoices) {
		return
	}

	if err := s.store.DeleteInvoice(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.record(r, "manageInvoices")
	w.WriteHeader(http.StatusNoContent)
}
