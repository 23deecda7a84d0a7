// ABOUTME: HTTP server wiring for the product lifecycle API
// ABOUTME: Composes auth middleware, project resolution, and role guarding

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/partforge/partforge/internal/audit"
	"github.com/partforge/partforge/internal/auth"
	"github.com/partforge/partforge/internal/authz"
	"github.com/partforge/partforge/internal/costing"
	"github.com/partforge/partforge/internal/invoice"
	"github.com/partforge/partforge/internal/store"
)

// Server hosts the HTTP API over the entity store.
type Server struct {
	store    *store.SQLiteStore
	resolver *authz.Resolver
	guard    *authz.Guard
	costing  *costing.Aggregator
	audit    *audit.Recorder
	verifier *auth.JWTVerifier
	renderer invoice.Renderer
	tokenTTL time.Duration
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New creates a Server wired against the given store.
func New(st *store.SQLiteStore, verifier *auth.JWTVerifier, renderer invoice.Renderer, tokenTTL time.Duration) *Server {
	return &Server{
		store:    st,
		resolver: authz.NewResolver(st),
		guard:    authz.NewGuard(st),
		costing:  costing.NewAggregator(st),
		audit:    audit.NewRecorder(st),
		verifier: verifier,
		renderer: renderer,
		tokenTTL: tokenTTL,
		logger:   slog.Default().With("component", "server"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(s.store, s.verifier)(h)
	}

	mux.Handle("GET /api/me", authed(s.handleMe))

	// Projects and roles.
	mux.Handle("POST /api/projects", authed(s.handleCreateProject))
	mux.Handle("GET /api/projects", authed(s.handleListProjects))
	mux.Handle("GET /api/projects/{id}", authed(s.handleGetProject))
	mux.Handle("PATCH /api/projects/{id}", authed(s.handleUpdateProject))
	mux.Handle("DELETE /api/projects/{id}", authed(s.handleDeleteProject))
	mux.Handle("POST /api/projects/{id}/roles", authed(s.handleAddRole))
	mux.Handle("GET /api/projects/{id}/roles", authed(s.handleListRoles))
	mux.Handle("DELETE /api/projects/{id}/roles/{roleID}", authed(s.handleRemoveRole))

	// Products and references.
	mux.Handle("POST /api/products", authed(s.handleCreateProduct))
	mux.Handle("GET /api/products", authed(s.handleListProducts))
	mux.Handle("GET /api/products/{id}", authed(s.handleGetProduct))
	mux.Handle("DELETE /api/products/{id}", authed(s.handleDeleteProduct))
	mux.Handle("POST /api/references", authed(s.handleCreateReference))
	mux.Handle("GET /api/references/{id}", authed(s.handleGetReference))
	mux.Handle("PATCH /api/references/{id}", authed(s.handleUpdateReference))
	mux.Handle("DELETE /api/references/{id}", authed(s.handleDeleteReference))

	// BOMs, line items, processes.
	mux.Handle("POST /api/boms", authed(s.handleCreateBOM))
	mux.Handle("GET /api/boms/{id}", authed(s.handleGetBOM))
	mux.Handle("GET /api/boms/{id}/overview", authed(s.handleBOMOverview))
	mux.Handle("DELETE /api/boms/{id}", authed(s.handleDeleteBOM))
	mux.Handle("POST /api/boms/{id}/resources", authed(s.handleCreateBOMResource))
	mux.Handle("GET /api/boms/{id}/resources", authed(s.handleListBOMResources))
	mux.Handle("PATCH /api/bom-resources/{id}", authed(s.handleUpdateBOMResource))
	mux.Handle("DELETE /api/bom-resources/{id}", authed(s.handleDeleteBOMResource))
	mux.Handle("POST /api/boms/{id}/processes", authed(s.handleCreateProcess))
	mux.Handle("GET /api/boms/{id}/processes", authed(s.handleListProcesses))
	mux.Handle("PATCH /api/processes/{id}", authed(s.handleUpdateProcess))
	mux.Handle("DELETE /api/processes/{id}", authed(s.handleDeleteProcess))
	mux.Handle("POST /api/processes/{id}/resources", authed(s.handleCreateProcessResource))
	mux.Handle("GET /api/processes/{id}/resources", authed(s.handleListProcessResources))
	mux.Handle("PATCH /api/process-resources/{id}", authed(s.handleUpdateProcessResource))
	mux.Handle("DELETE /api/process-resources/{id}", authed(s.handleDeleteProcessResource))

	// Resources and suppliers.
	mux.Handle("POST /api/resources", authed(s.handleCreateResource))
	mux.Handle("GET /api/resources/{id}", authed(s.handleGetResource))
	mux.Handle("PATCH /api/resources/{id}", authed(s.handleUpdateResource))
	mux.Handle("DELETE /api/resources/{id}", authed(s.handleDeleteResource))
	mux.Handle("POST /api/suppliers", authed(s.handleCreateSupplier))
	mux.Handle("GET /api/suppliers/{id}", authed(s.handleGetSupplier))
	mux.Handle("PATCH /api/suppliers/{id}", authed(s.handleUpdateSupplier))
	mux.Handle("DELETE /api/suppliers/{id}", authed(s.handleDeleteSupplier))

	// Customers, needs, requirements, specifications, invoices.
	mux.Handle("POST /api/customers", authed(s.handleCreateCustomer))
	mux.Handle("GET /api/customers/{id}", authed(s.handleGetCustomer))
	mux.Handle("DELETE /api/customers/{id}", authed(s.handleDeleteCustomer))
	mux.Handle("POST /api/customers/{id}/needs", authed(s.handleCreateNeed))
	mux.Handle("GET /api/needs/{id}", authed(s.handleGetNeed))
	mux.Handle("DELETE /api/needs/{id}", authed(s.handleDeleteNeed))
	mux.Handle("POST /api/needs/{id}/requirements", authed(s.handleCreateRequirement))
	mux.Handle("GET /api/requirements/{id}", authed(s.handleGetRequirement))
	mux.Handle("DELETE /api/requirements/{id}", authed(s.handleDeleteRequirement))
	mux.Handle("POST /api/requirements/{id}/specifications", authed(s.handleCreateSpecification))
	mux.Handle("GET /api/specifications/{id}", authed(s.handleGetSpecification))
	mux.Handle("DELETE /api/specifications/{id}", authed(s.handleDeleteSpecification))
	mux.Handle("POST /api/invoices", authed(s.handleCreateInvoice))
	mux.Handle("GET /api/invoices/{id}", authed(s.handleGetInvoice))
	mux.Handle("GET /api/invoices/{id}/render", authed(s.handleRenderInvoice))
	mux.Handle("DELETE /api/invoices/{id}", authed(s.handleDeleteInvoice))

	// Documents, CAD files, simulations.
	mux.Handle("POST /api/references/{id}/documents", authed(s.handleCreateDocument))
	mux.Handle("GET /api/documents/{id}", authed(s.handleGetDocument))
	mux.Handle("DELETE /api/documents/{id}", authed(s.handleDeleteDocument))
	mux.Handle("POST /api/references/{id}/cad-files", authed(s.handleCreateCADFile))
	mux.Handle("GET /api/cad-files/{id}", authed(s.handleGetCADFile))
	mux.Handle("DELETE /api/cad-files/{id}", authed(s.handleDeleteCADFile))
	mux.Handle("POST /api/references/{id}/simulations", authed(s.handleCreateSimulation))
	mux.Handle("GET /api/simulations/{id}", authed(s.handleGetSimulation))
	mux.Handle("DELETE /api/simulations/{id}", authed(s.handleDeleteSimulation))

	// Workflows, steps, tasks.
	mux.Handle("POST /api/workflows", authed(s.handleCreateWorkflow))
	mux.Handle("GET /api/workflows/{id}", authed(s.handleGetWorkflow))
	mux.Handle("DELETE /api/workflows/{id}", authed(s.handleDeleteWorkflow))
	mux.Handle("POST /api/workflows/{id}/steps", authed(s.handleCreateStep))
	mux.Handle("GET /api/workflows/{id}/steps", authed(s.handleListSteps))
	mux.Handle("DELETE /api/steps/{id}", authed(s.handleDeleteStep))
	mux.Handle("POST /api/steps/{id}/tasks", authed(s.handleCreateTask))
	mux.Handle("GET /api/steps/{id}/tasks", authed(s.handleListTasks))
	mux.Handle("PATCH /api/tasks/{id}", authed(s.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", authed(s.handleDeleteTask))

	// Audit log.
	mux.Handle("GET /api/audit", authed(s.handleListAudit))

	return mux
}

// Start begins serving on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize resolves the project set for ref and asks the guard whether the
// request's user may perform action. On denial or error it writes the
// response and returns false.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, ref authz.Ref, action authz.Action) bool {
	user := auth.MustUserFromContext(r.Context())
	projects, err := s.resolver.ResolveProjects(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return false
	}
	decision, err := s.guard.Authorize(r.Context(), user, authz.AuthorizationContext{Projects: projects, Action: action})
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if !decision.Allowed {
		writeDeny(w, decision)
		return false
	}
	return true
}

// record appends an audit entry for the acting user. Failures are logged
// inside the recorder and never fail the request.
func (s *Server) record(r *http.Request, action string) {
	user := auth.MustUserFromContext(r.Context())
	s.audit.Record(r.Context(), &user.ID, action)
}
