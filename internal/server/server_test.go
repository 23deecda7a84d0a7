// ABOUTME: End-to-end HTTP tests over the full handler stack
// ABOUTME: Exercises auth, guarding, costing propagation and auditing

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/auth"
	"github.com/partforge/partforge/internal/invoice"
	"github.com/partforge/partforge/internal/store"
)

var testSecret = []byte("partforge-test-secret-32-bytes!!")

type testServer struct {
	handler http.Handler
	store   *store.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := New(st, auth.NewJWTVerifier(testSecret), invoice.TextRenderer{}, time.Hour)
	return &testServer{handler: srv.Handler(), store: st}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// registerAndLogin creates a user and returns its ID and bearer token.
func (ts *testServer) registerAndLogin(t *testing.T, email string) (string, string) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"email":        email,
		"password":     "hunter2",
		"display_name": "Test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody[map[string]any](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    email,
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody[map[string]any](t, rec)

	return user["id"].(string), login["token"].(string)
}

func (ts *testServer) createProject(t *testing.T, token string, required map[string][]string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/projects", token, map[string]any{
		"name":           "Drivetrain",
		"required_roles": required,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]any](t, rec)["id"].(string)
}

func (ts *testServer) createLinkedReference(t *testing.T, token, projectID string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/products", token, map[string]string{"name": "Gearbox"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := decodeBody[map[string]any](t, rec)["id"].(string)

	body := map[string]any{"code": "REF-" + projectID[:8], "product_id": productID}
	if projectID != "" {
		body["project_id"] = projectID
	}
	rec = ts.do(t, http.MethodPost, "/api/references", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]any](t, rec)["id"].(string)
}

func (ts *testServer) createResource(t *testing.T, token string, unitCost, unitTime float64) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/resources", token, map[string]any{
		"name":      "Steel",
		"unit_cost": unitCost,
		"unit_time": unitTime,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]any](t, rec)["id"].(string)
}

func TestAuth_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")

	rec := ts.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "alice@example.com", me["email"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndLogin(t, "alice@example.com")
	rec := ts.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ConflictError", decodeBody[map[string]any](t, rec)["error"])
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)

	ts.registerAndLogin(t, "alice@example.com")
	rec := ts.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProject_CreatorBypassesRoles(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)

	// No requiredRoles configured at all, yet the creator may edit.
	rec := ts.do(t, http.MethodPatch, "/api/projects/"+projectID, token, map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decodeBody[map[string]any](t, rec)["name"])
}

func TestProject_OutsiderDenied(t *testing.T) {
	ts := newTestServer(t)

	_, creator := ts.registerAndLogin(t, "alice@example.com")
	_, outsider := ts.registerAndLogin(t, "bob@example.com")
	projectID := ts.createProject(t, creator, nil)

	rec := ts.do(t, http.MethodGet, "/api/projects/"+projectID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "InsufficientRole", decodeBody[map[string]any](t, rec)["error"])
}

func TestProject_RoleGrantsAction(t *testing.T) {
	ts := newTestServer(t)

	_, creator := ts.registerAndLogin(t, "alice@example.com")
	memberID, member := ts.registerAndLogin(t, "bob@example.com")
	projectID := ts.createProject(t, creator, map[string][]string{
		"viewProject": {"Viewer"},
	})

	rec := ts.do(t, http.MethodGet, "/api/projects/"+projectID, member, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/projects/"+projectID+"/roles", creator, map[string]string{
		"user_id": memberID,
		"name":    "Viewer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/projects/"+projectID, member, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBOM_CreateOnUnlinkedReferenceDenied(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/api/products", token, map[string]string{"name": "Gearbox"})
	require.Equal(t, http.StatusCreated, rec.Code)
	productID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/references", token, map[string]any{
		"code":       "REF-X",
		"product_id": productID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	refID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ProjectRequired", decodeBody[map[string]any](t, rec)["error"])
}

func TestBOM_CostRollupThroughAPI(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)
	refID := ts.createLinkedReference(t, token, projectID)

	rec := ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	materialID := ts.createResource(t, token, 10, 2)
	machineID := ts.createResource(t, token, 50, 1)

	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/resources", token, map[string]any{
		"resource_id": materialID,
		"quantity":    3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	line := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 30, line["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 6, line["total_time"].(float64), 1e-9)

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bom := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 30, bom["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 6, bom["total_time"].(float64), 1e-9)

	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/processes", token, map[string]any{
		"resource_id": machineID,
		"quantity":    1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID, token, nil)
	bom = decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 80, bom["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 7, bom["total_time"].(float64), 1e-9)

	// Editing the material's unit cost propagates into the BOM.
	rec = ts.do(t, http.MethodPatch, "/api/resources/"+materialID, token, map[string]any{
		"unit_cost": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID, token, nil)
	bom = decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 110, bom["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 7, bom["total_time"].(float64), 1e-9)
}

func TestProcess_QuantityUpdateRecomputesBOM(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)
	refID := ts.createLinkedReference(t, token, projectID)

	rec := ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	machineID := ts.createResource(t, token, 50, 1)
	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/processes", token, map[string]any{
		"resource_id": machineID,
		"quantity":    1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	processID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPatch, "/api/processes/"+processID, token, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mp := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 3, mp["quantity"].(float64), 1e-9)
	assert.InDelta(t, 150, mp["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 3, mp["total_time"].(float64), 1e-9)

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID, token, nil)
	bom := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, 150, bom["total_cost"].(float64), 1e-9)
	assert.InDelta(t, 3, bom["total_time"].(float64), 1e-9)

	rec = ts.do(t, http.MethodPatch, "/api/processes/"+processID, token, map[string]any{"quantity": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBOM_DeleteCascades(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)
	refID := ts.createLinkedReference(t, token, projectID)

	rec := ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code)
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	resID := ts.createResource(t, token, 10, 2)
	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/resources", token, map[string]any{
		"resource_id": resID,
		"quantity":    1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	lineID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodDelete, "/api/boms/"+bomID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPatch, "/api/bom-resources/"+lineID, token, map[string]any{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoice_SnapshotAndRender(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)
	refID := ts.createLinkedReference(t, token, projectID)

	rec := ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code)
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	resID := ts.createResource(t, token, 10, 2)
	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/resources", token, map[string]any{
		"resource_id": resID,
		"quantity":    3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/customers", token, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	customerID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/invoices", token, map[string]string{
		"customer_id": customerID,
		"project_id":  projectID,
		"bom_id":      bomID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[map[string]any](t, rec)
	invoiceID := inv["id"].(string)
	assert.InDelta(t, 30, inv["total_cost"].(float64), 1e-9)
	assert.Equal(t, float64(1), inv["line_count"])

	// Later BOM edits do not touch the issued snapshot.
	rec = ts.do(t, http.MethodPatch, "/api/resources/"+resID, token, map[string]any{"unit_cost": 99})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invoices/"+invoiceID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 30, decodeBody[map[string]any](t, rec)["total_cost"].(float64), 1e-9)

	rec = ts.do(t, http.MethodGet, "/api/invoices/"+invoiceID+"/render", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")
	assert.Contains(t, rec.Body.String(), "Total cost: 30.00")
}

func TestCustomerNeed_ResolvesThroughInvoices(t *testing.T) {
	ts := newTestServer(t)

	_, creator := ts.registerAndLogin(t, "alice@example.com")
	_, outsider := ts.registerAndLogin(t, "bob@example.com")

	rec := ts.do(t, http.MethodPost, "/api/customers", creator, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	customerID := decodeBody[map[string]any](t, rec)["id"].(string)

	// No invoices yet: the customer resolves to no projects at all.
	rec = ts.do(t, http.MethodPost, "/api/customers/"+customerID+"/needs", creator, map[string]string{
		"description": "must be fast",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ProjectRequired", decodeBody[map[string]any](t, rec)["error"])

	projectID := ts.createProject(t, creator, nil)
	refID := ts.createLinkedReference(t, creator, projectID)
	rec = ts.do(t, http.MethodPost, "/api/boms", creator, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code)
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/invoices", creator, map[string]string{
		"customer_id": customerID,
		"project_id":  projectID,
		"bom_id":      bomID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Now the chain resolves to the project; the creator passes.
	rec = ts.do(t, http.MethodPost, "/api/customers/"+customerID+"/needs", creator, map[string]string{
		"description": "must be fast",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// An outsider holds no role there.
	rec = ts.do(t, http.MethodPost, "/api/customers/"+customerID+"/needs", outsider, map[string]string{
		"description": "must be cheap",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "InsufficientRole", decodeBody[map[string]any](t, rec)["error"])
}

func TestAudit_FullAccessOnly(t *testing.T) {
	ts := newTestServer(t)

	userID, token := ts.registerAndLogin(t, "alice@example.com")

	rec := ts.do(t, http.MethodGet, "/api/audit", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, ts.store.SetFullAccess(t.Context(), userID, true))

	rec = ts.do(t, http.MethodGet, "/api/audit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decodeBody[[]map[string]any](t, rec)
	assert.NotEmpty(t, entries)

	found := false
	for _, e := range entries {
		if e["action"] == "registerUser" {
			found = true
		}
	}
	assert.True(t, found, "expected registerUser entry, got %v", entries)
}

func TestWorkflow_TasksGuarded(t *testing.T) {
	ts := newTestServer(t)

	_, creator := ts.registerAndLogin(t, "alice@example.com")
	memberID, member := ts.registerAndLogin(t, "bob@example.com")
	projectID := ts.createProject(t, creator, map[string][]string{
		"viewWorkflow": {"Engineer"},
		"viewTasks":    {"Engineer"},
	})

	rec := ts.do(t, http.MethodPost, "/api/workflows", creator, map[string]string{"project_id": projectID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	workflowID := decodeBody[map[string]any](t, rec)["id"].(string)

	// One workflow per project.
	rec = ts.do(t, http.MethodPost, "/api/workflows", creator, map[string]string{"project_id": projectID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/workflows/"+workflowID+"/steps", creator, map[string]any{
		"position": 1,
		"name":     "Design",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	stepID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/projects/"+projectID+"/roles", creator, map[string]string{
		"user_id": memberID,
		"name":    "Engineer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	roleID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/steps/"+stepID+"/tasks", creator, map[string]string{
		"role_id": roleID,
		"title":   "Draft the gearbox",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Member holds Engineer: may view but not manage.
	rec = ts.do(t, http.MethodGet, "/api/steps/"+stepID+"/tasks", member, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/steps/"+stepID+"/tasks", member, map[string]string{
		"role_id": roleID,
		"title":   "Sneaky task",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidation_BadJSON(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader([]byte("{nope")))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decodeBody[map[string]any](t, rec)["error"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestBOMOverview_IncludesSuppliers(t *testing.T) {
	ts := newTestServer(t)

	_, token := ts.registerAndLogin(t, "alice@example.com")
	projectID := ts.createProject(t, token, nil)
	refID := ts.createLinkedReference(t, token, projectID)

	rec := ts.do(t, http.MethodPost, "/api/boms", token, map[string]string{"reference_id": refID})
	require.Equal(t, http.StatusCreated, rec.Code)
	bomID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/suppliers", token, map[string]string{"name": "Bolts Inc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	supplierID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/resources", token, map[string]any{
		"name":        "Bolt",
		"unit_cost":   1,
		"unit_time":   0,
		"supplier_id": supplierID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resID := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = ts.do(t, http.MethodPost, "/api/boms/"+bomID+"/resources", token, map[string]any{
		"resource_id": resID,
		"quantity":    8,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/boms/"+bomID+"/overview", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var overview struct {
		Lines []struct {
			SupplierName string  `json:"supplier_name"`
			TotalCost    float64 `json:"total_cost"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	require.Len(t, overview.Lines, 1)
	assert.Equal(t, "Bolts Inc", overview.Lines[0].SupplierName)
	assert.InDelta(t, 8, overview.Lines[0].TotalCost, 1e-9)
}

func TestReference_RelinkRequiresTargetProject(t *testing.T) {
	ts := newTestServer(t)

	_, alice := ts.registerAndLogin(t, "alice@example.com")
	_, bob := ts.registerAndLogin(t, "bob@example.com")

	aliceProject := ts.createProject(t, alice, nil)
	refID := ts.createLinkedReference(t, alice, aliceProject)

	rec := ts.do(t, http.MethodPost, "/api/projects", bob, map[string]any{"name": "Bob's"})
	require.Equal(t, http.StatusCreated, rec.Code)
	bobProject := decodeBody[map[string]any](t, rec)["id"].(string)

	// Alice cannot relink into a project she has no role in.
	rec = ts.do(t, http.MethodPatch, "/api/references/"+refID, alice, map[string]string{
		"project_id": bobProject,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
