// ABOUTME: Tests for the access guard's allow/deny decisions
// ABOUTME: Covers creator and full-access bypasses and multi-project OR checks

package authz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/store"
)

func (f *fixture) createUser(t *testing.T, email string) *store.User {
	t.Helper()

	u := &store.User{
		ID: uuid.NewString(), Email: email, PasswordHash: "x", CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) grantRole(t *testing.T, projectID, userID string, name store.RoleName) {
	t.Helper()

	role := &store.Role{
		ID: uuid.NewString(), ProjectID: projectID, UserID: userID,
		Name: name, CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.AddRole(context.Background(), role))
}

func TestGuard_FullAccessBypass(t *testing.T) {
	f := setupFixture(t)
	g := NewGuard(f.store)
	ctx := context.Background()

	admin := f.createUser(t, "admin@example.com")
	require.NoError(t, f.store.SetFullAccess(ctx, admin.ID, true))
	admin.FullAccess = true

	// Even an empty project set passes for full access.
	d, err := g.Authorize(ctx, admin, AuthorizationContext{Projects: ProjectSet{}, Action: ActionEditBOM})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGuard_EmptySetDenied(t *testing.T) {
	f := setupFixture(t)
	g := NewGuard(f.store)

	d, err := g.Authorize(context.Background(), f.user, AuthorizationContext{Projects: ProjectSet{}, Action: ActionEditBOM})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyProjectRequired, d.Reason)
}

func TestGuard_CreatorBypass(t *testing.T) {
	f := setupFixture(t)
	g := NewGuard(f.store)

	// No requiredRoles configured at all; the creator still passes.
	d, err := g.Authorize(context.Background(), f.user, AuthorizationContext{
		Projects: singleton(f.project.ID),
		Action:   ActionEditBOM,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, f.project.ID, d.ProjectID)
}

func TestGuard_RoleMatch(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)

	f.project.RequiredRoles = store.RequiredRoles{"editBOM": {"Engineer"}}
	require.NoError(t, f.store.UpdateProject(ctx, f.project))

	member := f.createUser(t, "member@example.com")
	f.grantRole(t, f.project.ID, member.ID, "Engineer")

	d, err := g.Authorize(ctx, member, AuthorizationContext{
		Projects: singleton(f.project.ID),
		Action:   ActionEditBOM,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, f.project.ID, d.ProjectID)
}

func TestGuard_WrongRoleDenied(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)

	f.project.RequiredRoles = store.RequiredRoles{"editBOM": {"Engineer"}}
	require.NoError(t, f.store.UpdateProject(ctx, f.project))

	member := f.createUser(t, "member@example.com")
	f.grantRole(t, f.project.ID, member.ID, "Viewer")

	d, err := g.Authorize(ctx, member, AuthorizationContext{
		Projects: singleton(f.project.ID),
		Action:   ActionEditBOM,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyInsufficientRole, d.Reason)
}

func TestGuard_AbsentActionKeyDenied(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)

	member := f.createUser(t, "member@example.com")
	f.grantRole(t, f.project.ID, member.ID, "Engineer")

	// No requiredRoles entry for editBOM: a held role does not help.
	d, err := g.Authorize(ctx, member, AuthorizationContext{
		Projects: singleton(f.project.ID),
		Action:   ActionEditBOM,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyInsufficientRole, d.Reason)
}

// A customer invoiced under two projects: holding the required role in
// either one of them is enough to act on the customer's needs.
func TestGuard_MultiProjectOr(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)
	r := NewResolver(f.store)

	now := time.Now()
	p2 := &store.Project{
		ID: uuid.NewString(), Name: "Chassis", CreatorID: f.user.ID,
		RequiredRoles: store.RequiredRoles{"manageCustomerNeeds": {"Account Manager"}},
		CreatedAt:     now, UpdatedAt: now,
	}
	require.NoError(t, f.store.CreateProject(ctx, p2, uuid.NewString()))

	customer := &store.Customer{ID: uuid.NewString(), Name: "Acme", CreatedAt: now}
	require.NoError(t, f.store.CreateCustomer(ctx, customer))
	need := &store.CustomerNeed{ID: uuid.NewString(), CustomerID: customer.ID, Description: "fast", CreatedAt: now}
	require.NoError(t, f.store.CreateCustomerNeed(ctx, need))

	for _, projectID := range []string{f.project.ID, p2.ID} {
		inv := &store.Invoice{
			ID: uuid.NewString(), CustomerID: customer.ID, ProjectID: projectID,
			IssuedAt: now,
		}
		require.NoError(t, f.store.CreateInvoice(ctx, inv))
	}

	member := f.createUser(t, "member@example.com")
	f.grantRole(t, p2.ID, member.ID, "Account Manager")

	projects, err := r.ResolveProjects(ctx, Ref{Kind: KindCustomerNeed, ID: need.ID})
	require.NoError(t, err)
	require.Len(t, projects, 2)

	d, err := g.Authorize(ctx, member, AuthorizationContext{
		Projects: projects,
		Action:   ActionManageNeeds,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, p2.ID, d.ProjectID)
}

func TestGuard_BrokenProjectDoesNotMaskGrant(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)

	// One project in the set no longer exists. The surviving project still
	// grants via the creator bypass.
	set := ProjectSet{}
	set.Add(uuid.NewString())
	set.Add(f.project.ID)

	d, err := g.Authorize(ctx, f.user, AuthorizationContext{Projects: set, Action: ActionEditBOM})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, f.project.ID, d.ProjectID)

	// With no allowing project left, the load failure surfaces.
	outsider := f.createUser(t, "outsider@example.com")
	_, err = g.Authorize(ctx, outsider, AuthorizationContext{Projects: set, Action: ActionEditBOM})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGuard_MultiProjectAllDenied(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)

	now := time.Now()
	p2 := &store.Project{
		ID: uuid.NewString(), Name: "Chassis", CreatorID: f.user.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.store.CreateProject(ctx, p2, uuid.NewString()))

	outsider := f.createUser(t, "outsider@example.com")

	set := ProjectSet{}
	set.Add(f.project.ID)
	set.Add(p2.ID)

	d, err := g.Authorize(ctx, outsider, AuthorizationContext{Projects: set, Action: ActionViewBOM})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyInsufficientRole, d.Reason)
}
