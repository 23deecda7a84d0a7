// ABOUTME: Tests for user, project and role store operations
// ABOUTME: Uses a throwaway SQLite database per test

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, email string) *User {
	t.Helper()

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		DisplayName:  "Test User",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createTestProject(t *testing.T, s *SQLiteStore, creatorID string, required RequiredRoles) *Project {
	t.Helper()

	now := time.Now()
	p := &Project{
		ID:            uuid.NewString(),
		Name:          "Test Project",
		CreatorID:     creatorID,
		RequiredRoles: required,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateProject(context.Background(), p, uuid.NewString()))
	return p
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := setupTestStore(t)
	createTestUser(t, s, "dup@example.com")

	u := &User{
		ID:           uuid.NewString(),
		Email:        "dup@example.com",
		PasswordHash: "y",
		CreatedAt:    time.Now(),
	}
	err := s.CreateUser(context.Background(), u)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetUser_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProject_GrantsCreatorRole(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	project := createTestProject(t, s, user.ID, nil)

	roles, err := s.ListUserRoles(ctx, project.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []RoleName{RoleProjectCreator}, roles)
}

func TestProject_RequiredRolesRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	required := RequiredRoles{
		"editBOM": {"Engineer", "Lead"},
		"viewBOM": {"Engineer", "Viewer"},
	}
	project := createTestProject(t, s, user.ID, required)

	got, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, required, got.RequiredRoles)
}

func TestUpdateProject(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	project := createTestProject(t, s, user.ID, nil)

	project.Name = "Renamed"
	project.RequiredRoles = RequiredRoles{"viewBOM": {"Viewer"}}
	project.UpdatedAt = time.Now()
	require.NoError(t, s.UpdateProject(ctx, project))

	got, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, []RoleName{"Viewer"}, got.RequiredRoles["viewBOM"])
}

func TestDeleteProject_CascadesRolesAndWorkflow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	project := createTestProject(t, s, user.ID, nil)

	wf := &Workflow{ID: uuid.NewString(), ProjectID: project.ID, CreatedAt: time.Now()}
	require.NoError(t, s.CreateWorkflow(ctx, wf))
	step := &WorkflowStep{ID: uuid.NewString(), WorkflowID: wf.ID, Position: 1, Name: "Design", CreatedAt: time.Now()}
	require.NoError(t, s.CreateWorkflowStep(ctx, step))

	require.NoError(t, s.DeleteProject(ctx, project.ID))

	_, err := s.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetWorkflow(ctx, wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetWorkflowStep(ctx, step.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	roles, err := s.ListUserRoles(ctx, project.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestAddRole_MultiplePerUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	creator := createTestUser(t, s, "creator@example.com")
	member := createTestUser(t, s, "member@example.com")
	project := createTestProject(t, s, creator.ID, nil)

	for _, name := range []RoleName{"Engineer", "Buyer"} {
		role := &Role{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			UserID:    member.ID,
			Name:      name,
			CreatedAt: time.Now(),
		}
		require.NoError(t, s.AddRole(ctx, role))
	}

	roles, err := s.ListUserRoles(ctx, project.ID, member.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
	assert.Contains(t, roles, RoleName("Engineer"))
	assert.Contains(t, roles, RoleName("Buyer"))
}

func TestSetFullAccess(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "admin@example.com")
	require.NoError(t, s.SetFullAccess(ctx, user.ID, true))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.FullAccess)
}

func TestWorkflow_OnePerProject(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	project := createTestProject(t, s, user.ID, nil)

	first := &Workflow{ID: uuid.NewString(), ProjectID: project.ID, CreatedAt: time.Now()}
	require.NoError(t, s.CreateWorkflow(ctx, first))

	second := &Workflow{ID: uuid.NewString(), ProjectID: project.ID, CreatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateWorkflow(ctx, second), ErrConflict)
}
