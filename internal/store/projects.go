// ABOUTME: Project and Role entities with required-role configuration per action
// ABOUTME: Projects are the access-control boundary; roles bind users to them

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RoleName identifies a role within a project. Names are not globally
// unique; projects may define new ones at runtime.
type RoleName string

// RoleProjectCreator is assigned implicitly when a project is created.
const RoleProjectCreator RoleName = "Project Creator"

// RequiredRoles maps an action name to the role names that grant it.
// An absent action key means nobody short of the creator or a full-access
// user may perform it.
type RequiredRoles map[string][]RoleName

// Project is the access-control boundary. The creator implicitly passes
// every authorization check for the project.
type Project struct {
	ID            string
	Name          string
	CreatorID     string
	RequiredRoles RequiredRoles
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Role is a named assignment of a user to a project. A user may hold
// several roles in the same project.
type Role struct {
	ID        string
	ProjectID string
	UserID    string
	Name      RoleName
	CreatedAt time.Time
}

// CreateProject inserts a project and the implicit creator role in one
// transaction.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project, creatorRoleID string) error {
	if p.RequiredRoles == nil {
		p.RequiredRoles = RequiredRoles{}
	}
	rolesJSON, err := json.Marshal(p.RequiredRoles)
	if err != nil {
		return fmt.Errorf("marshaling required roles: %w", err)
	}

	createdAt := p.CreatedAt.UTC().Format(time.RFC3339)
	updatedAt := p.UpdatedAt.UTC().Format(time.RFC3339)

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, creator_id, required_roles, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.CreatorID, string(rolesJSON), createdAt, updatedAt)
		if err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO roles (id, project_id, user_id, name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, creatorRoleID, p.ID, p.CreatorID, RoleProjectCreator, createdAt)
		if err != nil {
			return fmt.Errorf("inserting creator role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created project", "id", p.ID, "name", p.Name, "creator", p.CreatorID)
	return nil
}

// GetProject retrieves a project by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, name, creator_id, required_roles, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var p Project
	var rolesJSON, createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.CreatorID, &rolesJSON, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	if err := json.Unmarshal([]byte(rolesJSON), &p.RequiredRoles); err != nil {
		return nil, fmt.Errorf("unmarshaling required roles: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*Project, error) {
	query := `
		SELECT id, name, creator_id, required_roles, created_at, updated_at
		FROM projects
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var rolesJSON, createdAtStr, updatedAtStr string

		if err := rows.Scan(&p.ID, &p.Name, &p.CreatorID, &rolesJSON, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		if err := json.Unmarshal([]byte(rolesJSON), &p.RequiredRoles); err != nil {
			return nil, fmt.Errorf("unmarshaling required roles: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// UpdateProject updates a project's name and required-roles configuration.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	rolesJSON, err := json.Marshal(p.RequiredRoles)
	if err != nil {
		return fmt.Errorf("marshaling required roles: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, required_roles = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, string(rolesJSON), p.UpdatedAt.UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated project", "id", p.ID)
	return nil
}

// DeleteProject removes a project, its roles, its workflow and the
// workflow's steps and tasks in a single transaction.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM tasks WHERE step_id IN (
				SELECT ws.id FROM workflow_steps ws
				JOIN workflows w ON w.id = ws.workflow_id
				WHERE w.project_id = ?
			)
		`, id)
		if err != nil {
			return fmt.Errorf("deleting project tasks: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM workflow_steps WHERE workflow_id IN (
				SELECT id FROM workflows WHERE project_id = ?
			)
		`, id)
		if err != nil {
			return fmt.Errorf("deleting workflow steps: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("deleting workflow: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("deleting roles: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("deleting project: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted project", "id", id)
	return nil
}

// AddRole assigns a role to a user in a project.
func (s *SQLiteStore) AddRole(ctx context.Context, r *Role) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, project_id, user_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.ProjectID, r.UserID, r.Name, r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("adding role: %w", err)
	}

	s.logger.Debug("added role", "project_id", r.ProjectID, "user_id", r.UserID, "name", r.Name)
	return nil
}

// RemoveRole deletes a role assignment by ID.
func (s *SQLiteStore) RemoveRole(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("removing role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed role", "id", id)
	return nil
}

// ListUserRoles returns the role names a user holds in a project. Returns an
// empty slice if the user has none.
func (s *SQLiteStore) ListUserRoles(ctx context.Context, projectID, userID string) ([]RoleName, error) {
	query := `
		SELECT name FROM roles
		WHERE project_id = ? AND user_id = ?
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	defer rows.Close()

	var names []RoleName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role name: %w", err)
		}
		names = append(names, RoleName(name))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	if names == nil {
		names = []RoleName{}
	}
	return names, nil
}

// ListProjectRoles returns all role assignments in a project.
func (s *SQLiteStore) ListProjectRoles(ctx context.Context, projectID string) ([]*Role, error) {
	query := `
		SELECT id, project_id, user_id, name, created_at
		FROM roles
		WHERE project_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var r Role
		var name, createdAtStr string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.UserID, &name, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		r.Name = RoleName(name)
		if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}
