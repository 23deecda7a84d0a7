// ABOUTME: Workflow, WorkflowStep and Task entities scoped to a project
// ABOUTME: One workflow per project; tasks are assigned to a single role

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TaskStatus values accepted by the tasks table.
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Workflow is the per-project task pipeline. Each project has at most one.
type Workflow struct {
	ID        string
	ProjectID string
	CreatedAt time.Time
}

// WorkflowStep is an ordered stage of a workflow.
type WorkflowStep struct {
	ID         string
	WorkflowID string
	Position   int
	Name       string
	CreatedAt  time.Time
}

// Task belongs to exactly one step and is assigned exactly one role.
type Task struct {
	ID        string
	StepID    string
	RoleID    string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateWorkflow inserts a workflow. Returns ErrConflict if the project
// already has one.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, w *Workflow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, project_id, created_at)
		VALUES (?, ?, ?)
	`, w.ID, w.ProjectID, w.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting workflow: %w", err)
	}

	s.logger.Debug("created workflow", "id", w.ID, "project_id", w.ProjectID)
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, created_at FROM workflows WHERE id = ?
	`, id)
	return scanWorkflow(row)
}

// GetWorkflowByProject retrieves the workflow of a project.
func (s *SQLiteStore) GetWorkflowByProject(ctx context.Context, projectID string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, created_at FROM workflows WHERE project_id = ?
	`, projectID)
	return scanWorkflow(row)
}

func scanWorkflow(row *sql.Row) (*Workflow, error) {
	var w Workflow
	var createdAtStr string

	err := row.Scan(&w.ID, &w.ProjectID, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning workflow: %w", err)
	}

	if w.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWorkflowCascade removes a workflow together with its steps and
// their tasks in one transaction.
func (s *SQLiteStore) DeleteWorkflowCascade(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM tasks WHERE step_id IN (
				SELECT id FROM workflow_steps WHERE workflow_id = ?
			)
		`, id); err != nil {
			return fmt.Errorf("deleting workflow tasks: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM workflow_steps WHERE workflow_id = ?
		`, id); err != nil {
			return fmt.Errorf("deleting workflow steps: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting workflow: %w", err)
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

	s.logger.Debug("deleted workflow cascade", "id", id)
	return nil
}

// CreateWorkflowStep inserts a workflow step.
func (s *SQLiteStore) CreateWorkflowStep(ctx context.Context, ws *WorkflowStep) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (id, workflow_id, position, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ws.ID, ws.WorkflowID, ws.Position, ws.Name, ws.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting workflow step: %w", err)
	}

	s.logger.Debug("created workflow step", "id", ws.ID, "workflow_id", ws.WorkflowID, "position", ws.Position)
	return nil
}

// GetWorkflowStep retrieves a workflow step by ID.
func (s *SQLiteStore) GetWorkflowStep(ctx context.Context, id string) (*WorkflowStep, error) {
	var ws WorkflowStep
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, position, name, created_at FROM workflow_steps WHERE id = ?
	`, id).Scan(&ws.ID, &ws.WorkflowID, &ws.Position, &ws.Name, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workflow step: %w", err)
	}

	if ws.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkflowSteps returns a workflow's steps in position order.
func (s *SQLiteStore) ListWorkflowSteps(ctx context.Context, workflowID string) ([]*WorkflowStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, position, name, created_at
		FROM workflow_steps WHERE workflow_id = ? ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*WorkflowStep
	for rows.Next() {
		var ws WorkflowStep
		var createdAtStr string
		if err := rows.Scan(&ws.ID, &ws.WorkflowID, &ws.Position, &ws.Name, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning workflow step row: %w", err)
		}
		var err error
		if ws.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		steps = append(steps, &ws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow step rows: %w", err)
	}
	return steps, nil
}

// DeleteWorkflowStep removes a step. Returns ErrConflict if tasks still
// depend on it.
func (s *SQLiteStore) DeleteWorkflowStep(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "workflow_steps", id)
}

// CreateTask inserts a task.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *Task) error {
	if t.Status == "" {
		t.Status = TaskStatusOpen
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, step_id, role_id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.StepID, t.RoleID, t.Title, t.Status,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("created task", "id", t.ID, "step_id", t.StepID, "role_id", t.RoleID)
	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, step_id, role_id, title, status, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.StepID, &t.RoleID, &t.Title, &t.Status, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	if t.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask updates a task's title, status and role assignment.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, status = ?, role_id = ?, updated_at = ? WHERE id = ?
	`, t.Title, t.Status, t.RoleID, t.UpdatedAt.UTC().Format(time.RFC3339), t.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("updating task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated task", "id", t.ID, "status", t.Status)
	return nil
}

// DeleteTask removes a task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "tasks", id)
}

// ListTasksByStep returns the tasks of a workflow step.
func (s *SQLiteStore) ListTasksByStep(ctx context.Context, stepID string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_id, role_id, title, status, created_at, updated_at
		FROM tasks WHERE step_id = ? ORDER BY created_at
	`, stepID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var t Task
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&t.ID, &t.StepID, &t.RoleID, &t.Title, &t.Status, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		var err error
		if t.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}
