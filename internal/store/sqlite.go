// ABOUTME: SQLite implementation of the partforge entity store using modernc.org/sqlite
// ABOUTME: Opens the database, enables WAL and foreign keys, creates the schema

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed entity store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			full_access   INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS projects (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			creator_id     TEXT NOT NULL REFERENCES users(id),
			required_roles TEXT NOT NULL DEFAULT '{}',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS roles (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id),
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_roles_project_user ON roles(project_id, user_id);

		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS refs (
			id         TEXT PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			product_id TEXT NOT NULL REFERENCES products(id),
			project_id TEXT REFERENCES projects(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_refs_product ON refs(product_id);
		CREATE INDEX IF NOT EXISTS idx_refs_project ON refs(project_id);

		CREATE TABLE IF NOT EXISTS suppliers (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS resources (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			unit_cost   REAL NOT NULL DEFAULT 0,
			unit_time   REAL NOT NULL DEFAULT 0,
			supplier_id TEXT REFERENCES suppliers(id),
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_resources_supplier ON resources(supplier_id);

		CREATE TABLE IF NOT EXISTS boms (
			id           TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL UNIQUE REFERENCES refs(id),
			total_cost   REAL NOT NULL DEFAULT 0,
			total_time   REAL NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bom_resources (
			id          TEXT PRIMARY KEY,
			bom_id      TEXT NOT NULL REFERENCES boms(id),
			resource_id TEXT NOT NULL REFERENCES resources(id),
			quantity    REAL NOT NULL DEFAULT 0,
			total_cost  REAL NOT NULL DEFAULT 0,
			total_time  REAL NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bom_resources_bom ON bom_resources(bom_id);
		CREATE INDEX IF NOT EXISTS idx_bom_resources_resource ON bom_resources(resource_id);

		CREATE TABLE IF NOT EXISTS manufacturing_processes (
			id          TEXT PRIMARY KEY,
			bom_id      TEXT NOT NULL REFERENCES boms(id),
			resource_id TEXT NOT NULL REFERENCES resources(id),
			quantity    REAL NOT NULL DEFAULT 0,
			total_cost  REAL NOT NULL DEFAULT 0,
			total_time  REAL NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_processes_bom ON manufacturing_processes(bom_id);
		CREATE INDEX IF NOT EXISTS idx_processes_resource ON manufacturing_processes(resource_id);

		CREATE TABLE IF NOT EXISTS process_resources (
			id          TEXT PRIMARY KEY,
			process_id  TEXT NOT NULL REFERENCES manufacturing_processes(id),
			resource_id TEXT NOT NULL REFERENCES resources(id),
			quantity    REAL NOT NULL DEFAULT 0,
			total_cost  REAL NOT NULL DEFAULT 0,
			total_time  REAL NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_process_resources_process ON process_resources(process_id);
		CREATE INDEX IF NOT EXISTS idx_process_resources_resource ON process_resources(resource_id);

		CREATE TABLE IF NOT EXISTS customers (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS customer_needs (
			id          TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			description TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_needs_customer ON customer_needs(customer_id);

		CREATE TABLE IF NOT EXISTS requirements (
			id               TEXT PRIMARY KEY,
			customer_need_id TEXT NOT NULL REFERENCES customer_needs(id),
			description      TEXT NOT NULL,
			created_at       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_requirements_need ON requirements(customer_need_id);

		CREATE TABLE IF NOT EXISTS specifications (
			id             TEXT PRIMARY KEY,
			requirement_id TEXT NOT NULL REFERENCES requirements(id),
			bom_id         TEXT REFERENCES boms(id),
			description    TEXT NOT NULL,
			created_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_specifications_requirement ON specifications(requirement_id);
		CREATE INDEX IF NOT EXISTS idx_specifications_bom ON specifications(bom_id);

		CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL REFERENCES refs(id),
			name         TEXT NOT NULL,
			path         TEXT,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_reference ON documents(reference_id);

		CREATE TABLE IF NOT EXISTS cad_files (
			id           TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL REFERENCES refs(id),
			name         TEXT NOT NULL,
			path         TEXT,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cad_files_reference ON cad_files(reference_id);

		CREATE TABLE IF NOT EXISTS simulations (
			id           TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL REFERENCES refs(id),
			name         TEXT NOT NULL,
			description  TEXT,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_simulations_reference ON simulations(reference_id);

		CREATE TABLE IF NOT EXISTS invoices (
			id          TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			project_id  TEXT NOT NULL REFERENCES projects(id),
			bom_id      TEXT REFERENCES boms(id),
			total_cost  REAL NOT NULL DEFAULT 0,
			total_time  REAL NOT NULL DEFAULT 0,
			line_count  INTEGER NOT NULL DEFAULT 0,
			issued_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);
		CREATE INDEX IF NOT EXISTS idx_invoices_project ON invoices(project_id);

		CREATE TABLE IF NOT EXISTS workflows (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL UNIQUE REFERENCES projects(id),
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS workflow_steps (
			id          TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			position    INTEGER NOT NULL,
			name        TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_steps_workflow ON workflow_steps(workflow_id, position);

		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			step_id    TEXT NOT NULL REFERENCES workflow_steps(id),
			role_id    TEXT NOT NULL REFERENCES roles(id),
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'open',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (status IN ('open', 'in_progress', 'done'))
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_step ON tasks(step_id);

		CREATE TABLE IF NOT EXISTS audit_log (
			id      TEXT PRIMARY KEY,
			user_id TEXT,
			action  TEXT NOT NULL,
			ts      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing on nil error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// now returns the current UTC time formatted for storage.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTime parses a stored RFC3339 timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}
