// ABOUTME: Document, CADFile and Simulation entities attached to references
// ABOUTME: All three resolve their governing project through the owning reference

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Document is a file attached to a reference.
type Document struct {
	ID          string
	ReferenceID string
	Name        string
	Path        string
	CreatedAt   time.Time
}

// CADFile is a CAD model attached to a reference.
type CADFile struct {
	ID          string
	ReferenceID string
	Name        string
	Path        string
	CreatedAt   time.Time
}

// Simulation is a simulation run attached to a reference.
type Simulation struct {
	ID          string
	ReferenceID string
	Name        string
	Description string
	CreatedAt   time.Time
}

// CreateDocument inserts a document.
func (s *SQLiteStore) CreateDocument(ctx context.Context, d *Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, reference_id, name, path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.ReferenceID, d.Name, nullString(d.Path), d.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("created document", "id", d.ID, "reference_id", d.ReferenceID)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	var path sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, reference_id, name, path, created_at FROM documents WHERE id = ?
	`, id).Scan(&d.ID, &d.ReferenceID, &d.Name, &path, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	d.Path = path.String
	if d.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes a document.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "documents", id)
}

// ListDocumentsByReference returns the documents attached to a reference.
func (s *SQLiteStore) ListDocumentsByReference(ctx context.Context, referenceID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference_id, name, path, created_at
		FROM documents WHERE reference_id = ? ORDER BY created_at
	`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		var path sql.NullString
		var createdAtStr string
		if err := rows.Scan(&d.ID, &d.ReferenceID, &d.Name, &path, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		d.Path = path.String
		var err error
		if d.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// CreateCADFile inserts a CAD file.
func (s *SQLiteStore) CreateCADFile(ctx context.Context, f *CADFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cad_files (id, reference_id, name, path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, f.ReferenceID, f.Name, nullString(f.Path), f.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting CAD file: %w", err)
	}

	s.logger.Debug("created CAD file", "id", f.ID, "reference_id", f.ReferenceID)
	return nil
}

// GetCADFile retrieves a CAD file by ID.
func (s *SQLiteStore) GetCADFile(ctx context.Context, id string) (*CADFile, error) {
	var f CADFile
	var path sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, reference_id, name, path, created_at FROM cad_files WHERE id = ?
	`, id).Scan(&f.ID, &f.ReferenceID, &f.Name, &path, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying CAD file: %w", err)
	}

	f.Path = path.String
	if f.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteCADFile removes a CAD file.
func (s *SQLiteStore) DeleteCADFile(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "cad_files", id)
}

// ListCADFilesByReference returns the CAD files attached to a reference.
func (s *SQLiteStore) ListCADFilesByReference(ctx context.Context, referenceID string) ([]*CADFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference_id, name, path, created_at
		FROM cad_files WHERE reference_id = ? ORDER BY created_at
	`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("querying CAD files: %w", err)
	}
	defer rows.Close()

	var files []*CADFile
	for rows.Next() {
		var f CADFile
		var path sql.NullString
		var createdAtStr string
		if err := rows.Scan(&f.ID, &f.ReferenceID, &f.Name, &path, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning CAD file row: %w", err)
		}
		f.Path = path.String
		var err error
		if f.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating CAD file rows: %w", err)
	}
	return files, nil
}

// CreateSimulation inserts a simulation.
func (s *SQLiteStore) CreateSimulation(ctx context.Context, sim *Simulation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulations (id, reference_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sim.ID, sim.ReferenceID, sim.Name, nullString(sim.Description),
		sim.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting simulation: %w", err)
	}

	s.logger.Debug("created simulation", "id", sim.ID, "reference_id", sim.ReferenceID)
	return nil
}

// GetSimulation retrieves a simulation by ID.
func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (*Simulation, error) {
	var sim Simulation
	var description sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, reference_id, name, description, created_at FROM simulations WHERE id = ?
	`, id).Scan(&sim.ID, &sim.ReferenceID, &sim.Name, &description, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying simulation: %w", err)
	}

	sim.Description = description.String
	if sim.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &sim, nil
}

// DeleteSimulation removes a simulation.
func (s *SQLiteStore) DeleteSimulation(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "simulations", id)
}
