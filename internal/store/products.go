// ABOUTME: Product and Reference entities and store methods
// ABOUTME: A Reference anchors a product to a project and carries the BOM

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Product is a top-level catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Reference is an engineering part/assembly identifier. It links a Product
// to an optional Project; downstream entities (documents, CAD files,
// simulations, the BOM) derive their governing project through it.
type Reference struct {
	ID        string
	Code      string // unique
	ProductID string
	ProjectID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateProduct inserts a new product.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, nullString(p.Description), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	s.logger.Debug("created product", "id", p.ID, "name", p.Name)
	return nil
}

// GetProduct retrieves a product by ID.
func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	var description sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &description, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying product: %w", err)
	}

	p.Description = description.String
	if p.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns all products ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM products ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		var description sql.NullString
		var createdAtStr string
		if err := rows.Scan(&p.ID, &p.Name, &description, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		p.Description = description.String
		if p.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}

// DeleteProduct removes a product. Returns ErrConflict if references still
// point at it.
func (s *SQLiteStore) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("deleting product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted product", "id", id)
	return nil
}

// CreateReference inserts a reference. Returns ErrConflict if the code is
// already taken.
func (s *SQLiteStore) CreateReference(ctx context.Context, r *Reference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refs (id, code, product_id, project_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Code, r.ProductID, nullPtr(r.ProjectID),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting reference: %w", err)
	}

	s.logger.Debug("created reference", "id", r.ID, "code", r.Code)
	return nil
}

// GetReference retrieves a reference by ID.
func (s *SQLiteStore) GetReference(ctx context.Context, id string) (*Reference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, product_id, project_id, created_at, updated_at
		FROM refs WHERE id = ?
	`, id)
	return scanReference(row)
}

func scanReference(row *sql.Row) (*Reference, error) {
	var r Reference
	var projectID sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(&r.ID, &r.Code, &r.ProductID, &projectID, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reference: %w", err)
	}

	if projectID.Valid {
		r.ProjectID = &projectID.String
	}
	if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReference updates a reference's code and project linkage.
func (s *SQLiteStore) UpdateReference(ctx context.Context, r *Reference) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE refs SET code = ?, project_id = ?, updated_at = ? WHERE id = ?
	`, r.Code, nullPtr(r.ProjectID), r.UpdatedAt.UTC().Format(time.RFC3339), r.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("updating reference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated reference", "id", r.ID)
	return nil
}

// DeleteReference removes a reference. Returns ErrConflict if a BOM or
// attached files still depend on it.
func (s *SQLiteStore) DeleteReference(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refs WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("deleting reference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted reference", "id", id)
	return nil
}

// ListReferencesByProduct returns all references of a product.
func (s *SQLiteStore) ListReferencesByProduct(ctx context.Context, productID string) ([]*Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, product_id, project_id, created_at, updated_at
		FROM refs WHERE product_id = ? ORDER BY code
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("querying references by product: %w", err)
	}
	defer rows.Close()

	return collectReferences(rows)
}

// ListReferencesByProject returns all references assigned to a project.
func (s *SQLiteStore) ListReferencesByProject(ctx context.Context, projectID string) ([]*Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, product_id, project_id, created_at, updated_at
		FROM refs WHERE project_id = ? ORDER BY code
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying references by project: %w", err)
	}
	defer rows.Close()

	return collectReferences(rows)
}

func collectReferences(rows *sql.Rows) ([]*Reference, error) {
	var refs []*Reference
	for rows.Next() {
		var r Reference
		var projectID sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&r.ID, &r.Code, &r.ProductID, &projectID, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning reference row: %w", err)
		}
		if projectID.Valid {
			r.ProjectID = &projectID.String
		}
		var err error
		if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		refs = append(refs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reference rows: %w", err)
	}
	return refs, nil
}
