// ABOUTME: Resource and Supplier entities and store methods
// ABOUTME: Resources carry the unit cost/time every line-item total derives from

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Supplier provides resources. A supplier governs every project its
// resources are consumed in.
type Supplier struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Resource is a purchasable material or capability. Editing UnitCost or
// UnitTime invalidates every line item that references it.
type Resource struct {
	ID         string
	Name       string
	UnitCost   float64
	UnitTime   float64
	SupplierID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateSupplier inserts a new supplier.
func (s *SQLiteStore) CreateSupplier(ctx context.Context, sup *Supplier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, sup.ID, sup.Name, nullString(sup.Email), sup.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting supplier: %w", err)
	}

	s.logger.Debug("created supplier", "id", sup.ID, "name", sup.Name)
	return nil
}

// GetSupplier retrieves a supplier by ID.
func (s *SQLiteStore) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	var sup Supplier
	var email sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM suppliers WHERE id = ?
	`, id).Scan(&sup.ID, &sup.Name, &email, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying supplier: %w", err)
	}

	sup.Email = email.String
	if sup.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &sup, nil
}

// ListSuppliers returns all suppliers ordered by name.
func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, created_at FROM suppliers ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []*Supplier
	for rows.Next() {
		var sup Supplier
		var email sql.NullString
		var createdAtStr string
		if err := rows.Scan(&sup.ID, &sup.Name, &email, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning supplier row: %w", err)
		}
		sup.Email = email.String
		if sup.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, &sup)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating supplier rows: %w", err)
	}
	return suppliers, nil
}

// UpdateSupplier writes a supplier's mutable fields.
func (s *SQLiteStore) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name = ?, email = ? WHERE id = ?
	`, sup.Name, nullString(sup.Email), sup.ID)
	if err != nil {
		return fmt.Errorf("updating supplier: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSupplier removes a supplier. Returns ErrConflict if resources still
// reference it.
func (s *SQLiteStore) DeleteSupplier(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("deleting supplier: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted supplier", "id", id)
	return nil
}

// CreateResource inserts a new resource.
func (s *SQLiteStore) CreateResource(ctx context.Context, r *Resource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, name, unit_cost, unit_time, supplier_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.UnitCost, r.UnitTime, nullPtr(r.SupplierID),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting resource: %w", err)
	}

	s.logger.Debug("created resource", "id", r.ID, "name", r.Name)
	return nil
}

// GetResource retrieves a resource by ID.
func (s *SQLiteStore) GetResource(ctx context.Context, id string) (*Resource, error) {
	var r Resource
	var supplierID sql.NullString
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit_cost, unit_time, supplier_id, created_at, updated_at
		FROM resources WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.UnitCost, &r.UnitTime, &supplierID, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying resource: %w", err)
	}

	if supplierID.Valid {
		r.SupplierID = &supplierID.String
	}
	if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateResource updates a resource's name, unit cost/time and supplier.
// Callers are responsible for recomputing dependent line items afterwards.
func (s *SQLiteStore) UpdateResource(ctx context.Context, r *Resource) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE resources
		SET name = ?, unit_cost = ?, unit_time = ?, supplier_id = ?, updated_at = ?
		WHERE id = ?
	`, r.Name, r.UnitCost, r.UnitTime, nullPtr(r.SupplierID),
		r.UpdatedAt.UTC().Format(time.RFC3339), r.ID)
	if err != nil {
		return fmt.Errorf("updating resource: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated resource", "id", r.ID, "unit_cost", r.UnitCost, "unit_time", r.UnitTime)
	return nil
}

// DeleteResource removes a resource. Returns ErrConflict if line items still
// reference it.
func (s *SQLiteStore) DeleteResource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("deleting resource: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted resource", "id", id)
	return nil
}

// ListResources returns all resources ordered by name.
func (s *SQLiteStore) ListResources(ctx context.Context) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_cost, unit_time, supplier_id, created_at, updated_at
		FROM resources ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// ListResourcesBySupplier returns all resources supplied by a supplier.
func (s *SQLiteStore) ListResourcesBySupplier(ctx context.Context, supplierID string) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_cost, unit_time, supplier_id, created_at, updated_at
		FROM resources WHERE supplier_id = ? ORDER BY name
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("querying resources by supplier: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

func collectResources(rows *sql.Rows) ([]*Resource, error) {
	var resources []*Resource
	for rows.Next() {
		var r Resource
		var supplierID sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&r.ID, &r.Name, &r.UnitCost, &r.UnitTime, &supplierID, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning resource row: %w", err)
		}
		if supplierID.Valid {
			r.SupplierID = &supplierID.String
		}
		var err error
		if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		resources = append(resources, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource rows: %w", err)
	}
	return resources, nil
}
