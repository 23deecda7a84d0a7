// ABOUTME: BOM, BOMResource, ManufacturingProcess and ProcessResource store methods
// ABOUTME: Derived totals are written only via the Set*Totals methods

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BOM is the cost/time-bearing structure attached to a Reference.
// TotalCost and TotalTime are derived and never user-set.
type BOM struct {
	ID          string
	ReferenceID string
	TotalCost   float64
	TotalTime   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BOMResource is a resource line item of a BOM.
// TotalCost = Quantity x resource unit cost; TotalTime analogous.
type BOMResource struct {
	ID         string
	BOMID      string
	ResourceID string
	Quantity   float64
	TotalCost  float64
	TotalTime  float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ManufacturingProcess is a BOM-level line item with its own resource and
// quantity plus nested process resources. Its own totals reflect only the
// direct resource line; the nested process resources contribute to the BOM
// separately.
type ManufacturingProcess struct {
	ID         string
	BOMID      string
	ResourceID string
	Quantity   float64
	TotalCost  float64
	TotalTime  float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProcessResource is a resource line item nested under a manufacturing
// process.
type ProcessResource struct {
	ID         string
	ProcessID  string
	ResourceID string
	Quantity   float64
	TotalCost  float64
	TotalTime  float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateBOM inserts a BOM. Returns ErrConflict if the reference already has
// one.
func (s *SQLiteStore) CreateBOM(ctx context.Context, b *BOM) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boms (id, reference_id, total_cost, total_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.ReferenceID, b.TotalCost, b.TotalTime,
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting BOM: %w", err)
	}

	s.logger.Debug("created BOM", "id", b.ID, "reference_id", b.ReferenceID)
	return nil
}

// GetBOM retrieves a BOM by ID.
func (s *SQLiteStore) GetBOM(ctx context.Context, id string) (*BOM, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference_id, total_cost, total_time, created_at, updated_at
		FROM boms WHERE id = ?
	`, id)
	return scanBOM(row)
}

// GetBOMByReference retrieves the BOM attached to a reference.
func (s *SQLiteStore) GetBOMByReference(ctx context.Context, referenceID string) (*BOM, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reference_id, total_cost, total_time, created_at, updated_at
		FROM boms WHERE reference_id = ?
	`, referenceID)
	return scanBOM(row)
}

func scanBOM(row *sql.Row) (*BOM, error) {
	var b BOM
	var createdAtStr, updatedAtStr string

	err := row.Scan(&b.ID, &b.ReferenceID, &b.TotalCost, &b.TotalTime, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning BOM: %w", err)
	}

	if b.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetBOMTotals writes recomputed totals on a BOM.
func (s *SQLiteStore) SetBOMTotals(ctx context.Context, id string, totalCost, totalTime float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boms SET total_cost = ?, total_time = ?, updated_at = ? WHERE id = ?
	`, totalCost, totalTime, now(), id)
	if err != nil {
		return fmt.Errorf("updating BOM totals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("set BOM totals", "id", id, "total_cost", totalCost, "total_time", totalTime)
	return nil
}

// DeleteBOMCascade removes a BOM together with its BOM resources, its
// manufacturing processes and their process resources, in one transaction.
func (s *SQLiteStore) DeleteBOMCascade(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM process_resources WHERE process_id IN (
				SELECT id FROM manufacturing_processes WHERE bom_id = ?
			)
		`, id)
		if err != nil {
			return fmt.Errorf("deleting process resources: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM manufacturing_processes WHERE bom_id = ?`, id); err != nil {
			return fmt.Errorf("deleting manufacturing processes: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bom_resources WHERE bom_id = ?`, id); err != nil {
			return fmt.Errorf("deleting BOM resources: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE specifications SET bom_id = NULL WHERE bom_id = ?`, id); err != nil {
			return fmt.Errorf("unlinking specifications: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM boms WHERE id = ?`, id)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("deleting BOM: %w", err)
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

	s.logger.Debug("deleted BOM cascade", "id", id)
	return nil
}

// CreateBOMResource inserts a BOM resource line item.
func (s *SQLiteStore) CreateBOMResource(ctx context.Context, br *BOMResource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bom_resources (id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, br.ID, br.BOMID, br.ResourceID, br.Quantity, br.TotalCost, br.TotalTime,
		br.CreatedAt.UTC().Format(time.RFC3339),
		br.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting BOM resource: %w", err)
	}

	s.logger.Debug("created BOM resource", "id", br.ID, "bom_id", br.BOMID)
	return nil
}

// GetBOMResource retrieves a BOM resource line item by ID.
func (s *SQLiteStore) GetBOMResource(ctx context.Context, id string) (*BOMResource, error) {
	var br BOMResource
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM bom_resources WHERE id = ?
	`, id).Scan(&br.ID, &br.BOMID, &br.ResourceID, &br.Quantity, &br.TotalCost, &br.TotalTime,
		&createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying BOM resource: %w", err)
	}

	if br.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if br.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &br, nil
}

// SetBOMResource writes a BOM resource's quantity and recomputed totals.
func (s *SQLiteStore) SetBOMResource(ctx context.Context, id string, quantity, totalCost, totalTime float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bom_resources SET quantity = ?, total_cost = ?, total_time = ?, updated_at = ?
		WHERE id = ?
	`, quantity, totalCost, totalTime, now(), id)
	if err != nil {
		return fmt.Errorf("updating BOM resource: %w", err)
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

// DeleteBOMResource removes a BOM resource line item.
func (s *SQLiteStore) DeleteBOMResource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bom_resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting BOM resource: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted BOM resource", "id", id)
	return nil
}

// ListBOMResources returns the resource line items of a BOM.
func (s *SQLiteStore) ListBOMResources(ctx context.Context, bomID string) ([]*BOMResource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM bom_resources WHERE bom_id = ? ORDER BY created_at
	`, bomID)
	if err != nil {
		return nil, fmt.Errorf("querying BOM resources: %w", err)
	}
	defer rows.Close()

	return collectBOMResources(rows)
}

// ListBOMResourcesByResource returns every BOM resource line item that
// references the given resource, across all BOMs.
func (s *SQLiteStore) ListBOMResourcesByResource(ctx context.Context, resourceID string) ([]*BOMResource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM bom_resources WHERE resource_id = ? ORDER BY created_at
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("querying BOM resources by resource: %w", err)
	}
	defer rows.Close()

	return collectBOMResources(rows)
}

func collectBOMResources(rows *sql.Rows) ([]*BOMResource, error) {
	var items []*BOMResource
	for rows.Next() {
		var br BOMResource
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&br.ID, &br.BOMID, &br.ResourceID, &br.Quantity, &br.TotalCost, &br.TotalTime,
			&createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning BOM resource row: %w", err)
		}
		var err error
		if br.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if br.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		items = append(items, &br)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating BOM resource rows: %w", err)
	}
	return items, nil
}

// CreateManufacturingProcess inserts a manufacturing process.
func (s *SQLiteStore) CreateManufacturingProcess(ctx context.Context, mp *ManufacturingProcess) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manufacturing_processes (id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, mp.ID, mp.BOMID, mp.ResourceID, mp.Quantity, mp.TotalCost, mp.TotalTime,
		mp.CreatedAt.UTC().Format(time.RFC3339),
		mp.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting manufacturing process: %w", err)
	}

	s.logger.Debug("created manufacturing process", "id", mp.ID, "bom_id", mp.BOMID)
	return nil
}

// GetManufacturingProcess retrieves a manufacturing process by ID.
func (s *SQLiteStore) GetManufacturingProcess(ctx context.Context, id string) (*ManufacturingProcess, error) {
	var mp ManufacturingProcess
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM manufacturing_processes WHERE id = ?
	`, id).Scan(&mp.ID, &mp.BOMID, &mp.ResourceID, &mp.Quantity, &mp.TotalCost, &mp.TotalTime,
		&createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying manufacturing process: %w", err)
	}

	if mp.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if mp.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &mp, nil
}

// SetManufacturingProcess writes a process's quantity and recomputed totals.
func (s *SQLiteStore) SetManufacturingProcess(ctx context.Context, id string, quantity, totalCost, totalTime float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE manufacturing_processes SET quantity = ?, total_cost = ?, total_time = ?, updated_at = ?
		WHERE id = ?
	`, quantity, totalCost, totalTime, now(), id)
	if err != nil {
		return fmt.Errorf("updating manufacturing process: %w", err)
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

// DeleteManufacturingProcess removes a process and its process resources in
// one transaction.
func (s *SQLiteStore) DeleteManufacturingProcess(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM process_resources WHERE process_id = ?`, id); err != nil {
			return fmt.Errorf("deleting process resources: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM manufacturing_processes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting manufacturing process: %w", err)
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

	s.logger.Debug("deleted manufacturing process", "id", id)
	return nil
}

// ListManufacturingProcesses returns the processes of a BOM.
func (s *SQLiteStore) ListManufacturingProcesses(ctx context.Context, bomID string) ([]*ManufacturingProcess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM manufacturing_processes WHERE bom_id = ? ORDER BY created_at
	`, bomID)
	if err != nil {
		return nil, fmt.Errorf("querying manufacturing processes: %w", err)
	}
	defer rows.Close()

	return collectProcesses(rows)
}

// ListManufacturingProcessesByResource returns every process whose direct
// resource line references the given resource.
func (s *SQLiteStore) ListManufacturingProcessesByResource(ctx context.Context, resourceID string) ([]*ManufacturingProcess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bom_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM manufacturing_processes WHERE resource_id = ? ORDER BY created_at
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("querying manufacturing processes by resource: %w", err)
	}
	defer rows.Close()

	return collectProcesses(rows)
}

func collectProcesses(rows *sql.Rows) ([]*ManufacturingProcess, error) {
	var processes []*ManufacturingProcess
	for rows.Next() {
		var mp ManufacturingProcess
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&mp.ID, &mp.BOMID, &mp.ResourceID, &mp.Quantity, &mp.TotalCost, &mp.TotalTime,
			&createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning manufacturing process row: %w", err)
		}
		var err error
		if mp.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if mp.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		processes = append(processes, &mp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manufacturing process rows: %w", err)
	}
	return processes, nil
}

// CreateProcessResource inserts a process resource line item.
func (s *SQLiteStore) CreateProcessResource(ctx context.Context, pr *ProcessResource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_resources (id, process_id, resource_id, quantity, total_cost, total_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, pr.ID, pr.ProcessID, pr.ResourceID, pr.Quantity, pr.TotalCost, pr.TotalTime,
		pr.CreatedAt.UTC().Format(time.RFC3339),
		pr.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting process resource: %w", err)
	}

	s.logger.Debug("created process resource", "id", pr.ID, "process_id", pr.ProcessID)
	return nil
}

// GetProcessResource retrieves a process resource line item by ID.
func (s *SQLiteStore) GetProcessResource(ctx context.Context, id string) (*ProcessResource, error) {
	var pr ProcessResource
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, process_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM process_resources WHERE id = ?
	`, id).Scan(&pr.ID, &pr.ProcessID, &pr.ResourceID, &pr.Quantity, &pr.TotalCost, &pr.TotalTime,
		&createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying process resource: %w", err)
	}

	if pr.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if pr.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// SetProcessResource writes a process resource's quantity and recomputed
// totals.
func (s *SQLiteStore) SetProcessResource(ctx context.Context, id string, quantity, totalCost, totalTime float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE process_resources SET quantity = ?, total_cost = ?, total_time = ?, updated_at = ?
		WHERE id = ?
	`, quantity, totalCost, totalTime, now(), id)
	if err != nil {
		return fmt.Errorf("updating process resource: %w", err)
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

// DeleteProcessResource removes a process resource line item.
func (s *SQLiteStore) DeleteProcessResource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM process_resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting process resource: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted process resource", "id", id)
	return nil
}

// ListProcessResources returns the line items nested under a process.
func (s *SQLiteStore) ListProcessResources(ctx context.Context, processID string) ([]*ProcessResource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, process_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM process_resources WHERE process_id = ? ORDER BY created_at
	`, processID)
	if err != nil {
		return nil, fmt.Errorf("querying process resources: %w", err)
	}
	defer rows.Close()

	return collectProcessResources(rows)
}

// ListProcessResourcesByResource returns every process resource line item
// that references the given resource, across all processes.
func (s *SQLiteStore) ListProcessResourcesByResource(ctx context.Context, resourceID string) ([]*ProcessResource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, process_id, resource_id, quantity, total_cost, total_time, created_at, updated_at
		FROM process_resources WHERE resource_id = ? ORDER BY created_at
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("querying process resources by resource: %w", err)
	}
	defer rows.Close()

	return collectProcessResources(rows)
}

func collectProcessResources(rows *sql.Rows) ([]*ProcessResource, error) {
	var items []*ProcessResource
	for rows.Next() {
		var pr ProcessResource
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&pr.ID, &pr.ProcessID, &pr.ResourceID, &pr.Quantity, &pr.TotalCost, &pr.TotalTime,
			&createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning process resource row: %w", err)
		}
		var err error
		if pr.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, err
		}
		if pr.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, err
		}
		items = append(items, &pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating process resource rows: %w", err)
	}
	return items, nil
}
