// ABOUTME: Customer, CustomerNeed, Requirement, Specification and Invoice store methods
// ABOUTME: The customer/invoice chain is how needs and requirements resolve to projects

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Customer is a buying party. Its invoices link back to projects.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// CustomerNeed is a customer-stated need, refined by requirements.
type CustomerNeed struct {
	ID          string
	CustomerID  string
	Description string
	CreatedAt   time.Time
}

// Requirement refines a customer need.
type Requirement struct {
	ID             string
	CustomerNeedID string
	Description    string
	CreatedAt      time.Time
}

// Specification refines a requirement and may be linked to a BOM.
type Specification struct {
	ID            string
	RequirementID string
	BOMID         *string
	Description   string
	CreatedAt     time.Time
}

// Invoice is a billing snapshot of a BOM for a customer under a project.
// The snapshot totals are copied at issue time and do not track later BOM
// edits.
type Invoice struct {
	ID         string
	CustomerID string
	ProjectID  string
	BOMID      *string
	TotalCost  float64
	TotalTime  float64
	LineCount  int
	IssuedAt   time.Time
}

// CreateCustomer inserts a new customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, nullString(c.Email), c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}

	s.logger.Debug("created customer", "id", c.ID, "name", c.Name)
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	var email sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &email, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	c.Email = email.String
	if c.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCustomerCascade removes a customer with its needs, requirements,
// specifications and invoices in one transaction.
func (s *SQLiteStore) DeleteCustomerCascade(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM specifications WHERE requirement_id IN (
				SELECT r.id FROM requirements r
				JOIN customer_needs n ON n.id = r.customer_need_id
				WHERE n.customer_id = ?
			)
		`, id); err != nil {
			return fmt.Errorf("deleting customer specifications: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM requirements WHERE customer_need_id IN (
				SELECT id FROM customer_needs WHERE customer_id = ?
			)
		`, id); err != nil {
			return fmt.Errorf("deleting customer requirements: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM customer_needs WHERE customer_id = ?
		`, id); err != nil {
			return fmt.Errorf("deleting customer needs: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM invoices WHERE customer_id = ?
		`, id); err != nil {
			return fmt.Errorf("deleting customer invoices: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting customer: %w", err)
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

	s.logger.Debug("deleted customer cascade", "id", id)
	return nil
}

// CreateCustomerNeed inserts a customer need.
func (s *SQLiteStore) CreateCustomerNeed(ctx context.Context, n *CustomerNeed) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_needs (id, customer_id, description, created_at)
		VALUES (?, ?, ?, ?)
	`, n.ID, n.CustomerID, n.Description, n.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting customer need: %w", err)
	}

	s.logger.Debug("created customer need", "id", n.ID, "customer_id", n.CustomerID)
	return nil
}

// GetCustomerNeed retrieves a customer need by ID.
func (s *SQLiteStore) GetCustomerNeed(ctx context.Context, id string) (*CustomerNeed, error) {
	var n CustomerNeed
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, description, created_at FROM customer_needs WHERE id = ?
	`, id).Scan(&n.ID, &n.CustomerID, &n.Description, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer need: %w", err)
	}

	if n.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteCustomerNeed removes a customer need. Returns ErrConflict if
// requirements still depend on it.
func (s *SQLiteStore) DeleteCustomerNeed(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "customer_needs", id)
}

// CreateRequirement inserts a requirement.
func (s *SQLiteStore) CreateRequirement(ctx context.Context, r *Requirement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requirements (id, customer_need_id, description, created_at)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.CustomerNeedID, r.Description, r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting requirement: %w", err)
	}

	s.logger.Debug("created requirement", "id", r.ID, "need_id", r.CustomerNeedID)
	return nil
}

// GetRequirement retrieves a requirement by ID.
func (s *SQLiteStore) GetRequirement(ctx context.Context, id string) (*Requirement, error) {
	var r Requirement
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_need_id, description, created_at FROM requirements WHERE id = ?
	`, id).Scan(&r.ID, &r.CustomerNeedID, &r.Description, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying requirement: %w", err)
	}

	if r.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRequirement removes a requirement. Returns ErrConflict if
// specifications still depend on it.
func (s *SQLiteStore) DeleteRequirement(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "requirements", id)
}

// CreateSpecification inserts a specification.
func (s *SQLiteStore) CreateSpecification(ctx context.Context, sp *Specification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO specifications (id, requirement_id, bom_id, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sp.ID, sp.RequirementID, nullPtr(sp.BOMID), sp.Description,
		sp.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting specification: %w", err)
	}

	s.logger.Debug("created specification", "id", sp.ID, "requirement_id", sp.RequirementID)
	return nil
}

// GetSpecification retrieves a specification by ID.
func (s *SQLiteStore) GetSpecification(ctx context.Context, id string) (*Specification, error) {
	var sp Specification
	var bomID sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, requirement_id, bom_id, description, created_at
		FROM specifications WHERE id = ?
	`, id).Scan(&sp.ID, &sp.RequirementID, &bomID, &sp.Description, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying specification: %w", err)
	}

	if bomID.Valid {
		sp.BOMID = &bomID.String
	}
	if sp.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	return &sp, nil
}

// DeleteSpecification removes a specification.
func (s *SQLiteStore) DeleteSpecification(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "specifications", id)
}

// CreateInvoice inserts an invoice snapshot.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *Invoice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, customer_id, project_id, bom_id, total_cost, total_time, line_count, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.CustomerID, inv.ProjectID, nullPtr(inv.BOMID),
		inv.TotalCost, inv.TotalTime, inv.LineCount,
		inv.IssuedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting invoice: %w", err)
	}

	s.logger.Debug("created invoice", "id", inv.ID, "customer_id", inv.CustomerID, "project_id", inv.ProjectID)
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	var bomID sql.NullString
	var issuedAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, project_id, bom_id, total_cost, total_time, line_count, issued_at
		FROM invoices WHERE id = ?
	`, id).Scan(&inv.ID, &inv.CustomerID, &inv.ProjectID, &bomID,
		&inv.TotalCost, &inv.TotalTime, &inv.LineCount, &issuedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice: %w", err)
	}

	if bomID.Valid {
		inv.BOMID = &bomID.String
	}
	if inv.IssuedAt, err = parseTime(issuedAtStr); err != nil {
		return nil, err
	}
	return &inv, nil
}

// DeleteInvoice removes an invoice snapshot.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "invoices", id)
}

// ListInvoicesByCustomer returns a customer's invoices, newest first.
func (s *SQLiteStore) ListInvoicesByCustomer(ctx context.Context, customerID string) ([]*Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, project_id, bom_id, total_cost, total_time, line_count, issued_at
		FROM invoices WHERE customer_id = ? ORDER BY issued_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying invoices by customer: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		var inv Invoice
		var bomID sql.NullString
		var issuedAtStr string
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.ProjectID, &bomID,
			&inv.TotalCost, &inv.TotalTime, &inv.LineCount, &issuedAtStr); err != nil {
			return nil, fmt.Errorf("scanning invoice row: %w", err)
		}
		if bomID.Valid {
			inv.BOMID = &bomID.String
		}
		var err error
		if inv.IssuedAt, err = parseTime(issuedAtStr); err != nil {
			return nil, err
		}
		invoices = append(invoices, &inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// ListInvoiceProjectIDs returns the distinct project IDs of a customer's
// invoices. Used by the project resolver for the need/requirement/
// specification chain.
func (s *SQLiteStore) ListInvoiceProjectIDs(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT project_id FROM invoices WHERE customer_id = ?
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying invoice project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning project id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project ids: %w", err)
	}
	return ids, nil
}

// deleteByID removes one row from a fixed table by primary key.
func (s *SQLiteStore) deleteByID(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("deleting from %s: %w", table, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted row", "table", table, "id", id)
	return nil
}
