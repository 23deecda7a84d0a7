// ABOUTME: User entity and store methods for account records
// ABOUTME: Full access flag here bypasses all project-scoped authorization

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User represents an account. FullAccess is a global override that passes
// every project-scoped authorization check.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	DisplayName  string
	FullAccess   bool
	CreatedAt    time.Time
}

// CreateUser inserts a new user. Returns ErrConflict if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, full_access, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.DisplayName,
		u.FullAccess,
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", u.ID, "email", u.Email)
	return nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, full_access, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, full_access, created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAtStr string

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.FullAccess, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetFullAccess toggles the global override flag on a user.
func (s *SQLiteStore) SetFullAccess(ctx context.Context, id string, fullAccess bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_access = ? WHERE id = ?`, fullAccess, id)
	if err != nil {
		return fmt.Errorf("updating full access: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("set full access", "id", id, "full_access", fullAccess)
	return nil
}
