package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists users. It is bound to a DBTX so the same store code runs
// standalone or inside a caller's transaction.
type Store struct {
	db postgres.DBTX
}

// NewStore creates a user store
func NewStore(db postgres.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx}
}

// CreateUser inserts a new user. Email is normalized before storage; a
// duplicate email fails with a ConflictError.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.Email == "" {
		return errs.NewValidation("email", "is required")
	}
	if user.Status == "" {
		user.Status = StatusPending
	}
	if !user.Status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", user.Status))
	}

	query := `
		INSERT INTO users (email, first_name, last_name, email_verified, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Email, user.FirstName, user.LastName, user.EmailVerified, user.Status).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errs.NewConflict("a user with this email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id = $1", id)
}

// GetUserByEmail retrieves a user by normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errs.NewValidation("email", "is required")
	}
	return s.getUser(ctx, "email = $1", email)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, email, first_name, last_name, email_verified, status, created_at, updated_at
		FROM users
		WHERE ` + where
	user := &User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.EmailVerified, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of updates to a user
func (s *Store) UpdateUser(ctx context.Context, id int64, updates *UpdateUserRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.FirstName != nil {
		setClauses = append(setClauses, fmt.Sprintf("first_name = $%d", argPos))
		args = append(args, *updates.FirstName)
		argPos++
	}
	if updates.LastName != nil {
		setClauses = append(setClauses, fmt.Sprintf("last_name = $%d", argPos))
		args = append(args, *updates.LastName)
		argPos++
	}
	if updates.EmailVerified != nil {
		setClauses = append(setClauses, fmt.Sprintf("email_verified = $%d", argPos))
		args = append(args, *updates.EmailVerified)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewNotFound("user")
	}

	return nil
}

// SetStatus transitions a user's lifecycle status
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return errs.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to set user status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.NewNotFound("user")
	}

	return nil
}
