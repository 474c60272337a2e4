package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensource-finance/finsight/internal/domain"
)

const userColumns = `id, username, email, full_name, password_hash, created_at`

// CreateUser stores a new user. Duplicate usernames or emails yield ErrConflict.
func (r *SQLRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" || user.Username == "" || user.Email == "" {
		return fmt.Errorf("%w: user id, username and email are required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, r.rebind(query),
		user.ID, user.Username, user.Email, user.FullName,
		user.PasswordHash, utc(user.CreatedAt),
	)
	return r.mapError(err, "user")
}

// GetUser retrieves a user by ID.
func (r *SQLRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.getUserBy(ctx, "id", userID)
}

// GetUserByUsername retrieves a user by username.
func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUserBy(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUserBy(ctx, "email", email)
}

// getUserBy looks a user up by one unique column; column is never user input.
func (r *SQLRepository) getUserBy(ctx context.Context, column, value string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	var u domain.User
	var fullName sql.NullString
	err := r.q.QueryRowContext(ctx, r.rebind(query), value).Scan(
		&u.ID, &u.Username, &u.Email, &fullName, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		return nil, r.mapError(err, "user")
	}
	u.FullName = fullName.String
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
