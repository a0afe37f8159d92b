package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conorfennell/qbank/internal/domain"
)

// InsertUser persists a new user. Returns ErrEmailTaken when the email
// already has an account.
func (db *DB) InsertUser(ctx context.Context, u *domain.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email, or nil when absent.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return db.findUser(ctx, "email", email)
}

// FindUserByID retrieves a user by id, or nil when absent.
func (db *DB) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return db.findUser(ctx, "id", id)
}

func (db *DB) findUser(ctx context.Context, column, value string) (*domain.User, error) {
	var u domain.User
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE `+column+` = ?
	`, value)

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	return &u, nil
}
