package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/db"
	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/logger"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// EnsureAdmin bootstraps the configured admin account on startup.
// An existing account is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, true)
	`, username, hash)
	if err != nil {
		return err
	}

	logger.Info("initial admin created", map[string]any{
		"username": username,
	})
	return nil
}

// Authenticate verifies an admin's password.
func (s *Service) Authenticate(ctx context.Context, username, password string) error {
	var passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash FROM users
		WHERE username = $1 AND is_admin = true
	`, username).Scan(&passwordHash)
	if err == sql.ErrNoRows {
		// hide whether the user exists or not
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	if err := VerifyPassword(passwordHash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IsAdmin reports whether username maps to an active admin account.
func (s *Service) IsAdmin(ctx context.Context, username string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, `
		SELECT is_admin FROM users WHERE username = $1
	`, username).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isAdmin, nil
}
