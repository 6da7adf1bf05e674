// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lostfound/lostfound/internal/auth"
)

// usersUsernameKey is the unique constraint guarding usernames.
const usersUsernameKey = "users_username_key"

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(p Pool) *UserRepository {
	return &UserRepository{pool: p}
}

// Create stores a new user. The unique constraint on username decides
// concurrent registrations; no read precedes the insert.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, credential_hash, contact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID.String(),
		user.Username,
		user.CredentialHash,
		user.Contact,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, usersUsernameKey) {
			return oops.Code("USER_DUPLICATE").
				With("username", user.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, credential_hash, contact, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)

	var (
		idStr     string
		user      auth.User
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&idStr, &user.Username, &user.CredentialHash, &user.Contact, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return &user, nil
}

// UpdateCredentialHash replaces the stored credential. Zero affected rows
// means the user is gone, which is not an error.
func (r *UserRepository) UpdateCredentialHash(ctx context.Context, username, credentialHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET credential_hash = $2, updated_at = $3
		WHERE username = $1
	`, username, credentialHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_CREDENTIAL_FAILED").
			With("operation", "update credential_hash").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
