// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// NoContactInfo is shown in place of a contact that cannot be looked up.
const NoContactInfo = "No contact info"

// User is a registered account.
type User struct {
	ID             ulid.ULID
	Username       string
	CredentialHash string
	Contact        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a User from already validated input.
func NewUser(username, credentialHash, contact string, now time.Time) (*User, error) {
	if username == "" {
		return nil, oops.Code("USER_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if credentialHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("credential hash cannot be empty")
	}
	return &User{
		ID:             ulid.Make(),
		Username:       username,
		CredentialHash: credentialHash,
		Contact:        contact,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateUsername if the
	// username is taken; the store is left unchanged in that case.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by exact username.
	// Returns ErrNotFound if no user has the given username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateCredentialHash replaces the stored credential. It is a no-op
	// when the user does not exist.
	UpdateCredentialHash(ctx context.Context, username, credentialHash string) error
}
