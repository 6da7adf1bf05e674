// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package memory provides in-process user and session repositories.
//
// They give the same atomicity guarantees as the durable backends only
// within a single process, so they are meant for tests and the explicit
// dev mode, never for multi-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/lostfound/lostfound/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]auth.User
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]auth.User)}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return oops.Code("USER_DUPLICATE").
			With("username", user.Username).
			Wrap(auth.ErrDuplicateUsername)
	}
	r.users[user.Username] = *user
	return nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// UpdateCredentialHash replaces the stored credential if the user exists.
func (r *UserRepository) UpdateCredentialHash(_ context.Context, username, credentialHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return nil
	}
	user.CredentialHash = credentialHash
	user.UpdatedAt = time.Now()
	r.users[username] = user
	return nil
}

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]auth.Session)}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.TokenHash]; exists {
		return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicateToken)
	}
	r.sessions[session.TokenHash] = *session
	return nil
}

// Resolve returns the session, deleting it instead if it is expired at now.
func (r *SessionRepository) Resolve(_ context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if session.IsExpiredAt(now) {
		delete(r.sessions, tokenHash)
		return nil, oops.Code("SESSION_EXPIRED").
			With("expires_at", session.ExpiresAt).
			Wrap(auth.ErrSessionExpired)
	}
	return &session, nil
}

// Delete removes a session if present.
func (r *SessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpired removes every session expired at now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, session := range r.sessions {
		if session.IsExpiredAt(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired or not.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)
