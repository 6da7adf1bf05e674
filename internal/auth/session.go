// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32                 // 32 bytes = 64 hex chars
	DefaultSessionTTL  = 7 * 24 * time.Hour // cookie Max-Age matches this
	SessionCookieName  = "session_token"
	sessionTokenLength = SessionTokenBytes * 2
)

// Session is a login session. Only the token hash is stored; the plaintext
// token lives with the client.
type Session struct {
	ID        ulid.ULID
	TokenHash string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a validated Session starting at now and lasting ttl.
func NewSession(username, tokenHash string, now time.Time, ttl time.Duration) (*Session, error) {
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", ttl.String()).Errorf("session ttl must be positive")
	}
	return &Session{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsExpiredAt reports whether the session is no longer valid at t.
// A session is valid only while t is strictly before ExpiresAt.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash under which a token is stored.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Implementations must make
// Resolve atomic: an expired session is deleted in the same step that
// observes it.
type SessionRepository interface {
	// Create stores a new session. Returns ErrDuplicateToken on a token
	// hash collision.
	Create(ctx context.Context, session *Session) error

	// Resolve looks up a session by token hash. Returns ErrNotFound if
	// absent, or ErrSessionExpired after deleting a session that is
	// expired at now.
	Resolve(ctx context.Context, tokenHash string, now time.Time) (*Session, error)

	// Delete removes a session. Absent sessions are not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes all sessions expired at now and returns the
	// number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
