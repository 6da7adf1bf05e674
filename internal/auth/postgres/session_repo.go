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

// sessionsTokenHashKey is the unique constraint guarding token hashes.
const sessionsTokenHashKey = "sessions_token_hash_key"

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(p Pool) *SessionRepository {
	return &SessionRepository{pool: p}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, token_hash, username, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.TokenHash,
		session.Username,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err, sessionsTokenHashKey) {
			return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicateToken)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("username", session.Username).
			Wrap(err)
	}
	return nil
}

// Resolve locks the session row, and deletes it within the same transaction
// when it is expired at now, so concurrent callers never see it revived.
func (r *SessionRepository) Resolve(ctx context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("TX_BEGIN_FAILED").
			With("operation", "resolve session").
			Wrap(err)
	}

	session, err := scanSession(tx.QueryRow(ctx, `
		SELECT id, token_hash, username, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		rollback(ctx, tx)
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		rollback(ctx, tx)
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "select session for update").
			Wrap(err)
	}

	expired := session.IsExpiredAt(now)
	if expired {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, session.ID.String()); err != nil {
			rollback(ctx, tx)
			return nil, oops.Code("SESSION_REAP_FAILED").
				With("operation", "delete expired session").
				With("id", session.ID.String()).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("TX_COMMIT_FAILED").
			With("operation", "resolve session").
			Wrap(err)
	}

	if expired {
		return nil, oops.Code("SESSION_EXPIRED").
			With("id", session.ID.String()).
			With("expires_at", session.ExpiresAt).
			Wrap(auth.ErrSessionExpired)
	}
	return session, nil
}

// Delete removes a session by token hash. Absent sessions are not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all sessions expired at now and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// pgx.ErrNoRows is passed through unwrapped for callers to match.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr   string
		session auth.Session
	)
	err := row.Scan(&idStr, &session.TokenHash, &session.Username, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	session.ID = id
	return &session, nil
}

// rollback aborts tx. Its error is dropped: the caller is already
// returning the error that caused the rollback.
func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx) //nolint:errcheck // original error takes precedence
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
