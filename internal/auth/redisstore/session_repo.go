// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package redisstore keeps sessions in Redis. Each session is a hash under
// a per-token key that Redis expires on its own at ExpiresAt.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/lostfound/lostfound/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "lostfound:session:"

// createScript stores the session hash only if the key is free.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'username', ARGV[2], 'created_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
return 1
`)

// resolveScript reads a session and deletes it when it is expired at
// ARGV[1], in one atomic step.
var resolveScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'id', 'username', 'created_at', 'expires_at')
if not v[1] then
	return false
end
if tonumber(v[4]) <= tonumber(ARGV[1]) then
	redis.call('DEL', KEYS[1])
	return {'expired', v[1], v[2], v[3], v[4]}
end
return {'live', v[1], v[2], v[3], v[4]}
`)

// Client is the subset of *redis.Client the repository needs.
type Client interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

// SessionRepository implements auth.SessionRepository on Redis.
type SessionRepository struct {
	rdb    Client
	prefix string
}

// NewSessionRepository creates a SessionRepository using rdb. An empty
// prefix selects DefaultKeyPrefix.
func NewSessionRepository(rdb Client, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SessionRepository{rdb: rdb, prefix: prefix}
}

// NewClient parses a redis:// URL into a client. The client connects lazily.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_INVALID_URL").With("operation", "parse redis url").Wrap(err)
	}
	return redis.NewClient(opts), nil
}

func (r *SessionRepository) key(tokenHash string) string {
	return r.prefix + tokenHash
}

// Create stores a new session. Returns ErrDuplicateToken if the hash is taken.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	created, err := createScript.Run(ctx, r.rdb, []string{r.key(session.TokenHash)},
		session.ID.String(),
		session.Username,
		session.CreatedAt.UnixMilli(),
		session.ExpiresAt.UnixMilli(),
	).Int()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "create session").
			With("username", session.Username).
			Wrap(err)
	}
	if created == 0 {
		return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicateToken)
	}
	return nil
}

// Resolve returns the live session for tokenHash. An expired session is
// deleted by the same script call that observes it.
func (r *SessionRepository) Resolve(ctx context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	res, err := resolveScript.Run(ctx, r.rdb, []string{r.key(tokenHash)}, now.UnixMilli()).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "resolve session").
			Wrap(err)
	}

	session, state, err := decodeSession(tokenHash, res)
	if err != nil {
		return nil, err
	}
	if state == "expired" {
		return nil, oops.Code("SESSION_EXPIRED").
			With("id", session.ID.String()).
			With("expires_at", session.ExpiresAt).
			Wrap(auth.ErrSessionExpired)
	}
	return session, nil
}

// decodeSession turns the resolve script reply into a Session.
func decodeSession(tokenHash string, res []string) (*auth.Session, string, error) {
	if len(res) != 5 {
		return nil, "", oops.Code("SESSION_DECODE_FAILED").
			With("fields", len(res)).
			Errorf("unexpected resolve reply")
	}

	id, err := ulid.Parse(res[1])
	if err != nil {
		return nil, "", oops.Code("SESSION_INVALID_ID").With("id", res[1]).Wrap(err)
	}
	created, err := parseMillis(res[3])
	if err != nil {
		return nil, "", oops.Code("SESSION_DECODE_FAILED").With("field", "created_at").Wrap(err)
	}
	expires, err := parseMillis(res[4])
	if err != nil {
		return nil, "", oops.Code("SESSION_DECODE_FAILED").With("field", "expires_at").Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		TokenHash: tokenHash,
		Username:  res[2],
		CreatedAt: created,
		ExpiresAt: expires,
	}, res[0], nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse millis %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Delete removes a session. Absent sessions are not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if err := r.rdb.Del(ctx, r.key(tokenHash)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis drops each key at its PEXPIREAT deadline,
// and Resolve reaps anything the server has not yet evicted.
func (r *SessionRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
