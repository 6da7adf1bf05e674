// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package store owns the PostgreSQL connection lifecycle and schema migrations
// shared by the postgres user and session repositories.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default startup ping policy.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 200 * time.Millisecond
)

// ConnectOptions tunes the startup ping. Zero values take the defaults.
type ConnectOptions struct {
	Attempts uint64
	Backoff  time.Duration
	MaxConns int32
}

// Postgres is an open connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect builds a pool for dsn and pings it with exponential backoff.
//
// A malformed DSN is returned as an error with a nil *Postgres. If the
// server never answers, the pool is still returned together with a
// STORE_UNREACHABLE error: pgxpool reconnects lazily, so callers may keep
// serving and report not-ready until Ping succeeds.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_DSN").With("operation", "parse database url").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_POOL_FAILED").With("operation", "create pool").Wrap(err)
	}
	p := &Postgres{pool: pool}

	attempts := opts.Attempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}

	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		return p, oops.Code("STORE_UNREACHABLE").
			With("operation", "startup ping").
			With("attempts", attempts).
			Wrap(err)
	}
	return p, nil
}

// Ping checks the server is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_UNREACHABLE").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Pool exposes the underlying pool for repositories.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close releases all pooled connections.
func (p *Postgres) Close() {
	p.pool.Close()
}
