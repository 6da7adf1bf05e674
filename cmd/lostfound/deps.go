// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/lostfound/lostfound/internal/config"
	"github.com/lostfound/lostfound/internal/observability"
	"github.com/lostfound/lostfound/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the runtime configuration.
	// Default: config.Load
	ConfigLoader func(path string, required bool, flags *pflag.FlagSet) (config.Config, error)

	// StoreConnector opens the PostgreSQL pool.
	// Default: store.Connect
	StoreConnector func(ctx context.Context, dsn string, opts store.ConnectOptions) (*store.Postgres, error)

	// MigratorFactory creates a schema migrator for auto-migrate.
	// Default: store.NewMigrator
	MigratorFactory func(dsn string) (SchemaMigrator, error)

	// RedisClientFactory creates the client for the redis session backend.
	// Default: redisstore.NewClient
	RedisClientFactory func(url string) (*redis.Client, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// SchemaMigrator wraps the methods used from store.Migrator.
type SchemaMigrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
