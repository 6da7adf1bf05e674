// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/auth/memory"
	"github.com/lostfound/lostfound/internal/auth/postgres"
	"github.com/lostfound/lostfound/internal/auth/redisstore"
	"github.com/lostfound/lostfound/internal/config"
	"github.com/lostfound/lostfound/internal/logging"
	"github.com/lostfound/lostfound/internal/observability"
	"github.com/lostfound/lostfound/internal/store"
	"github.com/lostfound/lostfound/internal/web"
	"github.com/lostfound/lostfound/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmdWithDeps(nil)
}

func newServeCmdWithDeps(deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API for registration, login, logout and session
restore, along with the metrics and health server and the expired
session sweep.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func withServeDefaults(deps *ServeDeps) *ServeDeps {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.StoreConnector == nil {
		deps.StoreConnector = store.Connect
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(dsn string) (SchemaMigrator, error) {
			return store.NewMigrator(dsn)
		}
	}
	if deps.RedisClientFactory == nil {
		deps.RedisClientFactory = redisstore.NewClient
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if deps.LogWriter == nil {
		deps.LogWriter = os.Stderr
	}
	return deps
}

// runServeWithDeps runs the API until ctx is cancelled or a signal arrives.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = withServeDefaults(deps)

	path, required, err := configPath()
	if err != nil {
		return oops.Code("CONFIG_PATH_FAILED").Wrap(err)
	}
	cfg, err := deps.ConfigLoader(path, required, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Options{
		Service: "lostfound",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, deps.LogWriter)
	slog.SetDefault(logger)

	// Spans are not exported. Their IDs correlate the log records of one request.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("error shutting down tracer provider", "error", err)
		}
	}()

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}
	reapInterval, err := cfg.ReapInterval()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := openBackends(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	serviceOpts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithSessionTTL(ttl),
		auth.WithTracerProvider(tp),
	}
	reaperOpts := []auth.ReaperOption{auth.WithReaperLogger(logger)}
	webOpts := web.Options{
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		SecureCookies: cfg.HTTP.SecureCookies,
		Logger:        logger,
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Listen != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Listen, b.Ready, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

		metrics := obsServer.Metrics()
		serviceOpts = append(serviceOpts, auth.WithRecorder(metrics))
		reaperOpts = append(reaperOpts, auth.WithReaperRecorder(metrics))
		webOpts.Recorder = metrics
	}

	svc, err := auth.NewAuthService(b.users, b.sessions, auth.NewPBKDF2Hasher(), serviceOpts...)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}
	reaper, err := auth.NewReaper(b.sessions, reapInterval, reaperOpts...)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := web.NewHTTPServer(cfg.HTTP.Listen, web.NewRouter(svc, webOpts))

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Listen)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Listen).Wrap(err)
	}

	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrCh, "api")

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(ctx)
	}()

	cmd.Println("lostfound started")
	logger.Info("lostfound ready",
		"addr", listener.Addr().String(),
		"store", cfg.Store.Driver,
		"sessions", cfg.Session.Backend,
		"session_ttl", ttl.String(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	<-reaperDone
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return nil
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// backends holds the selected repositories and what it takes to probe and
// release them.
type backends struct {
	users    auth.UserRepository
	sessions auth.SessionRepository
	checks   []observability.ReadinessChecker
	closers  []func()
}

// Ready reports the first failing backend.
func (b *backends) Ready(ctx context.Context) error {
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends selects repositories per cfg. An unreachable database is not
// fatal: the pool reconnects on demand and readiness reports the outage.
func openBackends(ctx context.Context, cfg config.Config, deps *ServeDeps, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("DEV MODE: using the in-memory store; accounts and sessions are lost on exit")
		b.users = memory.NewUserRepository()
		b.sessions = memory.NewSessionRepository()
	default:
		db, err := deps.StoreConnector(ctx, cfg.DatabaseURL, store.ConnectOptions{
			Attempts: uint64(cfg.Store.ConnectAttempts), //nolint:gosec // validated >= 1
			MaxConns: int32(cfg.Store.MaxConns),         //nolint:gosec // small config value
		})
		if db == nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		switch {
		case err != nil && cfg.Store.AutoMigrate:
			errutil.LogErrorContext(ctx, logger, "database unreachable at startup, serving degraded", err)
			pending := &pendingMigration{
				ping:   db.Ping,
				apply:  func() error { return autoMigrate(deps, cfg.DatabaseURL, logger) },
				logger: logger,
			}
			b.checks = append(b.checks, pending.Check)
		case err != nil:
			errutil.LogErrorContext(ctx, logger, "database unreachable at startup, serving degraded", err)
			b.checks = append(b.checks, db.Ping)
		case cfg.Store.AutoMigrate:
			b.checks = append(b.checks, db.Ping)
			if err := autoMigrate(deps, cfg.DatabaseURL, logger); err != nil {
				b.Close()
				return nil, err
			}
		default:
			b.checks = append(b.checks, db.Ping)
		}

		b.users = postgres.NewUserRepository(db.Pool())
		b.sessions = postgres.NewSessionRepository(db.Pool())
	}

	if cfg.Session.Backend == config.SessionBackendRedis {
		rdb, err := deps.RedisClientFactory(cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
		})
		b.checks = append(b.checks, redisReady(rdb))
		b.sessions = redisstore.NewSessionRepository(rdb, redisstore.DefaultKeyPrefix)
	}

	return b, nil
}

func redisReady(rdb *redis.Client) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return oops.Code("REDIS_UNREACHABLE").With("operation", "ping").Wrap(err)
		}
		return nil
	}
}

// pendingMigration holds back readiness after a startup outage until the
// database answers and the skipped migrations have been applied once.
type pendingMigration struct {
	mu     sync.Mutex
	done   bool
	ping   observability.ReadinessChecker
	apply  func() error
	logger *slog.Logger
}

// Check is an observability.ReadinessChecker.
func (p *pendingMigration) Check(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil
	}
	if err := p.apply(); err != nil {
		return oops.Code("SCHEMA_NOT_MIGRATED").
			With("operation", "deferred auto-migrate").
			Wrap(err)
	}
	p.done = true
	p.logger.Info("deferred migrations applied, database ready")
	return nil
}

// autoMigrate applies pending migrations before serving.
func autoMigrate(deps *ServeDeps, dsn string, logger *slog.Logger) (err error) {
	m, err := deps.MigratorFactory(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version)
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
