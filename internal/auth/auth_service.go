// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lostfound/lostfound/internal/clock"
	"github.com/lostfound/lostfound/pkg/errutil"
)

const tracerName = "lostfound/auth"

// endSpan marks span failed when err is set, then ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Outcome labels passed to a Recorder.
const (
	ResultSuccess     = "success"
	ResultInvalid     = "invalid"
	ResultDuplicate   = "duplicate"
	ResultExpired     = "expired"
	ResultNotFound    = "not_found"
	ResultUnavailable = "unavailable"
)

// Recorder receives auth outcome counts. observability.Metrics implements it.
type Recorder interface {
	RecordLogin(result string)
	RecordRegistration(result string)
	RecordSessionResolve(result string)
	RecordSessionsReaped(n int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)          {}
func (nopRecorder) RecordRegistration(string)   {}
func (nopRecorder) RecordSessionResolve(string) {}
func (nopRecorder) RecordSessionsReaped(int64)  {}

// Service provides authentication operations.
type Service struct {
	users      UserRepository
	sessions   SessionRepository
	hasher     PasswordHasher
	logger     *slog.Logger
	clock      clock.Clock
	sessionTTL time.Duration
	recorder   Recorder
	tracer     trace.Tracer
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for expiry tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// WithTracerProvider sets where operation spans go. The default is the
// global provider at construction time.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewAuthService creates a new Service. All three dependencies are required.
func NewAuthService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}

	s := &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		logger:     slog.Default(),
		clock:      clock.Real(),
		sessionTTL: DefaultSessionTTL,
		recorder:   nopRecorder{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger cannot be nil")
	}
	if s.clock == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("clock cannot be nil")
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.sessionTTL <= 0 {
		return nil, oops.Code("AUTH_INVALID_SERVICE").
			With("session_ttl", s.sessionTTL.String()).
			Errorf("session ttl must be positive")
	}
	return s, nil
}

// SessionTTL returns the validity window of newly issued sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// dummyPasswordHash is verified when a user doesn't exist so that unknown
// usernames take as long as wrong passwords. It matches no password.
//
//nolint:gosec // G101: intentionally fake credential for timing equalisation.
const dummyPasswordHash = "00000000000000000000000000000000$0000000000000000000000000000000000000000000000000000000000000000"

// Register validates the input, hashes the password and stores the user.
func (s *Service) Register(ctx context.Context, username, password, contact string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.register",
		trace.WithAttributes(attribute.String("auth.username", username)),
	)
	defer func() { endSpan(span, err) }()

	if err := ValidateRegistration(username, password, contact); err != nil {
		s.recorder.RecordRegistration(ResultInvalid)
		var verr *ValidationError
		errors.As(err, &verr)
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("kind", string(verr.Kind)).
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, hash, contact, s.clock.Now())
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			s.recorder.RecordRegistration(ResultDuplicate)
			return oops.Code("AUTH_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(ErrDuplicateUsername)
		}
		s.recorder.RecordRegistration(ResultUnavailable)
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "create user").
			With("username", username).
			Wrap(storeFailure(err))
	}

	s.recorder.RecordRegistration(ResultSuccess)
	s.logger.InfoContext(ctx, "user registered", "username", username)
	return nil
}

// Login authenticates a user and issues a session token.
// Unknown usernames and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.login",
		trace.WithAttributes(attribute.String("auth.username", username)),
	)
	defer func() { endSpan(span, err) }()

	user, lookupErr := s.users.GetByUsername(ctx, username)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.CredentialHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		s.recorder.RecordLogin(ResultUnavailable)
		return "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get user by username").
			Wrap(storeFailure(lookupErr))
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if userExists {
			errutil.LogErrorContext(ctx, s.logger, "stored credential could not be verified", verifyErr)
		}
		valid = false
	}

	if !userExists || !valid {
		s.recorder.RecordLogin(ResultInvalid)
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(user.CredentialHash) {
		s.upgradeCredential(ctx, user.Username, password)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.Username, tokenHash, s.clock.Now(), s.sessionTTL)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.recorder.RecordLogin(ResultUnavailable)
		return "", oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "persist session").
			With("username", user.Username).
			Wrap(storeFailure(err))
	}

	s.recorder.RecordLogin(ResultSuccess)
	s.logger.InfoContext(ctx, "user logged in", "username", user.Username, "session_id", session.ID.String())
	return token, nil
}

// upgradeCredential re-hashes a legacy credential. Failures are logged;
// the login itself has already succeeded.
func (s *Service) upgradeCredential(ctx context.Context, username, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "credential upgrade failed", oops.
			With("username", username).
			With("operation", "hash password").
			Wrap(err))
		return
	}
	if err := s.users.UpdateCredentialHash(ctx, username, newHash); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "credential upgrade failed", oops.
			With("username", username).
			With("operation", "persist credential").
			Wrap(err))
		return
	}
	s.logger.InfoContext(ctx, "legacy credential upgraded", "username", username)
}

// RestoreSession resolves a token back to its username.
//
// ok is false for missing, malformed and expired tokens; the caller should
// discard its copy of the token. A non-nil error means the store could not
// confirm the session: treat the caller as anonymous but keep the token.
func (s *Service) RestoreSession(ctx context.Context, token string) (username string, ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.restore_session")
	defer func() {
		span.SetAttributes(attribute.Bool("auth.session_valid", ok))
		endSpan(span, err)
	}()

	if len(token) != sessionTokenLength {
		return "", false, nil
	}

	session, err := s.sessions.Resolve(ctx, HashSessionToken(token), s.clock.Now())
	switch {
	case err == nil:
		s.recorder.RecordSessionResolve(ResultSuccess)
		return session.Username, true, nil
	case errors.Is(err, ErrNotFound):
		s.recorder.RecordSessionResolve(ResultNotFound)
		return "", false, nil
	case errors.Is(err, ErrSessionExpired):
		s.recorder.RecordSessionResolve(ResultExpired)
		return "", false, nil
	default:
		s.recorder.RecordSessionResolve(ResultUnavailable)
		return "", false, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "resolve session").
			Wrap(storeFailure(err))
	}
}

// Logout revokes the session behind token. Empty or unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "delete session").
			Wrap(storeFailure(err))
	}
	return nil
}

// Contact returns the contact info a user registered with. Unknown users
// yield NoContactInfo. On a store failure NoContactInfo is returned along
// with the error so callers can still render something.
func (s *Service) Contact(ctx context.Context, username string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if user.Contact == "" {
			return NoContactInfo, nil
		}
		return user.Contact, nil
	case errors.Is(err, ErrNotFound):
		return NoContactInfo, nil
	default:
		return NoContactInfo, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get user contact").
			With("username", username).
			Wrap(storeFailure(err))
	}
}
