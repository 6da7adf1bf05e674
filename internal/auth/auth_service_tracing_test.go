// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/auth/memory"
	"github.com/lostfound/lostfound/internal/auth/mocks"
	"github.com/lostfound/lostfound/internal/logging"
)

// newRecordingProvider returns a tracer provider whose spans land in the recorder.
func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func spanNamed(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func TestAuthService_LoginLogsCarryTraceID(t *testing.T) {
	tp, recorder := newRecordingProvider(t)
	ctx := context.Background()
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{Service: "lostfound-test"}, &buf)

	svc, err := auth.NewAuthService(memory.NewUserRepository(), memory.NewSessionRepository(),
		auth.NewPBKDF2Hasher(), auth.WithLogger(logger), auth.WithTracerProvider(tp))
	require.NoError(t, err)
	require.NoError(t, svc.Register(ctx, "alice", "secretpw", "alice@example.com"))

	_, err = svc.Login(ctx, "alice", "secretpw")
	require.NoError(t, err)

	login := spanNamed(recorder.Ended(), "auth.login")
	require.NotNil(t, login, "login span must be recorded")
	assert.Equal(t, codes.Unset, login.Status().Code)

	entry := findEntry(logEntries(t, &buf), "user logged in")
	require.NotNil(t, entry)
	assert.Equal(t, login.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, login.SpanContext().SpanID().String(), entry["span_id"])
}

func TestAuthService_SpansRecordStoreFailures(t *testing.T) {
	tp, recorder := newRecordingProvider(t)
	ctx := context.Background()

	users := mocks.NewMockUserRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	users.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("connection refused"))
	sessions.On("Delete", mock.Anything, auth.HashSessionToken("tok")).Return(errors.New("connection refused"))

	svc, err := auth.NewAuthService(users, sessions, auth.NewPBKDF2Hasher(), auth.WithTracerProvider(tp))
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "secretpw")
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	require.ErrorIs(t, svc.Logout(ctx, "tok"), auth.ErrStoreUnavailable)

	for _, name := range []string{"auth.login", "auth.logout"} {
		span := spanNamed(recorder.Ended(), name)
		require.NotNil(t, span, name)
		assert.Equal(t, codes.Error, span.Status().Code, name)
		assert.NotEmpty(t, span.Events(), "%s must record the error", name)
	}

	_, ok, err := svc.RestoreSession(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
	restore := spanNamed(recorder.Ended(), "auth.restore_session")
	require.NotNil(t, restore)
	assert.Equal(t, codes.Unset, restore.Status().Code)
}
