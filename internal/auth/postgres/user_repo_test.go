// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/pkg/errutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func testUser(t *testing.T) *auth.User {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user, err := auth.NewUser("alice", "salt$digest", "alice@example.com", now)
	require.NoError(t, err)
	return user
}

func TestUserRepository_Create(t *testing.T) {
	user := testUser(t)
	args := []any{user.ID.String(), user.Username, user.CredentialHash, user.Contact, user.CreatedAt, user.UpdatedAt}

	t.Run("inserts the row", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewUserRepository(mock).Create(context.Background(), user))
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usersUsernameKey})

		err := NewUserRepository(mock).Create(context.Background(), user)
		require.ErrorIs(t, err, auth.ErrDuplicateUsername)
		errutil.AssertErrorCode(t, err, "USER_DUPLICATE")
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(args...).
			WillReturnError(errors.New("connection refused"))

		err := NewUserRepository(mock).Create(context.Background(), user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
		errutil.AssertErrorCode(t, err, "USER_CREATE_FAILED")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestUserRepository_GetByUsername(t *testing.T) {
	user := testUser(t)
	columns := []string{"id", "username", "credential_hash", "contact", "created_at", "updated_at"}

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(user.ID.String(), user.Username, user.CredentialHash, user.Contact, user.CreatedAt, user.UpdatedAt))

		got, err := NewUserRepository(mock).GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "salt$digest", got.CredentialHash)
		assert.Equal(t, "alice@example.com", got.Contact)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("bob").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewUserRepository(mock).GetByUsername(context.Background(), "bob")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("not-a-ulid", "alice", "h", "", user.CreatedAt, user.UpdatedAt))

		_, err := NewUserRepository(mock).GetByUsername(context.Background(), "alice")
		errutil.AssertErrorCode(t, err, "USER_INVALID_ID")
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("alice").
			WillReturnError(errors.New("timeout"))

		_, err := NewUserRepository(mock).GetByUsername(context.Background(), "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_GET_BY_USERNAME_FAILED")
	})
}

func TestUserRepository_UpdateCredentialHash(t *testing.T) {
	t.Run("updates", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET credential_hash`).
			WithArgs("alice", "newsalt$newdigest", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewUserRepository(mock).UpdateCredentialHash(context.Background(), "alice", "newsalt$newdigest"))
	})

	t.Run("missing user is not an error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET credential_hash`).
			WithArgs("ghost", "h", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		require.NoError(t, NewUserRepository(mock).UpdateCredentialHash(context.Background(), "ghost", "h"))
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET credential_hash`).
			WithArgs("alice", "h", pgxmock.AnyArg()).
			WillReturnError(errors.New("read-only transaction"))

		err := NewUserRepository(mock).UpdateCredentialHash(context.Background(), "alice", "h")
		errutil.AssertErrorCode(t, err, "USER_UPDATE_CREDENTIAL_FAILED")
	})
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usersUsernameKey}

	assert.True(t, isUniqueViolation(unique, usersUsernameKey))
	assert.True(t, isUniqueViolation(unique, ""))
	assert.False(t, isUniqueViolation(unique, sessionsTokenHashKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, ""))
	assert.False(t, isUniqueViolation(errors.New("plain"), ""))
}

