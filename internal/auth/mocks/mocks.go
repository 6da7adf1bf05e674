// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package mocks holds testify mocks of the auth interfaces. Each
// constructor registers AssertExpectations as a test cleanup.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lostfound/lostfound/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository bound to t.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) UpdateCredentialHash(ctx context.Context, username, credentialHash string) error {
	args := m.Called(ctx, username, credentialHash)
	return args.Error(0)
}

// MockSessionRepository mocks auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a MockSessionRepository bound to t.
func NewMockSessionRepository(t testingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Resolve(ctx context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	args := m.Called(ctx, tokenHash, now)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher bound to t.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, stored string) (bool, error) {
	args := m.Called(password, stored)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(stored string) bool {
	args := m.Called(stored)
	return args.Bool(0)
}

// MockRecorder mocks auth.Recorder.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a MockRecorder bound to t.
func NewMockRecorder(t testingT) *MockRecorder {
	m := &MockRecorder{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecorder) RecordLogin(result string)          { m.Called(result) }
func (m *MockRecorder) RecordRegistration(result string)   { m.Called(result) }
func (m *MockRecorder) RecordSessionResolve(result string) { m.Called(result) }
func (m *MockRecorder) RecordSessionsReaped(n int64)       { m.Called(n) }

var (
	_ auth.UserRepository    = (*MockUserRepository)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.Recorder          = (*MockRecorder)(nil)
)
