// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/pkg/errutil"
)

// fakeMigrate implements schemaMigrator with canned results.
type fakeMigrate struct {
	upErr          error
	downErr        error
	version        uint
	dirty          bool
	versionErr     error
	forced         int
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/lostfound")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestPgx5URL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/lostfound", "pgx5://u:p@db:5432/lostfound"},
		{"postgresql://db/lostfound?sslmode=disable", "pgx5://db/lostfound?sslmode=disable"},
		{"pgx5://db/lostfound", "pgx5://db/lostfound"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, pgx5URL(tt.in))
		})
	}
}

func TestMigrator_Up(t *testing.T) {
	t.Run("applies", func(t *testing.T) {
		require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Up())
	})
	t.Run("no change is success", func(t *testing.T) {
		require.NoError(t, (&Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}).Up())
	})
	t.Run("failure", func(t *testing.T) {
		err := (&Migrator{m: &fakeMigrate{upErr: errors.New("database locked")}}).Up()
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	})
}

func TestMigrator_Down(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}).Down())

	err := (&Migrator{m: &fakeMigrate{downErr: errors.New("lock timeout")}}).Down()
	errutil.AssertErrorCode(t, err, "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err, "empty database reports version 0")
	assert.Zero(t, v)
	assert.False(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	fake := &fakeMigrate{}
	require.NoError(t, (&Migrator{m: fake}).Force(1))
	assert.Equal(t, 1, fake.forced)

	err := (&Migrator{m: &fakeMigrate{}}).Force(-1)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")

	err = (&Migrator{m: &fakeMigrate{forceErr: errors.New("nope")}}).Force(2)
	errutil.AssertErrorCode(t, err, "MIGRATION_FORCE_FAILED")
	errutil.AssertErrorContext(t, err, "version", 2)
}

func TestMigrator_Status(t *testing.T) {
	st, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Status()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{version: 1}}).Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.Equal(t, []uint{2}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{version: 2}}).Status()
	require.NoError(t, err)
	assert.Empty(t, st.Pending)

	_, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Status()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "migration status")
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakeMigrate
		component string
	}{
		{"source", &fakeMigrate{closeSourceErr: errors.New("source close failed")}, "source"},
		{"database", &fakeMigrate{closeDBErr: errors.New("db close failed")}, "database"},
		{"both", &fakeMigrate{
			closeSourceErr: errors.New("source close failed"),
			closeDBErr:     errors.New("db close failed"),
		}, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.fake}).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_create_sessions", name)

	name, err = MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}
