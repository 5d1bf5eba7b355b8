package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"add_charge_indexes", "add_charge_indexes"},
		{"Add Charge Indexes", "add_charge_indexes"},
		{"add--guardian  profile", "add_guardian_profile"},
		{"  leading and trailing  ", "leading_and_trailing"},
		{"billing_day (v2)!", "billing_day_v2"},
		{"***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("first migration in an empty directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "migrations")

		mf, err := CreateMigration(dir, "create school tables", "organizations and students", createdAt)
		require.NoError(t, err)

		assert.Equal(t, uint(1), mf.Version)
		assert.Equal(t, filepath.Join(dir, "000001_create_school_tables.up.sql"), mf.UpPath)
		assert.Equal(t, filepath.Join(dir, "000001_create_school_tables.down.sql"), mf.DownPath)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "-- create_school_tables")
		assert.Contains(t, string(up), "-- organizations and students")
		assert.Contains(t, string(up), "2024-03-15T06:00:00Z")
		assert.FileExists(t, mf.DownPath)
	})

	t.Run("continues the sequence", func(t *testing.T) {
		dir := t.TempDir()
		writeEmpty(t, dir, "000001_create_school_tables.up.sql", "000001_create_school_tables.down.sql",
			"000002_create_monthly_charges.up.sql", "000002_create_monthly_charges.down.sql")

		mf, err := CreateMigration(dir, "add charge attempt index", "", createdAt)
		require.NoError(t, err)
		assert.Equal(t, uint(3), mf.Version)
		assert.Equal(t, "000003_add_charge_attempt_index.up.sql", filepath.Base(mf.UpPath))
	})

	t.Run("rejects unusable names", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "", createdAt)
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("orders by version and tracks down files", func(t *testing.T) {
		dir := t.TempDir()
		writeEmpty(t, dir,
			"000002_create_monthly_charges.up.sql",
			"000001_create_school_tables.up.sql",
			"000001_create_school_tables.down.sql",
			"README.md",
			"notes_without_version.up.sql",
		)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

		got, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []Migration{
			{Version: 1, Name: "create_school_tables", HasDown: true},
			{Version: 2, Name: "create_monthly_charges", HasDown: false},
		}, got)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		got, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	got, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i, m := range got {
		assert.Equal(t, uint(i+1), m.Version, "migration versions must be contiguous")
		assert.True(t, m.HasDown, "migration %d has no down file", m.Version)
	}
}

func writeEmpty(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}
