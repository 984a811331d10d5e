package migrasi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedFilename(t *testing.T) {
	assert.Equal(t, "1_create_users.sql", GeneratedFilename(1, "create_users"))
	assert.Equal(t, "42_add_index.sql", GeneratedFilename(42, "add_index"))

	m := &ProjectMigration{Sequence: 7, Filename: "create_orders"}
	assert.Equal(t, "7_create_orders.sql", m.GeneratedFilename())
}

func TestWriteMigrationFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")

	m := &ProjectMigration{Sequence: 1, Filename: "create_users"}

	path, err := WriteMigrationFile(dir, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1_create_users.sql"), path)

	// Local edits survive a re-sync.
	require.NoError(t, os.WriteFile(path, []byte("CREATE TABLE users;"), 0o644))

	again, err := WriteMigrationFile(dir, m)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users;", string(content))
}

func TestWriteMigrationFileRejectsNil(t *testing.T) {
	_, err := WriteMigrationFile(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestMigrationsFSIsPopulated(t *testing.T) {
	entries, err := GetMigrationsFS().ReadDir("data/sql/migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
