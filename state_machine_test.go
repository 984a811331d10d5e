package migrasi

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationInState(status MigrationStatus) *ProjectMigration {
	m := &ProjectMigration{
		ID:       uuid.New(),
		Filename: "create_users",
		Sequence: 1,
	}

	switch status {
	case StatusMigrated:
		m.IsMigrated = true
	case StatusDeleted:
		now := time.Now()
		m.DeletedAt = &now
	}

	return m
}

func TestMigrationStatusDerivation(t *testing.T) {
	assert.Equal(t, StatusUnmigrated, migrationInState(StatusUnmigrated).Status())
	assert.Equal(t, StatusMigrated, migrationInState(StatusMigrated).Status())
	assert.Equal(t, StatusDeleted, migrationInState(StatusDeleted).Status())

	// Deletion wins over the migrated flag.
	m := migrationInState(StatusMigrated)
	now := time.Now()
	m.DeletedAt = &now
	assert.Equal(t, StatusDeleted, m.Status())
}

func TestMigrationStateMachineTransitions(t *testing.T) {
	sm := NewMigrationStateMachine()

	assert.True(t, sm.CanTransition(StatusUnmigrated, StatusMigrated))
	assert.True(t, sm.CanTransition(StatusUnmigrated, StatusDeleted))
	assert.False(t, sm.CanTransition(StatusMigrated, StatusUnmigrated))
	assert.False(t, sm.CanTransition(StatusMigrated, StatusDeleted))
	assert.False(t, sm.CanTransition(StatusDeleted, StatusUnmigrated))
	assert.False(t, sm.CanTransition(StatusDeleted, StatusMigrated))
}

func TestEnsureTransition(t *testing.T) {
	sm := NewMigrationStateMachine()

	t.Run("unmigrated can be applied", func(t *testing.T) {
		err := sm.EnsureTransition(migrationInState(StatusUnmigrated), StatusMigrated)
		assert.NoError(t, err)
	})

	t.Run("applying twice is already migrated", func(t *testing.T) {
		err := sm.EnsureTransition(migrationInState(StatusMigrated), StatusMigrated)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, TextCodeAlreadyMigrated, richErr.TextCode)
	})

	t.Run("deleted is terminal", func(t *testing.T) {
		err := sm.EnsureTransition(migrationInState(StatusDeleted), StatusMigrated)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, TextCodeTerminalState, richErr.TextCode)
	})

	t.Run("nil migration", func(t *testing.T) {
		assert.Error(t, sm.EnsureTransition(nil, StatusMigrated))
	})
}

func TestEnsureMutable(t *testing.T) {
	sm := NewMigrationStateMachine()

	assert.NoError(t, sm.EnsureMutable(migrationInState(StatusUnmigrated)))

	err := sm.EnsureMutable(migrationInState(StatusMigrated))
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, TextCodeAlreadyMigrated, richErr.TextCode)

	assert.Error(t, sm.EnsureMutable(migrationInState(StatusDeleted)))
}
