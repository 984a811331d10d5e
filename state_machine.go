package migrasi

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidMigrationTransition is returned when a requested status change is
// not allowed.
var ErrInvalidMigrationTransition = goerrors.New("invalid migration state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_MIGRATION_STATE_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalMigrationState is returned when attempting to move away from a
// terminal status.
var ErrTerminalMigrationState = goerrors.New("migration state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// MigrationStateMachine gates the lifecycle of a ProjectMigration. Rows start
// unmigrated and move exactly once, to migrated or to deleted; both of those
// are terminal. The machine is pure, persistence stays in the handlers.
type MigrationStateMachine struct {
	transitions map[MigrationStatus]map[MigrationStatus]struct{}
}

func NewMigrationStateMachine() *MigrationStateMachine {
	return &MigrationStateMachine{
		transitions: map[MigrationStatus]map[MigrationStatus]struct{}{
			StatusUnmigrated: {
				StatusMigrated: {},
				StatusDeleted:  {},
			},
			StatusMigrated: {},
			StatusDeleted:  {},
		},
	}
}

// CanTransition reports whether from may move to target.
func (sm *MigrationStateMachine) CanTransition(from, to MigrationStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// EnsureTransition validates a status change for a concrete row.
func (sm *MigrationStateMachine) EnsureTransition(m *ProjectMigration, target MigrationStatus) error {
	if m == nil {
		return ErrInvalidMigrationTransition.Clone().WithMetadata(map[string]any{
			"target": target,
			"reason": "migration is nil",
		})
	}

	from := m.Status()

	// No self-loops: re-applying an applied row is ErrAlreadyMigrated, not
	// a silent success, so callers learn their view is stale.
	if len(sm.transitions[from]) == 0 {
		return sm.terminalError(m, from, target)
	}

	if !sm.CanTransition(from, target) {
		return ErrInvalidMigrationTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	return nil
}

// EnsureMutable validates that a row may still be renamed or deleted. Only
// unmigrated rows are mutable.
func (sm *MigrationStateMachine) EnsureMutable(m *ProjectMigration) error {
	if m == nil {
		return ErrInvalidMigrationTransition.Clone().WithMetadata(map[string]any{
			"reason": "migration is nil",
		})
	}

	if from := m.Status(); from != StatusUnmigrated {
		return sm.terminalError(m, from, StatusUnmigrated)
	}

	return nil
}

func (sm *MigrationStateMachine) terminalError(m *ProjectMigration, from, to MigrationStatus) error {
	// Applied rows have their own refusal so callers can tell "too late"
	// apart from "gone".
	if from == StatusMigrated {
		return ErrAlreadyMigrated.Clone().WithMetadata(map[string]any{
			"id": m.ID.String(),
		})
	}

	return ErrTerminalMigrationState.Clone().WithMetadata(map[string]any{
		"id":   m.ID.String(),
		"from": from,
		"to":   to,
	})
}
