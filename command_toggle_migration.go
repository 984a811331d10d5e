package migrasi

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ToggleMigrationMessage struct {
	Slug     string  `json:"slug"`
	Filename string  `json:"filename"`
	Caller   Context `json:"-"`
}

func (e ToggleMigrationMessage) Type() string { return "migration.toggle" }

func (e ToggleMigrationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Slug, validation.Required),
		validation.Field(&e.Filename, validation.Required),
	)
}

// ToggleMigrationHandler marks a migration applied. Applying implies every
// predecessor was applied too, so the write is a batch: the target row and
// every live unmigrated row below its sequence flip together, scoped to the
// target's project. Only the project author may do this.
type ToggleMigrationHandler struct {
	repo     RepositoryManager
	resolver *ProjectResolver
	machine  *MigrationStateMachine
}

func NewToggleMigrationHandler(repo RepositoryManager, resolver *ProjectResolver) *ToggleMigrationHandler {
	return &ToggleMigrationHandler{
		repo:     repo,
		resolver: resolver,
		machine:  NewMigrationStateMachine(),
	}
}

func (h *ToggleMigrationHandler) Execute(ctx context.Context, event ToggleMigrationMessage) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during migration toggle",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ToggleMigrationHandler) execute(ctx context.Context, event ToggleMigrationMessage) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid migration toggle request")
	}

	var affected int64
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := h.resolver.ResolveTx(ctx, tx, event.Caller, event.Slug, AccessAuthor)
		if err != nil {
			return err
		}

		migration, err := h.resolver.ResolveMigration(ctx, tx, project, event.Filename)
		if err != nil {
			return err
		}

		if err := h.machine.EnsureTransition(migration, StatusMigrated); err != nil {
			return err
		}

		affected, err = h.repo.Migrations().MarkMigratedThroughTx(ctx, tx, project.ID, migration.Sequence)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return 0, richErr
		}

		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "migration toggle transaction failed")
	}

	return affected, nil
}
