package migrasi

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type DeleteMigrationMessage struct {
	Slug     string  `json:"slug"`
	Filename string  `json:"filename"`
	Caller   Context `json:"-"`
}

func (e DeleteMigrationMessage) Type() string { return "migration.delete" }

func (e DeleteMigrationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Slug, validation.Required),
		validation.Field(&e.Filename, validation.Required),
	)
}

// DeleteMigrationHandler soft-deletes an unmigrated migration. The row keeps
// its sequence slot forever; only its creator may delete it.
type DeleteMigrationHandler struct {
	repo     RepositoryManager
	resolver *ProjectResolver
	machine  *MigrationStateMachine
}

func NewDeleteMigrationHandler(repo RepositoryManager, resolver *ProjectResolver) *DeleteMigrationHandler {
	return &DeleteMigrationHandler{
		repo:     repo,
		resolver: resolver,
		machine:  NewMigrationStateMachine(),
	}
}

func (h *DeleteMigrationHandler) Execute(ctx context.Context, event DeleteMigrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during migration delete",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteMigrationHandler) execute(ctx context.Context, event DeleteMigrationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid migration delete request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := h.resolver.ResolveTx(ctx, tx, event.Caller, event.Slug, AccessMember)
		if err != nil {
			return err
		}

		migration, err := h.resolver.ResolveMigration(ctx, tx, project, event.Filename)
		if err != nil {
			return err
		}

		if migration.CreatedBy != event.Caller.UserID {
			return NewMigrationNotFound(TextCodeNotAuthor, map[string]any{
				"filename": event.Filename,
				"user":     event.Caller.UserID.String(),
			})
		}

		if err := h.machine.EnsureMutable(migration); err != nil {
			return err
		}

		return h.repo.Migrations().SoftDeleteTx(ctx, tx, migration.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "migration delete transaction failed")
	}

	return nil
}
