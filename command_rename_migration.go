package migrasi

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RenameMigrationMessage struct {
	Slug        string  `json:"slug"`
	Filename    string  `json:"filename"`
	NewFilename string  `json:"new_filename"`
	Caller      Context `json:"-"`
}

func (e RenameMigrationMessage) Type() string { return "migration.rename" }

func (e RenameMigrationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Slug, validation.Required),
		validation.Field(&e.Filename, validation.Required),
		validation.Field(&e.NewFilename, validation.Required, validation.Length(1, 200)),
	)
}

// RenameMigrationHandler renames an unmigrated migration. Only the row's
// creator may rename it; anyone else gets the same masked not-found a
// stranger would.
type RenameMigrationHandler struct {
	repo     RepositoryManager
	resolver *ProjectResolver
	machine  *MigrationStateMachine
}

func NewRenameMigrationHandler(repo RepositoryManager, resolver *ProjectResolver) *RenameMigrationHandler {
	return &RenameMigrationHandler{
		repo:     repo,
		resolver: resolver,
		machine:  NewMigrationStateMachine(),
	}
}

func (h *RenameMigrationHandler) Execute(ctx context.Context, event RenameMigrationMessage) (*ProjectMigration, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during migration rename",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RenameMigrationHandler) execute(ctx context.Context, event RenameMigrationMessage) (*ProjectMigration, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid migration rename request")
	}

	newFilename := strings.TrimSpace(event.NewFilename)

	var record *ProjectMigration
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

		if newFilename == migration.Filename {
			record = migration
			return nil
		}

		if _, err := h.repo.Migrations().GetByFilenameTx(ctx, tx, project.ID, newFilename); err == nil {
			return goerrors.New("migration filename already exists", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict).
				WithMetadata(map[string]any{
					"filename": newFilename,
				})
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		record, err = h.repo.Migrations().RenameTx(ctx, tx, migration.ID, newFilename)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration rename transaction failed")
	}

	return record, nil
}
