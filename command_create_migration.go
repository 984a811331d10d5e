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

type CreateMigrationMessage struct {
	Slug     string  `json:"slug"`
	Filename string  `json:"filename"`
	Caller   Context `json:"-"`
}

func (e CreateMigrationMessage) Type() string { return "migration.create" }

func (e CreateMigrationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Slug, validation.Required),
		validation.Field(&e.Filename, validation.Required, validation.Length(1, 200)),
	)
}

// CreateMigrationHandler appends a migration to a project. The sequence is
// allocated inside the transaction as max+1 over every row the project ever
// had, deleted ones included, so concurrent creates and later deletions can
// never hand out the same number twice.
type CreateMigrationHandler struct {
	repo     RepositoryManager
	resolver *ProjectResolver
}

func NewCreateMigrationHandler(repo RepositoryManager, resolver *ProjectResolver) *CreateMigrationHandler {
	return &CreateMigrationHandler{repo: repo, resolver: resolver}
}

func (h *CreateMigrationHandler) Execute(ctx context.Context, event CreateMigrationMessage) (*ProjectMigration, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during migration create",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateMigrationHandler) execute(ctx context.Context, event CreateMigrationMessage) (*ProjectMigration, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid migration create request")
	}

	filename := strings.TrimSpace(event.Filename)

	record := &ProjectMigration{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := h.resolver.ResolveTx(ctx, tx, event.Caller, event.Slug, AccessMember)
		if err != nil {
			return err
		}

		if _, err := h.repo.Migrations().GetByFilenameTx(ctx, tx, project.ID, filename); err == nil {
			return goerrors.New("migration filename already exists", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict).
				WithMetadata(map[string]any{
					"filename": filename,
				})
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		maxSeq, err := h.repo.Migrations().MaxSequenceTx(ctx, tx, project.ID)
		if err != nil {
			return err
		}

		record.ProjectID = project.ID
		record.CreatedBy = event.Caller.UserID
		record.Filename = filename
		record.Sequence = maxSeq + 1

		if record, err = h.repo.Migrations().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create migration")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migration create transaction failed")
	}

	return record, nil
}
