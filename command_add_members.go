package migrasi

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AddMembersMessage struct {
	Slug   string   `json:"slug"`
	Emails []string `json:"emails"`
	Caller Context  `json:"-"`
}

func (e AddMembersMessage) Type() string { return "project.add_members" }

func (e AddMembersMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Slug, validation.Required),
		validation.Field(&e.Emails, validation.Required),
	)
}

// AddMembersResult is what an invite produced: the accounts that joined the
// roster and the addresses that got an invitation email instead.
type AddMembersResult struct {
	Added   []*User  `json:"added"`
	Invited []string `json:"invited"`
}

// AddMembersHandler invites users to a project by email. Only the author may
// invite. Registered addresses join the roster right away; addresses with no
// account get an invitation email to the platform. The author's own address
// and ones already on the roster are skipped silently.
type AddMembersHandler struct {
	repo     RepositoryManager
	resolver *ProjectResolver
	mailer   Mailer
}

func NewAddMembersHandler(repo RepositoryManager, resolver *ProjectResolver, mailer Mailer) *AddMembersHandler {
	if mailer == nil {
		mailer = noopMailer{}
	}
	return &AddMembersHandler{repo: repo, resolver: resolver, mailer: mailer}
}

func (h *AddMembersHandler) Execute(ctx context.Context, event AddMembersMessage) (*AddMembersResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member invite",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AddMembersHandler) execute(ctx context.Context, event AddMembersMessage) (*AddMembersResult, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid member invite request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	result := &AddMembersResult{}
	var projectName, authorName string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := h.resolver.ResolveTx(ctx, tx, event.Caller, event.Slug, AccessAuthor)
		if err != nil {
			return err
		}
		projectName = project.Name

		author, err := h.repo.Users().GetByIdentifierTx(ctx, tx, project.AuthorID.String())
		if err != nil {
			return err
		}
		authorName = author.Name

		candidates, err := h.resolver.FilterValidNewMembersTx(ctx, tx, project, event.Emails)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(candidates))
		for _, c := range candidates {
			if !c.Registered() {
				result.Invited = append(result.Invited, c.Email)
				continue
			}
			ids = append(ids, c.User.ID)
			result.Added = append(result.Added, c.User)
		}

		if len(ids) == 0 {
			return nil
		}

		if err := h.repo.Projects().AddMembersTx(ctx, tx, project.ID, ids); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not add project members")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "member invite transaction failed")
	}

	// Registered members are added without a notification; the invitation
	// email is the side channel for addresses with no account yet.
	for _, email := range result.Invited {
		h.mailer.SendProjectInvitation(authorName, email, projectName)
	}

	return result, nil
}
