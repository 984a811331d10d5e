package migrasi

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessLevel is the minimum standing a caller needs on a project.
type AccessLevel int

const (
	// AccessMember admits the author and any invited member.
	AccessMember AccessLevel = iota
	// AccessAuthor admits the author only.
	AccessAuthor
)

// ProjectResolver turns a slug plus a caller into a project the caller may
// touch. Every refusal is masked: a project that does not exist, one the
// caller does not own, and one they are not a member of all produce the same
// not-found error, so slugs cannot be probed. The real reason survives on the
// error's TextCode for logs.
type ProjectResolver struct {
	repo   RepositoryManager
	logger Logger
}

func NewProjectResolver(repo RepositoryManager) *ProjectResolver {
	return &ProjectResolver{
		repo:   repo,
		logger: defLogger{},
	}
}

func (r *ProjectResolver) WithLogger(logger Logger) *ProjectResolver {
	r.logger = logger
	return r
}

func (r *ProjectResolver) Resolve(ctx context.Context, caller Context, slug string, level AccessLevel) (*Project, error) {
	return r.ResolveTx(ctx, nil, caller, slug, level)
}

// ResolveTx is Resolve against an explicit transaction so command handlers
// can share theirs with the access check. A nil tx runs on the repository's
// own connection.
func (r *ProjectResolver) ResolveTx(ctx context.Context, tx bun.IDB, caller Context, slug string, level AccessLevel) (*Project, error) {
	getBySlug := func() (*Project, error) {
		if tx == nil {
			return r.repo.Projects().GetBySlug(ctx, slug)
		}
		return r.repo.Projects().GetBySlugTx(ctx, tx, slug)
	}
	isMember := func(projectID, userID uuid.UUID) (bool, error) {
		if tx == nil {
			return r.repo.Projects().IsMember(ctx, projectID, userID)
		}
		return r.repo.Projects().IsMemberTx(ctx, tx, projectID, userID)
	}

	project, err := getBySlug()
	if err != nil {
		if repository.IsRecordNotFound(err) {
			r.logger.Warn("project resolve miss", "slug", slug, "user", caller.UserID)
			return nil, NewProjectNotFound(TextCodeNotFound, map[string]any{
				"slug": slug,
			})
		}
		return nil, err
	}

	if project.AuthorID == caller.UserID {
		return project, nil
	}

	if level == AccessAuthor {
		r.logger.Warn("project resolve rejected non author", "slug", slug, "user", caller.UserID)
		return nil, NewProjectNotFound(TextCodeNotAuthor, map[string]any{
			"slug": slug,
			"user": caller.UserID.String(),
		})
	}

	member, err := isMember(project.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		r.logger.Warn("project resolve rejected non member", "slug", slug, "user", caller.UserID)
		return nil, NewProjectNotFound(TextCodeNotMember, map[string]any{
			"slug": slug,
			"user": caller.UserID.String(),
		})
	}

	return project, nil
}

// ResolveMigration finds a live migration by filename within an already
// resolved project. A soft-deleted or unknown filename is a masked not-found.
func (r *ProjectResolver) ResolveMigration(ctx context.Context, tx bun.IDB, project *Project, filename string) (*ProjectMigration, error) {
	migration, err := r.repo.Migrations().GetByFilenameTx(ctx, tx, project.ID, filename)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, NewMigrationNotFound(TextCodeNotFound, map[string]any{
				"project_id": project.ID.String(),
				"filename":   filename,
			})
		}
		return nil, err
	}

	return migration, nil
}

// MemberCandidate is one screened invite address. A nil User means the
// address has no account yet and gets the invitation email instead of a
// membership row.
type MemberCandidate struct {
	User  *User
	Email string
}

// Registered reports whether the address belongs to an existing account.
func (c MemberCandidate) Registered() bool {
	return c.User != nil
}

// FilterValidNewMembers screens candidate emails for an invite: registered
// accounts that are neither the author nor already members come back with
// their User, unregistered addresses come back bare. Addresses already on the
// roster are dropped.
func (r *ProjectResolver) FilterValidNewMembers(ctx context.Context, project *Project, emails []string) ([]MemberCandidate, error) {
	return r.FilterValidNewMembersTx(ctx, nil, project, emails)
}

func (r *ProjectResolver) FilterValidNewMembersTx(ctx context.Context, tx bun.IDB, project *Project, emails []string) ([]MemberCandidate, error) {
	normalized := make([]string, 0, len(emails))
	seen := map[string]bool{}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		normalized = append(normalized, e)
	}

	var accounts []*User
	var members []*ProjectMember
	var err error

	if tx == nil {
		accounts, err = r.repo.Users().ListByEmails(ctx, normalized)
	} else {
		accounts, err = r.repo.Users().ListByEmailsTx(ctx, tx, normalized)
	}
	if err != nil {
		return nil, err
	}

	if tx == nil {
		members, err = r.repo.Projects().ListMembers(ctx, project.ID)
	} else {
		members, err = r.repo.Projects().ListMembersTx(ctx, tx, project.ID)
	}
	if err != nil {
		return nil, err
	}

	existing := map[uuid.UUID]bool{
		project.AuthorID: true,
	}
	for _, m := range members {
		existing[m.MemberID] = true
	}

	byEmail := map[string]*User{}
	for _, u := range accounts {
		byEmail[strings.ToLower(u.Email)] = u
	}

	valid := make([]MemberCandidate, 0, len(normalized))
	for _, e := range normalized {
		u, ok := byEmail[e]
		if !ok {
			valid = append(valid, MemberCandidate{Email: e})
			continue
		}
		if existing[u.ID] {
			continue
		}
		valid = append(valid, MemberCandidate{User: u, Email: e})
	}

	return valid, nil
}
