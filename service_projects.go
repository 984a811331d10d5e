package migrasi

import (
	"context"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultPageSize caps migration history pages.
const DefaultPageSize = 10

// TopMembersLimit is how many contributors the project detail shows.
const TopMembersLimit = 5

// InitialMigrationsLimit is the history slice embedded in the project detail.
const InitialMigrationsLimit = 20

// SearchResultLimit caps member search hits.
const SearchResultLimit = 10

// ProjectService carries the read side plus project lifecycle: creation,
// deletion, membership listing and removal. Migration writes live in the
// command handlers.
type ProjectService struct {
	repo     RepositoryManager
	resolver *ProjectResolver
	logger   Logger
}

func NewProjectService(repo RepositoryManager, resolver *ProjectResolver) *ProjectService {
	return &ProjectService{
		repo:     repo,
		resolver: resolver,
		logger:   defLogger{},
	}
}

func (s *ProjectService) WithLogger(logger Logger) *ProjectService {
	s.logger = logger
	return s
}

// CreateProject creates a project owned by the caller. The author also gets a
// membership row so roster queries stay uniform.
func (s *ProjectService) CreateProject(ctx context.Context, caller Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 100)); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid project name")
	}

	id := uuid.New()
	record := &Project{
		ID:       id,
		Name:     name,
		Slug:     Slugify(name, id),
		AuthorID: caller.UserID,
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if record, err = s.repo.Projects().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create project")
		}

		return s.repo.Projects().AddMembersTx(ctx, tx, record.ID, []uuid.UUID{caller.UserID})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// DeleteProject soft-deletes a project. Author only.
func (s *ProjectService) DeleteProject(ctx context.Context, caller Context, slug string) error {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessAuthor)
	if err != nil {
		return err
	}

	return s.repo.Projects().SoftDelete(ctx, project.ID)
}

// ListProjects returns every project the caller authored or joined.
func (s *ProjectService) ListProjects(ctx context.Context, caller Context) ([]*Project, error) {
	return s.repo.Projects().ListForUser(ctx, caller.UserID)
}

// GetProject resolves a single project the caller can see.
func (s *ProjectService) GetProject(ctx context.Context, caller Context, slug string) (*Project, error) {
	return s.resolver.Resolve(ctx, caller, slug, AccessMember)
}

// MemberContribution pairs a roster member with how many migrations they
// created on the project.
type MemberContribution struct {
	User          *User `json:"user"`
	Contributions int   `json:"contributions"`
}

// ProjectDetail is the project page payload: the row, its author, the roster
// size, the top contributors, and the first page of history.
type ProjectDetail struct {
	Project      *Project              `json:"project"`
	Author       *User                 `json:"author"`
	TotalMembers int                   `json:"total_members"`
	TopMembers   []*MemberContribution `json:"top_members"`
	Migrations   *MigrationPage        `json:"migrations"`
}

// GetProjectDetail resolves a project and populates the detail payload.
func (s *ProjectService) GetProjectDetail(ctx context.Context, caller Context, slug string) (*ProjectDetail, error) {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessMember)
	if err != nil {
		return nil, err
	}

	author, err := s.repo.Users().GetByIdentifier(ctx, project.AuthorID.String())
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Projects().CountMembers(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.Projects().ListMembers(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.Migrations().CountByCreator(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	top := make([]*MemberContribution, 0, len(members))
	for _, m := range members {
		top = append(top, &MemberContribution{
			User:          m.Member,
			Contributions: counts[m.MemberID],
		})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Contributions > top[j].Contributions
	})
	if len(top) > TopMembersLimit {
		top = top[:TopMembersLimit]
	}

	items, migrationsTotal, err := s.repo.Migrations().ListPage(ctx, project.ID, InitialMigrationsLimit, 0)
	if err != nil {
		return nil, err
	}

	return &ProjectDetail{
		Project:      project,
		Author:       author,
		TotalMembers: total,
		TopMembers:   top,
		Migrations: &MigrationPage{
			Items: items,
			Total: migrationsTotal,
			Page:  1,
		},
	}, nil
}

// ListMembers returns the project roster, author membership row included.
func (s *ProjectService) ListMembers(ctx context.Context, caller Context, slug string) ([]*ProjectMember, error) {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessMember)
	if err != nil {
		return nil, err
	}

	return s.repo.Projects().ListMembers(ctx, project.ID)
}

// RemoveMember drops a member from the roster. Author only, and the author's
// own membership is not removable.
func (s *ProjectService) RemoveMember(ctx context.Context, caller Context, slug string, memberID uuid.UUID) error {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessAuthor)
	if err != nil {
		return err
	}

	if memberID == project.AuthorID {
		return goerrors.New("project author cannot be removed", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return s.repo.Projects().RemoveMember(ctx, project.ID, memberID)
}

// RemoveMembers drops several members in one transaction. Author only. Ids
// that are not on the roster, and the author's own id, are skipped silently;
// the removed ids come back.
func (s *ProjectService) RemoveMembers(ctx context.Context, caller Context, slug string, memberIDs []uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := s.resolver.ResolveTx(ctx, tx, caller, slug, AccessAuthor)
		if err != nil {
			return err
		}

		valid := make([]uuid.UUID, 0, len(memberIDs))
		for _, id := range memberIDs {
			if id == project.AuthorID {
				continue
			}
			member, err := s.repo.Projects().IsMemberTx(ctx, tx, project.ID, id)
			if err != nil {
				return err
			}
			if member {
				valid = append(valid, id)
			}
		}

		if len(valid) == 0 {
			return nil
		}

		if err := s.repo.Projects().RemoveMembersTx(ctx, tx, project.ID, valid); err != nil {
			return err
		}

		removed = valid
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// SearchMembersToAdd finds accounts by email or name fragment for the invite
// flow, marking the ones already on the roster. Author only, same masked
// refusal as every other author gate.
func (s *ProjectService) SearchMembersToAdd(ctx context.Context, caller Context, slug, term string) ([]*MemberSearchResult, error) {
	if err := validation.Validate(term, validation.Required); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid member search term")
	}

	project, err := s.resolver.Resolve(ctx, caller, slug, AccessAuthor)
	if err != nil {
		return nil, err
	}

	return s.repo.Projects().SearchMembersToAdd(ctx, project.ID, term, SearchResultLimit)
}

// MigrationPage is one page of project history.
type MigrationPage struct {
	Items []*ProjectMigration `json:"items"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
}

// GetMigrations returns one page of the project history, newest first,
// soft-deleted rows included. Pages start at 1.
func (s *ProjectService) GetMigrations(ctx context.Context, caller Context, slug string, page int) (*MigrationPage, error) {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessMember)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}

	items, total, err := s.repo.Migrations().ListPage(ctx, project.ID, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}

	return &MigrationPage{
		Items: items,
		Total: total,
		Page:  page,
	}, nil
}

// GetAllMigrations returns every live migration in apply order. This is what
// the CLI syncs against.
func (s *ProjectService) GetAllMigrations(ctx context.Context, caller Context, slug string) ([]*ProjectMigration, error) {
	project, err := s.resolver.Resolve(ctx, caller, slug, AccessMember)
	if err != nil {
		return nil, err
	}

	return s.repo.Migrations().ListAll(ctx, project.ID)
}

// Slugify derives the project slug: the lowercased hyphenated name joined
// with the last fragment of the project id, which keeps equal names from
// colliding.
func Slugify(name string, id uuid.UUID) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")

	parts := strings.Split(id.String(), "-")

	return slug + "-" + parts[len(parts)-1]
}
