package migrasi

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Projects stores project rows and the membership table that hangs off them.
type Projects interface {
	repository.Repository[*Project]

	GetBySlug(ctx context.Context, slug string) (*Project, error)
	GetBySlugTx(ctx context.Context, tx bun.IDB, slug string) (*Project, error)

	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error)
	ListForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Project, error)

	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	IsMemberTx(ctx context.Context, tx bun.IDB, projectID, userID uuid.UUID) (bool, error)

	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*ProjectMember, error)
	ListMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMember, error)

	AddMembers(ctx context.Context, projectID uuid.UUID, memberIDs []uuid.UUID) error
	AddMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, memberIDs []uuid.UUID) error

	RemoveMember(ctx context.Context, projectID, memberID uuid.UUID) error
	RemoveMemberTx(ctx context.Context, tx bun.IDB, projectID, memberID uuid.UUID) error

	RemoveMembers(ctx context.Context, projectID uuid.UUID, memberIDs []uuid.UUID) error
	RemoveMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, memberIDs []uuid.UUID) error

	CountMembers(ctx context.Context, projectID uuid.UUID) (int, error)
	CountMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) (int, error)

	SearchMembersToAdd(ctx context.Context, projectID uuid.UUID, term string, limit int) ([]*MemberSearchResult, error)

	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type projects struct {
	repository.Repository[*Project]
	db *bun.DB
}

var (
	_ Projects                        = (*projects)(nil)
	_ repository.Repository[*Project] = (*projects)(nil)
)

func NewProjectsRepository(db *bun.DB) Projects {
	repo := repository.NewRepository[*Project](db, repository.ModelHandlers[*Project]{
		NewRecord: func() *Project { return &Project{} },
		GetID: func(p *Project) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Project, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "slug"
		},
	})

	return &projects{
		Repository: repo,
		db:         db,
	}
}

func (a *projects) GetBySlug(ctx context.Context, slug string) (*Project, error) {
	return a.GetBySlugTx(ctx, a.db, slug)
}

// GetBySlugTx looks a project up by slug, or by primary key when the
// identifier parses as a uuid.
func (a *projects) GetBySlugTx(ctx context.Context, tx bun.IDB, slug string) (*Project, error) {
	record := &Project{}
	q := tx.NewSelect().
		Model(record).
		Limit(1)

	if id, perr := uuid.Parse(slug); perr == nil {
		q = q.Where("?TableAlias.slug = ? OR ?TableAlias.id = ?", slug, id)
	} else {
		q = q.Where("?TableAlias.slug = ?", slug)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"slug": slug,
				})
		}
		return nil, err
	}

	return record, nil
}

// ListForUser returns every project the user authored or was invited to,
// newest first.
func (a *projects) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	return a.ListForUserTx(ctx, a.db, userID)
}

func (a *projects) ListForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Project, error) {
	records := []*Project{}
	err := tx.NewSelect().
		Model(&records).
		Relation("Author").
		Join(`LEFT JOIN "project_members" AS "pmb" ON "pmb"."project_id" = "prj"."id"`).
		Where("?TableAlias.author_id = ? OR pmb.member_id = ?", userID, userID).
		Distinct().
		Order("prj.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *projects) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return a.IsMemberTx(ctx, a.db, projectID, userID)
}

func (a *projects) IsMemberTx(ctx context.Context, tx bun.IDB, projectID, userID uuid.UUID) (bool, error) {
	return tx.NewSelect().
		Model((*ProjectMember)(nil)).
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.member_id = ?", userID).
		Exists(ctx)
}

func (a *projects) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*ProjectMember, error) {
	return a.ListMembersTx(ctx, a.db, projectID)
}

func (a *projects) ListMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMember, error) {
	records := []*ProjectMember{}
	err := tx.NewSelect().
		Model(&records).
		Relation("Member").
		Where("?TableAlias.project_id = ?", projectID).
		Order("pmb.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *projects) AddMembers(ctx context.Context, projectID uuid.UUID, memberIDs []uuid.UUID) error {
	return a.AddMembersTx(ctx, a.db, projectID, memberIDs)
}

func (a *projects) AddMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}

	records := make([]*ProjectMember, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		records = append(records, &ProjectMember{
			ID:        uuid.New(),
			ProjectID: projectID,
			MemberID:  memberID,
		})
	}

	_, err := tx.NewInsert().
		Model(&records).
		Exec(ctx)
	return err
}

func (a *projects) RemoveMember(ctx context.Context, projectID, memberID uuid.UUID) error {
	return a.RemoveMemberTx(ctx, a.db, projectID, memberID)
}

func (a *projects) RemoveMemberTx(ctx context.Context, tx bun.IDB, projectID, memberID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*ProjectMember)(nil)).
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.member_id = ?", memberID).
		Exec(ctx)
	return err
}

func (a *projects) RemoveMembers(ctx context.Context, projectID uuid.UUID, memberIDs []uuid.UUID) error {
	return a.RemoveMembersTx(ctx, a.db, projectID, memberIDs)
}

func (a *projects) RemoveMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}

	_, err := tx.NewDelete().
		Model((*ProjectMember)(nil)).
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.member_id IN (?)", bun.In(memberIDs)).
		Exec(ctx)
	return err
}

func (a *projects) CountMembers(ctx context.Context, projectID uuid.UUID) (int, error) {
	return a.CountMembersTx(ctx, a.db, projectID)
}

func (a *projects) CountMembersTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*ProjectMember)(nil)).
		Where("?TableAlias.project_id = ?", projectID).
		Count(ctx)
}

// MemberSearchResult is one hit of the invite search: an account plus whether
// it already sits on the roster.
type MemberSearchResult struct {
	User          *User `json:"user"`
	AlreadyMember bool  `json:"already_member"`
}

// SearchMembersToAdd finds accounts by email or name fragment for the invite
// flow, flagging ones already on the project roster.
func (a *projects) SearchMembersToAdd(ctx context.Context, projectID uuid.UUID, term string, limit int) ([]*MemberSearchResult, error) {
	pattern := "%" + term + "%"

	users := []*User{}
	err := a.db.NewSelect().
		Model(&users).
		Where("?TableAlias.email LIKE ? OR ?TableAlias.name LIKE ?", pattern, pattern).
		Order("usr.name ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return []*MemberSearchResult{}, nil
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	memberIDs := []uuid.UUID{}
	err = a.db.NewSelect().
		Model((*ProjectMember)(nil)).
		Column("member_id").
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.member_id IN (?)", bun.In(ids)).
		Scan(ctx, &memberIDs)
	if err != nil {
		return nil, err
	}

	onRoster := map[uuid.UUID]bool{}
	for _, id := range memberIDs {
		onRoster[id] = true
	}

	results := make([]*MemberSearchResult, 0, len(users))
	for _, u := range users {
		results = append(results, &MemberSearchResult{
			User:          u,
			AlreadyMember: onRoster[u.ID],
		})
	}

	return results, nil
}

func (a *projects) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return a.SoftDeleteTx(ctx, a.db, id)
}

func (a *projects) SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	_, err := tx.NewUpdate().
		Model((*Project)(nil)).
		Set("deleted_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	return err
}
