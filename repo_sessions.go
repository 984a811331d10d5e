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

// Sessions stores logins. At most one session per (user, channel) pair exists:
// Start removes the previous one before inserting, so a second login from the
// same channel supersedes the first.
type Sessions interface {
	repository.Repository[*Session]

	Start(ctx context.Context, userID uuid.UUID, channel Channel, ttl time.Duration) (*Session, error)
	StartTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, channel Channel, ttl time.Duration) (*Session, error)

	GetWithUser(ctx context.Context, id uuid.UUID) (*Session, error)
	GetWithUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Session, error)

	End(ctx context.Context, userID uuid.UUID, channel Channel) error
	EndTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, channel Channel) error

	EndByID(ctx context.Context, sessionID uuid.UUID, channel Channel) error
	EndByIDTx(ctx context.Context, tx bun.IDB, sessionID uuid.UUID, channel Channel) error
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var (
	_ Sessions                        = (*sessions)(nil)
	_ repository.Repository[*Session] = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (a *sessions) Start(ctx context.Context, userID uuid.UUID, channel Channel, ttl time.Duration) (*Session, error) {
	return a.StartTx(ctx, a.db, userID, channel, ttl)
}

func (a *sessions) StartTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, channel Channel, ttl time.Duration) (*Session, error) {
	if err := a.EndTx(ctx, tx, userID, channel); err != nil {
		return nil, err
	}

	record := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		IsCLI:     channel.IsCLI(),
		ExpiredAt: time.Now().Add(ttl),
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *sessions) GetWithUser(ctx context.Context, id uuid.UUID) (*Session, error) {
	return a.GetWithUserTx(ctx, a.db, id)
}

func (a *sessions) GetWithUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Session, error) {
	record := &Session{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) End(ctx context.Context, userID uuid.UUID, channel Channel) error {
	return a.EndTx(ctx, a.db, userID, channel)
}

func (a *sessions) EndTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, channel Channel) error {
	_, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_cli = ?", channel.IsCLI()).
		Exec(ctx)
	return err
}

func (a *sessions) EndByID(ctx context.Context, sessionID uuid.UUID, channel Channel) error {
	return a.EndByIDTx(ctx, a.db, sessionID, channel)
}

// EndByIDTx deletes one session by primary key. The channel guard makes a
// session id from the other channel a no-op instead of a cross-channel kill.
func (a *sessions) EndByIDTx(ctx context.Context, tx bun.IDB, sessionID uuid.UUID, channel Channel) error {
	_, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", sessionID).
		Where("?TableAlias.is_cli = ?", channel.IsCLI()).
		Exec(ctx)
	return err
}
