package migrasi

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Sessions() Sessions
	Projects() Projects
	Migrations() Migrations
}

type mngr struct {
	db         *bun.DB
	users      Users
	sessions   Sessions
	projects   Projects
	migrations Migrations
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		users:      NewUsersRepository(db),
		sessions:   NewSessionsRepository(db),
		projects:   NewProjectsRepository(db),
		migrations: NewMigrationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.projects == nil {
		return errors.New("repository projects should be initialized")
	}

	if m.migrations == nil {
		return errors.New("repository migrations should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) Projects() Projects {
	return m.projects
}

func (m mngr) Migrations() Migrations {
	return m.migrations
}
