package migrasi

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateSessions = `CREATE TABLE sessions (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    expired_at TIMESTAMP NOT NULL,
    is_cli BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id),
    CONSTRAINT uq_sessions_user_channel UNIQUE (user_id, is_cli)
);`
	sqliteCreateProjects = `CREATE TABLE projects (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    author_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    FOREIGN KEY (author_id) REFERENCES users (id)
);`
	sqliteCreateProjectMembers = `CREATE TABLE project_members (
    id TEXT NOT NULL PRIMARY KEY,
    project_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (project_id) REFERENCES projects (id),
    FOREIGN KEY (member_id) REFERENCES users (id),
    CONSTRAINT uq_project_members UNIQUE (project_id, member_id)
);`
	sqliteCreateProjectMigrations = `CREATE TABLE project_migrations (
    id TEXT NOT NULL PRIMARY KEY,
    project_id TEXT NOT NULL,
    created_by TEXT NOT NULL,
    filename TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    is_migrated BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    FOREIGN KEY (project_id) REFERENCES projects (id),
    FOREIGN KEY (created_by) REFERENCES users (id),
    CONSTRAINT uq_project_migrations_sequence UNIQUE (project_id, sequence)
);`
)

func setupTestDB(t *testing.T) (*bun.DB, RepositoryManager) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, ddl := range []string{
		sqliteCreateUsers,
		sqliteCreateSessions,
		sqliteCreateProjects,
		sqliteCreateProjectMembers,
		sqliteCreateProjectMigrations,
	} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB, NewRepositoryManager(bunDB)
}

func testConfig() *Config {
	return &Config{
		Issuer:              DefaultIssuer,
		BaseURL:             "http://localhost:3000",
		WebSecret:           "web-test-secret",
		WebExpireInDays:     30,
		CLISecret:           "cli-test-secret",
		CLIExpireInDays:     90,
		ConfirmSecret:       "confirm-test-secret",
		ConfirmExpireInDays: 1,
	}
}

func mustCreateUser(t *testing.T, repo RepositoryManager, name, email string, confirmed bool) *User {
	t.Helper()

	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)

	user, err := repo.Users().Register(context.Background(), &User{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: confirmed,
	})
	require.NoError(t, err)

	return user
}

func mustCreateProject(t *testing.T, repo RepositoryManager, author *User, name string) *Project {
	t.Helper()

	ctx := context.Background()
	id := uuid.New()

	project, err := repo.Projects().Create(ctx, &Project{
		ID:       id,
		Name:     name,
		Slug:     Slugify(name, id),
		AuthorID: author.ID,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Projects().AddMembers(ctx, project.ID, []uuid.UUID{author.ID}))

	return project
}

func mustCreateMigration(t *testing.T, repo RepositoryManager, project *Project, author *User, filename string, sequence int64) *ProjectMigration {
	t.Helper()

	record, err := repo.Migrations().Create(context.Background(), &ProjectMigration{
		ProjectID: project.ID,
		CreatedBy: author.ID,
		Filename:  filename,
		Sequence:  sequence,
	})
	require.NoError(t, err)

	return record
}

func callerFor(user *User, channel Channel) Context {
	return Context{
		SessionID: uuid.New(),
		UserID:    user.ID,
		Channel:   channel,
	}
}
