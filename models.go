package migrasi

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Users are created at registration and only ever
// mutated to flip the email confirmation flag.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name           string     `bun:"name,notnull" json:"name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password,notnull" json:"-"`
	EmailConfirmed bool       `bun:"email_confirmed" json:"email_confirmed,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Session is a live login for one (user, channel) pair. The table carries a
// uniqueness constraint on (user_id, is_cli); a racing second login surfaces
// as a constraint violation instead of a silent duplicate.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ExpiredAt     time.Time  `bun:"expired_at,notnull" json:"expired_at,omitempty"`
	IsCLI         bool       `bun:"is_cli" json:"is_cli,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Channel returns the channel this session belongs to.
func (s *Session) Channel() Channel {
	if s.IsCLI {
		return ChannelCLI
	}
	return ChannelWeb
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiredAt.After(now)
}

// Project groups migrations under an owning author. The slug is derived from
// the name plus a random suffix and is unique across all projects.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:prj"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Slug          string     `bun:"slug,notnull,unique" json:"slug,omitempty"`
	AuthorID      uuid.UUID  `bun:"author_id,notnull,type:uuid" json:"author_id,omitempty"`
	Author        *User      `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// ProjectMember links an invited collaborator to a project. The author gets a
// membership row at project creation, but authorship itself derives from
// Project.AuthorID, never from this table.
type ProjectMember struct {
	bun.BaseModel `bun:"table:project_members,alias:pmb"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ProjectID     uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id,omitempty"`
	MemberID      uuid.UUID  `bun:"member_id,notnull,type:uuid" json:"member_id,omitempty"`
	Member        *User      `bun:"rel:belongs-to,join:member_id=id" json:"member,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MigrationStatus is the lifecycle state of a project migration.
type MigrationStatus = string

const (
	// StatusUnmigrated is the initial state; renames and soft-deletes are
	// only legal here.
	StatusUnmigrated MigrationStatus = "unmigrated"
	// StatusMigrated means the file has been applied. Terminal for mutation.
	StatusMigrated MigrationStatus = "migrated"
	// StatusDeleted is the soft-deleted state. Terminal.
	StatusDeleted MigrationStatus = "deleted"
)

// ProjectMigration is one tracked migration file. The sequence is unique and
// strictly increasing per project and survives soft deletion; (project_id,
// filename) is unique at the table level.
type ProjectMigration struct {
	bun.BaseModel `bun:"table:project_migrations,alias:pmi"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ProjectID     uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id,omitempty"`
	CreatedBy     uuid.UUID  `bun:"created_by,notnull,type:uuid" json:"created_by,omitempty"`
	Filename      string     `bun:"filename,notnull" json:"filename,omitempty"`
	Sequence      int64      `bun:"sequence,notnull" json:"sequence,omitempty"`
	IsMigrated    bool       `bun:"is_migrated" json:"is_migrated"`
	Author        *User      `bun:"rel:belongs-to,join:created_by=id" json:"author,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Status derives the lifecycle state from the persisted flags.
func (m *ProjectMigration) Status() MigrationStatus {
	switch {
	case m.DeletedAt != nil:
		return StatusDeleted
	case m.IsMigrated:
		return StatusMigrated
	default:
		return StatusUnmigrated
	}
}

// GeneratedFilename is the CLI-facing artifact name, "{sequence}_{filename}".
func (m *ProjectMigration) GeneratedFilename() string {
	return GeneratedFilename(m.Sequence, m.Filename)
}
