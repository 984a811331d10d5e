package migrasi

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migrations stores per-project migration rows. Sequence numbers are allocated
// here, under a transaction the caller owns, and are never reused: the max
// scan includes soft-deleted rows so a deleted migration keeps its slot.
type Migrations interface {
	repository.Repository[*ProjectMigration]

	Create(ctx context.Context, record *ProjectMigration, criteria ...repository.InsertCriteria) (*ProjectMigration, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ProjectMigration, criteria ...repository.InsertCriteria) (*ProjectMigration, error)

	MaxSequence(ctx context.Context, projectID uuid.UUID) (int64, error)
	MaxSequenceTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) (int64, error)

	GetByFilename(ctx context.Context, projectID uuid.UUID, filename string) (*ProjectMigration, error)
	GetByFilenameTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, filename string) (*ProjectMigration, error)

	ListPage(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*ProjectMigration, int, error)
	ListPageTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, limit, offset int) ([]*ProjectMigration, int, error)

	ListAll(ctx context.Context, projectID uuid.UUID) ([]*ProjectMigration, error)
	ListAllTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMigration, error)

	MarkMigratedThrough(ctx context.Context, projectID uuid.UUID, sequence int64) (int64, error)
	MarkMigratedThroughTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, sequence int64) (int64, error)

	CountByCreator(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]int, error)

	Rename(ctx context.Context, id uuid.UUID, filename string) (*ProjectMigration, error)
	RenameTx(ctx context.Context, tx bun.IDB, id uuid.UUID, filename string) (*ProjectMigration, error)

	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type migrations struct {
	repository.Repository[*ProjectMigration]
	db *bun.DB
}

var (
	_ Migrations                               = (*migrations)(nil)
	_ repository.Repository[*ProjectMigration] = (*migrations)(nil)
)

func NewMigrationsRepository(db *bun.DB) Migrations {
	repo := repository.NewRepository[*ProjectMigration](db, repository.ModelHandlers[*ProjectMigration]{
		NewRecord: func() *ProjectMigration { return &ProjectMigration{} },
		GetID: func(m *ProjectMigration) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *ProjectMigration, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "filename"
		},
	})

	return &migrations{
		Repository: repo,
		db:         db,
	}
}

func (a *migrations) Create(ctx context.Context, record *ProjectMigration, criteria ...repository.InsertCriteria) (*ProjectMigration, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *migrations) CreateTx(ctx context.Context, tx bun.IDB, record *ProjectMigration, criteria ...repository.InsertCriteria) (*ProjectMigration, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *migrations) MaxSequence(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return a.MaxSequenceTx(ctx, a.db, projectID)
}

// MaxSequenceTx returns the highest sequence ever allocated in the project, 0
// if none. Soft-deleted rows count. On Postgres the read takes a row lock so
// two concurrent allocators serialize; SQLite serializes writers on its own.
func (a *migrations) MaxSequenceTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) (int64, error) {
	record := &ProjectMigration{}
	q := tx.NewSelect().
		Model(record).
		WhereAllWithDeleted().
		Where("?TableAlias.project_id = ?", projectID).
		Order("pmi.sequence DESC").
		Limit(1)

	if a.db.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	return record.Sequence, nil
}

func (a *migrations) GetByFilename(ctx context.Context, projectID uuid.UUID, filename string) (*ProjectMigration, error) {
	return a.GetByFilenameTx(ctx, a.db, projectID, filename)
}

// GetByFilenameTx resolves a live migration by its bare filename. Soft-deleted
// rows are excluded: a deleted migration's name is addressable again, even
// though its sequence slot stays burned.
func (a *migrations) GetByFilenameTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, filename string) (*ProjectMigration, error) {
	record := &ProjectMigration{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.filename = ?", filename).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"project_id": projectID.String(),
					"filename":   filename,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *migrations) ListPage(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*ProjectMigration, int, error) {
	return a.ListPageTx(ctx, a.db, projectID, limit, offset)
}

// ListPageTx returns one page of the project history, newest first. Deleted
// rows are included so the history shows what happened to them.
func (a *migrations) ListPageTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, limit, offset int) ([]*ProjectMigration, int, error) {
	records := []*ProjectMigration{}
	total, err := tx.NewSelect().
		Model(&records).
		Relation("Author").
		WhereAllWithDeleted().
		Where("?TableAlias.project_id = ?", projectID).
		Order("pmi.sequence DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (a *migrations) ListAll(ctx context.Context, projectID uuid.UUID) ([]*ProjectMigration, error) {
	return a.ListAllTx(ctx, a.db, projectID)
}

// ListAllTx returns every live migration in apply order, oldest first. This is
// the CLI sync view; soft-deleted rows are invisible here.
func (a *migrations) ListAllTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID) ([]*ProjectMigration, error) {
	records := []*ProjectMigration{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.project_id = ?", projectID).
		Order("pmi.sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *migrations) MarkMigratedThrough(ctx context.Context, projectID uuid.UUID, sequence int64) (int64, error) {
	return a.MarkMigratedThroughTx(ctx, a.db, projectID, sequence)
}

// MarkMigratedThroughTx flips every live unmigrated row of the project with
// sequence at or below the target. Rows already migrated are untouched, which
// keeps the batch idempotent.
func (a *migrations) MarkMigratedThroughTx(ctx context.Context, tx bun.IDB, projectID uuid.UUID, sequence int64) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*ProjectMigration)(nil)).
		Set("is_migrated = TRUE").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.project_id = ?", projectID).
		Where("?TableAlias.sequence <= ?", sequence).
		Where("?TableAlias.is_migrated = FALSE").
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// CountByCreator returns how many live migrations each member contributed to
// the project, keyed by creator id.
func (a *migrations) CountByCreator(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]int, error) {
	rows := []struct {
		CreatedBy uuid.UUID `bun:"created_by"`
		Count     int       `bun:"n"`
	}{}

	err := a.db.NewSelect().
		Model((*ProjectMigration)(nil)).
		ColumnExpr("?TableAlias.created_by").
		ColumnExpr("count(*) AS n").
		Where("?TableAlias.project_id = ?", projectID).
		Group("created_by").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.CreatedBy] = row.Count
	}

	return counts, nil
}

func (a *migrations) Rename(ctx context.Context, id uuid.UUID, filename string) (*ProjectMigration, error) {
	return a.RenameTx(ctx, a.db, id, filename)
}

func (a *migrations) RenameTx(ctx context.Context, tx bun.IDB, id uuid.UUID, filename string) (*ProjectMigration, error) {
	_, err := tx.NewUpdate().
		Model((*ProjectMigration)(nil)).
		Set("filename = ?", filename).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	record := &ProjectMigration{}
	err = tx.NewSelect().
		Model(record).
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

func (a *migrations) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return a.SoftDeleteTx(ctx, a.db, id)
}

func (a *migrations) SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	_, err := tx.NewUpdate().
		Model((*ProjectMigration)(nil)).
		Set("deleted_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	return err
}
