package migrasi

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	goerrors "github.com/goliatone/go-errors"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the schema migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GeneratedFilename is the on-disk artifact name of a tracked migration,
// "{sequence}_{filename}.sql".
func GeneratedFilename(sequence int64, filename string) string {
	return fmt.Sprintf("%d_%s.sql", sequence, filename)
}

// WriteMigrationFile materializes an empty migration file in dir using the
// row's generated name. Existing files are left alone so local edits survive
// a re-sync.
func WriteMigrationFile(dir string, m *ProjectMigration) (string, error) {
	if m == nil {
		return "", goerrors.New("migration is nil", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migrations directory")
	}

	path := filepath.Join(dir, m.GeneratedFilename())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return path, nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migration file")
	}

	return path, f.Close()
}
