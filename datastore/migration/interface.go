package migration

import (
	"context"
	"io/fs"

	"gorm.io/gorm"
)

type Migrator interface {
	DB(ctx context.Context) *gorm.DB
	ScanMigrationFiles(ctx context.Context, source Source) error
	SaveMigrationString(
		ctx context.Context,
		filename string,
		migrationPatch string,
		revertPatch string,
	) error
	ApplyNewMigrations(ctx context.Context) (int, error)
	Pending(ctx context.Context) ([]*Migration, error)
}

// Source is a directory of *.sql migration files inside a filesystem.
type Source struct {
	FS  fs.FS
	Dir string
}
