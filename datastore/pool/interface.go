package pool

import (
	"context"

	"gorm.io/gorm"

	"github.com/pitabwire/translation-manager/datastore/migration"
)

type Pool interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB

	AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error

	// Dialect names the sql dialect of the write connections, "postgres" or "sqlite".
	Dialect() string

	SaveMigration(ctx context.Context, migrationPatches ...*migration.Patch) error
	// Migrate records the migrations found in sources and applies the ones not yet applied.
	Migrate(ctx context.Context, sources ...migration.Source) (int, error)

	Close(ctx context.Context)
}
