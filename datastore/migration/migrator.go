package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translation-manager/data"
)

var ErrNoDatabase = errors.New("no database configured")

// Migration Our simple table holding all the migration data.
type Migration struct {
	data.BaseModel

	Name        string `gorm:"type:varchar(255);uniqueIndex:idx_migrations_name"`
	Patch       string `gorm:"type:text"`
	RevertPatch string `gorm:"type:text"`
	AppliedAt   sql.NullTime
}

type Patch struct {
	// Name is a simple description/name of this migration.
	Name string
	// Patch is the SQL to execute for an upgrade.
	Patch string
	// RevertPatch is the SQL to execute for a downgrade.
	RevertPatch string
}

type datastoreMigrator struct {
	dbGetter func(ctx context.Context) *gorm.DB
	logger   *util.LogEntry
}

func NewMigrator(ctx context.Context, dbGetter func(ctx context.Context) *gorm.DB) Migrator {
	return &datastoreMigrator{
		dbGetter: dbGetter,
		logger:   util.Log(ctx),
	}
}

func (m *datastoreMigrator) DB(ctx context.Context) *gorm.DB {
	return m.dbGetter(ctx)
}

// ScanMigrationFiles records every *.sql file of the source that is not yet known.
// A <name>_up.sql file takes its revert patch from the matching <name>_down.sql.
func (m *datastoreMigrator) ScanMigrationFiles(ctx context.Context, source Source) error {
	dir := source.Dir
	if dir == "" {
		dir = "."
	}

	files, err := fs.Glob(source.FS, path.Join(dir, "*.sql"))
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, file := range files {
		filename := path.Base(file)

		if strings.HasSuffix(filename, "_down.sql") {
			continue
		}

		migrationPatch, err0 := fs.ReadFile(source.FS, file)
		if err0 != nil {
			m.logger.WithError(err0).
				WithField("file", filename).
				Error("problem reading migration file content")
			continue
		}

		revertPatch := ""
		if strings.HasSuffix(filename, "_up.sql") {
			downFile := path.Join(dir, strings.TrimSuffix(filename, "_up.sql")+"_down.sql")
			if downPatch, err1 := fs.ReadFile(source.FS, downFile); err1 == nil {
				revertPatch = string(downPatch)
			}
		}

		err0 = m.SaveMigrationString(ctx, filename, string(migrationPatch), revertPatch)
		if err0 != nil {
			m.logger.WithError(err0).
				WithField("file", filename).
				Error("new migration could not be saved")
			return err0
		}
	}
	return nil
}

func (m *datastoreMigrator) SaveMigrationString(
	ctx context.Context,
	filename string,
	migrationPatch string,
	revertPatch string,
) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("save migration: %w", ErrNoDatabase)
	}

	migration := Migration{}

	err := db.Model(&migration).First(&migration, "name = ?", filename).Error
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			return fmt.Errorf("save migration lookup failed: %w", err)
		}

		migration = Migration{
			Name:        filename,
			Patch:       migrationPatch,
			RevertPatch: revertPatch,
		}
		err = m.DB(ctx).Create(&migration).Error
		if err != nil {
			return fmt.Errorf("save migration insert failed: %w", err)
		}
		return nil
	}

	if !migration.AppliedAt.Valid && migration.Patch != migrationPatch {
		err = m.DB(ctx).Model(&Migration{}).
			Where("id = ? AND applied_at IS NULL", migration.ID).
			Update("patch", migrationPatch).Error
		if err != nil {
			return fmt.Errorf("save migration patch update failed: %w", err)
		}
	}
	if !migration.AppliedAt.Valid && revertPatch != "" && migration.RevertPatch != revertPatch {
		err = m.DB(ctx).Model(&Migration{}).
			Where("id = ? AND applied_at IS NULL", migration.ID).
			Update("revert_patch", revertPatch).Error
		if err != nil {
			return fmt.Errorf("save migration revert patch update failed: %w", err)
		}
	}

	return nil
}

// Pending lists the recorded migrations that have not been applied, in name order.
func (m *datastoreMigrator) Pending(ctx context.Context) ([]*Migration, error) {
	db := m.DB(ctx)
	if db == nil {
		return nil, fmt.Errorf("pending migrations: %w", ErrNoDatabase)
	}

	var pending []*Migration
	err := db.Where("applied_at IS NULL").Order("name ASC").Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// ApplyNewMigrations runs every pending migration in its own transaction and returns how many ran.
func (m *datastoreMigrator) ApplyNewMigrations(ctx context.Context) (int, error) {
	db := m.DB(ctx)
	if db == nil {
		return 0, fmt.Errorf("apply migrations: %w", ErrNoDatabase)
	}

	unAppliedMigrations, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	if len(unAppliedMigrations) == 0 {
		m.logger.Debug("no migrations found to be applied")
		return 0, nil
	}

	// sqlite serialises writers itself and has no FOR UPDATE.
	lockRows := db.Dialector.Name() != "sqlite"

	applied := 0
	for _, migration := range unAppliedMigrations {
		ran := false
		err = db.Transaction(func(tx *gorm.DB) error {
			query := tx
			if lockRows {
				query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
			}

			var lockRow Migration
			lockErr := query.First(&lockRow, "id = ?", migration.ID).Error
			if lockErr != nil {
				if data.ErrorIsNoRows(lockErr) {
					return nil
				}
				return lockErr
			}

			if lockRow.AppliedAt.Valid {
				return nil
			}

			for _, statement := range SplitStatements(lockRow.Patch) {
				if execErr := tx.Exec(statement).Error; execErr != nil {
					return fmt.Errorf("migration %s: %w", lockRow.Name, execErr)
				}
			}

			ran = true
			return tx.Exec(
				"UPDATE migrations SET applied_at = ? WHERE id = ? AND applied_at IS NULL",
				time.Now().UTC(),
				lockRow.ID,
			).Error
		})
		if err != nil {
			return applied, err
		}

		if ran {
			applied++
			m.logger.WithField("migration", migration.Name).Debug("successfully applied migration")
		}
	}

	return applied, nil
}

// SplitStatements breaks a patch into statements on semicolons outside quotes and comments.
func SplitStatements(patch string) []string {
	var (
		statements  []string
		current     strings.Builder
		quote       rune
		lineComment bool
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	runes := []rune(patch)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case lineComment:
			if r == '\n' {
				lineComment = false
				current.WriteRune(r)
			}
			continue
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			lineComment = true
			i++
			continue
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			flush()
			continue
		}

		current.WriteRune(r)
	}
	flush()

	return statements
}
