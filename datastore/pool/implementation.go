package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/translation-manager/datastore/migration"
)

var ErrNoWritableDatabase = errors.New("no writable database configured")

type pool struct {
	readIdx     uint64       // atomic counter for round-robin
	writeIdx    uint64       // atomic counter for round-robin
	mu          sync.RWMutex // protects db slices
	allReadDBs  []*gorm.DB   // track all read DBs
	allWriteDBs []*gorm.DB   // track all write DBs
}

func NewPool(_ context.Context) Pool {
	return &pool{
		allReadDBs:  []*gorm.DB{},
		allWriteDBs: []*gorm.DB{},
	}
}

// AddConnection opens dsn and adds it to the read or the write side of the pool.
func (s *pool) AddConnection(ctx context.Context, dsn string, readOnly bool, opts ...Option) error {
	poolOpts := &Options{
		PreferSimpleProtocol:   true,
		SkipDefaultTransaction: true,
	}

	for _, opt := range opts {
		opt(poolOpts)
	}

	db, err := s.createConnection(ctx, dsn, poolOpts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if readOnly {
		s.allReadDBs = append(s.allReadDBs, db)
	} else {
		s.allWriteDBs = append(s.allWriteDBs, db)
	}
	return nil
}

func (s *pool) Close(ctx context.Context) {
	s.mu.Lock()
	dbs := append(append([]*gorm.DB(nil), s.allReadDBs...), s.allWriteDBs...)
	s.allReadDBs = nil
	s.allWriteDBs = nil
	s.mu.Unlock()

	for _, db := range dbs {
		sqlDB, err := db.DB()
		if err != nil {
			continue
		}
		util.CloseAndLogOnError(ctx, sqlDB, "could not close database connection")
	}
}

// DB returns the next connection of the requested side, falling back to a writer for reads.
func (s *pool) DB(ctx context.Context, readOnly bool) *gorm.DB {
	var selectedDB *gorm.DB

	s.mu.RLock()
	if readOnly && len(s.allReadDBs) != 0 {
		selectedDB = s.selectOne(s.allReadDBs, &s.readIdx)
	}

	if selectedDB == nil {
		selectedDB = s.selectOne(s.allWriteDBs, &s.writeIdx)
	}
	s.mu.RUnlock()

	if selectedDB == nil {
		return nil
	}

	return selectedDB.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
}

// selectOne uses atomic round-robin for high concurrency.
func (s *pool) selectOne(pool []*gorm.DB, idx *uint64) *gorm.DB {
	if len(pool) == 0 {
		return nil
	}
	pos := atomic.AddUint64(idx, 1)
	return pool[int(pos-1)%len(pool)] //nolint:gosec // G115: index is result of (val % len), always < len and fits in int.
}

func (s *pool) Dialect() string {
	db := s.DB(context.Background(), false)
	if db == nil {
		return ""
	}
	return db.Dialector.Name()
}

func (s *pool) SaveMigration(ctx context.Context, migrationPatches ...*migration.Patch) error {
	migrationExecutor, err := s.migrator(ctx)
	if err != nil {
		return err
	}

	for _, migrationPatch := range migrationPatches {
		err = migrationExecutor.SaveMigrationString(
			ctx,
			migrationPatch.Name,
			migrationPatch.Patch,
			migrationPatch.RevertPatch,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pool) Migrate(ctx context.Context, sources ...migration.Source) (int, error) {
	migrationExecutor, err := s.migrator(ctx)
	if err != nil {
		return 0, err
	}

	for _, source := range sources {
		err = migrationExecutor.ScanMigrationFiles(ctx, source)
		if err != nil {
			util.Log(ctx).WithError(err).WithField("dir", source.Dir).Error("error scanning for new migrations")
			return 0, err
		}
	}

	applied, err := migrationExecutor.ApplyNewMigrations(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Error("error applying migrations")
		return applied, err
	}
	return applied, nil
}

// migrator ensures the migrations table exists and returns a migrator bound to the writers.
func (s *pool) migrator(ctx context.Context) (migration.Migrator, error) {
	db := s.DB(ctx, false)
	if db == nil {
		return nil, fmt.Errorf("migrate datastore: %w", ErrNoWritableDatabase)
	}

	// Concurrent startups may race to create the table.
	err := db.Migrator().AutoMigrate(&migration.Migration{})
	if err != nil {
		if !isRelationAlreadyExistsErr(err) {
			util.Log(ctx).WithError(err).Error("couldn't create migration table")
			return nil, err
		}

		util.Log(ctx).WithError(err).Warn("migration table already created concurrently")
	}

	return migration.NewMigrator(ctx, func(ctx context.Context) *gorm.DB {
		return s.DB(ctx, false)
	}), nil
}

func isRelationAlreadyExistsErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07"
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
