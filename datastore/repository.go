// Package datastore holds the generic gorm repository models are persisted through.
package datastore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pitabwire/translation-manager/data"
	"github.com/pitabwire/translation-manager/datastore/pool"
)

var (
	ErrInvalidColumn = errors.New("invalid column name")
	ErrStaleEntity   = errors.New("entity was modified by another transaction")
	ErrMissingID     = errors.New("entity ID is required for updates")
)

// BaseRepository provides generic CRUD operations for any model type.
// T is the model type (e.g., *models.Translation).
type BaseRepository[T any] interface {
	Pool() pool.Pool
	TableName() string
	GetByID(ctx context.Context, id string) (T, error)
	GetAllBy(ctx context.Context, properties map[string]any, offset, limit int) ([]T, error)
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, properties map[string]any) (int64, error)
	Save(ctx context.Context, entity T) error
	BatchInsert(ctx context.Context, entities []T) error
	Delete(ctx context.Context, id string) error
	DeleteBy(ctx context.Context, properties map[string]any) (int64, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// baseRepository is the concrete implementation of BaseRepository.
type baseRepository[T data.BaseModelI] struct {
	dbPool pool.Pool
	// modelFactory creates a new instance of T for queries
	modelFactory func() T
	// tableName caches the table name to avoid repeated reflection
	tableName string
	// allowedColumns whitelist for safe column access (set during initialization)
	allowedColumns map[string]bool
	batchSize      int
}

// NewBaseRepository creates a new base repository instance.
// modelFactory should return a pointer to a new model instance (e.g., func() *models.Translation { return &models.Translation{} }).
func NewBaseRepository[T data.BaseModelI](
	dbPool pool.Pool,
	modelFactory func() T,
) (BaseRepository[T], error) {
	repo := &baseRepository[T]{
		dbPool:         dbPool,
		modelFactory:   modelFactory,
		allowedColumns: make(map[string]bool),
		batchSize:      500, //nolint:mnd // default insert batch size
	}

	db := dbPool.DB(context.Background(), true)
	if db == nil {
		return nil, fmt.Errorf("repository: %w", pool.ErrNoWritableDatabase)
	}

	// Initialize table name and allowed columns from model
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(modelFactory()); err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}
	repo.tableName = stmt.Schema.Table

	// Build allowed columns whitelist from schema
	for _, field := range stmt.Schema.Fields {
		repo.allowedColumns[field.DBName] = true
	}

	return repo, nil
}

func (br *baseRepository[T]) Pool() pool.Pool {
	return br.dbPool
}

func (br *baseRepository[T]) TableName() string {
	return br.tableName
}

// validateColumn checks if a column name is safe to use in queries.
func (br *baseRepository[T]) validateColumn(column string) error {
	if !br.allowedColumns[column] {
		return fmt.Errorf("%w: %s", ErrInvalidColumn, column)
	}
	return nil
}

// conditions validates the property names; gorm quotes map keys, so reserved words like "group" are safe.
func (br *baseRepository[T]) conditions(properties map[string]any) (map[string]any, error) {
	for key := range properties {
		if err := br.validateColumn(key); err != nil {
			return nil, err
		}
	}
	return properties, nil
}

// GetByID retrieves an entity by its ID.
func (br *baseRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	entity := br.modelFactory()
	err := br.Pool().DB(ctx, true).Where("id = ?", id).First(entity).Error
	return entity, err
}

// Save creates or updates an entity with optimistic locking.
// For new entities (version <= 0), it performs a CREATE operation.
// For existing entities, it performs an UPDATE with version check to prevent lost updates.
func (br *baseRepository[T]) Save(ctx context.Context, entity T) error {
	if entity.GetVersion() > 0 && entity.GetID() == "" {
		return ErrMissingID
	}

	if entity.GetVersion() <= 0 {
		return br.Pool().DB(ctx, false).Create(entity).Error
	}

	currentVersion := entity.GetVersion()

	// BeforeUpdate bumps the version; exactly one row must still carry the expected one.
	result := br.Pool().DB(ctx, false).
		Model(entity).
		Where("version = ?", currentVersion).
		Select("*").
		Updates(entity)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%s expected version %d", ErrStaleEntity, entity.GetID(), currentVersion)
	}

	return nil
}

// BatchInsert inserts multiple entities efficiently in a single transaction.
func (br *baseRepository[T]) BatchInsert(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}

	return br.Pool().DB(ctx, false).CreateInBatches(entities, br.batchSize).Error
}

// Delete removes an entity by its ID without fetching it first.
func (br *baseRepository[T]) Delete(ctx context.Context, id string) error {
	entity := br.modelFactory()
	return br.Pool().DB(ctx, false).Where("id = ?", id).Delete(entity).Error
}

// DeleteBy removes every entity matching the given properties.
func (br *baseRepository[T]) DeleteBy(ctx context.Context, properties map[string]any) (int64, error) {
	conds, err := br.conditions(properties)
	if err != nil {
		return 0, err
	}
	if len(conds) == 0 {
		return 0, fmt.Errorf("%w: delete without conditions", ErrInvalidColumn)
	}

	result := br.Pool().DB(ctx, false).Where(conds).Delete(br.modelFactory())
	return result.RowsAffected, result.Error
}

// DeleteBatch removes multiple entities by their IDs in a single query.
func (br *baseRepository[T]) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	entity := br.modelFactory()
	return br.Pool().DB(ctx, false).Where("id IN ?", ids).Delete(entity).Error
}

// Count returns the total number of entities.
func (br *baseRepository[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	err := br.Pool().DB(ctx, true).Table(br.tableName).Count(&count).Error
	return count, err
}

// CountBy returns the count of entities matching the given properties.
func (br *baseRepository[T]) CountBy(ctx context.Context, properties map[string]any) (int64, error) {
	conds, err := br.conditions(properties)
	if err != nil {
		return 0, err
	}

	var count int64
	err = whereAll(br.Pool().DB(ctx, true).Table(br.tableName), conds).Count(&count).Error
	return count, err
}

// GetAllBy retrieves entities matching the given properties with pagination.
func (br *baseRepository[T]) GetAllBy(ctx context.Context, properties map[string]any, offset, limit int) ([]T, error) {
	conds, err := br.conditions(properties)
	if err != nil {
		return nil, err
	}

	var entities []T
	query := whereAll(br.Pool().DB(ctx, true), conds).Order("id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	err = query.Find(&entities).Error
	return entities, err
}

func whereAll(db *gorm.DB, conds map[string]any) *gorm.DB {
	if len(conds) == 0 {
		return db
	}
	return db.Where(conds)
}
