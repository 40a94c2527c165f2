package translationmanager

import (
	"context"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translation-manager/datastore"
	"github.com/pitabwire/translation-manager/datastore/pool"
)

// TranslationRepository persists translations in ltm_translations.
type TranslationRepository interface {
	datastore.BaseRepository[*Translation]

	Find(ctx context.Context, locale, group, key string) (*Translation, error)
	ListByGroup(ctx context.Context, group string) ([]*Translation, error)
	ListByLocale(ctx context.Context, locale string) ([]*Translation, error)
	ListExportable(ctx context.Context, group string) ([]*Translation, error)
	Locales(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]string, error)
	ChangedCount(ctx context.Context, group string) (int64, error)
	MarkSaved(ctx context.Context, group string) (int64, error)
	DeleteNullValues(ctx context.Context) (int64, error)
	Truncate(ctx context.Context) error
}

type translationRepository struct {
	datastore.BaseRepository[*Translation]
}

func NewTranslationRepository(dbPool pool.Pool) (TranslationRepository, error) {
	base, err := datastore.NewBaseRepository(dbPool, func() *Translation { return &Translation{} })
	if err != nil {
		return nil, err
	}
	return &translationRepository{BaseRepository: base}, nil
}

func groupColumn() clause.Column {
	return clause.Column{Name: "group"}
}

func keyColumn() clause.Column {
	return clause.Column{Name: "key"}
}

func (r *translationRepository) read(ctx context.Context) *gorm.DB {
	return r.Pool().DB(ctx, true).Model(&Translation{})
}

func (r *translationRepository) Find(ctx context.Context, locale, group, key string) (*Translation, error) {
	var translation Translation
	err := r.read(ctx).
		Where(map[string]any{"locale": locale, "group": group, "key": key}).
		First(&translation).Error
	if err != nil {
		return nil, err
	}
	return &translation, nil
}

func (r *translationRepository) ordered(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: keyColumn()},
		{Column: clause.Column{Name: "locale"}},
	}})
}

func (r *translationRepository) ListByGroup(ctx context.Context, group string) ([]*Translation, error) {
	var rows []*Translation
	err := r.ordered(r.read(ctx).Where(map[string]any{"group": group})).Find(&rows).Error
	return rows, err
}

func (r *translationRepository) ListByLocale(ctx context.Context, locale string) ([]*Translation, error) {
	var rows []*Translation
	err := r.read(ctx).
		Where(map[string]any{"locale": locale}).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: groupColumn()}, {Column: keyColumn()}}}).
		Find(&rows).Error
	return rows, err
}

// ListExportable returns the non-null rows of group in creation order.
func (r *translationRepository) ListExportable(ctx context.Context, group string) ([]*Translation, error) {
	var rows []*Translation
	err := r.read(ctx).
		Where(map[string]any{"group": group}).
		Where(clause.Neq{Column: clause.Column{Name: "value"}, Value: nil}).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *translationRepository) Locales(ctx context.Context) ([]string, error) {
	var locales []string
	err := r.read(ctx).Distinct().Pluck("locale", &locales).Error
	slices.Sort(locales)
	return locales, err
}

func (r *translationRepository) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	err := r.read(ctx).Distinct().Pluck("group", &groups).Error
	slices.Sort(groups)
	return groups, err
}

func (r *translationRepository) ChangedCount(ctx context.Context, group string) (int64, error) {
	return r.CountBy(ctx, map[string]any{"group": group, "status": StatusChanged})
}

func (r *translationRepository) MarkSaved(ctx context.Context, group string) (int64, error) {
	result := r.Pool().DB(ctx, false).Model(&Translation{}).
		Where(map[string]any{"group": group, "status": StatusChanged}).
		UpdateColumn("status", StatusSaved)
	return result.RowsAffected, result.Error
}

func (r *translationRepository) DeleteNullValues(ctx context.Context) (int64, error) {
	return r.DeleteBy(ctx, map[string]any{"value": nil})
}

func (r *translationRepository) Truncate(ctx context.Context) error {
	return r.Pool().DB(ctx, false).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Translation{}).Error
}
