package translationmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/blob"
	"golang.org/x/text/language"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/data"
	"github.com/pitabwire/translation-manager/datastore/pool"
	"github.com/pitabwire/translation-manager/telemetry"
	"github.com/pitabwire/translation-manager/workerpool"
)

const (
	ConfigNamespace = "translation-manager"

	maxGroupDepth = 5
	vendorDir     = "vendor"
)

// Manager imports, scans, edits and exports the translations of the application.
type Manager struct {
	repo    TranslationRepository
	config  *config.Repository
	disk    *blob.Bucket
	workers *workerpool.Manager

	tracer   telemetry.Tracer
	imported metric.Int64Counter
}

// NewManager wires the manager to the database, the lang disk and the worker pool.
func NewManager(
	_ context.Context,
	cfg *config.Repository,
	dbPool pool.Pool,
	disk *blob.Bucket,
	workers *workerpool.Manager,
) (*Manager, error) {
	repo, err := NewTranslationRepository(dbPool)
	if err != nil {
		return nil, fmt.Errorf("translation repository: %w", err)
	}

	return &Manager{
		repo:    repo,
		config:  cfg,
		disk:    disk,
		workers: workers,
		tracer:  telemetry.NewTracer(ServiceID),
		imported: telemetry.DimensionlessMeasure(
			ServiceID, "/imported_translations", "Count of translation rows created by imports"),
	}, nil
}

func (m *Manager) Repository() TranslationRepository {
	return m.repo
}

// Config reads key from the translation-manager namespace.
func (m *Manager) Config(key string) (any, bool) {
	return m.config.Get(ConfigNamespace + "." + key)
}

func (m *Manager) DeleteEnabled() bool {
	return m.config.GetBool(ConfigNamespace+".delete_enabled", true)
}

func (m *Manager) SortKeys() bool {
	return m.config.GetBool(ConfigNamespace+".sort_keys", true)
}

func (m *Manager) ExportFormat() string {
	return strings.ToLower(m.config.GetString(ConfigNamespace+".export_format", FormatJSON))
}

func (m *Manager) BaseLocale() string {
	return m.config.GetString(ConfigNamespace+".base_locale", "en")
}

func (m *Manager) excludedGroups() []string {
	return m.config.GetStrings(ConfigNamespace + ".exclude_groups")
}

func (m *Manager) excludedLangs() []string {
	return m.config.GetStrings(ConfigNamespace + ".exclude_langs")
}

func (m *Manager) groupExcluded(group string) bool {
	return slices.Contains(m.excludedGroups(), group)
}

func (m *Manager) langExcluded(locale string) bool {
	return slices.Contains(m.excludedLangs(), locale)
}

// ValidateLocale accepts BCP 47 tags such as "en", "pt-BR" or "pt_BR".
func ValidateLocale(locale string) error {
	if strings.TrimSpace(locale) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLocale)
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidLocale, locale, err)
	}
	return nil
}

// ValidateGroup accepts JSONGroup or up to five slash separated path segments.
func ValidateGroup(group string) error {
	if group == JSONGroup {
		return nil
	}

	segments := strings.Split(group, "/")
	if group == "" || len(segments) > maxGroupDepth {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." || strings.ContainsAny(segment, `\:`) {
			return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
		}
	}
	return nil
}

// ImportTranslations loads every language file of the lang disk into the database.
// New keys are inserted; existing values are only overwritten when replace is set
// or when they are still null. A non-empty base restricts the import to that locale.
// It returns the number of new rows.
func (m *Manager) ImportTranslations(ctx context.Context, replace bool, base string) (int, error) {
	ctx, span := m.tracer.Start(ctx, "ImportTranslations")
	counter, err := m.importTranslations(ctx, replace, base)
	m.imported.Add(ctx, int64(counter))
	m.tracer.End(ctx, span, err)
	return counter, err
}

func (m *Manager) importTranslations(ctx context.Context, replace bool, base string) (int, error) {
	if base != "" {
		if err := ValidateLocale(base); err != nil {
			return 0, err
		}
	}

	files, err := m.languageFiles(ctx)
	if err != nil {
		return 0, err
	}

	counter := 0
	for _, file := range files {
		if base != "" && file.locale != base {
			continue
		}
		if m.langExcluded(file.locale) || m.groupExcluded(file.group) {
			continue
		}

		content, readErr := m.disk.ReadAll(ctx, file.name)
		if readErr != nil {
			return counter, fmt.Errorf("read %s: %w", file.name, readErr)
		}

		values, decodeErr := decodeTranslations(content, file.name)
		if decodeErr != nil {
			return counter, fmt.Errorf("import %s: %w", file.name, decodeErr)
		}

		added, importErr := m.importValues(ctx, file.locale, file.group, values, replace)
		counter += added
		if importErr != nil {
			return counter, importErr
		}
	}

	util.Log(ctx).WithField("new", counter).WithField("files", len(files)).Info("translations imported")
	return counter, nil
}

type languageFile struct {
	name   string
	locale string
	group  string
}

// languageFiles lists <locale>.json and <locale>/<group...>.<ext> on the lang disk.
func (m *Manager) languageFiles(ctx context.Context) ([]languageFile, error) {
	var files []languageFile

	iter := m.disk.List(&blob.ListOptions{})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list lang disk: %w", err)
		}
		if obj.IsDir {
			continue
		}

		if file, ok := parseLanguageFile(obj.Key); ok {
			files = append(files, file)
		}
	}

	slices.SortFunc(files, func(a, b languageFile) int { return strings.Compare(a.name, b.name) })
	return files, nil
}

func parseLanguageFile(name string) (languageFile, bool) {
	ext := path.Ext(name)
	if !config.SupportedExtension(ext) {
		return languageFile{}, false
	}

	segments := strings.Split(name, "/")
	if segments[0] == vendorDir {
		return languageFile{}, false
	}

	if len(segments) == 1 {
		if strings.ToLower(ext) != ".json" {
			return languageFile{}, false
		}
		return languageFile{name: name, locale: strings.TrimSuffix(name, ext), group: JSONGroup}, true
	}

	group := strings.TrimSuffix(strings.Join(segments[1:], "/"), ext)
	if ValidateGroup(group) != nil {
		return languageFile{}, false
	}
	return languageFile{name: name, locale: segments[0], group: group}, true
}

func (m *Manager) importValues(ctx context.Context, locale, group string, values map[string]string, replace bool) (int, error) {
	existing, err := m.repo.GetAllBy(ctx, map[string]any{"locale": locale, "group": group}, 0, 0)
	if err != nil {
		return 0, err
	}

	byKey := make(map[string]*Translation, len(existing))
	for _, row := range existing {
		byKey[row.Key] = row
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var created []*Translation
	for _, key := range keys {
		value := values[key]

		row, found := byKey[key]
		if !found {
			created = append(created, &Translation{
				Status: StatusSaved, Locale: locale, Group: group, Key: key, Value: stringPtr(value),
			})
			continue
		}

		if (replace || row.Value == nil) && row.ValueString() != value {
			row.Value = stringPtr(value)
			row.Status = StatusSaved
			if err = m.repo.Save(ctx, row); err != nil {
				return 0, err
			}
		}
	}

	if err = m.repo.BatchInsert(ctx, created); err != nil {
		return 0, err
	}
	return len(created), nil
}

// FindTranslations scans root (or the configured scan paths when empty) for translation
// function calls and creates the missing keys. It returns the number of distinct keys found.
func (m *Manager) FindTranslations(ctx context.Context, root string) (int, error) {
	ctx, span := m.tracer.Start(ctx, "FindTranslations")
	found, err := m.findTranslations(ctx, root)
	m.tracer.End(ctx, span, err)
	return found, err
}

func (m *Manager) findTranslations(ctx context.Context, root string) (int, error) {
	s, err := newScanner(
		m.config.GetStrings(ConfigNamespace+".trans_functions"),
		m.config.GetStrings(ConfigNamespace+".scan_extensions"),
	)
	if err != nil {
		return 0, err
	}

	roots := []string{root}
	if root == "" {
		roots = m.config.GetStrings(ConfigNamespace + ".scan_paths")
		if len(roots) == 0 {
			roots = []string{"."}
		}
	}

	seen := make(map[foundKey]struct{})
	var keys []foundKey
	for _, r := range roots {
		found, scanErr := s.scan(ctx, m.workers, r)
		if scanErr != nil {
			return 0, fmt.Errorf("scan %s: %w", r, scanErr)
		}
		for _, key := range found {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}

	locales, err := m.Locales(ctx)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if err = m.missingKey(ctx, locales, key.Group, key.Key); err != nil {
			return 0, err
		}
	}

	util.Log(ctx).WithField("keys", len(keys)).Info("translation keys found")
	return len(keys), nil
}

// MissingKey creates null rows of group.key for every known locale that lacks it.
func (m *Manager) MissingKey(ctx context.Context, group, key string) error {
	locales, err := m.Locales(ctx)
	if err != nil {
		return err
	}
	return m.missingKey(ctx, locales, group, key)
}

func (m *Manager) missingKey(ctx context.Context, locales []string, group, key string) error {
	if err := ValidateGroup(group); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if m.groupExcluded(group) {
		return nil
	}

	for _, locale := range locales {
		_, err := m.repo.Find(ctx, locale, group, key)
		if err == nil {
			continue
		}
		if !data.ErrorIsNoRows(err) {
			return err
		}

		err = m.repo.Save(ctx, &Translation{Status: StatusSaved, Locale: locale, Group: group, Key: key})
		if err != nil && !data.ErrorIsDuplicate(err) {
			return err
		}
	}
	return nil
}

// ExportTranslations writes the non-null values of group to the lang disk and marks them saved.
func (m *Manager) ExportTranslations(ctx context.Context, group string) error {
	ctx, span := m.tracer.Start(ctx, "ExportTranslations", trace.WithAttributes(attribute.String("group", group)))
	err := m.exportTranslations(ctx, group)
	m.tracer.End(ctx, span, err)
	return err
}

func (m *Manager) exportTranslations(ctx context.Context, group string) error {
	if err := ValidateGroup(group); err != nil {
		return err
	}
	if m.groupExcluded(group) {
		return nil
	}

	rows, err := m.repo.ListExportable(ctx, group)
	if err != nil {
		return err
	}

	byLocale := make(map[string]*tree)
	var locales []string
	for _, row := range rows {
		if m.langExcluded(row.Locale) {
			continue
		}

		t, ok := byLocale[row.Locale]
		if !ok {
			t = newTree()
			byLocale[row.Locale] = t
			locales = append(locales, row.Locale)
		}

		if group == JSONGroup {
			t.put(row.Key, row.ValueString())
		} else {
			t.set(row.Key, row.ValueString())
		}
	}

	for _, locale := range locales {
		if err = m.writeLocale(ctx, locale, group, byLocale[locale]); err != nil {
			return err
		}
	}

	if _, err = m.repo.MarkSaved(ctx, group); err != nil {
		return err
	}

	util.Log(ctx).WithField("group", group).WithField("locales", len(locales)).Info("translations exported")
	return nil
}

func (m *Manager) writeLocale(ctx context.Context, locale, group string, t *tree) error {
	if m.SortKeys() {
		t.sort()
	}

	format := m.ExportFormat()
	name := locale + ".json"
	if group == JSONGroup {
		format = FormatJSON
	} else {
		ext, err := fileExtension(format)
		if err != nil {
			return err
		}
		name = locale + "/" + group + ext
	}

	content, err := encodeTranslations(t, format)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err = m.disk.WriteAll(ctx, name, content, nil); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ExportAllTranslations exports every group, JSON translations included.
func (m *Manager) ExportAllTranslations(ctx context.Context) error {
	groups, err := m.repo.Groups(ctx)
	if err != nil {
		return err
	}

	for _, group := range groups {
		if err = m.ExportTranslations(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

// CleanTranslations removes every row without a value.
func (m *Manager) CleanTranslations(ctx context.Context) (int64, error) {
	return m.repo.DeleteNullValues(ctx)
}

// TruncateTranslations removes every row.
func (m *Manager) TruncateTranslations(ctx context.Context) error {
	return m.repo.Truncate(ctx)
}

// CloneTranslations copies the rows of locale from into locale to, keeping keys to already has.
// Cloned rows are marked changed. It returns the number of rows created.
func (m *Manager) CloneTranslations(ctx context.Context, from, to string) (int, error) {
	if err := ValidateLocale(from); err != nil {
		return 0, err
	}
	if err := ValidateLocale(to); err != nil {
		return 0, err
	}
	if from == to {
		return 0, fmt.Errorf("%w: %s", ErrSameLocale, from)
	}

	source, err := m.repo.ListByLocale(ctx, from)
	if err != nil {
		return 0, err
	}

	target, err := m.repo.ListByLocale(ctx, to)
	if err != nil {
		return 0, err
	}

	existing := make(map[foundKey]struct{}, len(target))
	for _, row := range target {
		existing[foundKey{Group: row.Group, Key: row.Key}] = struct{}{}
	}

	var created []*Translation
	for _, row := range source {
		if _, ok := existing[foundKey{Group: row.Group, Key: row.Key}]; ok {
			continue
		}

		clone := &Translation{Status: StatusChanged, Locale: to, Group: row.Group, Key: row.Key}
		if row.Value != nil {
			clone.Value = stringPtr(*row.Value)
		}
		created = append(created, clone)
	}

	if err = m.repo.BatchInsert(ctx, created); err != nil {
		return 0, err
	}
	return len(created), nil
}

// SuffixTranslations appends suffix to every value of locale not already ending with it.
// It returns the number of rows changed.
func (m *Manager) SuffixTranslations(ctx context.Context, locale, suffix string) (int64, error) {
	if err := ValidateLocale(locale); err != nil {
		return 0, err
	}
	if suffix == "" {
		return 0, nil
	}

	rows, err := m.repo.ListByLocale(ctx, locale)
	if err != nil {
		return 0, err
	}

	var changed int64
	for _, row := range rows {
		if row.Value == nil || strings.HasSuffix(*row.Value, suffix) {
			continue
		}

		row.Value = stringPtr(*row.Value + suffix)
		row.Status = StatusChanged
		if err = m.repo.Save(ctx, row); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// Locales returns the base locale followed by every other locale in the database.
func (m *Manager) Locales(ctx context.Context) ([]string, error) {
	stored, err := m.repo.Locales(ctx)
	if err != nil {
		return nil, err
	}

	locales := []string{m.BaseLocale()}
	for _, locale := range stored {
		if !slices.Contains(locales, locale) {
			locales = append(locales, locale)
		}
	}

	return slices.DeleteFunc(locales, m.langExcluded), nil
}

// Groups returns the groups that are not excluded.
func (m *Manager) Groups(ctx context.Context) ([]string, error) {
	groups, err := m.repo.Groups(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(groups, m.groupExcluded), nil
}

// KeyRow holds the translations of one key, by locale.
type KeyRow struct {
	Key     string
	Locales map[string]*Translation
}

// GroupTranslations returns the keys of group in key order.
func (m *Manager) GroupTranslations(ctx context.Context, group string) ([]KeyRow, error) {
	if err := ValidateGroup(group); err != nil {
		return nil, err
	}

	rows, err := m.repo.ListByGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	var out []KeyRow
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.Key]
		if !ok {
			i = len(out)
			index[row.Key] = i
			out = append(out, KeyRow{Key: row.Key, Locales: make(map[string]*Translation)})
		}
		out[i].Locales[row.Locale] = row
	}
	return out, nil
}

// ChangedCount counts the rows of group edited since the last export.
func (m *Manager) ChangedCount(ctx context.Context, group string) (int64, error) {
	return m.repo.ChangedCount(ctx, group)
}

// UpdateValue stores value for locale/group/key, creating the row when missing.
// An empty value is stored as null. The row is marked changed.
func (m *Manager) UpdateValue(ctx context.Context, locale, group, key, value string) (*Translation, error) {
	if err := ValidateLocale(locale); err != nil {
		return nil, err
	}
	if err := ValidateGroup(group); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	row, err := m.repo.Find(ctx, locale, group, key)
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			return nil, err
		}
		row = &Translation{Locale: locale, Group: group, Key: key}
	}

	row.Value = nil
	if value != "" {
		row.Value = stringPtr(value)
	}
	row.Status = StatusChanged

	if err = m.repo.Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteKey removes group.key in every locale.
func (m *Manager) DeleteKey(ctx context.Context, group, key string) (int64, error) {
	if !m.DeleteEnabled() {
		return 0, ErrDeleteDisabled
	}
	if err := ValidateGroup(group); err != nil {
		return 0, err
	}

	deleted, err := m.repo.DeleteBy(ctx, map[string]any{"group": group, "key": key})
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: %s.%s", ErrTranslationNotFound, group, key)
	}
	return deleted, nil
}
