package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrNotAMap is returned when a dotted key walks through a value that is not a map.
var ErrNotAMap = errors.New("config value is not a map")

// Repository is the application wide configuration store. Values are nested maps addressed
// by dotted keys, the first segment being the namespace the value was loaded under.
type Repository struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewRepository creates a repository seeded with a copy of items.
func NewRepository(items map[string]any) *Repository {
	return &Repository{items: deepCopyMap(normalizeMap(items))}
}

// Get returns the raw value stored under key.
func (r *Repository) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lookup(r.items, key)
}

// Has reports whether a value is stored under key.
func (r *Repository) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// GetString returns the value under key as a string, or def when absent.
func (r *Repository) GetString(key, def string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return def
	}

	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

// GetBool returns the value under key as a bool, or def when absent or not convertible.
func (r *Repository) GetBool(key string, def bool) bool {
	v, ok := r.Get(key)
	if !ok {
		return def
	}

	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// GetInt returns the value under key as an int, or def when absent or not convertible.
func (r *Repository) GetInt(key string, def int) int {
	v, ok := r.Get(key)
	if !ok {
		return def
	}

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// GetStrings returns a list value as strings. A single string is returned as a one element list.
func (r *Repository) GetStrings(key string) []string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return nil
	}

	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	default:
		return nil
	}
}

// GetMap returns a copy of the map stored under key, nil when absent or not a map.
func (r *Repository) GetMap(key string) map[string]any {
	v, ok := r.Get(key)
	if !ok {
		return nil
	}

	m, isMap := v.(map[string]any)
	if !isMap {
		return nil
	}
	return deepCopyMap(m)
}

// Set stores value under key, creating intermediate maps as needed.
func (r *Repository) Set(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return store(r.items, key, normalizeValue(value))
}

// All returns a deep copy of every stored value.
func (r *Repository) All() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return deepCopyMap(r.items)
}

// MergeDefaults places defaults beneath the values already stored under namespace.
// The merge is shallow: a top-level key already present keeps its whole value, so a
// host table such as route is never completed from the defaults.
func (r *Repository) MergeDefaults(namespace string, defaults map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, _ := r.items[namespace].(map[string]any)
	r.items[namespace] = overlayKeys(deepCopyMap(normalizeMap(defaults)), current)
}

// Overlay places values above the ones already stored under namespace, replacing
// each top-level key it carries.
func (r *Repository) Overlay(namespace string, values map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, _ := r.items[namespace].(map[string]any)
	r.items[namespace] = overlayKeys(deepCopyMap(current), normalizeMap(values))
}

// LoadFile decodes a config file and overlays it onto the namespace named after the file.
func (r *Repository) LoadFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtension(ext) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	values, err := Decode(data, ext)
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	namespace := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	r.Overlay(namespace, values)
	return nil
}

// LoadDir loads every supported config file directly inside dir, in name order.
// A missing directory is not an error.
func (r *Repository) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !SupportedExtension(filepath.Ext(entry.Name())) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err = r.LoadFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func lookup(items map[string]any, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	var current any = items
	for _, segment := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func store(items map[string]any, key string, value any) error {
	segments := strings.Split(key, ".")
	current := items
	for i, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next == nil {
			created := make(map[string]any)
			current[segment] = created
			current = created
			continue
		}

		m, isMap := next.(map[string]any)
		if !isMap {
			return fmt.Errorf("%w: %s", ErrNotAMap, strings.Join(segments[:i+1], "."))
		}
		current = m
	}

	current[segments[len(segments)-1]] = value
	return nil
}

// overlayKeys returns base with every top-level key of top replacing its counterpart.
func overlayKeys(base, top map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(top))
	}

	for k, v := range top {
		base[k] = deepCopyValue(v)
	}
	return base
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return slices.Clone(typed)
	default:
		return v
	}
}

// normalizeMap converts decoder specific container types into map[string]any and []any.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return normalizeMap(typed)
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeMap(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
