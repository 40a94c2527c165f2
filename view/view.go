// Package view renders namespaced html templates.
package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	ErrViewNotFound     = errors.New("view not found")
	ErrUnknownNamespace = errors.New("unknown view namespace")
)

// NamespaceSeparator splits the namespace from the template name, as in "translation-manager::index".
const NamespaceSeparator = "::"

const templateExt = ".html"

// FuncProvider returns template functions bound to the context of a render.
// It is also called with a background context when templates are parsed.
type FuncProvider func(ctx context.Context) template.FuncMap

type namespace struct {
	fsys        fs.FS
	overrideDir string
	parsed      *template.Template
}

// Factory holds the template namespaces of the application.
type Factory struct {
	mu         sync.Mutex
	namespaces map[string]*namespace
	providers  []FuncProvider
}

// NewFactory creates a factory with the built in functions.
func NewFactory() *Factory {
	return &Factory{namespaces: make(map[string]*namespace)}
}

// AddFuncs registers template functions. Parsed templates are discarded so they pick them up.
func (f *Factory) AddFuncs(provider FuncProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.providers = append(f.providers, provider)
	for _, ns := range f.namespaces {
		ns.parsed = nil
	}
}

// AddNamespace registers the *.html templates at the root of fsys under ns.
// A file with the same name in overrideDir replaces the bundled one.
func (f *Factory) AddNamespace(ns string, fsys fs.FS, overrideDir string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.namespaces[ns] = &namespace{fsys: fsys, overrideDir: overrideDir}
}

// Namespaces lists the registered namespaces.
func (f *Factory) Namespaces() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.namespaces))
	for ns := range f.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Exists reports whether name ("ns::template") can be rendered.
func (f *Factory) Exists(name string) bool {
	tmpl, file, err := f.lookup(name)
	return err == nil && tmpl.Lookup(file) != nil
}

// Render executes the template name ("ns::template") with data into w.
// Output is buffered so a failing template writes nothing.
func (f *Factory) Render(ctx context.Context, w io.Writer, name string, data any) error {
	tmpl, file, err := f.lookup(name)
	if err != nil {
		return err
	}

	if tmpl.Lookup(file) == nil {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}

	clone, err := tmpl.Clone()
	if err != nil {
		return err
	}
	for _, funcs := range f.funcMaps(ctx) {
		clone.Funcs(funcs)
	}

	var buf bytes.Buffer
	if err = clone.ExecuteTemplate(&buf, file, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	_, err = buf.WriteTo(w)
	return err
}

func (f *Factory) funcMaps(ctx context.Context) []template.FuncMap {
	f.mu.Lock()
	providers := append([]FuncProvider(nil), f.providers...)
	f.mu.Unlock()

	maps := make([]template.FuncMap, 0, len(providers)+1)
	maps = append(maps, builtinFuncs())
	for _, p := range providers {
		maps = append(maps, p(ctx))
	}
	return maps
}

func (f *Factory) lookup(name string) (*template.Template, string, error) {
	nsName, file, found := strings.Cut(name, NamespaceSeparator)
	if !found {
		return nil, "", fmt.Errorf("%w: %s has no namespace", ErrViewNotFound, name)
	}
	file += templateExt

	f.mu.Lock()
	ns, ok := f.namespaces[nsName]
	f.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownNamespace, nsName)
	}

	funcs := f.funcMaps(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()

	if ns.parsed == nil {
		parsed, err := parseNamespace(nsName, ns, funcs)
		if err != nil {
			return nil, "", err
		}
		ns.parsed = parsed
	}
	return ns.parsed, file, nil
}

func parseNamespace(name string, ns *namespace, funcs []template.FuncMap) (*template.Template, error) {
	sources, err := templateSources(ns)
	if err != nil {
		return nil, err
	}

	root := template.New(name)
	for _, fm := range funcs {
		root.Funcs(fm)
	}

	files := make([]string, 0, len(sources))
	for file := range sources {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		if _, err = root.New(file).Parse(sources[file]); err != nil {
			return nil, fmt.Errorf("parse %s%s%s: %w", name, NamespaceSeparator, file, err)
		}
	}
	return root, nil
}

func templateSources(ns *namespace) (map[string]string, error) {
	sources := make(map[string]string)
	if err := readTemplates(ns.fsys, sources); err != nil {
		return nil, err
	}

	if ns.overrideDir == "" {
		return sources, nil
	}

	if _, err := os.Stat(ns.overrideDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sources, nil
		}
		return nil, err
	}

	if err := readTemplates(os.DirFS(ns.overrideDir), sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func readTemplates(fsys fs.FS, into map[string]string) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != templateExt {
			continue
		}

		data, readErr := fs.ReadFile(fsys, entry.Name())
		if readErr != nil {
			return readErr
		}
		into[entry.Name()] = string(data)
	}
	return nil
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}
