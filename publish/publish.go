// Package publish copies assets bundled with a service provider into the host application tree.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pitabwire/util"
)

var ErrNothingToPublish = errors.New("no publishable assets matched")

// Mapping copies Root (a file or a directory) out of Source into Destination.
type Mapping struct {
	Source      fs.FS
	Root        string
	Destination string
}

type entry struct {
	provider string
	tag      string
	mappings []Mapping
}

// Options selects what Publish copies. Empty Tags or Providers match everything.
type Options struct {
	Tags      []string
	Providers []string
	Force     bool
}

// Publisher records publishable assets per provider and tag.
type Publisher struct {
	mu      sync.RWMutex
	entries []entry
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publishes registers mappings for provider under tag.
func (p *Publisher) Publishes(provider, tag string, mappings ...Mapping) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry{provider: provider, tag: tag, mappings: mappings})
}

// Tags lists every registered tag, sorted.
func (p *Publisher) Tags() []string {
	return p.collect(func(e entry) string { return e.tag })
}

// Providers lists every provider that registered assets, sorted.
func (p *Publisher) Providers() []string {
	return p.collect(func(e entry) string { return e.provider })
}

func (p *Publisher) collect(field func(entry) string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []string
	for _, e := range p.entries {
		if v := field(e); !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// Mappings returns the mappings matching opts in registration order.
func (p *Publisher) Mappings(opts Options) []Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Mapping
	for _, e := range p.entries {
		if len(opts.Tags) > 0 && !slices.Contains(opts.Tags, e.tag) {
			continue
		}
		if len(opts.Providers) > 0 && !slices.Contains(opts.Providers, e.provider) {
			continue
		}
		out = append(out, e.mappings...)
	}
	return out
}

// Publish copies the selected assets and returns the destination paths written.
// Files already present are kept unless opts.Force is set.
func (p *Publisher) Publish(ctx context.Context, opts Options) ([]string, error) {
	mappings := p.Mappings(opts)
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: tags=%v providers=%v", ErrNothingToPublish, opts.Tags, opts.Providers)
	}

	var written []string
	for _, m := range mappings {
		paths, err := publishMapping(ctx, m, opts.Force)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func publishMapping(ctx context.Context, m Mapping, force bool) ([]string, error) {
	root := m.Root
	if root == "" {
		root = "."
	}

	info, err := fs.Stat(m.Source, root)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", root, err)
	}

	if !info.IsDir() {
		ok, copyErr := copyFile(ctx, m.Source, root, m.Destination, force)
		if copyErr != nil || !ok {
			return nil, copyErr
		}
		return []string{m.Destination}, nil
	}

	var written []string
	err = fs.WalkDir(m.Source, root, func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(name))
		if relErr != nil {
			return relErr
		}

		target := filepath.Join(m.Destination, rel)
		ok, copyErr := copyFile(ctx, m.Source, name, target, force)
		if copyErr != nil {
			return copyErr
		}
		if ok {
			written = append(written, target)
		}
		return nil
	})
	return written, err
}

func copyFile(ctx context.Context, fsys fs.FS, name, target string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(target); err == nil {
			util.Log(ctx).WithField("path", target).Debug("publish -- keeping existing file")
			return false, nil
		}
	}

	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path.Clean(name), err)
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	if err = os.WriteFile(target, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	return true, nil
}
