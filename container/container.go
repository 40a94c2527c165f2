// Package container holds the service bindings an application is assembled from.
//
// Bindings are keyed by string identifiers. Shared bindings (singletons) are built lazily on their
// first resolution and the instance is reused afterwards; plain bindings run their factory on
// every resolution. Bindings keyed by Go type (see Provide and TypeID) feed Autowire, which builds
// a value by calling a constructor with its parameters resolved from the container.
package container

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnresolvable is returned when nothing is bound under the requested identifier.
	ErrUnresolvable = errors.New("unresolvable dependency")
	// ErrCircularDependency is returned when a binding requires itself while being built.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrTypeMismatch is returned by Resolve when the bound value is not of the requested type.
	ErrTypeMismatch = errors.New("bound value has unexpected type")
)

// Factory builds the value for a binding. The supplied context carries the resolution chain,
// factories must pass it on when resolving further dependencies.
type Factory func(ctx context.Context, c *Container) (any, error)

type binding struct {
	factory Factory
	shared  bool

	mu       sync.Mutex
	resolved bool
	instance any
	building chan struct{}
}

// Container maps identifiers to bindings.
type Container struct {
	mu       sync.RWMutex
	bindings map[string]*binding
}

// New creates an empty container.
func New() *Container {
	return &Container{
		bindings: make(map[string]*binding),
	}
}

// Bind registers a factory that is invoked on every resolution of id.
func (c *Container) Bind(id string, factory Factory) {
	c.set(id, &binding{factory: factory})
}

// Singleton registers a factory whose result is built once, on first resolution, and shared.
// Registering the same id again replaces the previous binding and forgets any built instance.
func (c *Container) Singleton(id string, factory Factory) {
	c.set(id, &binding{factory: factory, shared: true})
}

// Instance registers an already built value as a shared binding.
func (c *Container) Instance(id string, value any) {
	c.set(id, &binding{shared: true, resolved: true, instance: value})
}

func (c *Container) set(id string, b *binding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bindings[id] = b
}

func (c *Container) lookup(id string) (*binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.bindings[id]
	return b, ok
}

// Bound reports whether anything is registered under id.
func (c *Container) Bound(id string) bool {
	_, ok := c.lookup(id)
	return ok
}

// Resolved reports whether a shared binding has already been built.
func (c *Container) Resolved(id string) bool {
	b, ok := c.lookup(id)
	if !ok || !b.shared {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolved
}

// IDs lists the registered identifiers in lexical order.
func (c *Container) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.bindings))
	for id := range c.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Make resolves the value bound under id.
//
// A singleton factory runs without holding any container lock. Callers racing on the same
// singleton wait for the first build; if it fails the next caller builds again. A dependency
// cycle split across concurrent resolutions cannot be seen from either resolution chain, so
// those callers wait until ctx is done and get its error.
func (c *Container) Make(ctx context.Context, id string) (any, error) {
	b, ok := c.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvable, id)
	}

	chain := resolutionChain(ctx)
	if slices.Contains(chain, id) {
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(append(chain, id), " -> "))
	}
	ctx = withResolution(ctx, chain, id)

	if !b.shared {
		value, err := b.factory(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		return value, nil
	}

	for {
		value, done, building := b.claim()
		if done {
			return value, nil
		}
		if building == nil {
			return b.build(ctx, c, id)
		}

		select {
		case <-building:
		case <-ctx.Done():
			return nil, fmt.Errorf("resolve %s: %w", id, ctx.Err())
		}
	}
}

// claim returns the built instance, or the channel of a build in flight. When it returns
// neither the caller owns the build.
func (b *binding) claim() (any, bool, chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resolved {
		return b.instance, true, nil
	}
	if b.building != nil {
		return nil, false, b.building
	}
	b.building = make(chan struct{})
	return nil, false, nil
}

func (b *binding) build(ctx context.Context, c *Container, id string) (value any, err error) {
	defer func() {
		b.mu.Lock()
		if err == nil {
			b.instance = value
			b.resolved = true
		}
		close(b.building)
		b.building = nil
		b.mu.Unlock()
	}()

	value, err = b.factory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	return value, nil
}

// MustMake is Make for bootstrap code where a missing binding is a programming error.
func (c *Container) MustMake(ctx context.Context, id string) any {
	value, err := c.Make(ctx, id)
	if err != nil {
		panic(err)
	}
	return value
}

// Resolve is the typed variant of Make.
func Resolve[T any](ctx context.Context, c *Container, id string) (T, error) {
	var zero T

	value, err := c.Make(ctx, id)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, id, value)
	}
	return typed, nil
}

type resolutionKey struct{}

func resolutionChain(ctx context.Context) []string {
	chain, _ := ctx.Value(resolutionKey{}).([]string)
	return chain
}

func withResolution(ctx context.Context, chain []string, id string) context.Context {
	next := make([]string, 0, len(chain)+1)
	next = append(next, chain...)
	next = append(next, id)
	return context.WithValue(ctx, resolutionKey{}, next)
}
