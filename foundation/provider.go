package foundation

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/publish"
	"github.com/pitabwire/translation-manager/routing"
)

// Provider plugs a package into the application.
// Register only binds services; Boot runs once every provider has registered.
type Provider interface {
	Register(ctx context.Context, app *Application) error
	Boot(ctx context.Context, app *Application, router *routing.Router) error
}

// DeferrableProvider lists the container ids a provider binds.
type DeferrableProvider interface {
	Provides() []string
	IsDeferred() bool
}

// AddProvider queues providers for Register and Boot.
func (a *Application) AddProvider(providers ...Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers = append(a.providers, providers...)
}

// Providers returns the queued providers in registration order.
func (a *Application) Providers() []Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Provider(nil), a.providers...)
}

// Register calls Register on every provider. It runs at most once; the first error aborts.
func (a *Application) Register(ctx context.Context) error {
	a.mu.Lock()
	if a.registered {
		a.mu.Unlock()
		return nil
	}
	a.registered = true
	providers := append([]Provider(nil), a.providers...)
	a.mu.Unlock()

	for _, p := range providers {
		if err := p.Register(ctx, a); err != nil {
			return fmt.Errorf("register %T: %w", p, err)
		}
	}
	return nil
}

// Boot registers providers if needed, then boots each of them in order. It runs at most once.
func (a *Application) Boot(ctx context.Context) error {
	if err := a.Register(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	if a.booted {
		a.mu.Unlock()
		return nil
	}
	a.booted = true
	providers := append([]Provider(nil), a.providers...)
	a.mu.Unlock()

	for _, p := range providers {
		if err := p.Boot(ctx, a, a.router); err != nil {
			return fmt.Errorf("boot %T: %w", p, err)
		}
	}

	if err := a.router.Err(); err != nil {
		return fmt.Errorf("route table: %w", err)
	}

	a.Log(ctx).WithField("providers", len(providers)).
		WithField("routes", len(a.router.Routes())).
		Debug("application booted")
	return nil
}

// Booted reports whether Boot has run.
func (a *Application) Booted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.booted
}

// MergeConfigFrom decodes name from fsys and merges it beneath the host values of namespace.
func (a *Application) MergeConfigFrom(fsys fs.FS, name, namespace string) error {
	defaults, err := config.DecodeFile(fsys, name)
	if err != nil {
		return fmt.Errorf("merge config %s: %w", name, err)
	}
	a.repository.MergeDefaults(namespace, defaults)
	return nil
}

// LoadViewsFrom adds a template namespace; published copies under
// <resource_path>/views/vendor/<namespace> take precedence.
func (a *Application) LoadViewsFrom(fsys fs.FS, namespace string) {
	a.views.AddNamespace(namespace, fsys, a.ResourcePath("views", "vendor", namespace))
}

// LoadTranslationsFrom adds a UI string namespace; published copies under
// <resource_path>/lang/vendor/<namespace> take precedence.
func (a *Application) LoadTranslationsFrom(ctx context.Context, fsys fs.FS, namespace string) error {
	return a.translator.AddNamespace(ctx, namespace, fsys, a.LangPath("vendor", namespace))
}

// Publishes marks assets of provider as publishable under tag.
func (a *Application) Publishes(provider, tag string, mappings ...publish.Mapping) {
	a.publisher.Publishes(provider, tag, mappings...)
}
