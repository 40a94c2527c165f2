// Package translationmanager manages application translations stored in a database:
// it imports language files, finds keys in source code, and exports edited values
// through console commands and a web interface.
package translationmanager

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/datastore/migration"
	"github.com/pitabwire/translation-manager/foundation"
	"github.com/pitabwire/translation-manager/publish"
	"github.com/pitabwire/translation-manager/routing"
)

// ServiceID names the manager binding, the config namespace, and the view and UI string namespaces.
const ServiceID = "translation-manager"

// ServiceProvider registers the translation manager with an application.
type ServiceProvider struct {
	resources fs.FS
}

var (
	_ foundation.Provider           = (*ServiceProvider)(nil)
	_ foundation.DeferrableProvider = (*ServiceProvider)(nil)
)

// NewServiceProvider returns a provider backed by the bundled resources.
func NewServiceProvider() *ServiceProvider {
	return &ServiceProvider{resources: Resources}
}

// NewServiceProviderWithResources returns a provider reading its resources from fsys,
// laid out like the bundled ones.
func NewServiceProviderWithResources(fsys fs.FS) *ServiceProvider {
	return &ServiceProvider{resources: fsys}
}

// Register merges the bundled config, binds the console commands and the manager.
func (p *ServiceProvider) Register(_ context.Context, app *foundation.Application) error {
	if err := app.MergeConfigFrom(p.resources, resourceConfigFile, ConfigNamespace); err != nil {
		return err
	}
	app.Publishes(ServiceID, "config", publish.Mapping{
		Source:      p.resources,
		Root:        resourceConfigFile,
		Destination: app.ConfigPath(ConfigNamespace + ".toml"),
	})

	c := app.Container()

	ids := make([]string, 0, len(commandTable))
	for _, cmd := range commandTable {
		build := cmd.build
		id := CommandID(cmd.name)
		c.Singleton(id, func(ctx context.Context, c *container.Container) (any, error) {
			m, err := container.Resolve[*Manager](ctx, c, ServiceID)
			if err != nil {
				return nil, err
			}
			return build(m), nil
		})
		ids = append(ids, id)
	}
	app.Kernel().Commands(ids...)

	c.Singleton(ServiceID, container.Autowire(NewManager))
	return nil
}

// Boot loads views and UI strings, marks assets publishable and registers the routes.
func (p *ServiceProvider) Boot(ctx context.Context, app *foundation.Application, router *routing.Router) error {
	views, err := fs.Sub(p.resources, resourceViewsDir)
	if err != nil {
		return fmt.Errorf("bundled views: %w", err)
	}
	app.LoadViewsFrom(views, ServiceID)
	app.Publishes(ServiceID, "views", publish.Mapping{
		Source:      p.resources,
		Root:        resourceViewsDir,
		Destination: app.ResourcePath("views", "vendor", ServiceID),
	})

	app.Publishes(ServiceID, "migrations", publish.Mapping{
		Source:      p.resources,
		Root:        resourceMigrations,
		Destination: app.MigrationPath(),
	})

	lang, err := fs.Sub(p.resources, resourceLangDir)
	if err != nil {
		return fmt.Errorf("bundled translations: %w", err)
	}
	if err = app.LoadTranslationsFrom(ctx, lang, ServiceID); err != nil {
		return err
	}
	app.Publishes(ServiceID, "translations", publish.Mapping{
		Source:      p.resources,
		Root:        resourceLangDir,
		Destination: app.LangPath("vendor", ServiceID),
	})

	options := routing.GroupOptionsFromMap(app.Repository().GetMap(ConfigNamespace + ".route"))
	controller := NewController(app)

	router.Group(options, func(r *routing.Router) {
		r.Get("/", controller.GetIndex).Name(ServiceID + ".index")
		r.Get("/view/{group?}/{group2?}/{group3?}/{group4?}/{group5?}", controller.GetView).
			Name(ServiceID + ".view")
		r.Post("/add/{group}/{group2?}/{group3?}/{group4?}/{group5?}", controller.PostAdd).
			Name(ServiceID + ".add")
		r.Post("/edit/{group}/{group2?}/{group3?}/{group4?}/{group5?}", controller.PostEdit).
			Name(ServiceID + ".edit")
		r.Post("/delete/{key}/{group}/{group2?}/{group3?}/{group4?}/{group5?}", controller.PostDelete).
			Name(ServiceID + ".delete")
		r.Post("/publish/{group}/{group2?}/{group3?}/{group4?}/{group5?}", controller.PostPublish).
			Name(ServiceID + ".publish")
		r.Post("/import", controller.PostImport).Name(ServiceID + ".import")
		r.Post("/clean", controller.PostClean).Name(ServiceID + ".clean")
		r.Post("/find", controller.PostFind).Name(ServiceID + ".find")
		r.Post("custom-update", controller.PostEditAndExport).Name(ServiceID + ".update")
	})
	return nil
}

// Provides lists the container ids bound by Register.
func (p *ServiceProvider) Provides() []string {
	ids := []string{ServiceID}
	for _, cmd := range commandTable {
		ids = append(ids, CommandID(cmd.name))
	}
	return ids
}

// IsDeferred is false: the provider registers eagerly.
func (p *ServiceProvider) IsDeferred() bool {
	return false
}

// MigrationSource is the bundled migrations directory, for hosts that migrate without publishing.
func (p *ServiceProvider) MigrationSource() migration.Source {
	return migration.Source{FS: p.resources, Dir: resourceMigrations}
}
