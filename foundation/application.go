// Package foundation holds the Application service providers register into and boot against.
package foundation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/pitabwire/util"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// lang disks
	_ "gocloud.dev/blob/memblob"  // mem:// lang disks
	"gocloud.dev/server/health"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/console"
	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/datastore/pool"
	"github.com/pitabwire/translation-manager/localization"
	httpI "github.com/pitabwire/translation-manager/localization/interceptors/http"
	"github.com/pitabwire/translation-manager/publish"
	"github.com/pitabwire/translation-manager/ratelimiter"
	"github.com/pitabwire/translation-manager/routing"
	"github.com/pitabwire/translation-manager/security"
	"github.com/pitabwire/translation-manager/telemetry"
	"github.com/pitabwire/translation-manager/version"
	"github.com/pitabwire/translation-manager/view"
	"github.com/pitabwire/translation-manager/workerpool"
)

type contextKey string

func (c contextKey) String() string {
	return "translation-manager/foundation/" + string(c)
}

const ctxKeyApplication = contextKey("applicationKey")

var ErrAlreadyBooted = errors.New("application already booted")

// Application ties together the container, configuration and the services providers use.
// A single instance lives for the lifetime of the process.
type Application struct {
	name   string
	config any
	logger *util.LogEntry
	out    io.Writer

	container  *container.Container
	repository *config.Repository
	kernel     *console.Kernel
	router     *routing.Router
	publisher  *publish.Publisher
	views      *view.Factory
	translator *localization.Translator
	dbPool     pool.Pool
	langDisk   *blob.Bucket
	workers    *workerpool.Manager
	telemetry  telemetry.Manager

	telemetryOpts []telemetry.Option

	basePath    string
	defaultLang string
	providers   []Provider

	mu             sync.Mutex
	registered     bool
	booted         bool
	cleanup        []func(ctx context.Context)
	healthCheckers []health.Checker
}

type Option func(ctx context.Context, app *Application)

// New builds an Application, filling in every collaborator the options did not supply.
func New(ctx context.Context, opts ...Option) (*Application, error) {
	app := &Application{
		name:        "translation-manager",
		container:   container.New(),
		defaultLang: "en",
	}

	for _, opt := range opts {
		opt(ctx, app)
	}

	if err := app.setup(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.bind()
	app.registerHostCommands()
	return app, nil
}

func (a *Application) setup(ctx context.Context) error {
	if a.config == nil {
		cfg, err := config.FromEnv[config.ConfigurationDefault]()
		if err != nil {
			return fmt.Errorf("read configuration: %w", err)
		}
		a.config = &cfg
	}

	if svc, ok := a.config.(config.ConfigurationService); ok && svc.Name() != "" {
		a.name = svc.Name()
	}

	if a.telemetry == nil {
		if err := a.setupTelemetry(ctx); err != nil {
			return err
		}
	}

	if a.logger == nil {
		WithLogger()(ctx, a)
	}

	if a.basePath == "" {
		a.basePath = "."
		if paths, ok := a.config.(config.ConfigurationPaths); ok {
			a.basePath = paths.BasePath()
		}
	}

	if a.repository == nil {
		a.repository = config.NewRepository(nil)
		if err := a.repository.LoadDir(a.ConfigPath()); err != nil {
			return fmt.Errorf("load config dir: %w", err)
		}
	}

	if a.dbPool == nil {
		if err := a.setupDatabase(ctx); err != nil {
			return err
		}
	}

	if a.langDisk == nil {
		if err := a.setupLangDisk(ctx); err != nil {
			return err
		}
	}

	if a.workers == nil {
		workerCfg, ok := a.config.(config.ConfigurationWorkerPool)
		if !ok {
			defaults, err := config.FromEnv[config.ConfigurationDefault]()
			if err != nil {
				return fmt.Errorf("read worker pool configuration: %w", err)
			}
			workerCfg = &defaults
		}
		workers, err := workerpool.NewManager(ctx, workerCfg)
		if err != nil {
			return err
		}
		a.workers = workers
	}

	a.translator = localization.NewTranslator(a.defaultLang)
	a.views = view.NewFactory()
	a.router = routing.New()
	a.publisher = publish.NewPublisher()
	a.kernel = console.NewKernel(a.container, a.out)

	a.views.AddFuncs(a.viewFuncs)
	a.aliasMiddleware()
	return nil
}

func (a *Application) setupTelemetry(ctx context.Context) error {
	opts := []telemetry.Option{
		telemetry.WithServiceName(a.name),
		telemetry.WithServiceVersion(a.Version()),
	}
	if svc, ok := a.config.(config.ConfigurationService); ok {
		opts = append(opts, telemetry.WithServiceEnvironment(svc.Environment()))
	}

	telCfg, _ := a.config.(config.ConfigurationTelemetry)
	if telCfg != nil && telCfg.DisableOpenTelemetry() {
		opts = append(opts, telemetry.WithDisableTracing())
	}
	opts = append(opts, a.telemetryOpts...)

	manager := telemetry.NewManager(ctx, telCfg, opts...)
	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = manager
	a.OnClose(func(ctx context.Context) {
		if err := manager.Shutdown(ctx); err != nil {
			a.Log(ctx).WithError(err).Warn("could not flush telemetry")
		}
	})
	return nil
}

func (a *Application) setupDatabase(ctx context.Context) error {
	dbCfg, ok := a.config.(config.ConfigurationDatabase)
	if !ok || len(dbCfg.GetDatabasePrimaryHostURL()) == 0 {
		return nil
	}

	dbPool := pool.NewPool(ctx)
	for _, dsn := range dbCfg.GetDatabasePrimaryHostURL() {
		if err := dbPool.AddConnection(ctx, dsn, false, pool.FromConfig(dbCfg)...); err != nil {
			dbPool.Close(ctx)
			return fmt.Errorf("connect database: %w", err)
		}
	}
	a.dbPool = dbPool
	a.OnClose(dbPool.Close)
	return nil
}

func (a *Application) setupLangDisk(ctx context.Context) error {
	paths, ok := a.config.(config.ConfigurationPaths)
	if !ok {
		return nil
	}

	bucket, err := blob.OpenBucket(ctx, paths.LangDisk())
	if err != nil {
		return fmt.Errorf("open lang disk %s: %w", paths.LangDisk(), err)
	}
	a.langDisk = bucket
	a.OnClose(func(ctx context.Context) {
		util.CloseAndLogOnError(ctx, bucket, "could not close lang disk")
	})
	return nil
}

func (a *Application) aliasMiddleware() {
	a.router.AliasMiddleware("lang", httpI.LanguageHTTPMiddleware)

	rateCfg, _ := a.config.(config.ConfigurationRateLimit)
	limiter := ratelimiter.NewKeyedLimiter(ratelimiter.SettingsFromConfig(rateCfg))
	a.OnClose(func(ctx context.Context) {
		util.CloseAndLogOnError(ctx, limiter, "could not stop rate limiter")
	})
	a.router.AliasMiddleware("throttle", ratelimiter.ThrottleMiddleware(limiter))

	jwtCfg, ok := a.config.(config.ConfigurationJWTVerification)
	if !ok {
		return
	}
	a.router.AliasMiddleware("auth", security.AuthenticationMiddleware(security.NewAuthenticator(jwtCfg)))
}

// bind exposes the application services through the container, by type and by name.
func (a *Application) bind() {
	c := a.container

	container.Provide(c, a)
	container.Provide(c, a.repository)
	container.Provide(c, a.logger)
	container.Provide(c, a.translator)
	container.Provide(c, a.views)
	container.Provide(c, a.router)
	container.Provide(c, a.publisher)
	container.Provide(c, a.kernel)
	container.Provide(c, a.workers)
	container.Provide(c, a.telemetry)

	c.Instance("app", a)
	c.Instance("config", a.repository)
	c.Instance("router", a.router)
	c.Instance("translator", a.translator)
	c.Instance("view", a.views)

	if a.dbPool != nil {
		container.Provide(c, a.dbPool)
		c.Instance("db", a.dbPool)
	}

	if a.langDisk != nil {
		container.Provide(c, a.langDisk)
		c.Instance("lang.disk", a.langDisk)
	}
}

// ToContext pushes an application into the supplied context.
func ToContext(ctx context.Context, app *Application) context.Context {
	return context.WithValue(ctx, ctxKeyApplication, app)
}

// FromContext obtains the application propagated through the context.
func FromContext(ctx context.Context) *Application {
	app, ok := ctx.Value(ctxKeyApplication).(*Application)
	if !ok {
		return nil
	}
	return app
}

func (a *Application) Name() string                         { return a.name }
func (a *Application) Config() any                          { return a.config }
func (a *Application) Container() *container.Container      { return a.container }
func (a *Application) Repository() *config.Repository       { return a.repository }
func (a *Application) Kernel() *console.Kernel              { return a.kernel }
func (a *Application) Router() *routing.Router              { return a.router }
func (a *Application) Publisher() *publish.Publisher        { return a.publisher }
func (a *Application) Views() *view.Factory                 { return a.views }
func (a *Application) Translator() *localization.Translator { return a.translator }
func (a *Application) Pool() pool.Pool                      { return a.dbPool }
func (a *Application) LangDisk() *blob.Bucket               { return a.langDisk }
func (a *Application) Workers() *workerpool.Manager         { return a.workers }
func (a *Application) Telemetry() telemetry.Manager         { return a.telemetry }

// Version is SERVICE_VERSION when set, the version stamped at build time otherwise.
func (a *Application) Version() string {
	if svc, ok := a.config.(config.ConfigurationService); ok && svc.Version() != "" {
		return svc.Version()
	}
	return version.Version
}

func (a *Application) Log(ctx context.Context) *util.LogEntry {
	return a.logger.WithContext(ctx)
}

// BasePath is the application root; elements are joined onto it.
func (a *Application) BasePath(elem ...string) string {
	return filepath.Join(append([]string{a.basePath}, elem...)...)
}

// ConfigPath is the directory host config files are loaded from.
func (a *Application) ConfigPath(elem ...string) string {
	root := a.BasePath("config")
	if paths, ok := a.config.(config.ConfigurationPaths); ok && paths.BasePath() == a.basePath {
		root = paths.ConfigPath()
	}
	return filepath.Join(append([]string{root}, elem...)...)
}

// ResourcePath is the directory holding views, lang files and other assets.
func (a *Application) ResourcePath(elem ...string) string {
	root := a.BasePath("resources")
	if paths, ok := a.config.(config.ConfigurationPaths); ok && paths.BasePath() == a.basePath {
		root = paths.ResourcePath()
	}
	return filepath.Join(append([]string{root}, elem...)...)
}

// LangPath is the directory UI strings are published to.
func (a *Application) LangPath(elem ...string) string {
	return a.ResourcePath(append([]string{"lang"}, elem...)...)
}

// MigrationPath is the directory host migrations are published to and run from.
func (a *Application) MigrationPath() string {
	if dbCfg, ok := a.config.(config.ConfigurationDatabase); ok && a.basePath == a.configuredBasePath() {
		return dbCfg.GetDatabaseMigrationPath()
	}
	return a.BasePath("database", "migrations")
}

func (a *Application) configuredBasePath() string {
	if paths, ok := a.config.(config.ConfigurationPaths); ok {
		return paths.BasePath()
	}
	return "."
}

// OnClose adds a function run by Close; functions run in reverse order of registration.
func (a *Application) OnClose(f func(ctx context.Context)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanup = append(a.cleanup, f)
}

// Close releases the resources the application opened.
func (a *Application) Close(ctx context.Context) {
	a.mu.Lock()
	cleanup := a.cleanup
	a.cleanup = nil
	a.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i](ctx)
	}

	a.workers.Shutdown(ctx)
}
