package foundation

import (
	"context"
	"io"

	"github.com/pitabwire/util"
	"gocloud.dev/blob"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/datastore/pool"
	"github.com/pitabwire/translation-manager/telemetry"
	"github.com/pitabwire/translation-manager/workerpool"
)

// WithName overrides the service name taken from configuration.
func WithName(name string) Option {
	return func(_ context.Context, app *Application) {
		app.name = name
	}
}

// WithConfig sets the process configuration, normally a *config.ConfigurationDefault.
func WithConfig(cfg any) Option {
	return func(_ context.Context, app *Application) {
		app.config = cfg
	}
}

// WithRepository supplies the config repository instead of loading <config_path>.
func WithRepository(repository *config.Repository) Option {
	return func(_ context.Context, app *Application) {
		app.repository = repository
	}
}

// WithPool supplies the datastore pool instead of connecting to the configured databases.
func WithPool(p pool.Pool) Option {
	return func(_ context.Context, app *Application) {
		app.dbPool = p
	}
}

// WithLangDisk supplies the bucket translation files are imported from and exported to.
func WithLangDisk(bucket *blob.Bucket) Option {
	return func(_ context.Context, app *Application) {
		app.langDisk = bucket
	}
}

// WithWorkerPool supplies the worker pool manager.
func WithWorkerPool(workers *workerpool.Manager) Option {
	return func(_ context.Context, app *Application) {
		app.workers = workers
	}
}

// WithBasePath sets the application root all paths derive from.
func WithBasePath(basePath string) Option {
	return func(_ context.Context, app *Application) {
		app.basePath = basePath
	}
}

// WithDefaultLanguage sets the fallback language for UI strings.
func WithDefaultLanguage(lang string) Option {
	return func(_ context.Context, app *Application) {
		app.defaultLang = lang
	}
}

// WithOutput sets where console commands print.
func WithOutput(w io.Writer) Option {
	return func(_ context.Context, app *Application) {
		app.out = w
	}
}

// WithProviders queues service providers.
func WithProviders(providers ...Provider) Option {
	return func(_ context.Context, app *Application) {
		app.providers = append(app.providers, providers...)
	}
}

// WithTelemetry adds options to the telemetry manager built during setup.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(_ context.Context, app *Application) {
		app.telemetryOpts = append(app.telemetryOpts, opts...)
	}
}

// WithLogger initialises the application logger from the logging configuration.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, app *Application) {
		if logCfg, ok := app.config.(config.ConfigurationLogLevel); ok {
			logLevel, err := util.ParseLevel(logCfg.LoggingLevel())
			if err == nil {
				opts = append(opts, util.WithLogLevel(logLevel))
			}
			opts = append(opts,
				util.WithLogTimeFormat(logCfg.LoggingTimeFormat()),
				util.WithLogNoColor(!logCfg.LoggingColored()))
			if logCfg.LoggingShowStackTrace() {
				opts = append(opts, util.WithLogStackTrace())
			}
		}

		if app.telemetry != nil && app.telemetry.LogHandler() != nil {
			opts = append(opts, util.WithLogHandler(app.telemetry.LogHandler()))
		}

		log := util.NewLogger(ctx, opts...)
		app.logger = log.WithField("service", app.name)
	}
}
