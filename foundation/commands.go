package foundation

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/console"
	"github.com/pitabwire/translation-manager/datastore/migration"
	"github.com/pitabwire/translation-manager/publish"
	"github.com/pitabwire/translation-manager/version"
)

var ErrDatabaseNotConfigured = errors.New("no database configured")

func (a *Application) registerHostCommands() {
	a.kernel.Add(&console.Func{
		CommandName: "migrate",
		Summary:     "Run the database migrations found in the migrations directory",
		Action:      a.runMigrate,
	})
	a.kernel.Add(publish.NewCommand(a.publisher))
	a.kernel.Add(&console.Func{
		CommandName: "routes",
		Summary:     "List all registered routes",
		Action:      a.runRoutes,
	})
	a.kernel.Add(&console.Func{
		CommandName: "serve",
		Summary:     "Serve the application over HTTP",
		Action:      a.runServe,
	})
	a.kernel.Add(&console.Func{
		CommandName: "version",
		Summary:     "Print the build version",
		Action: func(ctx context.Context, _ []string) error {
			_, err := fmt.Fprintln(console.Output(ctx), version.Describe(a.name))
			return err
		},
	})
}

// Migrate applies the migrations found in the migration directory and any extra sources.
func (a *Application) Migrate(ctx context.Context, sources ...migration.Source) (int, error) {
	if a.dbPool == nil {
		return 0, ErrDatabaseNotConfigured
	}

	sources = append([]migration.Source{{FS: os.DirFS(a.MigrationPath()), Dir: "."}}, sources...)
	return a.dbPool.Migrate(ctx, sources...)
}

func (a *Application) runMigrate(ctx context.Context, _ []string) error {
	applied, err := a.Migrate(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(console.Output(ctx), "Applied %d migration(s)\n", applied)
	util.Log(ctx).WithField("applied", applied).Info("migrations complete")
	return nil
}

func (a *Application) runRoutes(ctx context.Context, _ []string) error {
	tw := tabwriter.NewWriter(console.Output(ctx), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METHOD\tURI\tNAME\tACTION\tMIDDLEWARE")
	for _, route := range a.router.Routes() {
		uri := route.Path
		if route.Domain != "" {
			uri = route.Domain + uri
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			route.Method, uri, route.Name, route.Action, strings.Join(route.Middleware, ","))
	}
	return tw.Flush()
}

func (a *Application) runServe(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	address := flags.String("address", "", "listen address, defaults to HTTP_PORT")
	if err := flags.Parse(args); err != nil {
		return err
	}
	return a.Serve(ctx, *address)
}

// Run boots the application and executes the console command named by args[0].
func (a *Application) Run(ctx context.Context, args []string) error {
	ctx = util.ContextWithLogger(ctx, a.logger)
	ctx = ToContext(ctx, a)

	if err := a.Boot(ctx); err != nil {
		return err
	}
	return a.kernel.Run(ctx, args)
}

// viewFuncs exposes reverse routing and UI strings to templates.
func (a *Application) viewFuncs(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"route": func(name string, params ...string) (string, error) {
			values := make(map[string]string, len(params)/2)
			for i := 0; i+1 < len(params); i += 2 {
				values[params[i]] = params[i+1]
			}
			return a.router.URL(name, values)
		},
		"trans": func(id string) string {
			return a.translator.Translate(ctx, nil, id)
		},
	}
}
