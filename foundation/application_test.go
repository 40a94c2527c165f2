package foundation_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/foundation"
	"github.com/pitabwire/translation-manager/frametests"
	"github.com/pitabwire/translation-manager/publish"
	"github.com/pitabwire/translation-manager/routing"
	"github.com/pitabwire/translation-manager/telemetry"
)

type recordingProvider struct {
	registers int
	boots     int
	bootErr   error
}

func (p *recordingProvider) Register(_ context.Context, app *foundation.Application) error {
	p.registers++
	app.Container().Instance("recording", p)
	return nil
}

func (p *recordingProvider) Boot(_ context.Context, app *foundation.Application, router *routing.Router) error {
	p.boots++
	if p.bootErr != nil {
		return p.bootErr
	}

	app.Publishes("recording", "config", publish.Mapping{
		Source:      fstest.MapFS{"recording.toml": {Data: []byte("enabled = true\n")}},
		Root:        "recording.toml",
		Destination: app.ConfigPath("recording.toml"),
	})

	router.Group(routing.GroupOptions{Prefix: "recording"}, func(r *routing.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("recorded"))
		}).Name("recording.index")
	})
	return nil
}

type ApplicationSuite struct {
	suite.Suite
	dir string
	out *bytes.Buffer
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.out = &bytes.Buffer{}
}

func (s *ApplicationSuite) newApp(opts ...foundation.Option) *foundation.Application {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)
	cfg.BasePathValue = s.dir
	cfg.DatabasePrimaryURL = nil

	ctx := context.Background()
	base := []foundation.Option{
		foundation.WithConfig(&cfg),
		foundation.WithLangDisk(memblob.OpenBucket(nil)),
		foundation.WithOutput(s.out),
	}

	app, err := foundation.New(ctx, append(base, opts...)...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { app.Close(ctx) })
	return app
}

func (s *ApplicationSuite) TestPaths() {
	app := s.newApp()

	s.Equal(s.dir, app.BasePath())
	s.Equal(filepath.Join(s.dir, "config", "app.toml"), app.ConfigPath("app.toml"))
	s.Equal(filepath.Join(s.dir, "resources", "views"), app.ResourcePath("views"))
	s.Equal(filepath.Join(s.dir, "resources", "lang", "vendor"), app.LangPath("vendor"))
	s.Equal(filepath.Join(s.dir, "database", "migrations"), app.MigrationPath())
}

func (s *ApplicationSuite) TestLoadsHostConfigDir() {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.dir, "config"), 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "config", "app.toml"), []byte("locale = \"fr\"\n"), 0o644))

	app := s.newApp()
	s.Equal("fr", app.Repository().GetString("app.locale", ""))
}

func (s *ApplicationSuite) TestTypedBindings() {
	app := s.newApp()
	ctx := context.Background()

	repo, err := container.Resolve[*config.Repository](ctx, app.Container(), container.TypeID[*config.Repository]())
	s.Require().NoError(err)
	s.Same(app.Repository(), repo)

	bucket, err := container.Resolve[*blob.Bucket](ctx, app.Container(), container.TypeID[*blob.Bucket]())
	s.Require().NoError(err)
	s.Same(app.LangDisk(), bucket)

	router, err := container.Resolve[*routing.Router](ctx, app.Container(), "router")
	s.Require().NoError(err)
	s.Same(app.Router(), router)

	s.False(app.Container().Bound("db"))
}

func (s *ApplicationSuite) TestTelemetry() {
	spans := tracetest.NewInMemoryExporter()
	app := s.newApp(foundation.WithTelemetry(telemetry.WithTraceExporter(spans)))

	s.Require().NotNil(app.Telemetry())
	s.False(app.Telemetry().Disabled())

	managed, err := container.Resolve[telemetry.Manager](
		context.Background(), app.Container(), container.TypeID[telemetry.Manager]())
	s.Require().NoError(err)
	s.Same(app.Telemetry(), managed)
}

func (s *ApplicationSuite) TestTelemetryDisabledByConfig() {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)
	cfg.BasePathValue = s.dir
	cfg.DatabasePrimaryURL = nil
	cfg.OpenTelemetryDisable = true

	app := s.newApp(foundation.WithConfig(&cfg))
	s.True(app.Telemetry().Disabled())
}

func (s *ApplicationSuite) TestRegisterAndBootRunOnce() {
	provider := &recordingProvider{}
	app := s.newApp(foundation.WithProviders(provider))
	ctx := context.Background()

	s.Require().NoError(app.Boot(ctx))
	s.Require().NoError(app.Boot(ctx))
	s.Require().NoError(app.Register(ctx))

	s.Equal(1, provider.registers)
	s.Equal(1, provider.boots)
	s.True(app.Booted())
	s.True(app.Container().Bound("recording"))

	_, ok := app.Router().Route("recording.index")
	s.True(ok)
}

func (s *ApplicationSuite) TestBootErrorAborts() {
	boom := errors.New("boom")
	app := s.newApp(foundation.WithProviders(&recordingProvider{bootErr: boom}))

	s.Require().ErrorIs(app.Boot(context.Background()), boom)
}

func (s *ApplicationSuite) TestHandlerServesRoutesAndHealth() {
	app := s.newApp(foundation.WithProviders(&recordingProvider{}))
	s.Require().NoError(app.Boot(context.Background()))

	handler := app.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recording", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("recorded", rec.Body.String())
}

func (s *ApplicationSuite) TestServeStopsWithContext() {
	app := s.newApp(foundation.WithProviders(&recordingProvider{}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	address, err := frametests.FreeLoopbackAddress(ctx)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(address, "127.0.0.1:"), address)

	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, address) }()

	resp, err := frametests.WaitForCheckedConditionWithResult(ctx, func() (*http.Response, error) {
		return http.Get("http://" + address + "/recording")
	}, func(resp *http.Response, err error) bool {
		return err == nil && resp != nil
	}, 5*time.Second, 50*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().NoError(resp.Body.Close())

	cancel()
	select {
	case err = <-done:
		s.Require().NoError(err)
	case <-time.After(10 * time.Second):
		s.Fail("server did not stop")
	}
}

func (s *ApplicationSuite) TestHostCommands() {
	app := s.newApp(foundation.WithProviders(&recordingProvider{}))
	ctx := context.Background()

	s.Require().NoError(app.Run(ctx, []string{"list"}))
	for _, name := range []string{"migrate", "vendor:publish", "routes", "serve", "version"} {
		s.Contains(s.out.String(), name)
	}

	s.out.Reset()
	s.Require().NoError(app.Run(ctx, []string{"routes"}))
	s.Contains(s.out.String(), "recording.index")

	s.Require().NoError(app.Run(ctx, []string{"vendor:publish", "--tag=config"}))
	s.FileExists(filepath.Join(s.dir, "config", "recording.toml"))

	s.Require().ErrorIs(app.Run(ctx, []string{"migrate"}), foundation.ErrDatabaseNotConfigured)

	s.out.Reset()
	s.Require().NoError(app.Run(ctx, []string{"version"}))
	s.Contains(s.out.String(), "translation-manager")
}

func TestMigrateWithSQLite(t *testing.T) {
	dir := t.TempDir()
	migrations := filepath.Join(dir, "database", "migrations")
	require.NoError(t, os.MkdirAll(migrations, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "0001_notes.sql"),
		[]byte("CREATE TABLE notes (id VARCHAR(50) PRIMARY KEY, body TEXT);"), 0o644))

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	require.NoError(t, err)
	cfg.BasePathValue = dir
	cfg.DatabasePrimaryURL = []string{"sqlite://" + filepath.Join(dir, "app.db")}

	ctx := context.Background()
	app, err := foundation.New(ctx,
		foundation.WithConfig(&cfg),
		foundation.WithLangDisk(memblob.OpenBucket(nil)),
		foundation.WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer app.Close(ctx)

	applied, err := app.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	require.True(t, app.Pool().DB(ctx, false).Migrator().HasTable("notes"))
	require.True(t, app.Container().Bound("db"))
}
