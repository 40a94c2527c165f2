package translationmanager_test

import (
	"context"
	"io/fs"
	"net/http"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	translationmanager "github.com/pitabwire/translation-manager"
	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/routing"
)

type ProviderSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

var expectedRoutes = map[string]string{
	"translation-manager.index":   http.MethodGet,
	"translation-manager.view":    http.MethodGet,
	"translation-manager.add":     http.MethodPost,
	"translation-manager.edit":    http.MethodPost,
	"translation-manager.delete":  http.MethodPost,
	"translation-manager.publish": http.MethodPost,
	"translation-manager.import":  http.MethodPost,
	"translation-manager.clean":   http.MethodPost,
	"translation-manager.find":    http.MethodPost,
	"translation-manager.update":  http.MethodPost,
}

// resourcesWithConfig copies the bundled resources, replacing the config file.
func resourcesWithConfig(t *testing.T, cfg string) fstest.MapFS {
	t.Helper()

	out := fstest.MapFS{}
	err := fs.WalkDir(translationmanager.Resources, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, readErr := fs.ReadFile(translationmanager.Resources, p)
		if readErr != nil {
			return readErr
		}
		out[p] = &fstest.MapFile{Data: content}
		return nil
	})
	require.NoError(t, err)

	out["resources/config/translation-manager.toml"] = &fstest.MapFile{Data: []byte(cfg)}
	return out
}

func (s *ProviderSuite) TestManagerIsSingleton() {
	f := newFixture(s.T(), nil, nil)
	ctx := context.Background()

	first, err := f.app.Container().Make(ctx, translationmanager.ServiceID)
	s.Require().NoError(err)
	second, err := f.app.Container().Make(ctx, translationmanager.ServiceID)
	s.Require().NoError(err)

	s.IsType(&translationmanager.Manager{}, first)
	s.Same(first, second)
}

func (s *ProviderSuite) TestCommandsResolveToSingletons() {
	f := newFixture(s.T(), nil, nil)
	ctx := context.Background()

	testCases := []struct {
		name     string
		expected any
	}{
		{"reset", &translationmanager.ResetCommand{}},
		{"import", &translationmanager.ImportCommand{}},
		{"find", &translationmanager.FindCommand{}},
		{"export", &translationmanager.ExportCommand{}},
		{"clean", &translationmanager.CleanCommand{}},
		{"clone", &translationmanager.CloneCommand{}},
		{"suffix", &translationmanager.SuffixCommand{}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			id := translationmanager.CommandID(tc.name)
			s.Equal("command.translation-manager."+tc.name, id)

			first, err := f.app.Container().Make(ctx, id)
			s.Require().NoError(err)
			second, err := f.app.Container().Make(ctx, id)
			s.Require().NoError(err)

			s.IsType(tc.expected, first)
			s.Same(first, second)
		})
	}

	s.Subset(f.app.Kernel().IDs(), []string{
		translationmanager.CommandID("reset"),
		translationmanager.CommandID("suffix"),
	})
}

func (s *ProviderSuite) TestProvides() {
	provider := translationmanager.NewServiceProvider()

	ids := provider.Provides()
	s.Len(ids, 8)
	s.Contains(ids, translationmanager.ServiceID)

	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	s.Len(unique, 8)
	s.False(provider.IsDeferred())
}

func (s *ProviderSuite) TestBootRegistersRoutes() {
	f := newFixture(s.T(), nil, nil)
	s.Require().NoError(f.app.Boot(context.Background()))

	routes := f.app.Router().Routes()
	s.Len(routes, len(expectedRoutes))

	for name, method := range expectedRoutes {
		route, ok := f.app.Router().Route(name)
		s.Require().True(ok, name)
		s.Equal(method, route.Method, name)
		s.Equal([]string{"lang", "auth", "throttle"}, route.Middleware, name)
	}

	index, _ := f.app.Router().Route("translation-manager.index")
	s.Equal("/translations", index.Path)
	update, _ := f.app.Router().Route("translation-manager.update")
	s.Equal("/translations/custom-update", update.Path)

	u, err := f.app.Router().URL("translation-manager.view", map[string]string{"group": "admin", "group2": "users"})
	s.Require().NoError(err)
	s.Equal("/translations/view/admin/users", u)
}

func (s *ProviderSuite) TestRouteGroupWithoutConfig() {
	provider := translationmanager.NewServiceProviderWithResources(
		resourcesWithConfig(s.T(), "delete_enabled = true\n"))
	f := newFixture(s.T(), nil, provider)
	s.Require().NoError(f.app.Boot(context.Background()))

	index, ok := f.app.Router().Route("translation-manager.index")
	s.Require().True(ok)
	s.Equal("/", index.Path)
	s.Empty(index.Middleware)
	s.Len(f.app.Router().Routes(), len(expectedRoutes))
}

func (s *ProviderSuite) TestRouteGroupFromHostConfig() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{
			"route": map[string]any{
				"prefix":     "admin/translations",
				"middleware": "lang",
				"domain":     "admin.example.com",
			},
		},
	})
	f := newFixture(s.T(), repo, nil)
	s.Require().NoError(f.app.Boot(context.Background()))

	index, ok := f.app.Router().Route("translation-manager.index")
	s.Require().True(ok)
	s.Equal("/admin/translations", index.Path)
	s.Equal("admin.example.com", index.Domain)
	s.Equal([]string{"lang"}, index.Middleware)
}

func (s *ProviderSuite) TestPartialHostRouteIsNotCompletedFromDefaults() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{
			"route": map[string]any{"prefix": "admin"},
		},
	})
	f := newFixture(s.T(), repo, nil)
	s.Require().NoError(f.app.Boot(context.Background()))

	for name := range expectedRoutes {
		route, ok := f.app.Router().Route(name)
		s.Require().True(ok, name)
		s.Empty(route.Middleware, name)
	}

	index, _ := f.app.Router().Route("translation-manager.index")
	s.Equal("/admin", index.Path)
}

func (s *ProviderSuite) TestEmptyHostRouteGivesEmptyGroup() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{"route": map[string]any{}},
	})
	f := newFixture(s.T(), repo, nil)
	s.Require().NoError(f.app.Boot(context.Background()))

	index, ok := f.app.Router().Route("translation-manager.index")
	s.Require().True(ok)
	s.Equal("/", index.Path)
	s.Empty(index.Middleware)
	s.Empty(index.Domain)
}

func (s *ProviderSuite) TestConfigMergeKeepsHostValues() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{"delete_enabled": false},
	})
	f := newFixture(s.T(), repo, nil)

	s.False(repo.GetBool("translation-manager.delete_enabled", true))
	s.Equal("json", repo.GetString("translation-manager.export_format", ""))
	s.Equal("translations", repo.GetString("translation-manager.route.prefix", ""))
	s.False(f.manager(s.T()).DeleteEnabled())
}

func (s *ProviderSuite) TestBootLoadsViewsAndTranslations() {
	f := newFixture(s.T(), nil, nil)
	s.Require().NoError(f.app.Boot(context.Background()))

	s.True(f.app.Views().Exists("translation-manager::index"))
	s.Contains(f.app.Translator().Namespaces(), translationmanager.ServiceID)
	s.Equal("Translation Manager",
		f.app.Translator().Translate(context.Background(), "en", "translation-manager::messages.title"))
}

func (s *ProviderSuite) TestPublishesAssets() {
	f := newFixture(s.T(), nil, nil)
	ctx := context.Background()

	s.Require().NoError(f.app.Run(ctx, []string{"vendor:publish", "--provider=translation-manager"}))

	s.FileExists(filepath.Join(f.dir, "config", "translation-manager.toml"))
	s.FileExists(filepath.Join(f.dir, "resources", "views", "vendor", "translation-manager", "index.html"))
	s.FileExists(filepath.Join(f.dir, "resources", "lang", "vendor", "translation-manager", "en", "messages.toml"))
	s.FileExists(filepath.Join(f.dir, "database", "migrations", "20140402193005_create_translations_table_up.sql"))
	s.ElementsMatch([]string{"config", "migrations", "translations", "views"}, f.app.Publisher().Tags())
}

func (s *ProviderSuite) TestBootWithoutRouteAliasesFails() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{
			"route": map[string]any{"middleware": []any{"unknown"}},
		},
	})
	f := newFixture(s.T(), repo, nil)

	s.Require().ErrorIs(f.app.Boot(context.Background()), routing.ErrUnknownMiddleware)
}
