package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/translation-manager/config"
)

type RepositorySuite struct {
	suite.Suite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) TestDottedAccess() {
	repo := config.NewRepository(map[string]any{
		"app": map[string]any{
			"name":    "tm",
			"debug":   "true",
			"workers": int64(4),
			"langs":   []any{"en", "fr"},
			"route":   map[string]any{"prefix": "translations"},
		},
	})

	s.Equal("tm", repo.GetString("app.name", ""))
	s.Equal("fallback", repo.GetString("app.missing", "fallback"))
	s.True(repo.GetBool("app.debug", false))
	s.Equal(4, repo.GetInt("app.workers", 0))
	s.Equal([]string{"en", "fr"}, repo.GetStrings("app.langs"))
	s.Equal(map[string]any{"prefix": "translations"}, repo.GetMap("app.route"))
	s.Nil(repo.GetMap("app.name"))
	s.True(repo.Has("app.route.prefix"))
	s.False(repo.Has("app.name.deeper"))
	s.False(repo.Has(""))
}

func (s *RepositorySuite) TestSetCreatesIntermediateMaps() {
	repo := config.NewRepository(nil)

	s.Require().NoError(repo.Set("a.b.c", 1))
	v, ok := repo.Get("a.b.c")
	s.True(ok)
	s.Equal(1, v)

	err := repo.Set("a.b.c.d", 2)
	s.Require().ErrorIs(err, config.ErrNotAMap)
}

func (s *RepositorySuite) TestGetMapReturnsCopy() {
	repo := config.NewRepository(map[string]any{"ns": map[string]any{"k": "v"}})

	m := repo.GetMap("ns")
	m["k"] = "changed"
	s.Equal("v", repo.GetString("ns.k", ""))
}

func (s *RepositorySuite) TestMergeDefaultsIsNonDestructive() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{
			"delete_enabled": false,
			"route":          map[string]any{"prefix": "admin/translations"},
		},
	})

	repo.MergeDefaults("translation-manager", map[string]any{
		"delete_enabled": true,
		"sort_keys":      true,
		"route": map[string]any{
			"prefix":     "translations",
			"middleware": []any{"auth"},
		},
	})

	s.False(repo.GetBool("translation-manager.delete_enabled", true))
	s.True(repo.GetBool("translation-manager.sort_keys", false))
	s.Equal("admin/translations", repo.GetString("translation-manager.route.prefix", ""))
	s.False(repo.Has("translation-manager.route.middleware"))
}

func (s *RepositorySuite) TestMergeDefaultsKeepsEmptyHostTable() {
	repo := config.NewRepository(map[string]any{
		"translation-manager": map[string]any{"route": map[string]any{}},
	})

	repo.MergeDefaults("translation-manager", map[string]any{
		"route": map[string]any{"prefix": "translations"},
	})

	s.Empty(repo.GetMap("translation-manager.route"))
	s.False(repo.Has("translation-manager.route.prefix"))
}

func (s *RepositorySuite) TestMergeDefaultsIntoEmptyNamespace() {
	repo := config.NewRepository(nil)
	defaults := map[string]any{"route": map[string]any{"prefix": "translations"}}

	repo.MergeDefaults("translation-manager", defaults)
	defaults["route"].(map[string]any)["prefix"] = "mutated"

	s.Equal("translations", repo.GetString("translation-manager.route.prefix", ""))
}

func (s *RepositorySuite) TestLoadDirOverlaysFiles() {
	dir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "translation-manager.toml"),
		[]byte("delete_enabled = false\n[route]\nprefix = \"i18n\"\n"), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "app.yaml"),
		[]byte("name: tm\nlocales:\n  - en\n  - de\n"), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "mail.json"), []byte(`{"from":"a@b.c"}`), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	repo := config.NewRepository(nil)
	repo.MergeDefaults("translation-manager", map[string]any{
		"delete_enabled": true,
		"route":          map[string]any{"prefix": "translations", "middleware": []any{"auth"}},
	})

	s.Require().NoError(repo.LoadDir(dir))

	s.False(repo.GetBool("translation-manager.delete_enabled", true))
	s.Equal("i18n", repo.GetString("translation-manager.route.prefix", ""))
	s.Empty(repo.GetStrings("translation-manager.route.middleware"))
	s.Equal("tm", repo.GetString("app.name", ""))
	s.Equal([]string{"en", "de"}, repo.GetStrings("app.locales"))
	s.Equal("a@b.c", repo.GetString("mail.from", ""))
	s.False(repo.Has("README"))
}

func (s *RepositorySuite) TestLoadDirMissingIsIgnored() {
	repo := config.NewRepository(nil)
	s.Require().NoError(repo.LoadDir(filepath.Join(s.T().TempDir(), "absent")))
}

func (s *RepositorySuite) TestLoadFileErrors() {
	dir := s.T().TempDir()
	bad := filepath.Join(dir, "broken.toml")
	s.Require().NoError(os.WriteFile(bad, []byte("= nope"), 0o600))

	repo := config.NewRepository(nil)
	s.Require().Error(repo.LoadFile(bad))
	s.Require().ErrorIs(repo.LoadFile(filepath.Join(dir, "x.ini")), config.ErrUnsupportedFormat)
}

func TestDecodeFile(t *testing.T) {
	fsys := fstest.MapFS{
		"cfg/a.toml": {Data: []byte("[route]\nmiddleware = [\"auth\", \"web\"]\n")},
		"cfg/b.yml":  {Data: []byte("nested:\n  key: value\n")},
		"cfg/c.json": {Data: []byte("")},
	}

	a, err := config.DecodeFile(fsys, "cfg/a.toml")
	require.NoError(t, err)
	require.Equal(t, []any{"auth", "web"}, a["route"].(map[string]any)["middleware"])

	b, err := config.DecodeFile(fsys, "cfg/b.yml")
	require.NoError(t, err)
	require.Equal(t, "value", b["nested"].(map[string]any)["key"])

	c, err := config.DecodeFile(fsys, "cfg/c.json")
	require.NoError(t, err)
	require.Empty(t, c)

	_, err = config.DecodeFile(fsys, "cfg/missing.toml")
	require.Error(t, err)
}
