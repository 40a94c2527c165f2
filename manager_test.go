package translationmanager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	translationmanager "github.com/pitabwire/translation-manager"
)

type ManagerSuite struct {
	suite.Suite
	f       *fixture
	manager *translationmanager.Manager
	ctx     context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture(s.T(), nil, nil)
	s.manager = s.f.manager(s.T())
}

func (s *ManagerSuite) value(locale, group, key string) *string {
	row, err := s.manager.Repository().Find(s.ctx, locale, group, key)
	s.Require().NoError(err)
	return row.Value
}

func (s *ManagerSuite) setConfig(key string, value any) {
	s.Require().NoError(s.f.app.Repository().Set(translationmanager.ConfigNamespace+"."+key, value))
}

func (s *ManagerSuite) TestSingletonPerApplication() {
	s.Same(s.manager, s.f.manager(s.T()))
}

func (s *ManagerSuite) TestImportTranslations() {
	s.f.write(s.T(), "en/messages.json", `{"welcome": "Welcome", "nav": {"home": "Home"}}`)
	s.f.write(s.T(), "es/messages.yaml", "welcome: Bienvenido\n")
	s.f.write(s.T(), "en/admin/users.toml", "title = \"Users\"\n")
	s.f.write(s.T(), "en.json", `{"Hello world": "Hello world"}`)
	s.f.write(s.T(), "vendor/package/en/messages.json", `{"skipped": "yes"}`)
	s.f.write(s.T(), "en/notes.txt", "ignored")

	counter, err := s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Equal(5, counter)

	s.Equal("Home", *s.value("en", "messages", "nav.home"))
	s.Equal("Bienvenido", *s.value("es", "messages", "welcome"))
	s.Equal("Users", *s.value("en", "admin/users", "title"))
	s.Equal("Hello world", *s.value("en", translationmanager.JSONGroup, "Hello world"))

	row, err := s.manager.Repository().Find(s.ctx, "en", "messages", "welcome")
	s.Require().NoError(err)
	s.False(row.IsChanged())

	counter, err = s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Zero(counter)
}

func (s *ManagerSuite) TestImportKeepsValuesUnlessReplacing() {
	s.f.write(s.T(), "en/messages.json", `{"welcome": "Welcome"}`)
	_, err := s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)

	s.f.write(s.T(), "en/messages.json", `{"welcome": "Hi there"}`)
	_, err = s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Equal("Welcome", *s.value("en", "messages", "welcome"))

	_, err = s.manager.ImportTranslations(s.ctx, true, "")
	s.Require().NoError(err)
	s.Equal("Hi there", *s.value("en", "messages", "welcome"))
}

func (s *ManagerSuite) TestImportFillsNullValues() {
	s.Require().NoError(s.manager.MissingKey(s.ctx, "messages", "welcome"))
	s.Nil(s.value("en", "messages", "welcome"))

	s.f.write(s.T(), "en/messages.json", `{"welcome": "Welcome"}`)
	counter, err := s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Zero(counter)
	s.Equal("Welcome", *s.value("en", "messages", "welcome"))
}

func (s *ManagerSuite) TestImportBaseLocaleAndExclusions() {
	s.f.write(s.T(), "en/messages.json", `{"welcome": "Welcome"}`)
	s.f.write(s.T(), "es/messages.json", `{"welcome": "Bienvenido"}`)
	s.f.write(s.T(), "es/validation.json", `{"required": "Requerido"}`)

	counter, err := s.manager.ImportTranslations(s.ctx, false, "es")
	s.Require().NoError(err)
	s.Equal(2, counter)

	s.setConfig("exclude_groups", []any{"messages"})
	counter, err = s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Zero(counter)

	_, err = s.manager.ImportTranslations(s.ctx, false, "not a locale!")
	s.Require().ErrorIs(err, translationmanager.ErrInvalidLocale)
}

func (s *ManagerSuite) TestFindTranslations() {
	src := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(src, "main.go"), []byte(`package main

func main() {
	fmt.Println(trans("messages.welcome"))
	fmt.Println(__("Hello world"))
	fmt.Println(T('auth.failed'))
	fmt.Println(trans("messages.welcome"))
	fmt.Println(trans("package::messages.ignored"))
}
`), 0o644))
	s.Require().NoError(os.MkdirAll(filepath.Join(src, "node_modules"), 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(src, "node_modules", "lib.js"),
		[]byte(`trans("skipped.key")`), 0o644))
	s.Require().NoError(os.WriteFile(filepath.Join(src, "notes.md"),
		[]byte(`trans("markdown.key")`), 0o644))

	s.Require().NoError(s.manager.MissingKey(s.ctx, "messages", "seed"))
	_, err := s.manager.UpdateValue(s.ctx, "fr", "messages", "seed", "graine")
	s.Require().NoError(err)

	counter, err := s.manager.FindTranslations(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(3, counter)

	for _, locale := range []string{"en", "fr"} {
		s.Nil(s.value(locale, "messages", "welcome"))
		s.Nil(s.value(locale, "auth", "failed"))
		s.Nil(s.value(locale, translationmanager.JSONGroup, "Hello world"))
	}

	_, err = s.manager.Repository().Find(s.ctx, "en", "skipped", "key")
	s.Require().Error(err)
	_, err = s.manager.Repository().Find(s.ctx, "en", "markdown", "key")
	s.Require().Error(err)
}

func (s *ManagerSuite) TestExportGroupAsNestedJSON() {
	_, err := s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "Welcome")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "nav.home", "Home & away")
	s.Require().NoError(err)
	s.Require().NoError(s.manager.MissingKey(s.ctx, "messages", "pending"))

	changed, err := s.manager.ChangedCount(s.ctx, "messages")
	s.Require().NoError(err)
	s.EqualValues(2, changed)

	s.Require().NoError(s.manager.ExportTranslations(s.ctx, "messages"))

	s.Equal(`{
    "nav": {
        "home": "Home & away"
    },
    "welcome": "Welcome"
}
`, s.f.read(s.T(), "en/messages.json"))

	changed, err = s.manager.ChangedCount(s.ctx, "messages")
	s.Require().NoError(err)
	s.Zero(changed)
}

func (s *ManagerSuite) TestExportFormats() {
	_, err := s.manager.UpdateValue(s.ctx, "en", "admin/users", "title", "Users")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "admin/users", "form.name", "Name")
	s.Require().NoError(err)

	s.setConfig("export_format", "yaml")
	s.Require().NoError(s.manager.ExportTranslations(s.ctx, "admin/users"))
	s.Equal("form:\n  name: Name\ntitle: Users\n", s.f.read(s.T(), "en/admin/users.yaml"))

	s.setConfig("export_format", "toml")
	s.Require().NoError(s.manager.ExportTranslations(s.ctx, "admin/users"))
	s.Contains(s.f.read(s.T(), "en/admin/users.toml"), `title = "Users"`)

	s.setConfig("export_format", "ini")
	s.Require().ErrorIs(s.manager.ExportTranslations(s.ctx, "admin/users"), translationmanager.ErrUnsupportedFormat)
}

func (s *ManagerSuite) TestExportAllWritesJSONFiles() {
	_, err := s.manager.UpdateValue(s.ctx, "es", translationmanager.JSONGroup, "Hello world", "Hola mundo")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "es", "messages", "welcome", "Bienvenido")
	s.Require().NoError(err)

	s.Require().NoError(s.manager.ExportAllTranslations(s.ctx))

	s.Equal("{\n    \"Hello world\": \"Hola mundo\"\n}\n", s.f.read(s.T(), "es.json"))
	s.Contains(s.f.read(s.T(), "es/messages.json"), `"welcome": "Bienvenido"`)
}

func (s *ManagerSuite) TestImportExportRoundTrip() {
	original := "{\n    \"auth\": {\n        \"failed\": \"Invalid credentials\"\n    },\n    \"welcome\": \"Welcome\"\n}\n"
	s.f.write(s.T(), "en/messages.json", original)

	_, err := s.manager.ImportTranslations(s.ctx, false, "")
	s.Require().NoError(err)
	s.Require().NoError(s.manager.ExportTranslations(s.ctx, "messages"))

	s.Equal(original, s.f.read(s.T(), "en/messages.json"))
}

func (s *ManagerSuite) TestCleanAndReset() {
	s.Require().NoError(s.manager.MissingKey(s.ctx, "messages", "empty"))
	_, err := s.manager.UpdateValue(s.ctx, "en", "messages", "kept", "Kept")
	s.Require().NoError(err)

	removed, err := s.manager.CleanTranslations(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, removed)

	count, err := s.manager.Repository().Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)

	s.Require().NoError(s.manager.TruncateTranslations(s.ctx))
	count, err = s.manager.Repository().Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ManagerSuite) TestCloneTranslations() {
	_, err := s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "Welcome")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "bye", "Bye")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en-GB", "messages", "bye", "Cheerio")
	s.Require().NoError(err)

	created, err := s.manager.CloneTranslations(s.ctx, "en", "en-GB")
	s.Require().NoError(err)
	s.Equal(1, created)

	s.Equal("Welcome", *s.value("en-GB", "messages", "welcome"))
	s.Equal("Cheerio", *s.value("en-GB", "messages", "bye"))

	row, err := s.manager.Repository().Find(s.ctx, "en-GB", "messages", "welcome")
	s.Require().NoError(err)
	s.True(row.IsChanged())

	_, err = s.manager.CloneTranslations(s.ctx, "en", "en")
	s.Require().ErrorIs(err, translationmanager.ErrSameLocale)
	_, err = s.manager.CloneTranslations(s.ctx, "en", "not a locale!")
	s.Require().ErrorIs(err, translationmanager.ErrInvalidLocale)
}

func (s *ManagerSuite) TestSuffixTranslations() {
	_, err := s.manager.UpdateValue(s.ctx, "en", "messages", "a", "Alpha")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "b", "Beta [x]")
	s.Require().NoError(err)
	s.Require().NoError(s.manager.MissingKey(s.ctx, "messages", "c"))

	changed, err := s.manager.SuffixTranslations(s.ctx, "en", " [x]")
	s.Require().NoError(err)
	s.EqualValues(1, changed)

	s.Equal("Alpha [x]", *s.value("en", "messages", "a"))
	s.Equal("Beta [x]", *s.value("en", "messages", "b"))
	s.Nil(s.value("en", "messages", "c"))
}

func (s *ManagerSuite) TestUpdateValue() {
	row, err := s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "Welcome")
	s.Require().NoError(err)
	s.True(row.IsChanged())

	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "")
	s.Require().NoError(err)
	s.Nil(s.value("en", "messages", "welcome"))

	_, err = s.manager.UpdateValue(s.ctx, "en", "a/b/c/d/e/f", "welcome", "x")
	s.Require().ErrorIs(err, translationmanager.ErrInvalidGroup)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", " ", "x")
	s.Require().ErrorIs(err, translationmanager.ErrInvalidKey)
}

func (s *ManagerSuite) TestDeleteKey() {
	_, err := s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "Welcome")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "es", "messages", "welcome", "Bienvenido")
	s.Require().NoError(err)

	deleted, err := s.manager.DeleteKey(s.ctx, "messages", "welcome")
	s.Require().NoError(err)
	s.EqualValues(2, deleted)

	_, err = s.manager.DeleteKey(s.ctx, "messages", "welcome")
	s.Require().ErrorIs(err, translationmanager.ErrTranslationNotFound)

	s.setConfig("delete_enabled", false)
	_, err = s.manager.DeleteKey(s.ctx, "messages", "welcome")
	s.Require().ErrorIs(err, translationmanager.ErrDeleteDisabled)
}

func (s *ManagerSuite) TestLocalesGroupsAndRows() {
	_, err := s.manager.UpdateValue(s.ctx, "de", "messages", "welcome", "Willkommen")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "welcome", "Welcome")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "messages", "bye", "Bye")
	s.Require().NoError(err)
	_, err = s.manager.UpdateValue(s.ctx, "en", "auth", "failed", "Failed")
	s.Require().NoError(err)

	locales, err := s.manager.Locales(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"en", "de"}, locales)

	groups, err := s.manager.Groups(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"auth", "messages"}, groups)

	s.setConfig("exclude_groups", []any{"auth"})
	s.setConfig("exclude_langs", []any{"de"})

	groups, err = s.manager.Groups(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"messages"}, groups)
	locales, err = s.manager.Locales(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"en"}, locales)

	rows, err := s.manager.GroupTranslations(s.ctx, "messages")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("bye", rows[0].Key)
	s.Equal("welcome", rows[1].Key)
	s.Equal("Willkommen", rows[1].Locales["de"].ValueString())
}
