package translationmanager_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"gocloud.dev/blob/memblob"

	translationmanager "github.com/pitabwire/translation-manager"
	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/foundation"
	"github.com/pitabwire/translation-manager/frametests/deps/testpostgres"
)

// PostgresSuite runs the manager against a real PostgreSQL server.
type PostgresSuite struct {
	suite.Suite
	pg *testpostgres.Container
}

func TestPostgresSuite(t *testing.T) {
	if os.Getenv(testpostgres.EnableEnv) == "" {
		t.Skipf("set %s to run the postgres integration tests", testpostgres.EnableEnv)
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	pg, err := testpostgres.Run(s.T().Context())
	s.Require().NoError(err)
	s.pg = pg
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pg != nil {
		s.Require().NoError(s.pg.Terminate(context.Background()))
	}
}

func (s *PostgresSuite) TestManagerOnPostgres() {
	ctx := context.Background()

	dsn, cleanup, err := s.pg.RandomisedDSN(ctx, "manager")
	s.Require().NoError(err)
	defer cleanup(ctx)

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)
	cfg.BasePathValue = s.T().TempDir()
	cfg.DatabasePrimaryURL = []string{dsn}

	disk := memblob.OpenBucket(nil)
	provider := translationmanager.NewServiceProvider()
	app, err := foundation.New(ctx,
		foundation.WithConfig(&cfg),
		foundation.WithLangDisk(disk),
		foundation.WithOutput(&bytes.Buffer{}),
		foundation.WithProviders(provider),
	)
	s.Require().NoError(err)
	defer app.Close(ctx)

	s.Require().NoError(app.Register(ctx))
	applied, err := app.Migrate(ctx, provider.MigrationSource())
	s.Require().NoError(err)
	s.Equal(1, applied)

	m, err := container.Resolve[*translationmanager.Manager](ctx, app.Container(), translationmanager.ServiceID)
	s.Require().NoError(err)

	s.Require().NoError(disk.WriteAll(ctx, "en/messages.json", []byte(`{"welcome": "Welcome"}`), nil))
	counter, err := m.ImportTranslations(ctx, false, "")
	s.Require().NoError(err)
	s.Equal(1, counter)

	_, err = m.UpdateValue(ctx, "en", "messages", "welcome", "Welcome back")
	s.Require().NoError(err)
	s.Require().NoError(m.ExportTranslations(ctx, "messages"))

	content, err := disk.ReadAll(ctx, "en/messages.json")
	s.Require().NoError(err)
	s.Contains(string(content), "Welcome back")

	groups, err := m.Groups(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"messages"}, groups)
}
