package translationmanager_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	translationmanager "github.com/pitabwire/translation-manager"
	"github.com/pitabwire/translation-manager/config"
	"github.com/pitabwire/translation-manager/container"
	"github.com/pitabwire/translation-manager/foundation"
	"github.com/pitabwire/translation-manager/security"
)

const testSecret = "translation-manager-secret"

// fixture is an application on a temporary sqlite database and an in-memory lang disk,
// with the translation manager registered and its table migrated.
type fixture struct {
	dir      string
	out      *bytes.Buffer
	disk     *blob.Bucket
	app      *foundation.Application
	provider *translationmanager.ServiceProvider
}

func newFixture(t *testing.T, repo *config.Repository, provider *translationmanager.ServiceProvider) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	require.NoError(t, err)
	cfg.BasePathValue = dir
	cfg.DatabasePrimaryURL = []string{"sqlite://" + filepath.Join(dir, "translations.db")}
	cfg.AuthJWTSecret = testSecret
	cfg.AuthJWTIssuer = ""
	cfg.AuthJWTAudience = ""

	if repo == nil {
		repo = config.NewRepository(nil)
	}
	if provider == nil {
		provider = translationmanager.NewServiceProvider()
	}

	f := &fixture{
		dir:      dir,
		out:      &bytes.Buffer{},
		disk:     memblob.OpenBucket(nil),
		provider: provider,
	}

	ctx := context.Background()
	f.app, err = foundation.New(ctx,
		foundation.WithConfig(&cfg),
		foundation.WithRepository(repo),
		foundation.WithLangDisk(f.disk),
		foundation.WithOutput(f.out),
		foundation.WithProviders(provider),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		f.app.Close(ctx)
		_ = f.disk.Close()
	})

	require.NoError(t, f.app.Register(ctx))
	_, err = f.app.Pool().Migrate(ctx, provider.MigrationSource())
	require.NoError(t, err)
	return f
}

func (f *fixture) manager(t *testing.T) *translationmanager.Manager {
	t.Helper()

	m, err := container.Resolve[*translationmanager.Manager](
		context.Background(), f.app.Container(), translationmanager.ServiceID)
	require.NoError(t, err)
	return m
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, f.disk.WriteAll(context.Background(), name, []byte(content), nil))
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	content, err := f.disk.ReadAll(context.Background(), name)
	require.NoError(t, err)
	return string(content)
}

func bearerToken(t *testing.T) string {
	t.Helper()

	claims := &security.AuthenticationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "translator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}
