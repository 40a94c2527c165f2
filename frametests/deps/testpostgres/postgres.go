// Package testpostgres runs a throwaway PostgreSQL server for integration tests.
package testpostgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgreSQLMaxIdentifiersCharLength = 60

	// PostgresqlDBImage is the PostgreSQL Image.
	PostgresqlDBImage = "postgres:latest"

	// DBUser is the default username for the PostgreSQL test database.
	DBUser = "translations"
	// DBPassword is the default password for the PostgreSQL test database.
	DBPassword = "tr@nsl8"
	// DBName is the default database name for the PostgreSQL test database.
	DBName = "translations_test"

	// EnableEnv must be set for integration tests to start a container.
	EnableEnv = "TRANSLATION_MANAGER_POSTGRES_TESTS"

	occurrenceValue  = 2
	timeoutInSeconds = 60
)

// Container is a running PostgreSQL testcontainer.
type Container struct {
	container *tcPostgres.PostgresContainer
	dsn       string
}

// Run starts a PostgreSQL container holding an empty DBName database.
func Run(ctx context.Context, customizers ...testcontainers.ContainerCustomizer) (*Container, error) {
	opts := append([]testcontainers.ContainerCustomizer{
		tcPostgres.WithDatabase(DBName),
		tcPostgres.WithUsername(DBUser),
		tcPostgres.WithPassword(DBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(occurrenceValue).
				WithStartupTimeout(timeoutInSeconds * time.Second)),
	}, customizers...)

	pgContainer, err := tcPostgres.Run(ctx, PostgresqlDBImage, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	return &Container{container: pgContainer, dsn: dsn}, nil
}

// DSN is the connection string of the DBName database.
func (c *Container) DSN() string {
	return c.dsn
}

// Terminate stops and removes the container.
func (c *Container) Terminate(_ context.Context) error {
	return testcontainers.TerminateContainer(c.container)
}

// RandomisedDSN prepares a database named after prefix on the server and returns its
// connection string with a function clearing its schema.
// Calling it twice with the same prefix returns the same database.
func (c *Container) RandomisedDSN(ctx context.Context, prefix string) (string, func(context.Context), error) {
	connectionURI, err := url.Parse(c.dsn)
	if err != nil {
		return "", func(_ context.Context) {}, err
	}

	newDatabaseName := suffixedDatabaseName(connectionURI, prefix)

	connectionURI, err = ensureDatabaseExists(ctx, connectionURI, newDatabaseName)
	if err != nil {
		return "", func(_ context.Context) {}, err
	}

	dsn := connectionURI.String()
	return dsn, func(ctx context.Context) {
		_ = clearDatabase(ctx, dsn)
	}, nil
}

// ensureDatabaseExists checks if a specific database exists and creates it if it does not.
func ensureDatabaseExists(ctx context.Context, postgresURI *url.URL, newDBName string) (*url.URL, error) {
	pool, err := pgxpool.New(ctx, postgresURI.String())
	if err != nil {
		return postgresURI, err
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		return postgresURI, err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s;`, newDBName))
	if err != nil {
		var pgErr *pgconn.PgError
		ok := errors.As(err, &pgErr)
		if !ok ||
			(pgErr.Code != "42P04" && pgErr.Code != "23505" &&
				(pgErr.Code != "XX000" || !strings.Contains(pgErr.Message, "tuple concurrently updated"))) {
			return postgresURI, err
		}
	}

	dbUserName := postgresURI.User.Username()
	_, err = pool.Exec(ctx, fmt.Sprintf(`GRANT ALL PRIVILEGES ON DATABASE %s TO %s;`, newDBName, dbUserName))
	if err != nil {
		var pgErr *pgconn.PgError
		ok := errors.As(err, &pgErr)
		if !ok || pgErr.Code != "XX000" || !strings.Contains(pgErr.Message, "tuple concurrently updated") {
			return postgresURI, err
		}
	}

	postgresURI.Path = newDBName
	return postgresURI, nil
}

func clearDatabase(ctx context.Context, connectionString string) error {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	return err
}

var invalidIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// suffixedDatabaseName derives a valid PostgreSQL database name from the URL path and prefix.
func suffixedDatabaseName(currentURI *url.URL, prefix string) string {
	pathPart := strings.ReplaceAll(currentURI.Path, "/", "")
	if pathPart == "" {
		pathPart = "db"
	}

	// PostgreSQL identifiers are limited to 63 bytes.
	maxPathLength := postgreSQLMaxIdentifiersCharLength - len(prefix)
	if maxPathLength > 0 && len(pathPart) > maxPathLength {
		pathPart = pathPart[:maxPathLength]
	}

	result := invalidIdentifierChars.ReplaceAllString(fmt.Sprintf("%s_%s", pathPart, prefix), "_")
	return strings.ToLower(result)
}
