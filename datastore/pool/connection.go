package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/pitabwire/translation-manager/data"
)

var ErrUnsupportedDSN = errors.New("unsupported database dsn")

const sqliteDriverName = "sqlite"

func (s *pool) createConnection(ctx context.Context, dsn string, poolOpts *Options) (*gorm.DB, error) {
	source := data.DSN(dsn)

	gormCfg := &gorm.Config{
		SkipDefaultTransaction: poolOpts.SkipDefaultTransaction,
	}

	switch {
	case source.IsSQLite():
		gormCfg.Logger = newQueryLogger(ctx, "sqlite", poolOpts.TraceConfig)
		return openSQLite(source, poolOpts, gormCfg)
	case source.IsPostgres():
		gormCfg.Logger = newQueryLogger(ctx, "postgres", poolOpts.TraceConfig)
		return openPostgres(ctx, dsn, poolOpts, gormCfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, redact(dsn))
	}
}

func openPostgres(ctx context.Context, dsn string, poolOpts *Options, gormCfg *gorm.Config) (*gorm.DB, error) {
	cleanedPostgresqlDSN, err := cleanPostgresDSN(dsn)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(cleanedPostgresqlDSN)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	if poolOpts.MaxOpen > 0 {
		cfg.MaxConns = int32(poolOpts.MaxOpen) //nolint:gosec // bounded by configuration
	}
	if poolOpts.MaxLifetime > 0 {
		cfg.MaxConnLifetime = poolOpts.MaxLifetime
	}

	pgxPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	err = otelpgx.RecordStats(pgxPool)
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("unable to record database stats: %w", err)
	}

	conn := stdlib.OpenDBFromPool(pgxPool)
	applyPoolLimits(conn, poolOpts)

	return gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 conn,
			PreferSimpleProtocol: poolOpts.PreferSimpleProtocol,
		}),
		gormCfg,
	)
}

func openSQLite(source data.DSN, poolOpts *Options, gormCfg *gorm.Config) (*gorm.DB, error) {
	conn, err := sql.Open(sqliteDriverName, source.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// sqlite allows a single writer; one connection keeps transactions and plain queries from locking each other out.
	conn.SetMaxOpenConns(1)
	if poolOpts.MaxLifetime > 0 {
		conn.SetConnMaxLifetime(poolOpts.MaxLifetime)
	}

	return gorm.Open(
		sqlite.New(sqlite.Config{
			DriverName: sqliteDriverName,
			Conn:       conn,
		}),
		gormCfg,
	)
}

func applyPoolLimits(conn *sql.DB, poolOpts *Options) {
	if poolOpts.MaxOpen > 0 {
		conn.SetMaxOpenConns(poolOpts.MaxOpen)
	}
	if poolOpts.MaxIdle > 0 {
		conn.SetMaxIdleConns(poolOpts.MaxIdle)
	}
	if poolOpts.MaxLifetime > 0 {
		conn.SetConnMaxLifetime(poolOpts.MaxLifetime)
	}
}

func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// cleanPostgresDSN checks if the input is already a DSN, otherwise converts a PostgreSQL URL to DSN.
func cleanPostgresDSN(pgString string) (string, error) {
	trimmed := strings.TrimSpace(pgString)
	// Heuristic: if it contains '=' and does not start with postgres:// or postgresql://, treat as DSN
	lower := strings.ToLower(trimmed)
	if strings.Contains(trimmed, "=") && !strings.HasPrefix(lower, "postgres://") &&
		!strings.HasPrefix(lower, "postgresql://") {
		return trimmed, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid scheme: %s", u.Scheme)
	}

	user := ""
	password := ""
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbname := strings.TrimPrefix(u.Path, "/")

	dsn := []string{
		"host=" + host,
		"port=" + port,
		"user=" + user,
		"password=" + password,
		"dbname=" + dbname,
	}
	for k, vals := range u.Query() {
		for _, v := range vals {
			dsn = append(dsn, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return strings.Join(dsn, " "), nil
}
