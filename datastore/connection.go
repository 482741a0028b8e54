package datastore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to postgres through a traced pgx pool and returns the gorm handle
// the translatable plugin is installed on.
func Open(ctx context.Context, dsn string, opts ...Option) (*gorm.DB, error) {
	poolOpts := defaultOptions(opts...)

	cleanedPostgresqlDSN, err := cleanPostgresDSN(dsn)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(cleanedPostgresqlDSN)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if poolOpts.MaxOpen > 0 {
		cfg.MaxConns = int32(poolOpts.MaxOpen) //nolint:gosec // bounded by configuration
	}
	if poolOpts.MaxIdle > 0 {
		cfg.MinConns = int32(poolOpts.MaxIdle) //nolint:gosec // bounded by configuration
	}
	if poolOpts.MaxLifetime > 0 {
		cfg.MaxConnLifetime = poolOpts.MaxLifetime
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

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

	return OpenDialector(ctx,
		postgres.New(postgres.Config{
			Conn:                 conn,
			PreferSimpleProtocol: poolOpts.PreferSimpleProtocol,
		}),
		opts...,
	)
}

// OpenDialector opens gorm over an already built dialector with the package logger and defaults.
func OpenDialector(ctx context.Context, dialector gorm.Dialector, opts ...Option) (*gorm.DB, error) {
	o := defaultOptions(opts...)

	logger := o.Logger
	if logger == nil {
		logger = NewLogger(ctx, o.TraceConfig)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger,
		SkipDefaultTransaction: o.SkipDefaultTransaction,
	})
	if err != nil {
		return nil, err
	}

	return gormDB, nil
}

// cleanPostgresDSN checks if the input is already a DSN, otherwise converts a PostgreSQL URL to DSN.
func cleanPostgresDSN(pgString string) (string, error) {
	trimmed := strings.TrimSpace(pgString)
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
	port := u.Port()
	if port == "" {
		port = "5432"
	}

	dsn := []string{
		"host=" + u.Hostname(),
		"port=" + port,
		"user=" + user,
		"password=" + password,
		"dbname=" + strings.TrimPrefix(u.Path, "/"),
	}
	for k, vals := range u.Query() {
		for _, v := range vals {
			dsn = append(dsn, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return strings.Join(dsn, " "), nil
}
