package tests

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
	PostgresqlDBImage = "postgres:16-alpine"

	DBUser     = "translatable"
	DBPassword = "tr@nsl4te"
	DBName     = "translatable_test"

	// OccurrenceValue is the number of occurrences to wait for in the log pattern.
	OccurrenceValue = 2
	// TimeoutInSeconds is the timeout duration for container startup in seconds.
	TimeoutInSeconds = 60
)

type postgresResource struct {
	container *tcPostgres.PostgresContainer
	uri       string
}

func startPostgres(ctx context.Context) (*postgresResource, error) {
	pgContainer, err := tcPostgres.Run(ctx, PostgresqlDBImage,
		tcPostgres.WithDatabase(DBName),
		tcPostgres.WithUsername(DBUser),
		tcPostgres.WithPassword(DBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(OccurrenceValue).
				WithStartupTimeout(TimeoutInSeconds*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	uri, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}

	return &postgresResource{container: pgContainer, uri: uri}, nil
}

func (r *postgresResource) Close(ctx context.Context) {
	_ = r.container.Terminate(ctx)
}

// RandomisedDS creates a database private to the caller and returns its connection string.
func (r *postgresResource) RandomisedDS(ctx context.Context, randomisedPrefix string) (string, error) {
	connectionURI, err := url.Parse(r.uri)
	if err != nil {
		return "", err
	}

	newDatabaseName := suffixedDatabaseName(connectionURI, randomisedPrefix)

	connectionURI, err = ensureDatabaseExists(ctx, connectionURI, newDatabaseName)
	if err != nil {
		return "", err
	}

	return connectionURI.String(), nil
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
		if !errors.As(err, &pgErr) || (pgErr.Code != "42P04" && pgErr.Code != "23505") {
			return postgresURI, err
		}
	}

	withDB := *postgresURI
	withDB.Path = newDBName
	return &withDB, nil
}

var nonIdentifierChars = regexp.MustCompile(`[^a-z0-9_]`)

// suffixedDatabaseName generates a valid PostgreSQL database name from the given URL path and random prefix.
func suffixedDatabaseName(currentURI *url.URL, randomnesPrefix string) string {
	pathPart := strings.ReplaceAll(currentURI.Path, "/", "")
	if pathPart == "" {
		pathPart = "db"
	}

	name := nonIdentifierChars.ReplaceAllString(strings.ToLower(randomnesPrefix+"_"+pathPart), "_")
	if name[0] >= '0' && name[0] <= '9' {
		name = "db_" + name
	}
	if len(name) > postgreSQLMaxIdentifiersCharLength {
		name = name[:postgreSQLMaxIdentifiersCharLength]
	}
	return name
}
