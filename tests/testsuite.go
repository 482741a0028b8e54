package tests

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pitabwire/translatable/datastore"
)

const (
	DefaultRandomStringLength = 8

	// EnvPostgres enables the postgres runs of every database test when set to true.
	EnvPostgres = "TRANSLATABLE_TEST_POSTGRES"
)

// Database is one fresh, migrated database a test case runs against.
type Database struct {
	Name    string
	DB      *gorm.DB
	Queries *datastore.QueryLog
}

type BaseTestSuite struct {
	suite.Suite

	postgres *postgresResource
}

func (bs *BaseTestSuite) SetupSuite() {
	enabled, _ := strconv.ParseBool(os.Getenv(EnvPostgres))
	if !enabled {
		return
	}

	ctx := context.Background()
	pg, err := startPostgres(ctx)
	bs.Require().NoError(err, "could not start postgres container")
	bs.postgres = pg
}

func (bs *BaseTestSuite) TearDownSuite() {
	if bs.postgres != nil {
		bs.postgres.Close(context.Background())
	}
}

// WithTestDatabases runs testFn as a subtest per available database, each freshly migrated with models.
func (bs *BaseTestSuite) WithTestDatabases(
	t *testing.T,
	models []any,
	testFn func(t *testing.T, db *Database),
) {
	drivers := []string{"sqlite"}
	if bs.postgres != nil {
		drivers = append(drivers, "postgres")
	}

	for _, driver := range drivers {
		t.Run(driver, func(tt *testing.T) {
			db := bs.openDatabase(tt, driver)
			require.NoError(tt, datastore.Migrate(tt.Context(), db.DB, models...))
			db.Queries.Reset()
			testFn(tt, db)
		})
	}
}

func (bs *BaseTestSuite) openDatabase(t *testing.T, driver string) *Database {
	ctx := t.Context()
	queries := datastore.NewQueryLog(nil)

	var (
		db  *gorm.DB
		err error
	)

	switch driver {
	case "postgres":
		var dsn string
		dsn, err = bs.postgres.RandomisedDS(ctx, util.RandomAlphaNumericString(DefaultRandomStringLength))
		require.NoError(t, err)
		db, err = datastore.Open(ctx, dsn, datastore.WithLogger(queries))
	default:
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", util.IDString())
		db, err = datastore.OpenDialector(ctx, sqlite.Open(dsn), datastore.WithLogger(queries))
		if err == nil {
			sqlDB, dbErr := db.DB()
			require.NoError(t, dbErr)
			sqlDB.SetMaxOpenConns(1)
		}
	}
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, dbErr := db.DB()
		if dbErr == nil {
			util.CloseAndLogOnError(context.Background(), sqlDB)
		}
	})

	return &Database{Name: driver, DB: db, Queries: queries}
}
