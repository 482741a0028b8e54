package datastore

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/translatable/data"
)

// Migrate creates the shared translations table plus any supplied models.
// Concurrent startups racing on table creation are tolerated.
func Migrate(ctx context.Context, db *gorm.DB, models ...any) error {
	if db == nil {
		return errors.New("migrate datastore: no database configured")
	}

	migrator := db.WithContext(ctx).Migrator()

	err := migrator.AutoMigrate(&data.Translation{})
	if err != nil {
		if !isRelationAlreadyExistsErr(err) {
			util.Log(ctx).WithError(err).Error("MigrateDatastore -- couldn't create translations table")
			return err
		}

		util.Log(ctx).WithError(err).Warn("MigrateDatastore -- translations table already created concurrently")
	}

	if len(models) == 0 {
		return nil
	}

	err = migrator.AutoMigrate(models...)
	if err != nil {
		util.Log(ctx).WithError(err).Error("MigrateDatastore -- couldn't auto migrate")
		return err
	}
	return nil
}

func isRelationAlreadyExistsErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07"
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
