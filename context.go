package translatable

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

func (c contextKey) String() string {
	return "translatable/" + string(c)
}

const ctxKeyDB = contextKey("dbKey")

// ContextWithDB makes translator storage calls made with ctx run on db, typically a transaction.
func ContextWithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, ctxKeyDB, db)
}

// DBFromContext returns the database attached by ContextWithDB, if any.
func DBFromContext(ctx context.Context) *gorm.DB {
	db, ok := ctx.Value(ctxKeyDB).(*gorm.DB)
	if !ok {
		return nil
	}
	return db
}
