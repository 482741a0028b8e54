package translatable

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translatable/data"
)

// ResolveBinding loads into dest the entity whose field equals value, for example a slug taken
// from a URL. Translatable fields are matched in the current locale first. Failing that, the
// entity's own column is accepted only from entities with no active translation in that locale,
// so a stale fallback value never shadows an explicit translation.
func (p *Plugin) ResolveBinding(db *gorm.DB, dest Entity, field string, value any) error {
	def, err := p.definitionFor(dest)
	if err != nil {
		return err
	}

	if !def.isTranslatable(field) {
		f := def.schema.LookUpField(field)
		if f == nil || f.DBName == "" {
			return fmt.Errorf("resolve binding: unknown field %q of %s", field, def.schema.Name)
		}
		return db.Session(&gorm.Session{}).
			Where(clause.Eq{Column: clause.Column{Table: def.table, Name: f.DBName}, Value: value}).
			First(dest).Error
	}

	ctx := db.Statement.Context
	locale := p.resolver.CurrentLocale(ctx)

	err = db.Session(&gorm.Session{}).
		Scopes(p.WhereTranslatable(dest, field, value, InLocale(locale))).
		First(dest).Error
	if err == nil || !data.ErrorIsNoRows(err) {
		return err
	}

	if def.isFallback(ctx, p.resolver, locale) {
		return err
	}

	return db.Session(&gorm.Session{}).
		Where(clause.Eq{Column: clause.Column{Table: def.table, Name: def.column(field)}, Value: value}).
		Where(def.store.hasValue(def, field, locale, true)).
		First(dest).Error
}
