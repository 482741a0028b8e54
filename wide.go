package translatable

import (
	"fmt"
	"maps"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// wideStore keeps one row per (entity, locale) with a column per translatable attribute,
// plus locale, created_at and updated_at.
type wideStore struct {
	table      string
	foreignKey string
}

func newWideStore(db *gorm.DB, sch *schema.Schema, o *DefinitionOptions) (*wideStore, error) {
	singular := singularTable(sch.Table)
	s := &wideStore{
		table:      singular + "_translations",
		foreignKey: singular + "_id",
	}

	if o.TranslationModel != nil {
		stmt := &gorm.Statement{DB: db}
		err := stmt.Parse(o.TranslationModel)
		if err != nil {
			return nil, fmt.Errorf("parse translation model: %w", err)
		}
		s.table = stmt.Schema.Table
	}

	if o.Table != "" {
		s.table = o.Table
	}
	if o.ForeignKey != "" {
		s.foreignKey = o.ForeignKey
	}

	return s, nil
}

func (s *wideStore) tableName() string {
	return s.table
}

func (s *wideStore) load(db *gorm.DB, def *definition, owners []owner, locales []string) (map[string]localeValues, error) {
	out := make(map[string]localeValues, len(owners))
	if len(owners) == 0 {
		return out, nil
	}

	keys := make([]any, 0, len(owners))
	for _, o := range owners {
		keys = append(keys, o.key)
	}

	query := db.Table(s.table).Where(clause.IN{Column: clause.Column{Name: s.foreignKey}, Values: keys})
	if locales != nil {
		query = query.Where("locale IN ?", locales)
	}

	var rows []map[string]any
	err := query.Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	for _, row := range rows {
		id, ok := stringify(row[s.foreignKey])
		if !ok {
			continue
		}
		locale, ok := stringify(row["locale"])
		if !ok {
			continue
		}

		byLocale := out[id]
		if byLocale == nil {
			byLocale = make(localeValues)
			out[id] = byLocale
		}

		values := make(map[string]string, len(def.attributes))
		for _, attribute := range def.attributes {
			v, present := stringify(row[def.column(attribute)])
			if present {
				values[attribute] = v
			}
		}
		byLocale[locale] = values
	}

	return out, nil
}

// save coalesces every attribute of one locale into a single row write.
func (s *wideStore) save(
	db *gorm.DB,
	def *definition,
	o owner,
	locale string,
	values map[string]string,
) (map[string]string, []*TranslationCreated, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}

	now := time.Now()
	updates := make(map[string]any, len(values)+1)
	for _, attribute := range sortedKeys(values) {
		updates[def.column(attribute)] = values[attribute]
	}
	updates["updated_at"] = now

	update := func() (int64, error) {
		res := db.Table(s.table).
			Where(clause.Eq{Column: clause.Column{Name: s.foreignKey}, Value: o.key}).
			Where(clause.Eq{Column: clause.Column{Name: "locale"}, Value: locale}).
			Updates(updates)
		return res.RowsAffected, res.Error
	}

	affected, err := update()
	if err != nil {
		return nil, nil, fmt.Errorf("update %s translations: %w", locale, err)
	}

	written := maps.Clone(values)
	if affected > 0 {
		return written, nil, nil
	}

	row := maps.Clone(updates)
	row[s.foreignKey] = o.key
	row["locale"] = locale
	row["created_at"] = now

	inserted, err := insertOrUpdate(db, func(tx *gorm.DB) error {
		return tx.Table(s.table).Create(row).Error
	}, update)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s translations: %w", locale, err)
	}
	if !inserted {
		return written, nil, nil
	}

	return written, []*TranslationCreated{{
		Table:     s.table,
		OwnerType: o.morphType,
		OwnerID:   o.id,
		Locale:    locale,
		Values:    maps.Clone(values),
		Record:    row,
	}}, nil
}

func (s *wideStore) remove(db *gorm.DB, _ *definition, o owner) error {
	err := db.Exec("DELETE FROM ? WHERE ? = ?",
		clause.Table{Name: s.table}, clause.Column{Name: s.foreignKey}, o.key).Error
	if err != nil {
		return fmt.Errorf("delete translations: %w", err)
	}
	return nil
}

func (s *wideStore) matches(def *definition, attribute, locale, operator string, value any) clause.Expression {
	sql := "EXISTS (SELECT 1 FROM ? WHERE ? = ?"
	vars := []any{
		clause.Table{Name: s.table},
		clause.Column{Table: s.table, Name: s.foreignKey}, clause.Column{Table: def.table, Name: def.primary.DBName},
	}

	if locale != "" {
		sql += " AND ? = ?"
		vars = append(vars, clause.Column{Table: s.table, Name: "locale"}, locale)
	}

	sql += " AND ? " + operator + " ?)"
	vars = append(vars, clause.Column{Table: s.table, Name: def.column(attribute)}, value)

	return clause.Expr{SQL: sql, Vars: vars}
}

func (s *wideStore) hasValue(def *definition, attribute, locale string, negate bool) clause.Expression {
	return clause.Expr{
		SQL: existsKeyword(negate) + " (SELECT 1 FROM ? WHERE ? = ? AND ? = ? AND ? IS NOT NULL)",
		Vars: []any{
			clause.Table{Name: s.table},
			clause.Column{Table: s.table, Name: s.foreignKey}, clause.Column{Table: def.table, Name: def.primary.DBName},
			clause.Column{Table: s.table, Name: "locale"}, locale,
			clause.Column{Table: s.table, Name: def.column(attribute)},
		},
	}
}

func (s *wideStore) join(def *definition, attribute, locale, alias string) (string, []any, clause.Column) {
	return "LEFT JOIN ? ON ? = ? AND ? = ?", []any{
		clause.Table{Name: s.table, Alias: alias},
		clause.Column{Table: alias, Name: s.foreignKey}, clause.Column{Table: def.table, Name: def.primary.DBName},
		clause.Column{Table: alias, Name: "locale"}, locale,
	}, clause.Column{Table: alias, Name: def.column(attribute)}
}
