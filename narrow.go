package translatable

import (
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translatable/data"
)

var translationType = reflect.TypeOf(data.Translation{})

type narrowStore struct {
	table     string
	modelType reflect.Type
}

func newNarrowStore(db *gorm.DB, o *DefinitionOptions, defaultTable string) (*narrowStore, error) {
	s := &narrowStore{table: defaultTable, modelType: translationType}

	if o.TranslationModel != nil {
		modelType := reflect.TypeOf(o.TranslationModel)
		for modelType.Kind() == reflect.Ptr {
			modelType = modelType.Elem()
		}

		if modelType.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %T", ErrInvalidTranslationModel, o.TranslationModel)
		}
		if _, ok := reflect.New(modelType).Interface().(data.Record); !ok {
			return nil, fmt.Errorf("%w: %T", ErrInvalidTranslationModel, o.TranslationModel)
		}

		stmt := &gorm.Statement{DB: db}
		err := stmt.Parse(reflect.New(modelType).Interface())
		if err != nil {
			return nil, fmt.Errorf("parse translation model: %w", err)
		}

		s.modelType = modelType
		s.table = stmt.Schema.Table
	}

	if o.Table != "" {
		s.table = o.Table
	}
	if s.table == "" {
		s.table = data.DefaultTranslationsTable
	}

	return s, nil
}

func (s *narrowStore) tableName() string {
	return s.table
}

func (s *narrowStore) newRecord() (any, *data.Translation) {
	rec := reflect.New(s.modelType).Interface()
	return rec, rec.(data.Record).TranslationRecord()
}

func (s *narrowStore) load(db *gorm.DB, _ *definition, owners []owner, locales []string) (map[string]localeValues, error) {
	out := make(map[string]localeValues, len(owners))
	if len(owners) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(owners))
	for _, o := range owners {
		ids = append(ids, o.id)
	}

	query := db.Table(s.table).
		Where("owner_type = ? AND owner_id IN ? AND is_archived = ?", owners[0].morphType, ids, false)
	if locales != nil {
		query = query.Where("locale IN ?", locales)
	}

	rows := reflect.New(reflect.SliceOf(s.modelType))
	err := query.Find(rows.Interface()).Error
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	rows = rows.Elem()
	for i := range rows.Len() {
		rec := rows.Index(i).Addr().Interface().(data.Record).TranslationRecord()
		if rec.Value == nil {
			continue
		}

		byLocale := out[rec.OwnerID]
		if byLocale == nil {
			byLocale = make(localeValues)
			out[rec.OwnerID] = byLocale
		}
		if byLocale[rec.Locale] == nil {
			byLocale[rec.Locale] = make(map[string]string)
		}
		byLocale[rec.Locale][rec.Attribute] = *rec.Value
	}

	return out, nil
}

// save writes one row per attribute. Empty values are skipped rather than stored as blank rows.
func (s *narrowStore) save(
	db *gorm.DB,
	_ *definition,
	o owner,
	locale string,
	values map[string]string,
) (map[string]string, []*TranslationCreated, error) {
	written := make(map[string]string, len(values))
	var created []*TranslationCreated

	for _, attribute := range sortedKeys(values) {
		value := values[attribute]
		if value == "" {
			continue
		}

		update := func() (int64, error) {
			model, _ := s.newRecord()
			res := db.Model(model).Table(s.table).
				Where("owner_type = ? AND owner_id = ? AND attribute = ? AND locale = ?", o.morphType, o.id, attribute, locale).
				Updates(map[string]any{"value": value, "is_archived": false})
			return res.RowsAffected, res.Error
		}

		affected, err := update()
		if err != nil {
			return written, created, fmt.Errorf("update %s translation: %w", attribute, err)
		}

		if affected > 0 {
			written[attribute] = value
			continue
		}

		rec, base := s.newRecord()
		base.OwnerType = o.morphType
		base.OwnerID = o.id
		base.Attribute = attribute
		base.Locale = locale
		base.SetValue(value)

		inserted, err := insertOrUpdate(db, func(tx *gorm.DB) error {
			return tx.Table(s.table).Create(rec).Error
		}, update)
		if err != nil {
			return written, created, fmt.Errorf("create %s translation: %w", attribute, err)
		}

		written[attribute] = value
		if !inserted {
			continue
		}

		created = append(created, &TranslationCreated{
			Table:     s.table,
			OwnerType: o.morphType,
			OwnerID:   o.id,
			Locale:    locale,
			Values:    map[string]string{attribute: value},
			Record:    rec,
		})
	}

	return written, created, nil
}

func (s *narrowStore) remove(db *gorm.DB, _ *definition, o owner) error {
	model, _ := s.newRecord()
	err := db.Table(s.table).
		Where("owner_type = ? AND owner_id = ?", o.morphType, o.id).
		Delete(model).Error
	if err != nil {
		return fmt.Errorf("delete translations: %w", err)
	}
	return nil
}

func (s *narrowStore) archive(db *gorm.DB, _ *definition, o owner, attribute, locale string) (int64, error) {
	model, _ := s.newRecord()
	res := db.Model(model).Table(s.table).
		Where("owner_type = ? AND owner_id = ? AND attribute = ? AND locale = ? AND is_archived = ?",
			o.morphType, o.id, attribute, locale, false).
		Update("is_archived", true)
	if res.Error != nil {
		return 0, fmt.Errorf("archive %s translation: %w", attribute, res.Error)
	}
	return res.RowsAffected, nil
}

// ownerPredicate correlates rows of table with the entity table on owner and attribute.
func (s *narrowStore) ownerPredicate(def *definition, table, attribute string) (string, []any) {
	return "? = ? AND ? = CAST(? AS VARCHAR(64)) AND ? = ? AND ? = ?", []any{
		clause.Column{Table: table, Name: "owner_type"}, def.morphType,
		clause.Column{Table: table, Name: "owner_id"}, clause.Column{Table: def.table, Name: def.primary.DBName},
		clause.Column{Table: table, Name: "attribute"}, attribute,
		clause.Column{Table: table, Name: "is_archived"}, false,
	}
}

func (s *narrowStore) matches(def *definition, attribute, locale, operator string, value any) clause.Expression {
	sql, vars := s.ownerPredicate(def, s.table, attribute)

	sql = "EXISTS (SELECT 1 FROM ? WHERE " + sql
	vars = append([]any{clause.Table{Name: s.table}}, vars...)

	if locale != "" {
		sql += " AND ? = ?"
		vars = append(vars, clause.Column{Table: s.table, Name: "locale"}, locale)
	}

	sql += " AND ? " + operator + " ?)"
	vars = append(vars, clause.Column{Table: s.table, Name: "value"}, value)

	return clause.Expr{SQL: sql, Vars: vars}
}

func (s *narrowStore) hasValue(def *definition, attribute, locale string, negate bool) clause.Expression {
	sql, vars := s.ownerPredicate(def, s.table, attribute)

	vars = append([]any{clause.Table{Name: s.table}}, vars...)
	vars = append(vars, clause.Column{Table: s.table, Name: "locale"}, locale)

	return clause.Expr{
		SQL:  existsKeyword(negate) + " (SELECT 1 FROM ? WHERE " + sql + " AND ? = ?)",
		Vars: vars,
	}
}

func (s *narrowStore) join(def *definition, attribute, locale, alias string) (string, []any, clause.Column) {
	sql, vars := s.ownerPredicate(def, alias, attribute)

	vars = append([]any{clause.Table{Name: s.table, Alias: alias}}, vars...)
	vars = append(vars, clause.Column{Table: alias, Name: "locale"}, locale)

	return "LEFT JOIN ? ON " + sql + " AND ? = ?", vars, clause.Column{Table: alias, Name: "value"}
}
