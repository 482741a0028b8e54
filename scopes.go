package translatable

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption tunes a translated filter or sort.
type QueryOption func(*queryOptions)

type queryOptions struct {
	locale    string
	hasLocale bool
	operator  string
}

// InLocale restricts the filter or sort to one locale.
func InLocale(locale string) QueryOption {
	return func(o *queryOptions) {
		o.locale = locale
		o.hasLocale = true
	}
}

// WithOperator sets the comparison operator, "=" by default.
func WithOperator(operator string) QueryOption {
	return func(o *queryOptions) {
		o.operator = operator
	}
}

func newQueryOptions(opts ...QueryOption) *queryOptions {
	o := &queryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithoutTranslations skips eager loading translations for the query.
func WithoutTranslations() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Set(settingEagerLoad, eagerLoadSetting{disabled: true})
	}
}

// WithTranslations eager loads the given locales instead of the defaults, every locale when none are given.
func WithTranslations(locales ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Set(settingEagerLoad, eagerLoadSetting{locales: locales})
	}
}

// WhereTranslatable filters model rows by a translated value, ANDed with other conditions.
//
// Without InLocale the entity's own column or any locale may match. The fallback locale
// filters on the entity column, and separately stored fallback rows also match.
// Any other locale is a correlated EXISTS against the translation rows.
func (p *Plugin) WhereTranslatable(model any, attribute string, value any, opts ...QueryOption) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		expr, err := p.translatedCondition(db.Statement.Context, model, attribute, value, opts...)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return db.Where(expr)
	}
}

// OrWhereTranslatable is WhereTranslatable ORed with the previous conditions.
func (p *Plugin) OrWhereTranslatable(model any, attribute string, value any, opts ...QueryOption) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		expr, err := p.translatedCondition(db.Statement.Context, model, attribute, value, opts...)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return db.Or(expr)
	}
}

func (p *Plugin) translatedCondition(
	ctx context.Context,
	model any,
	attribute string,
	value any,
	opts ...QueryOption,
) (clause.Expression, error) {
	def, err := p.definitionFor(model)
	if err != nil {
		return nil, err
	}

	err = def.assertTranslatable(attribute)
	if err != nil {
		return nil, err
	}

	o := newQueryOptions(opts...)
	operator, err := normalizeOperator(o.operator)
	if err != nil {
		return nil, err
	}

	own := clause.Expr{
		SQL:  "? " + operator + " ?",
		Vars: []any{clause.Column{Table: def.table, Name: def.column(attribute)}, value},
	}

	if !o.hasLocale {
		return clause.Or(own, def.store.matches(def, attribute, "", operator, value)), nil
	}

	if def.isFallback(ctx, p.resolver, o.locale) {
		if def.fallback == FallbackMerged {
			return own, nil
		}
		return clause.Or(own, def.store.matches(def, attribute, o.locale, operator, value)), nil
	}

	return def.store.matches(def, attribute, o.locale, operator, value), nil
}

// OrderByTranslatable sorts model rows by a translated value, the current locale unless InLocale is given.
// Rows lacking the translation are kept. An existing column selection is preserved.
func (p *Plugin) OrderByTranslatable(model any, attribute, direction string, opts ...QueryOption) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		def, err := p.definitionFor(model)
		if err != nil {
			_ = db.AddError(err)
			return db
		}

		err = def.assertTranslatable(attribute)
		if err != nil {
			_ = db.AddError(err)
			return db
		}

		var desc bool
		switch strings.ToLower(strings.TrimSpace(direction)) {
		case "", "asc":
		case "desc":
			desc = true
		default:
			_ = db.AddError(fmt.Errorf("%w: %q", ErrInvalidSortDirection, direction))
			return db
		}

		ctx := db.Statement.Context
		o := newQueryOptions(opts...)
		locale := o.locale
		if !o.hasLocale || locale == "" {
			locale = p.resolver.CurrentLocale(ctx)
		}

		own := clause.Column{Table: def.table, Name: def.column(attribute)}
		fallback := def.isFallback(ctx, p.resolver, locale)
		if fallback && def.fallback == FallbackMerged {
			return db.Order(clause.OrderByColumn{Column: own, Desc: desc})
		}

		alias := "translatable_" + def.column(attribute) + "_" + aliasPart(locale) + "_sort"
		joinSQL, vars, valueColumn := def.store.join(def, attribute, locale, alias)
		if !hasJoinAlias(db, alias) {
			db = db.Joins(joinSQL, vars...)
		}

		if len(db.Statement.Selects) == 0 {
			db = db.Select(db.Statement.Quote(def.table) + ".*")
		}

		if fallback {
			coalesce := "COALESCE(" + db.Statement.Quote(valueColumn) + ", " + db.Statement.Quote(own) + ")"
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: coalesce, Raw: true}, Desc: desc})
		}

		return db.Order(clause.OrderByColumn{Column: valueColumn, Desc: desc})
	}
}

// aliasPart lowercases locale and replaces anything outside [a-z0-9] with an underscore.
func aliasPart(locale string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, locale)
}

func hasJoinAlias(db *gorm.DB, alias string) bool {
	for _, j := range db.Statement.Joins {
		for _, v := range j.Conds {
			if t, ok := v.(clause.Table); ok && t.Alias == alias {
				return true
			}
		}
	}
	return false
}
