package translatable

import (
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translatable/data"
)

// localeValues maps locale to attribute to value.
type localeValues map[string]map[string]string

// store is one translation row layout. Callers pass a fresh session bound to the
// right connection and context.
type store interface {
	tableName() string

	// load returns owner id -> locale -> attribute -> value. A nil locales slice loads every locale.
	load(db *gorm.DB, def *definition, owners []owner, locales []string) (map[string]localeValues, error)
	// save writes values for one locale and reports what was written and which rows are new.
	save(db *gorm.DB, def *definition, o owner, locale string, values map[string]string) (map[string]string, []*TranslationCreated, error)
	remove(db *gorm.DB, def *definition, o owner) error

	// matches builds an EXISTS predicate against translation rows. An empty locale matches any locale.
	matches(def *definition, attribute, locale, operator string, value any) clause.Expression
	// hasValue builds an [NOT] EXISTS predicate for an active value of attribute in locale.
	hasValue(def *definition, attribute, locale string, negate bool) clause.Expression
	// join returns a LEFT JOIN exposing attribute in locale under alias, and the joined value column.
	join(def *definition, attribute, locale, alias string) (string, []any, clause.Column)
}

// archiver is implemented by layouts with an archived flag.
type archiver interface {
	archive(db *gorm.DB, def *definition, o owner, attribute, locale string) (int64, error)
}

var allowedOperators = map[string]string{
	"=":        "=",
	"!=":       "<>",
	"<>":       "<>",
	">":        ">",
	"<":        "<",
	">=":       ">=",
	"<=":       "<=",
	"LIKE":     "LIKE",
	"NOT LIKE": "NOT LIKE",
	"ILIKE":    "ILIKE",
}

func normalizeOperator(op string) (string, error) {
	if op == "" {
		return "=", nil
	}

	normalized, ok := allowedOperators[strings.ToUpper(strings.Join(strings.Fields(op), " "))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	return normalized, nil
}

// insertOrUpdate runs insert in a nested transaction, a savepoint when one is already open, so a
// failed insert leaves the enclosing transaction usable. A duplicate key means another writer created
// the row after update missed it; update then runs again. It reports whether insert created the row.
func insertOrUpdate(db *gorm.DB, insert func(tx *gorm.DB) error, update func() (int64, error)) (bool, error) {
	err := db.Transaction(insert)
	if err == nil {
		return true, nil
	}
	if !data.ErrorIsDuplicateKey(err) {
		return false, err
	}

	affected, updateErr := update()
	if updateErr != nil {
		return false, updateErr
	}
	if affected == 0 {
		return false, err
	}
	return false, nil
}

func existsKeyword(negate bool) string {
	if negate {
		return "NOT EXISTS"
	}
	return "EXISTS"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func stringify(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case *string:
		if value == nil {
			return "", false
		}
		return *value, true
	case []byte:
		return string(value), true
	case fmt.Stringer:
		return value.String(), true
	default:
		return fmt.Sprint(value), true
	}
}
