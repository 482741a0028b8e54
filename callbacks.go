package translatable

import (
	"fmt"
	"reflect"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/translatable/telemetry"
)

const (
	callbackSave      = "translatable:save_translations"
	callbackDelete    = "translatable:delete_translations"
	callbackCapture   = "translatable:capture_deleted"
	callbackEagerLoad = "translatable:eager_load"

	settingEagerLoad     = "translatable:eager_load"
	settingDeletedOwners = "translatable:deleted_owners"
)

// eagerLoadSetting is stored on a statement by WithTranslations and WithoutTranslations.
type eagerLoadSetting struct {
	disabled bool
	locales  []string
}

func (p *Plugin) registerCallbacks(db *gorm.DB) error {
	err := db.Callback().Create().After("gorm:after_create").Register(callbackSave, p.saveTranslations)
	if err != nil {
		return err
	}

	err = db.Callback().Update().After("gorm:after_update").Register(callbackSave, p.saveTranslations)
	if err != nil {
		return err
	}

	err = db.Callback().Delete().Before("gorm:delete").Register(callbackCapture, p.captureDeletedOwners)
	if err != nil {
		return err
	}

	err = db.Callback().Delete().After("gorm:after_delete").Register(callbackDelete, p.deleteTranslations)
	if err != nil {
		return err
	}

	return db.Callback().Query().After("gorm:after_query").Register(callbackEagerLoad, p.eagerLoadTranslations)
}

type statementEntity struct {
	entity Entity
	value  reflect.Value
}

// statementEntities returns the registered entities a statement operated on.
func (p *Plugin) statementEntities(db *gorm.DB) (*definition, []statementEntity) {
	if db.Error != nil || db.Statement.Schema == nil {
		return nil, nil
	}

	def := p.lookup(db.Statement.Schema.ModelType)
	if def == nil {
		return nil, nil
	}

	var out []statementEntity
	collect := func(v reflect.Value) {
		for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || v.Type() != def.modelType || !v.CanAddr() {
			return
		}
		if e, ok := v.Addr().Interface().(Entity); ok {
			out = append(out, statementEntity{entity: e, value: v})
		}
	}

	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			collect(rv.Index(i))
		}
	case reflect.Struct, reflect.Ptr:
		collect(rv)
	default:
	}

	return def, out
}

func (p *Plugin) saveTranslations(db *gorm.DB) {
	_, entities := p.statementEntities(db)
	if len(entities) == 0 {
		return
	}

	ctx := ContextWithDB(db.Statement.Context, db)
	for _, se := range entities {
		t := se.entity.TranslationState().translator
		if t == nil {
			continue
		}

		err := t.flushPersisted(ctx)
		if err != nil {
			_ = db.AddError(err)
			return
		}
	}
}

// captureDeletedOwners records the keys matched by a conditional delete such as Delete(&Book{}, id),
// where the statement value carries no primary key of its own.
func (p *Plugin) captureDeletedOwners(db *gorm.DB) {
	def, entities := p.statementEntities(db)
	if def == nil {
		return
	}

	if def.softDelete && !db.Statement.Unscoped {
		return
	}

	where, ok := db.Statement.Clauses["WHERE"]
	if !ok || where.Expression == nil {
		return
	}

	ctx := db.Statement.Context
	query := db.Session(&gorm.Session{NewDB: true, Context: ctx}).
		Model(reflect.New(def.modelType).Interface()).
		Unscoped().
		Clauses(where.Expression)

	var own []any
	for _, se := range entities {
		if o, persisted := def.owner(ctx, se.value); persisted {
			own = append(own, o.key)
		}
	}
	if len(own) > 0 {
		query = query.Where(clause.IN{Column: clause.PrimaryColumn, Values: own})
	}

	keys := reflect.New(reflect.SliceOf(def.primary.FieldType))
	err := query.Pluck(def.primary.DBName, keys.Interface()).Error
	if err != nil {
		_ = db.AddError(fmt.Errorf("capture deleted owners: %w", err))
		return
	}

	keys = keys.Elem()
	owners := make([]owner, 0, keys.Len())
	for i := range keys.Len() {
		key := reflect.Indirect(keys.Index(i))
		if !key.IsValid() {
			continue
		}
		if o, valid := def.ownerForKey(key.Interface()); valid {
			owners = append(owners, o)
		}
	}

	db.Statement.Settings.Store(settingDeletedOwners, owners)
}

// deleteTranslations removes rows of hard deleted entities. Soft deletes keep them.
func (p *Plugin) deleteTranslations(db *gorm.DB) {
	def, entities := p.statementEntities(db)
	if def == nil {
		return
	}

	if def.softDelete && !db.Statement.Unscoped {
		return
	}

	ctx := db.Statement.Context

	var owners []owner
	if v, ok := db.Statement.Settings.LoadAndDelete(settingDeletedOwners); ok {
		owners, _ = v.([]owner)
	}

	for _, se := range entities {
		state := se.entity.TranslationState()
		if state.translator != nil {
			state.translator.strategy.pending = nil
		}
		state.reset()

		if o, persisted := def.owner(ctx, se.value); persisted {
			owners = append(owners, o)
		}
	}

	session := db.Session(&gorm.Session{NewDB: true})
	seen := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		if _, dup := seen[o.id]; dup {
			continue
		}
		seen[o.id] = struct{}{}

		err := def.store.remove(session, def, o)
		if err != nil {
			_ = db.AddError(err)
			return
		}

		util.Log(ctx).
			WithField("model", def.schema.Name).
			WithField("owner", o.id).
			Debug("translations deleted with entity")
	}
}

// eagerLoadTranslations attaches translations to a fetched batch with one extra query.
func (p *Plugin) eagerLoadTranslations(db *gorm.DB) {
	def, entities := p.statementEntities(db)
	if len(entities) == 0 {
		return
	}

	ctx := db.Statement.Context

	var locales []string
	if v, ok := db.Get(settingEagerLoad); ok {
		setting, _ := v.(eagerLoadSetting)
		if setting.disabled {
			return
		}
		locales = setting.locales
		if len(locales) == 0 {
			locales = nil
		}
	} else {
		locales = def.localesForEagerLoading(ctx, p.resolver)
		if len(locales) == 0 {
			return
		}
	}

	owners := make([]owner, 0, len(entities))
	keyed := make([]statementEntity, 0, len(entities))
	for _, se := range entities {
		o, persisted := def.owner(ctx, se.value)
		if !persisted {
			continue
		}
		owners = append(owners, o)
		keyed = append(keyed, se)
	}
	if len(owners) == 0 {
		return
	}

	ctx, span := p.tracer.Start(ctx, "EagerLoad", trace.WithAttributes(
		telemetry.AttrModelKey.String(def.schema.Name),
		attribute.Int("translatable_owners", len(owners)),
	))
	rows, err := def.store.load(db.Session(&gorm.Session{NewDB: true, Context: ctx}), def, owners, locales)
	p.tracer.End(ctx, span, err)
	if err != nil {
		_ = db.AddError(err)
		return
	}

	for i, se := range keyed {
		state := se.entity.TranslationState()
		state.reset()
		if locales == nil {
			state.markLoaded(allLocales)
		} else {
			state.markLoaded(locales...)
		}
		state.fill(rows[owners[i].id])
	}
}
