package translatable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/jinzhu/inflection"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/translatable/localization"
)

// DefinitionOption configures how one model stores its translations.
type DefinitionOption func(*DefinitionOptions)

// DefinitionOptions holds the per model translation configuration.
type DefinitionOptions struct {
	Layout         Layout
	FallbackPolicy FallbackPolicy

	// Attributes overrides the model's TranslatableAttributes.
	Attributes []string
	// TranslationModel is a substitute narrow record, or the wide row model.
	TranslationModel any
	// Table names the translation table. Defaults per layout.
	Table string
	// ForeignKey names the wide layout column referencing the entity.
	ForeignKey string
	// MorphType is the owner type written by the narrow layout.
	MorphType string

	LazyLoading *bool
}

// WithLayout selects narrow or wide rows.
func WithLayout(layout Layout) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Layout = layout
	}
}

// WithFallbackPolicy selects whether the fallback locale lives on the entity itself.
func WithFallbackPolicy(policy FallbackPolicy) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.FallbackPolicy = policy
	}
}

// WithAttributes overrides the attributes declared by the model.
func WithAttributes(attributes ...string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Attributes = attributes
	}
}

// WithTranslationModel substitutes the record type used for translation rows.
// Narrow layouts require a struct embedding data.Translation.
func WithTranslationModel(model any) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.TranslationModel = model
	}
}

// WithTranslationTable overrides the translation table name.
func WithTranslationTable(table string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Table = table
	}
}

// WithForeignKey overrides the wide layout's entity reference column.
func WithForeignKey(column string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.ForeignKey = column
	}
}

// WithMorphType overrides the owner type, which defaults to the model table.
func WithMorphType(morphType string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.MorphType = morphType
	}
}

// WithLazyLoading decides whether reads of locales that were not eager loaded may query.
func WithLazyLoading(enabled bool) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.LazyLoading = &enabled
	}
}

// NarrowShared stores every locale, fallback included, in the shared translations table.
func NarrowShared() DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Layout = LayoutNarrow
		o.FallbackPolicy = FallbackSeparate
	}
}

// NarrowSharedExtended uses the shared table for every locale but the fallback,
// which stays on the entity's columns.
func NarrowSharedExtended() DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Layout = LayoutNarrow
		o.FallbackPolicy = FallbackMerged
	}
}

// WidePerEntity stores one row per locale in a model specific table.
// Empty arguments derive <singular>_translations and <singular>_id from the model table.
func WidePerEntity(table, foreignKey string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Layout = LayoutWide
		o.FallbackPolicy = FallbackSeparate
		o.Table = table
		o.ForeignKey = foreignKey
	}
}

// WidePerEntityExtended is WidePerEntity with the fallback locale kept on the entity.
func WidePerEntityExtended(table, foreignKey string) DefinitionOption {
	return func(o *DefinitionOptions) {
		o.Layout = LayoutWide
		o.FallbackPolicy = FallbackMerged
		o.Table = table
		o.ForeignKey = foreignKey
	}
}

var (
	stringType     = reflect.TypeOf("")
	stringPtrType  = reflect.TypeOf((*string)(nil))
	nullStringType = reflect.TypeOf(sql.NullString{})
	deletedAtType  = reflect.TypeOf(gorm.DeletedAt{})
)

type definition struct {
	modelType  reflect.Type
	schema     *schema.Schema
	table      string
	morphType  string
	attributes []string
	fields     map[string]*schema.Field
	primary    *schema.Field

	layout      Layout
	fallback    FallbackPolicy
	lazyLoading bool
	softDelete  bool

	store store
}

type owner struct {
	key       any
	id        string
	morphType string
}

func newDefinition(db *gorm.DB, model Entity, lazyDefault bool, defaultTable string, opts ...DefinitionOption) (*definition, error) {
	o := &DefinitionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	stmt := &gorm.Statement{DB: db}
	err := stmt.Parse(model)
	if err != nil {
		return nil, fmt.Errorf("parse translatable model: %w", err)
	}
	sch := stmt.Schema

	def := &definition{
		modelType:   sch.ModelType,
		schema:      sch,
		table:       sch.Table,
		fields:      make(map[string]*schema.Field),
		primary:     sch.PrioritizedPrimaryField,
		layout:      o.Layout,
		fallback:    o.FallbackPolicy,
		lazyLoading: lazyDefault,
	}

	if o.LazyLoading != nil {
		def.lazyLoading = *o.LazyLoading
	}

	if def.primary == nil {
		return nil, fmt.Errorf("translatable model %s needs a single primary key", sch.Name)
	}

	def.attributes = o.Attributes
	if len(def.attributes) == 0 {
		def.attributes = model.TranslatableAttributes()
	}
	if len(def.attributes) == 0 {
		return nil, fmt.Errorf("translatable model %s declares no attributes", sch.Name)
	}

	for _, attribute := range def.attributes {
		field := sch.LookUpField(attribute)
		if field == nil || field.DBName == "" || !isStringType(field.FieldType) {
			return nil, &AttributeNotTranslatableError{Model: sch.Name, Attribute: attribute}
		}
		def.fields[attribute] = field
	}

	for _, field := range sch.Fields {
		if field.FieldType == deletedAtType {
			def.softDelete = true
		}
	}

	switch {
	case o.MorphType != "":
		def.morphType = o.MorphType
	default:
		if mt, ok := model.(MorphTyper); ok && mt.MorphType() != "" {
			def.morphType = mt.MorphType()
		} else {
			def.morphType = sch.Table
		}
	}

	switch def.layout {
	case LayoutWide:
		def.store, err = newWideStore(db, sch, o)
	default:
		def.store, err = newNarrowStore(db, o, defaultTable)
	}
	if err != nil {
		return nil, err
	}

	return def, nil
}

func singularTable(table string) string {
	return inflection.Singular(table)
}

func isStringType(t reflect.Type) bool {
	return t == stringType || t == stringPtrType || t == nullStringType
}

func (d *definition) isTranslatable(attribute string) bool {
	_, ok := d.fields[attribute]
	return ok
}

func (d *definition) assertTranslatable(attribute string) error {
	if !d.isTranslatable(attribute) {
		return &AttributeNotTranslatableError{Model: d.schema.Name, Attribute: attribute}
	}
	return nil
}

func (d *definition) column(attribute string) string {
	if f, ok := d.fields[attribute]; ok {
		return f.DBName
	}
	return attribute
}

func (d *definition) isFallback(ctx context.Context, resolver localization.Resolver, locale string) bool {
	return locale == resolver.FallbackLocale(ctx)
}

func (d *definition) localesForEagerLoading(ctx context.Context, resolver localization.Resolver) []string {
	current := resolver.CurrentLocale(ctx)
	fallback := resolver.FallbackLocale(ctx)

	if d.fallback == FallbackMerged {
		if current == fallback {
			return nil
		}
		return []string{current}
	}

	if current == fallback {
		return []string{current}
	}
	return []string{current, fallback}
}

// raw reads the entity's own column for attribute. NULL reports false.
func (d *definition) raw(ctx context.Context, entity reflect.Value, attribute string) (string, bool) {
	f, ok := d.fields[attribute]
	if !ok {
		return "", false
	}

	fv, _ := f.ValueOf(ctx, entity)
	switch v := fv.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case sql.NullString:
		return v.String, v.Valid
	}
	return "", false
}

func (d *definition) setRaw(ctx context.Context, entity reflect.Value, attribute, value string) error {
	f, ok := d.fields[attribute]
	if !ok {
		return &AttributeNotTranslatableError{Model: d.schema.Name, Attribute: attribute}
	}

	fv := f.ReflectValueOf(ctx, entity)
	if !fv.CanSet() {
		return errors.New("set " + attribute + ": field is not settable")
	}

	switch fv.Type() {
	case stringType:
		fv.SetString(value)
	case stringPtrType:
		fv.Set(reflect.ValueOf(&value))
	case nullStringType:
		fv.Set(reflect.ValueOf(sql.NullString{String: value, Valid: true}))
	}
	return nil
}

func (d *definition) owner(ctx context.Context, entity reflect.Value) (owner, bool) {
	key, zero := d.primary.ValueOf(ctx, entity)
	if zero {
		return owner{}, false
	}
	return d.ownerForKey(key)
}

func (d *definition) ownerForKey(key any) (owner, bool) {
	if key == nil || reflect.ValueOf(key).IsZero() {
		return owner{}, false
	}
	return owner{key: key, id: fmt.Sprint(key), morphType: d.morphType}, true
}

func entityValue(entity Entity) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("translatable entity must be a non nil pointer, got %T", entity)
	}
	return rv.Elem(), nil
}
