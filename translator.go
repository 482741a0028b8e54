package translatable

import (
	"context"
	"errors"
	"maps"

	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/translatable/telemetry"
)

// Translator reads and writes the translatable attributes of one entity instance.
// It is not safe for concurrent use.
type Translator struct {
	plugin   *Plugin
	def      *definition
	entity   Entity
	strategy *strategy
}

// Strategy exposes the storage policy backing the translator.
func (t *Translator) Strategy() Strategy {
	return t.strategy
}

// Locale returns the current locale.
func (t *Translator) Locale(ctx context.Context) string {
	return t.plugin.resolver.CurrentLocale(ctx)
}

// FallbackLocale returns the locale whose values back every missing translation.
func (t *Translator) FallbackLocale(ctx context.Context) string {
	return t.plugin.resolver.FallbackLocale(ctx)
}

func (t *Translator) IsFallbackLocale(ctx context.Context, locale string) bool {
	return t.def.isFallback(ctx, t.plugin.resolver, t.resolveLocale(ctx, locale))
}

// IsTranslatable reports whether attribute is stored per locale.
func (t *Translator) IsTranslatable(attribute string) bool {
	return t.def.isTranslatable(attribute)
}

// Attributes lists the translatable attributes in declaration order.
func (t *Translator) Attributes() []string {
	return append([]string(nil), t.def.attributes...)
}

func (t *Translator) resolveLocale(ctx context.Context, locale string) string {
	if locale == "" {
		return t.Locale(ctx)
	}
	return locale
}

// Get returns attribute in locale, the current locale when empty. A missing translation
// fires EventTranslationMissing and resolves to the fallback value.
func (t *Translator) Get(ctx context.Context, attribute, locale string) (string, error) {
	v, err := t.GetOrFail(ctx, attribute, locale)
	if !errors.Is(err, ErrTranslationMissing) {
		return v, err
	}

	t.emitMissing(ctx, attribute, t.resolveLocale(ctx, locale))
	return t.GetFallback(ctx, attribute)
}

// GetOrFail is Get without fallback: a missing translation returns a *TranslationMissingError.
func (t *Translator) GetOrFail(ctx context.Context, attribute, locale string) (string, error) {
	v, err := t.GetRawOrFail(ctx, attribute, locale)
	if err != nil {
		return "", err
	}
	return t.transformGet(attribute, v), nil
}

// GetRaw is Get without the entity's display transform.
func (t *Translator) GetRaw(ctx context.Context, attribute, locale string) (string, error) {
	v, err := t.GetRawOrFail(ctx, attribute, locale)
	if !errors.Is(err, ErrTranslationMissing) {
		return v, err
	}

	t.emitMissing(ctx, attribute, t.resolveLocale(ctx, locale))
	return t.GetRawFallback(ctx, attribute)
}

// GetRawOrFail is GetOrFail without the entity's display transform.
func (t *Translator) GetRawOrFail(ctx context.Context, attribute, locale string) (string, error) {
	err := t.def.assertTranslatable(attribute)
	if err != nil {
		return "", err
	}

	locale = t.resolveLocale(ctx, locale)
	v, found, err := t.strategy.Get(ctx, attribute, locale)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &TranslationMissingError{Model: t.def.schema.Name, Attribute: attribute, Locale: locale}
	}
	return v, nil
}

// GetFallback returns the fallback value of attribute with the display transform applied.
func (t *Translator) GetFallback(ctx context.Context, attribute string) (string, error) {
	v, err := t.GetRawFallback(ctx, attribute)
	if err != nil {
		return "", err
	}
	return t.transformGet(attribute, v), nil
}

// GetRawFallback returns the fallback locale's translation where one is stored separately,
// otherwise the entity's own column.
func (t *Translator) GetRawFallback(ctx context.Context, attribute string) (string, error) {
	err := t.def.assertTranslatable(attribute)
	if err != nil {
		return "", err
	}

	if t.def.fallback == FallbackSeparate {
		v, found, sErr := t.strategy.Get(ctx, attribute, t.FallbackLocale(ctx))
		if sErr != nil {
			return "", sErr
		}
		if found {
			return v, nil
		}
	}

	v, _ := t.def.raw(ctx, t.strategy.value, attribute)
	return v, nil
}

// Set stages value for attribute in locale. Nothing is written until the entity or translator is saved.
func (t *Translator) Set(ctx context.Context, attribute, value, locale string) error {
	err := t.def.assertTranslatable(attribute)
	if err != nil {
		return err
	}

	return t.strategy.Set(ctx, attribute, t.transformSet(attribute, value), t.resolveLocale(ctx, locale))
}

// SetMany stages several attributes of one locale. Every attribute is validated before any is set.
func (t *Translator) SetMany(ctx context.Context, values map[string]string, locale string) (*Translator, error) {
	for _, attribute := range sortedKeys(values) {
		err := t.def.assertTranslatable(attribute)
		if err != nil {
			return t, err
		}
	}

	for _, attribute := range sortedKeys(values) {
		err := t.Set(ctx, attribute, values[attribute], locale)
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

// Add sets attribute and persists the entity.
func (t *Translator) Add(ctx context.Context, attribute, value, locale string) error {
	err := t.Set(ctx, attribute, value, locale)
	if err != nil {
		return err
	}
	return t.persist(ctx)
}

// AddMany sets several attributes and persists the entity once.
func (t *Translator) AddMany(ctx context.Context, values map[string]string, locale string) (*Translator, error) {
	_, err := t.SetMany(ctx, values, locale)
	if err != nil {
		return t, err
	}
	return t, t.persist(ctx)
}

// Save flushes staged translations. Calling it with nothing staged issues no statements.
func (t *Translator) Save(ctx context.Context) error {
	return t.strategy.Save(ctx)
}

// Archive retires the active translation of attribute in locale, when the layout keeps an archived flag.
func (t *Translator) Archive(ctx context.Context, attribute, locale string) error {
	err := t.def.assertTranslatable(attribute)
	if err != nil {
		return err
	}
	return t.strategy.archive(ctx, attribute, t.resolveLocale(ctx, locale))
}

// ToMap returns every translatable attribute in locale, missing ones resolved to their fallback.
func (t *Translator) ToMap(ctx context.Context, locale string) (map[string]string, error) {
	out := make(map[string]string, len(t.def.attributes))
	for _, attribute := range t.def.attributes {
		v, err := t.Get(ctx, attribute, locale)
		if err != nil {
			return nil, err
		}
		out[attribute] = v
	}
	return out, nil
}

// persist saves the entity with the least work: create when new, update only the raw
// columns written through the fallback path, or just flush translations.
func (t *Translator) persist(ctx context.Context) error {
	db := t.plugin.session(ctx)

	if _, persisted := t.def.owner(ctx, t.strategy.value); !persisted {
		return db.Create(t.entity).Error
	}

	if len(t.strategy.dirty) > 0 {
		return db.Model(t.entity).Updates(maps.Clone(t.strategy.dirty)).Error
	}

	return t.strategy.Save(ctx)
}

// flushPersisted runs from the save callbacks once the entity row itself is written.
func (t *Translator) flushPersisted(ctx context.Context) error {
	err := t.strategy.Save(ctx)
	if err != nil {
		return err
	}
	t.strategy.dirty = nil
	return nil
}

func (t *Translator) emitMissing(ctx context.Context, attribute, locale string) {
	t.plugin.missing.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrModelKey.String(t.def.schema.Name),
		telemetry.AttrLocaleKey.String(locale),
	))
	t.plugin.emit(ctx, EventTranslationMissing, &TranslationMissing{
		Entity:    t.entity,
		Attribute: attribute,
		Locale:    locale,
	})
}

func (t *Translator) transformGet(attribute, value string) string {
	if g, ok := t.entity.(GetterTransformer); ok {
		return g.TransformGet(attribute, value)
	}
	return value
}

func (t *Translator) transformSet(attribute, value string) string {
	if s, ok := t.entity.(SetterTransformer); ok {
		return s.TransformSet(attribute, value)
	}
	return value
}
