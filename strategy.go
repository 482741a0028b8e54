package translatable

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/translatable/telemetry"
)

// Strategy is the storage and retrieval policy behind a Translator.
type Strategy interface {
	// Get returns the stored value. A missing translation is reported through found, never as an error.
	Get(ctx context.Context, attribute, locale string) (value string, found bool, err error)
	// Set buffers a write without touching storage.
	Set(ctx context.Context, attribute, value, locale string) error
	// Save flushes the buffer. With nothing buffered it issues no statements.
	Save(ctx context.Context) error
	// Delete removes every translation row of the entity.
	Delete(ctx context.Context) error
	// LocalesForEagerLoading lists the locales a batch fetch should attach.
	LocalesForEagerLoading(ctx context.Context) []string
	// PendingTranslations returns a copy of the unflushed writes, locale -> attribute -> value.
	PendingTranslations() map[string]map[string]string
}

// strategy serves every layout and fallback policy combination from one implementation.
type strategy struct {
	plugin *Plugin
	def    *definition
	state  *State
	value  reflect.Value

	pending localeValues
	// dirty tracks raw columns written through the merged fallback path and not yet persisted.
	dirty map[string]any
}

var _ Strategy = new(strategy)

func (s *strategy) mergedFallback(ctx context.Context, locale string) bool {
	return s.def.fallback == FallbackMerged && s.def.isFallback(ctx, s.plugin.resolver, locale)
}

func (s *strategy) Get(ctx context.Context, attribute, locale string) (string, bool, error) {
	if s.mergedFallback(ctx, locale) {
		v, ok := s.def.raw(ctx, s.value, attribute)
		return v, ok, nil
	}

	if v, ok := s.pending[locale][attribute]; ok {
		return v, true, nil
	}

	if v, ok := s.state.value(locale, attribute); ok {
		return v, true, nil
	}

	if s.state.isLoaded(locale) {
		return "", false, nil
	}

	log := util.Log(ctx).
		WithField("model", s.def.schema.Name).
		WithField("attribute", attribute).
		WithField("locale", locale)

	if !s.def.lazyLoading {
		log.Debug("lazy loading disabled, translation treated as missing")
		return "", false, nil
	}

	o, persisted := s.def.owner(ctx, s.value)
	if !persisted {
		return "", false, nil
	}

	lctx, span := s.plugin.tracer.Start(ctx, "LazyLoad", trace.WithAttributes(
		telemetry.AttrModelKey.String(s.def.schema.Name),
		telemetry.AttrLocaleKey.String(locale),
	))
	rows, err := s.def.store.load(s.plugin.session(lctx), s.def, []owner{o}, []string{locale})
	s.plugin.tracer.End(lctx, span, err)
	if err != nil {
		log.WithError(err).Error("could not lazy load translations")
		return "", false, err
	}
	log.Debug("lazy loaded translations")

	s.state.markLoaded(locale)
	s.state.fill(rows[o.id])

	v, ok := s.state.value(locale, attribute)
	return v, ok, nil
}

func (s *strategy) Set(ctx context.Context, attribute, value, locale string) error {
	if s.mergedFallback(ctx, locale) {
		err := s.def.setRaw(ctx, s.value, attribute, value)
		if err != nil {
			return err
		}
		if s.dirty == nil {
			s.dirty = make(map[string]any)
		}
		s.dirty[s.def.column(attribute)] = value
		return nil
	}

	if s.pending == nil {
		s.pending = make(localeValues)
	}
	if s.pending[locale] == nil {
		s.pending[locale] = make(map[string]string)
	}
	s.pending[locale][attribute] = value
	return nil
}

func (s *strategy) Save(ctx context.Context) (err error) {
	if len(s.pending) == 0 {
		return nil
	}

	log := util.Log(ctx).WithField("model", s.def.schema.Name)

	o, persisted := s.def.owner(ctx, s.value)
	if !persisted {
		log.Debug("entity not persisted yet, translations stay buffered")
		return nil
	}

	ctx, span := s.plugin.tracer.Start(ctx, "SaveTranslations",
		trace.WithAttributes(telemetry.AttrModelKey.String(s.def.schema.Name)))
	defer func() { s.plugin.tracer.End(ctx, span, err) }()

	db := s.plugin.session(ctx)
	for _, locale := range sortedKeys(s.pending) {
		written, created, err := s.def.store.save(db, s.def, o, locale, s.pending[locale])
		if err != nil {
			log.WithError(err).WithField("locale", locale).Error("could not save translations")
			return fmt.Errorf("save %s translations of %s: %w", locale, s.def.schema.Name, err)
		}

		for attribute, v := range written {
			s.state.put(locale, attribute, v)
		}
		for attribute := range s.pending[locale] {
			if _, ok := written[attribute]; !ok {
				s.state.forget(locale, attribute)
			}
		}
		delete(s.pending, locale)

		for _, c := range created {
			s.plugin.emit(ctx, EventTranslationCreated, c)
		}
	}

	log.WithField("owner", o.id).Debug("translations flushed")
	return nil
}

func (s *strategy) Delete(ctx context.Context) error {
	o, persisted := s.def.owner(ctx, s.value)
	s.pending = nil
	s.state.reset()
	if !persisted {
		return nil
	}
	return s.def.store.remove(s.plugin.session(ctx), s.def, o)
}

func (s *strategy) LocalesForEagerLoading(ctx context.Context) []string {
	return s.def.localesForEagerLoading(ctx, s.plugin.resolver)
}

func (s *strategy) PendingTranslations() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.pending))
	for locale, values := range s.pending {
		out[locale] = maps.Clone(values)
	}
	return out
}

func (s *strategy) archive(ctx context.Context, attribute, locale string) error {
	a, ok := s.def.store.(archiver)
	if !ok {
		return fmt.Errorf("%w: %s layout", ErrArchiveUnsupported, s.def.layout)
	}

	delete(s.pending[locale], attribute)
	s.state.forget(locale, attribute)

	o, persisted := s.def.owner(ctx, s.value)
	if !persisted {
		return nil
	}

	affected, err := a.archive(s.plugin.session(ctx), s.def, o, attribute, locale)
	if err != nil {
		return err
	}

	if affected > 0 {
		s.plugin.emit(ctx, EventTranslationArchived, &TranslationArchived{
			Table:     s.def.store.tableName(),
			OwnerType: o.morphType,
			OwnerID:   o.id,
			Attribute: attribute,
			Locale:    locale,
		})
	}
	return nil
}
