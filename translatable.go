// Package translatable stores locale dependent values of gorm model attributes.
//
// A model opts in by embedding State and declaring its translatable attributes:
//
//	type Book struct {
//		ID    uint
//		Title string
//		translatable.State `gorm:"-"`
//	}
//
//	func (*Book) TranslatableAttributes() []string { return []string{"title"} }
//
// The Plugin is installed with db.Use and every model is registered once with a layout
// and fallback policy. Reads and writes then go through the per-instance Translator.
package translatable

import "slices"

// Entity is a gorm model whose declared attributes are stored per locale.
type Entity interface {
	TranslatableAttributes() []string
	TranslationState() *State
}

// GetterTransformer lets an entity derive the displayed value of an attribute.
type GetterTransformer interface {
	TransformGet(attribute, value string) string
}

// SetterTransformer lets an entity normalise a value before it is stored.
type SetterTransformer interface {
	TransformSet(attribute, value string) string
}

// MorphTyper overrides the owner type written to the shared translations table.
type MorphTyper interface {
	MorphType() string
}

// Layout selects how translation rows are shaped.
type Layout int

const (
	// LayoutNarrow keeps one row per (entity, attribute, locale) in a table shared by all models.
	LayoutNarrow Layout = iota
	// LayoutWide keeps one row per (entity, locale) in a table of the model's own.
	LayoutWide
)

func (l Layout) String() string {
	if l == LayoutWide {
		return "wide"
	}
	return "narrow"
}

// FallbackPolicy selects where values of the fallback locale live.
type FallbackPolicy int

const (
	// FallbackSeparate stores the fallback locale in translation rows like any other locale.
	FallbackSeparate FallbackPolicy = iota
	// FallbackMerged stores the fallback locale on the entity's own columns.
	FallbackMerged
)

func (f FallbackPolicy) String() string {
	if f == FallbackMerged {
		return "merged"
	}
	return "separate"
}

const allLocales = "*"

// State holds the translation bookkeeping of one entity instance.
// Embed it in translatable models with the `gorm:"-"` tag and do not copy it once in use.
type State struct {
	translator *Translator
	values     map[string]map[string]string
	loaded     map[string]bool
}

// TranslationState returns the receiver, letting embedding models satisfy Entity.
func (s *State) TranslationState() *State {
	return s
}

func (s *State) reset() {
	s.values = nil
	s.loaded = nil
}

func (s *State) markLoaded(locales ...string) {
	if s.loaded == nil {
		s.loaded = make(map[string]bool, len(locales))
	}
	for _, l := range locales {
		s.loaded[l] = true
	}
}

func (s *State) isLoaded(locale string) bool {
	return s.loaded[allLocales] || s.loaded[locale]
}

func (s *State) value(locale, attribute string) (string, bool) {
	v, ok := s.values[locale][attribute]
	return v, ok
}

func (s *State) put(locale, attribute, value string) {
	if s.values == nil {
		s.values = make(map[string]map[string]string)
	}
	if s.values[locale] == nil {
		s.values[locale] = make(map[string]string)
	}
	s.values[locale][attribute] = value
}

func (s *State) forget(locale, attribute string) {
	delete(s.values[locale], attribute)
}

func (s *State) fill(rows map[string]map[string]string) {
	for locale, attrs := range rows {
		for attribute, v := range attrs {
			s.put(locale, attribute, v)
		}
	}
}

// LoadedLocales reports which locales have been fetched for the instance, "*" meaning all.
func (s *State) LoadedLocales() []string {
	out := make([]string, 0, len(s.loaded))
	for l := range s.loaded {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}
