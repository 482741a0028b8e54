package localization

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "translatable/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds language to the current supplied context.
// The first entry is the preferred locale, the rest are ranked alternatives.
func ToContext(ctx context.Context, lang ...string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// Resolver supplies the locale a read or write targets when none is given, and the
// locale whose values live on the entity itself.
type Resolver interface {
	CurrentLocale(ctx context.Context) string
	FallbackLocale(ctx context.Context) string
}

type resolver struct {
	fallback  string
	supported []string
	matcher   language.Matcher
}

// NewResolver returns a Resolver that reads the preferred locales from the context.
// When supported locales are given the context locales are matched against them and
// anything without a confident match resolves to the fallback.
func NewResolver(fallback string, supported ...string) Resolver {
	r := &resolver{fallback: fallback}

	if len(supported) == 0 {
		return r
	}

	tags := make([]language.Tag, 0, len(supported)+1)
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		r.supported = append(r.supported, s)
		tags = append(tags, tag)
	}

	if len(tags) > 0 {
		r.matcher = language.NewMatcher(tags)
	}

	return r
}

func (r *resolver) FallbackLocale(_ context.Context) string {
	return r.fallback
}

func (r *resolver) CurrentLocale(ctx context.Context) string {
	languages := FromContext(ctx)

	var preferred []string
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l != "" {
			preferred = append(preferred, l)
		}
	}

	if len(preferred) == 0 {
		return r.fallback
	}

	if r.matcher == nil {
		return preferred[0]
	}

	tags := make([]language.Tag, 0, len(preferred))
	for _, p := range preferred {
		tag, err := language.Parse(p)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return r.fallback
	}

	_, index, confidence := r.matcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(r.supported) {
		return r.fallback
	}

	return r.supported[index]
}

// Static resolves fixed locales regardless of the context.
type Static struct {
	Current  string
	Fallback string
}

func (s Static) CurrentLocale(_ context.Context) string {
	return s.Current
}

func (s Static) FallbackLocale(_ context.Context) string {
	return s.Fallback
}
