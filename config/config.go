package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
)

type contextKey string

func (c contextKey) String() string {
	return "translatable/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultFallbackLocale     = "en"
)

// ToContext adds configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

type ConfigurationTranslatable struct {
	FallbackLocale   string   `envDefault:"en"           env:"TRANSLATABLE_FALLBACK_LOCALE"   yaml:"fallback_locale"`
	SupportedLocales []string `env:"TRANSLATABLE_SUPPORTED_LOCALES" yaml:"supported_locales"  envSeparator:","`
	LazyLoading      bool     `envDefault:"true"         env:"TRANSLATABLE_LAZY_LOADING"      yaml:"lazy_loading"`
	TranslationTable string   `envDefault:"translations" env:"TRANSLATABLE_TABLE"             yaml:"translation_table"`

	DatabaseURL                   string `env:"DATABASE_URL"                                        yaml:"database_url"`
	DatabaseTraceQueries          bool   `env:"DATABASE_LOG_QUERIES"          envDefault:"false"    yaml:"database_log_queries"`
	DatabaseSlowQueryLogThreshold string `env:"DATABASE_SLOW_QUERY_THRESHOLD" envDefault:"200ms"    yaml:"database_slow_query_threshold"`
}

var _ ConfigurationLocalization = new(ConfigurationTranslatable)

type ConfigurationLocalization interface {
	GetFallbackLocale() string
	GetSupportedLocales() []string
	CanLazyLoadTranslations() bool
	GetTranslationTable() string
}

func (c *ConfigurationTranslatable) GetFallbackLocale() string {
	if c.FallbackLocale == "" {
		return DefaultFallbackLocale
	}
	return c.FallbackLocale
}

func (c *ConfigurationTranslatable) GetSupportedLocales() []string {
	return c.SupportedLocales
}

func (c *ConfigurationTranslatable) CanLazyLoadTranslations() bool {
	return c.LazyLoading
}

func (c *ConfigurationTranslatable) GetTranslationTable() string {
	if c.TranslationTable == "" {
		return "translations"
	}
	return c.TranslationTable
}

var _ ConfigurationDatabase = new(ConfigurationTranslatable)

type ConfigurationDatabase interface {
	GetDatabaseURL() string
	ConfigurationDatabaseTracing
}

type ConfigurationDatabaseTracing interface {
	CanDatabaseTraceQueries() bool
	GetDatabaseSlowQueryLogThreshold() time.Duration
}

func (c *ConfigurationTranslatable) GetDatabaseURL() string {
	return c.DatabaseURL
}

func (c *ConfigurationTranslatable) CanDatabaseTraceQueries() bool {
	return c.DatabaseTraceQueries
}

func (c *ConfigurationTranslatable) GetDatabaseSlowQueryLogThreshold() time.Duration {
	threshold, err := time.ParseDuration(c.DatabaseSlowQueryLogThreshold)
	if err != nil {
		threshold = DefaultSlowQueryThreshold
	}
	return threshold
}
