package translatable

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"

	"github.com/pitabwire/translatable/config"
	"github.com/pitabwire/translatable/data"
	"github.com/pitabwire/translatable/events"
	"github.com/pitabwire/translatable/localization"
	"github.com/pitabwire/translatable/telemetry"
)

const pluginName = "translatable"

// Option configures the Plugin.
type Option func(*Options)

// Options holds plugin wide configuration.
type Options struct {
	Resolver         localization.Resolver
	Events           events.Manager
	Tracer           telemetry.Tracer
	LazyLoading      bool
	TranslationTable string
}

// WithResolver sets the source of current and fallback locales.
func WithResolver(resolver localization.Resolver) Option {
	return func(o *Options) {
		o.Resolver = resolver
	}
}

// WithEvents sets the manager signals are emitted on.
func WithEvents(manager events.Manager) Option {
	return func(o *Options) {
		o.Events = manager
	}
}

// WithTracer sets the tracer storage operations report spans and latency to.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}

// WithDefaultLazyLoading sets lazy loading for definitions that do not choose themselves.
func WithDefaultLazyLoading(enabled bool) Option {
	return func(o *Options) {
		o.LazyLoading = enabled
	}
}

// WithDefaultTranslationTable names the shared narrow table.
func WithDefaultTranslationTable(table string) Option {
	return func(o *Options) {
		o.TranslationTable = table
	}
}

// WithConfig applies locales, lazy loading and table name from configuration.
func WithConfig(cfg config.ConfigurationLocalization) Option {
	return func(o *Options) {
		o.Resolver = localization.NewResolver(cfg.GetFallbackLocale(), cfg.GetSupportedLocales()...)
		o.LazyLoading = cfg.CanLazyLoadTranslations()
		o.TranslationTable = cfg.GetTranslationTable()
	}
}

// Plugin installs translation callbacks on a gorm database and owns the registered definitions.
type Plugin struct {
	db       *gorm.DB
	resolver localization.Resolver
	events   events.Manager
	tracer   telemetry.Tracer
	missing  metric.Int64Counter
	opts     *Options

	mu          sync.RWMutex
	definitions map[reflect.Type]*definition
}

var _ gorm.Plugin = new(Plugin)

func NewPlugin(opts ...Option) *Plugin {
	o := &Options{
		LazyLoading:      true,
		TranslationTable: data.DefaultTranslationsTable,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.Resolver == nil {
		o.Resolver = localization.NewResolver(config.DefaultFallbackLocale)
	}
	if o.Events == nil {
		o.Events = events.NewManager(context.Background())
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.NewTracer(pluginName)
	}

	missing := telemetry.DimensionlessMeasure(pluginName, "/translations_missing",
		"Reads that resolved to the fallback value")

	return &Plugin{
		resolver:    o.Resolver,
		events:      o.Events,
		tracer:      o.Tracer,
		missing:     missing,
		opts:        o,
		definitions: make(map[reflect.Type]*definition),
	}
}

func (p *Plugin) Name() string {
	return pluginName
}

// Initialize is called by db.Use.
func (p *Plugin) Initialize(db *gorm.DB) error {
	p.db = db
	return p.registerCallbacks(db)
}

// Events exposes the signal manager so callers can attach listeners.
func (p *Plugin) Events() events.Manager {
	return p.events
}

func (p *Plugin) Resolver() localization.Resolver {
	return p.resolver
}

// Register declares model translatable. It validates the attributes and any substitute
// translation model up front, so configuration errors surface here rather than on first use.
func (p *Plugin) Register(model Entity, opts ...DefinitionOption) error {
	if p.db == nil {
		return ErrPluginNotInitialized
	}

	def, err := newDefinition(p.db, model, p.opts.LazyLoading, p.opts.TranslationTable, opts...)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.definitions[def.modelType] = def
	p.mu.Unlock()
	return nil
}

// IsTranslatable reports whether attribute of model is stored per locale.
func (p *Plugin) IsTranslatable(model any, attribute string) bool {
	def, err := p.definitionFor(model)
	if err != nil {
		return false
	}
	return def.isTranslatable(attribute)
}

// TranslationTable returns the table a registered model's translations live in.
func (p *Plugin) TranslationTable(model any) (string, error) {
	def, err := p.definitionFor(model)
	if err != nil {
		return "", err
	}
	return def.store.tableName(), nil
}

// Translator returns the translator of entity, creating and caching it on first use.
func (p *Plugin) Translator(entity Entity) (*Translator, error) {
	state := entity.TranslationState()
	if state.translator != nil && state.translator.entity == entity {
		return state.translator, nil
	}

	def, err := p.definitionFor(entity)
	if err != nil {
		return nil, err
	}

	rv, err := entityValue(entity)
	if err != nil {
		return nil, err
	}

	t := &Translator{
		plugin: p,
		def:    def,
		entity: entity,
		strategy: &strategy{
			plugin: p,
			def:    def,
			state:  state,
			value:  rv,
		},
	}
	state.translator = t
	return t, nil
}

// For returns the translator of entity using the plugin installed on db.
func For(db *gorm.DB, entity Entity) (*Translator, error) {
	p, err := FromDB(db)
	if err != nil {
		return nil, err
	}
	return p.Translator(entity)
}

// FromDB returns the plugin installed on db.
func FromDB(db *gorm.DB) (*Plugin, error) {
	if db == nil || db.Config == nil {
		return nil, ErrPluginNotInitialized
	}
	p, ok := db.Config.Plugins[pluginName].(*Plugin)
	if !ok {
		return nil, ErrPluginNotInitialized
	}
	return p, nil
}

func (p *Plugin) definitionFor(model any) (*definition, error) {
	t := reflect.TypeOf(model)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		t = t.Elem()
	}

	def := p.lookup(t)
	if def == nil {
		return nil, fmt.Errorf("%w: %T", ErrNotRegistered, model)
	}
	return def, nil
}

func (p *Plugin) lookup(t reflect.Type) *definition {
	if t == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.definitions[t]
}

// session returns a clean handle on the database attached to ctx or the plugin's own.
func (p *Plugin) session(ctx context.Context) *gorm.DB {
	if db := DBFromContext(ctx); db != nil {
		return db.Session(&gorm.Session{NewDB: true, Context: ctx})
	}
	return p.db.Session(&gorm.Session{NewDB: true, Context: ctx})
}
