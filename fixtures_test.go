package translatable_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pitabwire/translatable"
	"github.com/pitabwire/translatable/data"
	"github.com/pitabwire/translatable/events"
	"github.com/pitabwire/translatable/localization"
	"github.com/pitabwire/translatable/tests"
)

type Book struct {
	ID        uint `gorm:"primaryKey"`
	Title     string
	Summary   *string
	Slug      string `gorm:"type:varchar(100)"`
	Author    string
	Pages     int
	CreatedAt time.Time
	UpdatedAt time.Time

	translatable.State `gorm:"-"`
}

func (*Book) TranslatableAttributes() []string {
	return []string{"title", "summary", "slug"}
}

// BookTranslation is the wide layout row of Book.
type BookTranslation struct {
	ID        uint   `gorm:"primaryKey"`
	BookID    uint   `gorm:"not null;uniqueIndex:,composite:book_locale,priority:1"`
	Locale    string `gorm:"type:varchar(24);not null;uniqueIndex:,composite:book_locale,priority:2"`
	Title     *string
	Summary   *string
	Slug      *string `gorm:"type:varchar(100)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Shelf struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	DeletedAt gorm.DeletedAt `gorm:"index"`

	translatable.State `gorm:"-"`
}

func (*Shelf) TranslatableAttributes() []string {
	return []string{"name"}
}

type Label struct {
	ID   uint `gorm:"primaryKey"`
	Name string

	translatable.State `gorm:"-"`
}

func (*Label) TranslatableAttributes() []string {
	return []string{"name"}
}

func (*Label) TransformGet(_, value string) string {
	return strings.ToUpper(value)
}

func (*Label) TransformSet(_, value string) string {
	return strings.TrimSpace(value)
}

type ReviewedTranslation struct {
	data.Translation

	Reviewer string `gorm:"type:varchar(100)"`
}

func (ReviewedTranslation) TableName() string {
	return "reviewed_translations"
}

type NotATranslation struct {
	ID    uint
	Value string
}

var allModels = []any{&Book{}, &BookTranslation{}, &Shelf{}, &Label{}, &ReviewedTranslation{}}

type variant struct {
	name string
	opts []translatable.DefinitionOption
	wide bool
	// merged variants keep the fallback locale on the entity.
	merged bool
}

var variants = []variant{
	{name: "narrow", opts: []translatable.DefinitionOption{translatable.NarrowShared()}},
	{name: "narrow_extended", opts: []translatable.DefinitionOption{translatable.NarrowSharedExtended()}, merged: true},
	{name: "wide", opts: []translatable.DefinitionOption{translatable.WidePerEntity("", "")}, wide: true},
	{
		name:   "wide_extended",
		opts:   []translatable.DefinitionOption{translatable.WidePerEntityExtended("", "")},
		wide:   true,
		merged: true,
	},
}

type fixture struct {
	t       *testing.T
	db      *tests.Database
	plugin  *translatable.Plugin
	variant variant

	missing  []*translatable.TranslationMissing
	created  []*translatable.TranslationCreated
	archived []*translatable.TranslationArchived
}

func newFixture(t *testing.T, db *tests.Database, v variant, extra ...translatable.DefinitionOption) *fixture {
	p := translatable.NewPlugin(translatable.WithResolver(localization.NewResolver("en")))
	require.NoError(t, db.DB.Use(p))

	opts := append(append([]translatable.DefinitionOption{}, v.opts...), extra...)
	require.NoError(t, p.Register(&Book{}, opts...))

	f := &fixture{t: t, db: db, plugin: p, variant: v}

	p.Events().Add(events.Listen(translatable.EventTranslationMissing,
		func(_ context.Context, e *translatable.TranslationMissing) error {
			f.missing = append(f.missing, e)
			return nil
		}))
	p.Events().Add(events.Listen(translatable.EventTranslationCreated,
		func(_ context.Context, e *translatable.TranslationCreated) error {
			f.created = append(f.created, e)
			return nil
		}))
	p.Events().Add(events.Listen(translatable.EventTranslationArchived,
		func(_ context.Context, e *translatable.TranslationArchived) error {
			f.archived = append(f.archived, e)
			return nil
		}))

	return f
}

func (f *fixture) createBook(title, slug string) *Book {
	b := &Book{Title: title, Slug: slug, Author: "Anonymous", Pages: 100}
	require.NoError(f.t, f.db.DB.Create(b).Error)
	return b
}

func (f *fixture) translator(e translatable.Entity) *translatable.Translator {
	tr, err := f.plugin.Translator(e)
	require.NoError(f.t, err)
	return tr
}

func (f *fixture) fetch(ctx context.Context, id uint) *Book {
	var b Book
	require.NoError(f.t, f.db.DB.WithContext(ctx).First(&b, id).Error)
	return &b
}

// countRows counts stored translation rows of Book for locale, with a value for attribute.
func (f *fixture) countRows(attribute, locale string) int64 {
	var count int64
	q := f.db.DB.Session(&gorm.Session{NewDB: true})
	if f.variant.wide {
		q = q.Table("book_translations").Where("locale = ? AND "+attribute+" IS NOT NULL", locale)
	} else {
		q = q.Table("translations").Where("owner_type = ? AND attribute = ? AND locale = ?", "books", attribute, locale)
	}
	require.NoError(f.t, q.Count(&count).Error)
	return count
}

func (f *fixture) countAllRows() int64 {
	var count int64
	table := "translations"
	if f.variant.wide {
		table = "book_translations"
	}
	require.NoError(f.t, f.db.DB.Session(&gorm.Session{NewDB: true}).Table(table).Count(&count).Error)
	return count
}

func inLocale(locale string) context.Context {
	return localization.ToContext(context.Background(), locale)
}
