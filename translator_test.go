package translatable_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/pitabwire/translatable"
	"github.com/pitabwire/translatable/data"
	"github.com/pitabwire/translatable/tests"
)

type TranslatorTestSuite struct {
	tests.BaseTestSuite
}

func TestTranslatorTestSuite(t *testing.T) {
	suite.Run(t, new(TranslatorTestSuite))
}

// eachVariant runs fn for every layout and fallback combination on every test database.
func (s *TranslatorTestSuite) eachVariant(fn func(t *testing.T, f *fixture)) {
	for _, v := range variants {
		s.Run(v.name, func() {
			s.WithTestDatabases(s.T(), allModels, func(t *testing.T, db *tests.Database) {
				fn(t, newFixture(t, db, v))
			})
		})
	}
}

func (s *TranslatorTestSuite) TestSetThenGetBeforeSave() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		f.db.Queries.Reset()
		require.NoError(t, tr.Set(ctx, "title", "Атлас тварин", "uk"))

		v, err := tr.Get(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "Атлас тварин", v)
		require.Zero(t, f.db.Queries.Count(), "buffered values are served without storage")
		require.Equal(t, map[string]map[string]string{"uk": {"title": "Атлас тварин"}}, tr.Strategy().PendingTranslations())
	})
}

func (s *TranslatorTestSuite) TestSaveThenFallbackForUntranslatedLocale() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		require.NoError(t, tr.Set(ctx, "title", "Атлас тварин", "uk"))
		require.NoError(t, tr.Save(ctx))
		require.Equal(t, int64(1), f.countRows("title", "uk"))
		require.Empty(t, tr.Strategy().PendingTranslations())

		v, err := tr.Get(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "Атлас тварин", v)

		v, err = tr.Get(ctx, "title", "pl")
		require.NoError(t, err)
		require.Equal(t, "Atlas of animals", v)

		require.Len(t, f.missing, 1)
		require.Equal(t, "title", f.missing[0].Attribute)
		require.Equal(t, "pl", f.missing[0].Locale)
		require.Same(t, book, f.missing[0].Entity)
	})
}

func (s *TranslatorTestSuite) TestSaveIsIdempotent() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		f.db.Queries.Reset()
		require.NoError(t, tr.Save(ctx))
		require.Zero(t, f.db.Queries.Count())

		require.NoError(t, tr.Set(ctx, "title", "Атлас тварин", "uk"))
		require.NoError(t, tr.Save(ctx))
		require.NotZero(t, f.db.Queries.Count())

		f.db.Queries.Reset()
		require.NoError(t, tr.Save(ctx))
		require.Zero(t, f.db.Queries.Count(), "a second save with nothing buffered issues no statements")
	})
}

func (s *TranslatorTestSuite) TestOverwriteKeepsOneRow() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		require.NoError(t, tr.Set(ctx, "title", "first", "uk"))
		require.NoError(t, tr.Set(ctx, "title", "second", "uk"))
		require.NoError(t, tr.Save(ctx))
		require.Equal(t, int64(1), f.countRows("title", "uk"))

		fetched := f.fetch(ctx, book.ID)
		ftr := f.translator(fetched)
		v, err := ftr.Get(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "second", v)

		require.NoError(t, ftr.Add(ctx, "title", "third", "uk"))
		require.Equal(t, int64(1), f.countRows("title", "uk"))

		again := f.translator(f.fetch(ctx, book.ID))
		v, err = again.GetOrFail(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "third", v)
	})
}

func (s *TranslatorTestSuite) TestGetOrFail() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		tr := f.translator(f.createBook("Atlas of animals", "atlas"))

		_, err := tr.GetOrFail(ctx, "title", "pl")
		require.ErrorIs(t, err, translatable.ErrTranslationMissing)

		var missing *translatable.TranslationMissingError
		require.ErrorAs(t, err, &missing)
		require.Equal(t, "pl", missing.Locale)
		require.Equal(t, "title", missing.Attribute)
		require.Empty(t, f.missing, "fail variants do not signal")
	})
}

func (s *TranslatorTestSuite) TestNonTranslatableAttribute() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		tr := f.translator(f.createBook("Atlas of animals", "atlas"))
		f.db.Queries.Reset()

		err := tr.Set(ctx, "author", "Someone", "uk")
		require.ErrorIs(t, err, translatable.ErrAttributeNotTranslatable)

		_, err = tr.Get(ctx, "author", "uk")
		require.ErrorIs(t, err, translatable.ErrAttributeNotTranslatable)

		_, err = tr.SetMany(ctx, map[string]string{"title": "Атлас", "author": "Хтось"}, "uk")
		require.ErrorIs(t, err, translatable.ErrAttributeNotTranslatable)
		require.Empty(t, tr.Strategy().PendingTranslations(), "nothing is staged when one attribute is rejected")

		var typed *translatable.AttributeNotTranslatableError
		require.ErrorAs(t, err, &typed)
		require.Equal(t, "author", typed.Attribute)
		require.Zero(t, f.db.Queries.Count())

		require.False(t, tr.IsTranslatable("author"))
		require.True(t, tr.IsTranslatable("title"))
		require.Equal(t, []string{"title", "summary", "slug"}, tr.Attributes())
	})
}

func (s *TranslatorTestSuite) TestAddManyAndToMap() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		_, err := tr.AddMany(ctx, map[string]string{"title": "Атлас", "summary": "Про тварин"}, "uk")
		require.NoError(t, err)
		require.Equal(t, int64(1), f.countRows("summary", "uk"))

		out, err := f.translator(f.fetch(ctx, book.ID)).ToMap(ctx, "uk")
		require.NoError(t, err)
		require.Equal(t, map[string]string{
			"title":   "Атлас",
			"summary": "Про тварин",
			"slug":    "atlas",
		}, out)

		require.Len(t, f.missing, 1)
		require.Equal(t, "slug", f.missing[0].Attribute)
	})
}

func (s *TranslatorTestSuite) TestFallbackLocaleWrites() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)
		require.True(t, tr.IsFallbackLocale(ctx, "en"))
		require.True(t, tr.IsFallbackLocale(ctx, ""))

		require.NoError(t, tr.Add(ctx, "title", "Atlas of beasts", "en"))

		v, err := tr.Get(ctx, "title", "en")
		require.NoError(t, err)
		require.Equal(t, "Atlas of beasts", v)

		fetched := f.fetch(ctx, book.ID)
		if f.variant.merged {
			require.Equal(t, "Atlas of beasts", book.Title)
			require.Equal(t, "Atlas of beasts", fetched.Title)
			require.Zero(t, f.countAllRows(), "merged fallback values live on the entity")
			return
		}

		require.Equal(t, "Atlas of animals", book.Title)
		require.Equal(t, "Atlas of animals", fetched.Title)
		require.Equal(t, int64(1), f.countRows("title", "en"))

		v, err = f.translator(fetched).Get(ctx, "title", "pl")
		require.NoError(t, err)
		require.Equal(t, "Atlas of beasts", v, "a stored fallback row wins over the entity column")
	})
}

func (s *TranslatorTestSuite) TestCurrentLocaleFromContext() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := inLocale("uk")
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)
		require.Equal(t, "uk", tr.Locale(ctx))
		require.Equal(t, "en", tr.FallbackLocale(ctx))

		require.NoError(t, tr.Add(ctx, "title", "Атлас", ""))
		require.Equal(t, int64(1), f.countRows("title", "uk"))

		v, err := tr.Get(ctx, "title", "")
		require.NoError(t, err)
		require.Equal(t, "Атлас", v)

		v, err = tr.Get(context.Background(), "title", "")
		require.NoError(t, err)
		require.Equal(t, "Atlas of animals", v)
	})
}

func (s *TranslatorTestSuite) TestCreatedSignalOnlyOnInsert() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		require.Empty(t, f.created, "creating the entity alone writes no translations")

		tr := f.translator(book)
		require.NoError(t, tr.Add(ctx, "title", "Атлас", "uk"))
		require.Len(t, f.created, 1)
		require.Equal(t, "uk", f.created[0].Locale)
		require.Equal(t, "books", f.created[0].OwnerType)
		require.Equal(t, map[string]string{"title": "Атлас"}, f.created[0].Values)

		require.NoError(t, tr.Add(ctx, "title", "Атлас тварин", "uk"))
		require.Len(t, f.created, 1, "updating an existing translation is not a creation")
	})
}

func (s *TranslatorTestSuite) TestConcurrentInsertFallsBackToUpdate() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")

		table := "translations"
		if f.variant.wide {
			table = "book_translations"
		}

		// Another writer inserts the same row between the missed update and the insert.
		armed := true
		err := f.db.DB.Callback().Update().After("gorm:update").Register("test:concurrent_writer", func(tx *gorm.DB) {
			if !armed || tx.Error != nil || tx.Statement.Table != table || tx.RowsAffected != 0 {
				return
			}
			armed = false

			other := "Атлас інший"
			var row any = &data.Translation{
				OwnerType: "books",
				OwnerID:   fmt.Sprint(book.ID),
				Attribute: "title",
				Locale:    "uk",
				Value:     &other,
			}
			if f.variant.wide {
				row = &BookTranslation{BookID: book.ID, Locale: "uk", Title: &other}
			}
			require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Create(row).Error)
		})
		require.NoError(t, err)

		require.NoError(t, f.translator(book).Add(ctx, "title", "Атлас", "uk"))
		require.False(t, armed)
		require.Empty(t, f.created, "the row already existed when the insert ran")
		require.Equal(t, int64(1), f.countRows("title", "uk"))

		v, err := f.translator(f.fetch(ctx, book.ID)).GetOrFail(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "Атлас", v)
	})
}

func (s *TranslatorTestSuite) TestUnsavedEntityFlushesOnCreate() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := &Book{Title: "Atlas of animals", Slug: "atlas"}
		tr := f.translator(book)

		require.NoError(t, tr.Set(ctx, "title", "Атлас", "uk"))

		f.db.Queries.Reset()
		require.NoError(t, tr.Save(ctx))
		require.Zero(t, f.db.Queries.Count(), "an unsaved entity keeps its translations buffered")

		v, err := tr.GetOrFail(ctx, "title", "uk")
		require.NoError(t, err)
		require.Equal(t, "Атлас", v)

		require.NoError(t, f.db.DB.Create(book).Error)
		require.NotZero(t, book.ID)
		require.Equal(t, int64(1), f.countRows("title", "uk"))
		require.Empty(t, tr.Strategy().PendingTranslations())
	})
}

func (s *TranslatorTestSuite) TestEntityUpdateFlushesTranslations() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		tr := f.translator(book)

		require.NoError(t, tr.Set(ctx, "slug", "atlas-ua", "uk"))
		book.Pages = 250
		require.NoError(t, f.db.DB.Save(book).Error)

		require.Equal(t, int64(1), f.countRows("slug", "uk"))
		require.Equal(t, 250, f.fetch(ctx, book.ID).Pages)
	})
}

func (s *TranslatorTestSuite) TestTransactionRollbackDiscardsTranslations() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		ctx := context.Background()
		book := f.createBook("Atlas of animals", "atlas")
		errRollback := errors.New("rollback")

		err := f.db.DB.Transaction(func(tx *gorm.DB) error {
			tctx := translatable.ContextWithDB(ctx, tx)
			tr, tErr := translatable.For(tx, book)
			require.NoError(t, tErr)
			require.NoError(t, tr.Add(tctx, "title", "Атлас", "uk"))
			return errRollback
		})
		require.ErrorIs(t, err, errRollback)
		require.Zero(t, f.countRows("title", "uk"))
	})
}

func (s *TranslatorTestSuite) TestLoadedLocales() {
	s.eachVariant(func(t *testing.T, f *fixture) {
		book := f.createBook("Atlas of animals", "atlas")
		fetched := f.fetch(inLocale("uk"), book.ID)

		if f.variant.merged {
			require.Equal(t, []string{"uk"}, fetched.LoadedLocales())
			return
		}
		require.Equal(t, []string{"en", "uk"}, fetched.LoadedLocales())
	})
}
