package data

import (
	"context"
	"time"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// DefaultTranslationsTable is the table shared by every entity using the narrow layout.
const DefaultTranslationsTable = "translations"

// Record is satisfied by the narrow translation model and by any struct embedding it.
// Substitute translation models are accepted only when they implement it.
type Record interface {
	TranslationRecord() *Translation
}

// Translation is one translated value for one (owner, attribute, locale) tuple.
type Translation struct {
	ID         string  `gorm:"type:varchar(50);primaryKey"`
	OwnerType  string  `gorm:"type:varchar(100);not null;uniqueIndex:,composite:owner_attribute_locale,priority:1"`
	OwnerID    string  `gorm:"type:varchar(64);not null;uniqueIndex:,composite:owner_attribute_locale,priority:2"`
	Attribute  string  `gorm:"type:varchar(100);not null;uniqueIndex:,composite:owner_attribute_locale,priority:3"`
	Locale     string  `gorm:"type:varchar(24);not null;uniqueIndex:,composite:owner_attribute_locale,priority:4"`
	Value      *string `gorm:"type:text"`
	IsArchived bool    `gorm:"not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Translation) TableName() string {
	return DefaultTranslationsTable
}

// TranslationRecord returns the embedded translation so substitute models can be filled generically.
func (t *Translation) TranslationRecord() *Translation {
	return t
}

// GetValue returns the stored value, treating NULL as empty.
func (t *Translation) GetValue() string {
	if t.Value == nil {
		return ""
	}
	return *t.Value
}

// SetValue stores v as the translation value.
func (t *Translation) SetValue(v string) {
	t.Value = &v
}

// GenID creates a new id for the record if it has none or the one it has is not an xid.
func (t *Translation) GenID(_ context.Context) {
	if !t.ValidXID(t.ID) {
		t.ID = util.IDString()
	}
}

// ValidXID Validates that the supplied string is an xid.
func (t *Translation) ValidXID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

func (t *Translation) BeforeCreate(db *gorm.DB) error {
	t.GenID(db.Statement.Context)

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return nil
}
