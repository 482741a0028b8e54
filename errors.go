package translatable

import (
	"errors"
	"fmt"
)

var (
	// ErrAttributeNotTranslatable is returned when an attribute was not declared translatable.
	ErrAttributeNotTranslatable = errors.New("attribute is not translatable")
	// ErrTranslationMissing is returned by the OrFail getters when no value is stored for a locale.
	ErrTranslationMissing = errors.New("translation missing")
	// ErrInvalidTranslationModel is returned at registration for a substitute record type
	// that does not embed data.Translation.
	ErrInvalidTranslationModel = errors.New("a custom translation model must extend the base translation model")
	// ErrNotRegistered is returned for models that were never registered with the plugin.
	ErrNotRegistered = errors.New("model is not registered as translatable")
	// ErrPluginNotInitialized is returned when the plugin is used before db.Use installed it.
	ErrPluginNotInitialized = errors.New("translatable plugin is not installed on a database")
	// ErrInvalidOperator is reported for comparison operators outside the supported set.
	ErrInvalidOperator = errors.New("invalid comparison operator")
	// ErrInvalidSortDirection is reported for sort directions other than asc and desc.
	ErrInvalidSortDirection = errors.New("invalid sort direction")
	// ErrArchiveUnsupported is returned when archiving on a layout without an archived flag.
	ErrArchiveUnsupported = errors.New("translation layout does not support archiving")
)

// AttributeNotTranslatableError names the model and attribute that failed the translatability check.
type AttributeNotTranslatableError struct {
	Model     string
	Attribute string
}

func (e *AttributeNotTranslatableError) Error() string {
	return fmt.Sprintf("attribute %q of %s is not translatable", e.Attribute, e.Model)
}

func (e *AttributeNotTranslatableError) Unwrap() error {
	return ErrAttributeNotTranslatable
}

// TranslationMissingError names the attribute and locale that have no stored value.
type TranslationMissingError struct {
	Model     string
	Attribute string
	Locale    string
}

func (e *TranslationMissingError) Error() string {
	return fmt.Sprintf("translation of %s.%s missing for locale %q", e.Model, e.Attribute, e.Locale)
}

func (e *TranslationMissingError) Unwrap() error {
	return ErrTranslationMissing
}
