package translatable

import (
	"context"

	"github.com/pitabwire/util"
)

const (
	// EventTranslationMissing fires from Get and GetRaw when a locale has no stored value.
	EventTranslationMissing = "translatable.translation.missing"
	// EventTranslationCreated fires when a new translation row is inserted, never on update.
	EventTranslationCreated = "translatable.translation.created"
	// EventTranslationArchived fires when an active narrow row is archived.
	EventTranslationArchived = "translatable.translation.archived"
)

// TranslationMissing is the payload of EventTranslationMissing.
type TranslationMissing struct {
	Entity    Entity
	Attribute string
	Locale    string
}

// TranslationCreated is the payload of EventTranslationCreated.
// Record is the inserted model for narrow rows and the inserted column map for wide rows.
type TranslationCreated struct {
	Table     string
	OwnerType string
	OwnerID   string
	Locale    string
	Values    map[string]string
	Record    any
}

// TranslationArchived is the payload of EventTranslationArchived.
type TranslationArchived struct {
	Table     string
	OwnerType string
	OwnerID   string
	Attribute string
	Locale    string
}

// emit dispatches a signal. Listener failures are logged and never reach the caller.
func (p *Plugin) emit(ctx context.Context, name string, payload any) {
	err := p.events.Emit(ctx, name, payload)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("event", name).Warn("translation signal listener failed")
	}
}
