package events

import (
	"context"
)

// EventI an interface to represent a signal listener. All logic of a listener is handled in the execute task.
type EventI interface {
	// Name represents the signal the listener is attached to.
	Name() string

	// PayloadType determines the type of payload the listener accepts.
	PayloadType() any

	// Validate enables automatic validation of payload supplied to the listener without handling it in the execute block
	Validate(ctx context.Context, payload any) error

	// Execute performs the work attached to the signal.
	Execute(ctx context.Context, payload any) error
}

type Manager interface {
	Add(eventI EventI)
	Get(name string) ([]EventI, error)
	Emit(ctx context.Context, name string, payload any) error
}
