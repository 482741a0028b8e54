package events

import (
	"context"
	"errors"
	"sync"

	"github.com/pitabwire/util"
)

// ErrEventNotFound is returned by Get when no listener is attached to a signal.
var ErrEventNotFound = errors.New("event not found in registry")

type manager struct {
	mu            sync.RWMutex
	eventRegistry map[string][]EventI
}

func (m *manager) Add(evt EventI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventRegistry[evt.Name()] = append(m.eventRegistry[evt.Name()], evt)
}

func (m *manager) Get(eventName string) ([]EventI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	listeners, ok := m.eventRegistry[eventName]
	if !ok || len(listeners) == 0 {
		return nil, errors.Join(ErrEventNotFound, errors.New(eventName))
	}

	return append([]EventI(nil), listeners...), nil
}

// Emit delivers payload synchronously to every listener of name, in registration order.
// Signals nobody listens to are dropped silently.
func (m *manager) Emit(ctx context.Context, name string, payload any) error {
	m.mu.RLock()
	listeners := append([]EventI(nil), m.eventRegistry[name]...)
	m.mu.RUnlock()

	var errs []error
	for _, listener := range listeners {
		err := listener.Validate(ctx, payload)
		if err != nil {
			util.Log(ctx).WithError(err).WithField("event", name).Error("Event payload validation failed")
			errs = append(errs, err)
			continue
		}

		err = listener.Execute(ctx, payload)
		if err != nil {
			util.Log(ctx).WithError(err).WithField("event", name).Error("Event execution failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func NewManager(_ context.Context) Manager {
	return &manager{
		eventRegistry: make(map[string][]EventI),
	}
}
