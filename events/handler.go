package events

import (
	"context"
	"fmt"
)

type funcListener[T any] struct {
	name    string
	execute func(ctx context.Context, payload T) error
}

// Listen adapts a typed function into a listener for the named signal.
// Payloads of any other type fail validation.
func Listen[T any](name string, fn func(ctx context.Context, payload T) error) EventI {
	return &funcListener[T]{name: name, execute: fn}
}

func (l *funcListener[T]) Name() string {
	return l.name
}

func (l *funcListener[T]) PayloadType() any {
	var zero T
	return zero
}

func (l *funcListener[T]) Validate(_ context.Context, payload any) error {
	if _, ok := payload.(T); !ok {
		return fmt.Errorf("payload is %T not of type %T", payload, l.PayloadType())
	}
	return nil
}

func (l *funcListener[T]) Execute(ctx context.Context, payload any) error {
	p, _ := payload.(T)
	return l.execute(ctx, p)
}
