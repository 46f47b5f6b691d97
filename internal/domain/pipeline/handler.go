package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnexpectedMessage is returned when a handler receives a message variant it does not accept.
var ErrUnexpectedMessage = errors.New("unexpected message type")

// Handler processes one message and returns at most one outcome.
// A nil outcome with a nil error means the input was consumed without
// producing a follow-up message.
type Handler interface {
	Handle(ctx context.Context, msg Message) (Message, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) (Message, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) (Message, error) {
	return f(ctx, msg)
}

// Typed adapts a handler for a single message variant.
func Typed[T Message](fn func(ctx context.Context, msg T) (Message, error)) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) (Message, error) {
		typed, ok := msg.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)
		}
		return fn(ctx, typed)
	})
}
