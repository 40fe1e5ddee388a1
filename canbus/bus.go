package canbus

import (
	"context"
	"errors"
)

// Bus represents a CAN bus connection which can send and receive CAN frames.
// Implementations should be safe for concurrent use by multiple goroutines.
type Bus interface {
	// Send transmits a frame. It may block until the frame is queued or sent.
	// Context cancellation should abort the operation and return the context error.
	Send(ctx context.Context, frame Frame) error

	// Receive retrieves the next available frame. It should block until a frame
	// is available or the context is cancelled.
	Receive(ctx context.Context) (Frame, error)

	// Close releases resources. Further Send/Receive may return an error.
	Close() error
}

// Handler consumes frames delivered by a Mux. Handle runs on the Mux reader
// goroutine and must return promptly: a slow handler stalls the whole bus.
type Handler interface {
	Handle(frame Frame)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(frame Frame)

// Handle calls f(frame).
func (f HandlerFunc) Handle(frame Frame) { f(frame) }

// ErrClosed indicates the bus or endpoint has been closed.
var ErrClosed = errors.New("canbus: closed")
