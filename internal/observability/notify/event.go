// Package notify defines the ops alert payload shared by alert sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload is the data emitted when a pipeline job is finalized as failed.
type JobFailurePayload struct {
	JobID       string
	Stage       string
	ChannelRef  string
	ChannelName string
	Error       string
	// ErrorClass is the error kind, e.g. "upstream" or "timeout".
	ErrorClass string
	// NotificationError is set when the user could not be emailed.
	NotificationError string
	Severity          string
	OccurredAt        time.Time
	Metadata          map[string]string
}

// Sink describes a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
