// Package core defines the ports between the title doctor services and
// their adapters.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
)

// This file contains the port definitions (hexagonal architecture).
// Services depend on these interfaces; the data and adapters packages provide implementations.

// JobRepository stores one mutable record per job. Read-modify-write is the
// only supported update pattern.
type JobRepository interface {
	// Get returns the job or an error wrapping ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)
	// Set writes the full record, replacing any previous version.
	Set(ctx context.Context, job *model.Job) error
	// ListStale returns non-terminal jobs whose last update is older than before,
	// oldest first.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Job, error)
	// Health checks the backing store.
	Health(ctx context.Context) error
}

// ErrJobNotFound is returned by JobRepository.Get when no record exists.
var ErrJobNotFound = errors.New("job not found")

// ErrNoMessage is returned by MessageQueue.Claim when the wait elapsed without a message.
var ErrNoMessage = errors.New("no message available")

// Delivery is a claimed message. It must be acknowledged once handled.
type Delivery struct {
	Envelope pipeline.Envelope
	// Receipt is an opaque queue-specific handle used by Ack.
	Receipt string
}

// MessageQueue transports pipeline envelopes between stages with
// at-least-once delivery.
type MessageQueue interface {
	Publish(ctx context.Context, env pipeline.Envelope) error
	// Claim blocks up to timeout for the next message and returns ErrNoMessage when none arrived.
	Claim(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// RequeueInflight moves up to limit claimed but unacknowledged messages back to the queue.
	RequeueInflight(ctx context.Context, limit int64) (int64, error)
}

// ChannelResolver resolves a handle or free-text name to a channel.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, ref string) (model.Channel, error)
}

// VideoLister lists a channel's most recent videos, newest first.
type VideoLister interface {
	LatestVideos(ctx context.Context, channelID string, limit int) ([]model.Video, error)
}

// TitleGenerator produces one improved title per input video, in input order.
type TitleGenerator interface {
	ImproveTitles(ctx context.Context, channelName string, videos []model.Video) ([]model.ImprovedTitle, error)
}

// Email is an outbound message. HTML may be empty for plain-text notices.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers email and returns the provider's delivery id.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}
