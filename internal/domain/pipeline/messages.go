// Package pipeline defines the closed set of messages exchanged between
// pipeline stages and the static table that routes them.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/target/title-doctor/internal/domain/model"
)

// Topic tags a message variant.
type Topic string

// Topics of the pipeline message variants.
const (
	TopicJobSubmitted    Topic = "job.submitted"
	TopicChannelResolved Topic = "channel.resolved"
	TopicContentFetched  Topic = "content.fetched"
	TopicTitlesGenerated Topic = "titles.generated"
	TopicJobCompleted    Topic = "job.completed"
	TopicStageFailed     Topic = "stage.failed"
)

// ErrUnknownTopic is returned when decoding an envelope with an unrecognised topic.
var ErrUnknownTopic = errors.New("unknown message topic")

// Message is implemented by every pipeline message variant.
type Message interface {
	Topic() Topic
	Job() string
}

// JobSubmitted triggers channel resolution for a newly accepted job.
type JobSubmitted struct {
	JobID         string `json:"jobId"`
	ChannelRef    string `json:"channel"`
	NotifyAddress string `json:"email"`
}

// ChannelResolved carries the resolved channel to the fetch stage.
type ChannelResolved struct {
	JobID         string        `json:"jobId"`
	NotifyAddress string        `json:"email"`
	Channel       model.Channel `json:"channel"`
}

// ContentFetched carries the channel's recent videos to the generate stage.
type ContentFetched struct {
	JobID         string        `json:"jobId"`
	NotifyAddress string        `json:"email"`
	ChannelName   string        `json:"channelName"`
	Videos        []model.Video `json:"videos"`
}

// TitlesGenerated carries the improved titles to the notify stage.
type TitlesGenerated struct {
	JobID         string                `json:"jobId"`
	NotifyAddress string                `json:"email"`
	ChannelName   string                `json:"channelName"`
	Titles        []model.ImprovedTitle `json:"titles"`
}

// JobCompleted is emitted once the results email was accepted by the provider.
type JobCompleted struct {
	JobID   string `json:"jobId"`
	EmailID string `json:"emailId"`
}

// StageFailed reports a stage failure to the failure aggregator.
type StageFailed struct {
	JobID         string      `json:"jobId"`
	NotifyAddress string      `json:"email"`
	Stage         model.Stage `json:"stage"`
	// Error is the stage's error message, stored verbatim on the job.
	Error string `json:"error"`
	// Kind is the error classification, e.g. "empty_result" or "configuration".
	Kind string `json:"kind,omitempty"`
	// UserMessage overrides the generic failure text sent to the user.
	UserMessage string `json:"userMessage,omitempty"`
}

func (JobSubmitted) Topic() Topic    { return TopicJobSubmitted }
func (ChannelResolved) Topic() Topic { return TopicChannelResolved }
func (ContentFetched) Topic() Topic  { return TopicContentFetched }
func (TitlesGenerated) Topic() Topic { return TopicTitlesGenerated }
func (JobCompleted) Topic() Topic    { return TopicJobCompleted }
func (StageFailed) Topic() Topic     { return TopicStageFailed }

func (m JobSubmitted) Job() string    { return m.JobID }
func (m ChannelResolved) Job() string { return m.JobID }
func (m ContentFetched) Job() string  { return m.JobID }
func (m TitlesGenerated) Job() string { return m.JobID }
func (m JobCompleted) Job() string    { return m.JobID }
func (m StageFailed) Job() string     { return m.JobID }

// Envelope is the wire form of a message on a queue.
type Envelope struct {
	// ID is assigned by the queue on publish when empty.
	ID    string          `json:"id,omitempty"`
	Topic Topic           `json:"topic"`
	JobID string          `json:"jobId"`
	Body  json.RawMessage `json:"body"`
}

// Encode wraps msg in an envelope.
func Encode(msg Message) (Envelope, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msg.Topic(), err)
	}
	return Envelope{Topic: msg.Topic(), JobID: msg.Job(), Body: body}, nil
}

// Decode returns the typed message held by env.
func Decode(env Envelope) (Message, error) {
	var (
		msg Message
		err error
	)
	switch env.Topic {
	case TopicJobSubmitted:
		msg, err = decodeAs[JobSubmitted](env.Body)
	case TopicChannelResolved:
		msg, err = decodeAs[ChannelResolved](env.Body)
	case TopicContentFetched:
		msg, err = decodeAs[ContentFetched](env.Body)
	case TopicTitlesGenerated:
		msg, err = decodeAs[TitlesGenerated](env.Body)
	case TopicJobCompleted:
		msg, err = decodeAs[JobCompleted](env.Body)
	case TopicStageFailed:
		msg, err = decodeAs[StageFailed](env.Body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, env.Topic)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Topic, err)
	}
	return msg, nil
}

func decodeAs[T Message](body json.RawMessage) (Message, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}
