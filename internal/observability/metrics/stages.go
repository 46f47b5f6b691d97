// Package metrics emits standardised pipeline metrics to a statsd sink.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/target/title-doctor/internal/observability/errors"
	"github.com/target/title-doctor/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// StageMetric captures one handled pipeline message.
type StageMetric struct {
	// Subscriber is the handler that processed the message, e.g. "fetch-content".
	Subscriber string
	// Topic is the message topic that was handled.
	Topic string
	// Outcome is the topic of the emitted message, empty when none.
	Outcome  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitStageTransition emits counters and timings for a handled message.
func EmitStageTransition(sink statsd.Sink, in StageMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"subscriber": in.Subscriber,
		"topic":      in.Topic,
		"result":     in.Result,
	}
	if in.Outcome != "" {
		tags["outcome"] = in.Outcome
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("pipeline.message", 1, tags)
	if in.Duration > 0 {
		sink.Timing("pipeline.message_duration", in.Duration, CloneTags(tags))
	}
}

// EmitQueueDepth records the current queue backlog.
func EmitQueueDepth(sink statsd.Sink, queued, inflight int64) {
	if sink == nil {
		return
	}
	sink.Gauge("pipeline.queue_depth", float64(queued), map[string]string{"state": "queued"})
	sink.Gauge("pipeline.queue_depth", float64(inflight), map[string]string{"state": "inflight"})
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := maps.Clone(src)
	delete(out, "")
	return out
}
