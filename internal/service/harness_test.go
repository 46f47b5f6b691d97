package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/data"
	"github.com/target/title-doctor/internal/domain/pipeline"
	"github.com/target/title-doctor/internal/mocks/providers"
	"github.com/target/title-doctor/internal/testutil"
)

// pipelineHarness wires the services over in-memory stores and provider doubles.
type pipelineHarness struct {
	repo     *data.MemoryJobRepo
	queue    *data.MemoryQueue
	clock    *testutil.Clock
	resolver *providers.ChannelResolver
	videos   *providers.VideoLister
	titles   *providers.TitleGenerator
	mailer   *providers.Mailer

	states        *JobStateService
	submissions   *SubmissionService
	notifications *NotificationService
	stages        *StageService
	aggregator    *FailureAggregator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	t.Helper()

	h := &pipelineHarness{
		repo:     data.NewMemoryJobRepo(),
		queue:    data.NewMemoryQueue(),
		clock:    testutil.NewClock(testutil.TestTime()),
		resolver: &providers.ChannelResolver{},
		videos:   &providers.VideoLister{},
		titles:   &providers.TitleGenerator{},
		mailer:   &providers.Mailer{},
	}
	logger := discardLogger()

	var err error
	h.states, err = NewJobStateService(JobStateServiceOptions{Repo: h.repo, Logger: logger, Now: h.clock.Now})
	require.NoError(t, err)

	h.submissions, err = NewSubmissionService(SubmissionServiceOptions{States: h.states, Queue: h.queue, Logger: logger})
	require.NoError(t, err)

	h.notifications, err = NewNotificationService(NotificationServiceOptions{Mailer: h.mailer, Logger: logger})
	require.NoError(t, err)

	h.stages, err = NewStageService(StageServiceOptions{
		States:        h.states,
		Providers:     Providers{Channels: h.resolver, Videos: h.videos, Titles: h.titles},
		Notifications: h.notifications,
		Logger:        logger,
	})
	require.NoError(t, err)

	h.aggregator, err = NewFailureAggregator(FailureAggregatorOptions{
		States:        h.states,
		Notifications: h.notifications,
		Logger:        logger,
	})
	require.NoError(t, err)

	return h
}

func (h *pipelineHarness) handlers() map[pipeline.Subscriber]pipeline.Handler {
	handlers := h.stages.Handlers()
	handlers[pipeline.SubscriberFailureAggregate] = h.aggregator.Handler()
	return handlers
}

// drive routes msg and every outcome it produces until the chain ends, and
// returns the outcomes in order.
func (h *pipelineHarness) drive(t *testing.T, msg pipeline.Message) []pipeline.Message {
	t.Helper()

	handlers := h.handlers()
	var outcomes []pipeline.Message
	for msg != nil {
		sub, ok := pipeline.Route(msg.Topic())
		if !ok {
			break
		}
		out, err := handlers[sub].Handle(context.Background(), msg)
		require.NoError(t, err)
		if out != nil {
			outcomes = append(outcomes, out)
		}
		msg = out
	}
	return outcomes
}

// drainQueue claims and drives every queued message.
func (h *pipelineHarness) drainQueue(t *testing.T) []pipeline.Message {
	t.Helper()

	var outcomes []pipeline.Message
	for h.queue.Len() > 0 {
		d, err := h.queue.Claim(context.Background(), 0)
		require.NoError(t, err)
		msg, err := pipeline.Decode(d.Envelope)
		require.NoError(t, err)
		outcomes = append(outcomes, h.drive(t, msg)...)
	}
	return outcomes
}

func topics(msgs []pipeline.Message) []pipeline.Topic {
	out := make([]pipeline.Topic, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Topic())
	}
	return out
}
