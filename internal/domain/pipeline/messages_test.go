package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/domain/model"
)

func TestEncodeDecodeKeepsVariant(t *testing.T) {
	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := ContentFetched{
		JobID:         "job-1",
		NotifyAddress: "user@example.com",
		ChannelName:   "Example",
		Videos:        []model.Video{{ID: "v1", Title: "First", PublishedAt: published}},
	}

	env, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, TopicContentFetched, env.Topic)
	assert.Equal(t, "job-1", env.JobID)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var wire Envelope
	require.NoError(t, json.Unmarshal(raw, &wire))

	decoded, err := Decode(wire)
	require.NoError(t, err)
	got, ok := decoded.(ContentFetched)
	require.True(t, ok, "expected ContentFetched, got %T", decoded)
	assert.Equal(t, msg, got)
}

func TestDecodeStageFailed(t *testing.T) {
	env, err := Encode(StageFailed{
		JobID:         "job-1",
		NotifyAddress: "user@example.com",
		Stage:         model.StageGenerateTitles,
		Error:         "Missing GEMINI_API_KEY",
		Kind:          "configuration",
	})
	require.NoError(t, err)

	decoded, err := Decode(env)
	require.NoError(t, err)
	failed := decoded.(StageFailed)
	assert.Equal(t, "Missing GEMINI_API_KEY", failed.Error)
	assert.Equal(t, model.StageGenerateTitles, failed.Stage)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(Envelope{Topic: "video.uploaded", Body: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrUnknownTopic)

	_, err = Decode(Envelope{Topic: TopicJobSubmitted, Body: json.RawMessage(`{"jobId":`)})
	require.Error(t, err)
}

func TestRouteTable(t *testing.T) {
	tests := []struct {
		topic Topic
		want  Subscriber
		ok    bool
	}{
		{TopicJobSubmitted, SubscriberResolveChannel, true},
		{TopicChannelResolved, SubscriberFetchContent, true},
		{TopicContentFetched, SubscriberGenerateTitles, true},
		{TopicTitlesGenerated, SubscriberNotifySuccess, true},
		{TopicStageFailed, SubscriberFailureAggregate, true},
		{TopicJobCompleted, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic), func(t *testing.T) {
			got, ok := Route(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
