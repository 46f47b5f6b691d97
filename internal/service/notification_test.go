package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
	"github.com/target/title-doctor/internal/mocks"
	"github.com/target/title-doctor/internal/mocks/providers"
	"github.com/target/title-doctor/internal/testutil"
)

func newNotificationService(t *testing.T, mailer core.Mailer) *NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceOptions{Mailer: mailer, Logger: discardLogger()})
	require.NoError(t, err)
	return svc
}

func TestNotificationService_SendResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	titles := testutil.SampleTitles(testutil.SampleVideos(2))

	var sent core.Email
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, email core.Email) (string, error) {
			sent = email
			return "re_123", nil
		})

	id, err := newNotificationService(t, mailer).SendResults(context.Background(), "creator@example.com", "Veritasium", titles)
	require.NoError(t, err)
	assert.Equal(t, "re_123", id)

	assert.Equal(t, "creator@example.com", sent.To)
	assert.Equal(t, "New Titles for Veritasium", sent.Subject)

	assert.Contains(t, sent.Text, "Video 1:")
	assert.Contains(t, sent.Text, "Video 2:")
	assert.Contains(t, sent.Text, "Original: "+titles[0].Original)
	assert.Contains(t, sent.Text, "Improved: "+titles[1].Improved)
	assert.Contains(t, sent.Text, "Why: "+titles[0].Rationale)
	assert.Contains(t, sent.Text, "Watch: "+titles[0].URL)

	assert.Contains(t, sent.HTML, "<strong>Veritasium</strong>")
	assert.Contains(t, sent.HTML, titles[1].Improved)
	assert.Contains(t, sent.HTML, "Sent by YouTube Title Doctor")
}

func TestNotificationService_SendResultsEscapesHTML(t *testing.T) {
	mailer := &providers.Mailer{}
	titles := []model.ImprovedTitle{{
		Original: "<script>alert(1)</script>",
		Improved: "Tom & Jerry",
		URL:      "https://www.youtube.com/watch?v=abc",
	}}

	_, err := newNotificationService(t, mailer).SendResults(context.Background(), "creator@example.com", "A <b>Channel</b>", titles)
	require.NoError(t, err)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	html := sent[0].HTML
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "Tom &amp; Jerry")
	assert.NotContains(t, html, "<b>Channel</b>")
	// Plain text is not escaped.
	assert.Contains(t, sent[0].Text, "<script>alert(1)</script>")
}

func TestNotificationService_SendResultsReturnsMailerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	sendErr := apperrors.Wrap(errors.New("429"), apperrors.ErrCodeNotification, "resend rejected email")
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return("", sendErr)

	_, err := newNotificationService(t, mailer).SendResults(context.Background(), "creator@example.com", "Veritasium", nil)
	require.ErrorIs(t, err, sendErr)
}

func TestNotificationService_SendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)

	var sent core.Email
	mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, email core.Email) (string, error) {
			sent = email
			return "re_456", nil
		})

	id, err := newNotificationService(t, mailer).SendFailure(context.Background(), "creator@example.com", "job-1", "No videos found for this channel")
	require.NoError(t, err)
	assert.Equal(t, "re_456", id)

	assert.Equal(t, "[Error] Your YouTube Title Doctor Request Failed (Job ID: job-1)", sent.Subject)
	assert.Empty(t, sent.HTML)
	assert.Contains(t, sent.Text, "Dear user,")
	assert.Contains(t, sent.Text, "(Job ID: job-1)")
	assert.Contains(t, sent.Text, `"No videos found for this channel"`)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		stage model.Stage
		user  string
		want  string
	}{
		{model.StageResolveChannel, "", "failed to resolve channel, please try again later"},
		{model.StageFetchContent, "", "failed to fetch videos, please try again later"},
		{model.StageGenerateTitles, "", "failed to generate improved titles, please try again later"},
		{model.StageNotifySuccess, "", "failed to send results email, please try again later"},
		{model.StageSubmit, "", "failed to process your request, please try again later"},
		{model.StageFetchContent, "No videos found for this channel", "No videos found for this channel"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage)+"/"+tt.user, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.stage, tt.user))
		})
	}
}
