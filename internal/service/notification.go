package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
)

//go:embed templates/*.tmpl
var emailTemplates embed.FS

var resultsHTML = htmltemplate.Must(htmltemplate.ParseFS(emailTemplates, "templates/results.html.tmpl"))

var resultsText = texttemplate.Must(
	texttemplate.New("results.txt.tmpl").
		Funcs(texttemplate.FuncMap{"add1": func(i int) int { return i + 1 }}).
		ParseFS(emailTemplates, "templates/results.txt.tmpl"),
)

var failureText = texttemplate.Must(texttemplate.ParseFS(emailTemplates, "templates/failure.txt.tmpl"))

// genericFailureMessages are the user-facing texts for each failed stage.
var genericFailureMessages = map[model.Stage]string{
	model.StageResolveChannel: "failed to resolve channel, please try again later",
	model.StageFetchContent:   "failed to fetch videos, please try again later",
	model.StageGenerateTitles: "failed to generate improved titles, please try again later",
	model.StageNotifySuccess:  "failed to send results email, please try again later",
}

const defaultFailureMessage = "failed to process your request, please try again later"

// FailureMessage returns the text shown to the user for a failed stage.
// A non-empty userMessage takes precedence over the stage's generic text.
func FailureMessage(stage model.Stage, userMessage string) string {
	if userMessage != "" {
		return userMessage
	}
	if msg, ok := genericFailureMessages[stage]; ok {
		return msg
	}
	return defaultFailureMessage
}

// ResultsSubject returns the subject line of the results email.
func ResultsSubject(channelName string) string {
	return "New Titles for " + channelName
}

// FailureSubject returns the subject line of the failure email.
func FailureSubject(jobID string) string {
	return fmt.Sprintf("[Error] Your YouTube Title Doctor Request Failed (Job ID: %s)", jobID)
}

// NotificationServiceOptions groups dependencies for NotificationService.
type NotificationServiceOptions struct {
	Mailer core.Mailer  // Required: outbound mail port
	Logger *slog.Logger // Optional: structured logger
}

// NotificationService renders and sends every email the pipeline produces.
type NotificationService struct {
	mailer core.Mailer
	logger *slog.Logger
}

// NewNotificationService constructs a new NotificationService.
func NewNotificationService(opts NotificationServiceOptions) (*NotificationService, error) {
	if opts.Mailer == nil {
		return nil, errors.New("mailer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &NotificationService{
		mailer: opts.Mailer,
		logger: logger.With("component", "notification"),
	}, nil
}

type resultsView struct {
	ChannelName string
	Titles      []model.ImprovedTitle
}

// SendResults emails the improved titles and returns the provider message id.
// Mailer errors are returned unchanged.
func (s *NotificationService) SendResults(
	ctx context.Context,
	to, channelName string,
	titles []model.ImprovedTitle,
) (string, error) {
	view := resultsView{ChannelName: channelName, Titles: titles}

	var html, text bytes.Buffer
	if err := resultsHTML.Execute(&html, view); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "render results email")
	}
	if err := resultsText.Execute(&text, view); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "render results email")
	}

	id, err := s.mailer.Send(ctx, core.Email{
		To:      to,
		Subject: ResultsSubject(channelName),
		HTML:    html.String(),
		Text:    text.String(),
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "results email sent", "email_id", id, "titles", len(titles))
	return id, nil
}

// SendFailure emails a failure notice for jobID carrying message.
func (s *NotificationService) SendFailure(ctx context.Context, to, jobID, message string) (string, error) {
	var text bytes.Buffer
	err := failureText.Execute(&text, struct{ JobID, Message string }{JobID: jobID, Message: message})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "render failure email")
	}

	id, err := s.mailer.Send(ctx, core.Email{
		To:      to,
		Subject: FailureSubject(jobID),
		Text:    text.String(),
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "failure email sent", "job_id", jobID, "email_id", id)
	return id, nil
}
