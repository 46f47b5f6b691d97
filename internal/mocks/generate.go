// Package mocks provides mock implementations for testing the title doctor pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Get(gomock.Any(), "job-1").Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods Get, Set, ListStale, Health.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/title-doctor/internal/core JobRepository

// Generate mock for MessageQueue interface from internal/core package.
// This creates MockMessageQueue with methods Publish, Claim, Ack, RequeueInflight.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=message_queue_mock.go github.com/target/title-doctor/internal/core MessageQueue

// Generate mock for Mailer interface from internal/core package.
// This creates MockMailer with method Send.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=mailer_mock.go github.com/target/title-doctor/internal/core Mailer
