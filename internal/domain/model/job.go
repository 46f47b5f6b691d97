// Package model defines the core data types used throughout the title doctor pipeline.
package model

import (
	"slices"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates a job was accepted and awaits channel resolution.
	JobStatusPending JobStatus = "pending"
	// JobStatusResolvingChannel indicates the channel reference is being resolved.
	JobStatusResolvingChannel JobStatus = "resolving-channel"
	// JobStatusFetchingContent indicates recent videos are being fetched.
	JobStatusFetchingContent JobStatus = "fetching-content"
	// JobStatusGeneratingContent indicates improved titles are being generated.
	JobStatusGeneratingContent JobStatus = "generating-content"
	// JobStatusSendingNotification indicates the results email is being sent.
	JobStatusSendingNotification JobStatus = "sending-notification"
	// JobStatusCompleted indicates the results were delivered.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed; Error holds the reason.
	JobStatusFailed JobStatus = "failed"
)

// statusRank orders the statuses of a successful run. Failed has no rank.
var statusRank = map[JobStatus]int{
	JobStatusPending:             0,
	JobStatusResolvingChannel:    1,
	JobStatusFetchingContent:     2,
	JobStatusGeneratingContent:   3,
	JobStatusSendingNotification: 4,
	JobStatusCompleted:           5,
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == JobStatusFailed
}

// IsTerminal reports whether no further stage transitions may occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Rank returns the position of s in a successful run, or -1 for failed and unknown statuses.
func (s JobStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// ActiveStatuses returns every non-terminal status.
func ActiveStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusResolvingChannel,
		JobStatusFetchingContent,
		JobStatusGeneratingContent,
		JobStatusSendingNotification,
	}
}

// Stage identifies one unit of pipeline work.
type Stage string

const (
	// StageSubmit is the submission step that creates the job.
	StageSubmit Stage = "submit"
	// StageResolveChannel resolves a handle or name into a channel id.
	StageResolveChannel Stage = "resolve-channel"
	// StageFetchContent lists the channel's most recent videos.
	StageFetchContent Stage = "fetch-content"
	// StageGenerateTitles asks the language model for improved titles.
	StageGenerateTitles Stage = "generate-titles"
	// StageNotifySuccess emails the improved titles.
	StageNotifySuccess Stage = "notify-success"
)

// InProgressStatus returns the status a job carries while s runs.
func (s Stage) InProgressStatus() JobStatus {
	switch s {
	case StageResolveChannel:
		return JobStatusResolvingChannel
	case StageFetchContent:
		return JobStatusFetchingContent
	case StageGenerateTitles:
		return JobStatusGeneratingContent
	case StageNotifySuccess:
		return JobStatusSendingNotification
	default:
		return JobStatusPending
	}
}

// StageForStatus returns the stage responsible for a job sitting in status.
func StageForStatus(status JobStatus) Stage {
	switch status {
	case JobStatusResolvingChannel:
		return StageResolveChannel
	case JobStatusFetchingContent:
		return StageFetchContent
	case JobStatusGeneratingContent:
		return StageGenerateTitles
	case JobStatusSendingNotification:
		return StageNotifySuccess
	default:
		return StageSubmit
	}
}

// Job is the durable per-job state document. Every stage reads the full
// record, merges its own result and writes the full record back.
type Job struct {
	ID            string    `json:"jobId"`
	ChannelRef    string    `json:"channel"`
	NotifyAddress string    `json:"email"`
	Status        JobStatus `json:"status"`

	ChannelID      string          `json:"channelId,omitempty"`
	ChannelName    string          `json:"channelName,omitempty"`
	Videos         []Video         `json:"videos,omitempty"`
	ImprovedTitles []ImprovedTitle `json:"improvedTitles,omitempty"`
	EmailID        string          `json:"emailId,omitempty"`
	Stages         []StageRecord   `json:"stages,omitempty"`

	Error               string   `json:"error,omitempty"`
	FailedStage         Stage    `json:"failedStage,omitempty"`
	NotificationEmailID string   `json:"notificationEmailId,omitempty"`
	NotificationError   string   `json:"notificationError,omitempty"`
	DiscardedErrors     []string `json:"discardedErrors,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

// StageRecord marks a stage that finished successfully.
type StageRecord struct {
	Stage       Stage     `json:"stage"`
	CompletedAt time.Time `json:"completedAt"`
}

// Channel is a resolved YouTube channel.
type Channel struct {
	ID   string `json:"channelId"`
	Name string `json:"channelName"`
}

// Video is one recent upload of a channel.
type Video struct {
	ID          string    `json:"videoId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// ImprovedTitle pairs an original title with the suggested replacement.
type ImprovedTitle struct {
	Original  string `json:"original"`
	Improved  string `json:"improved"`
	Rationale string `json:"rationale"`
	URL       string `json:"url"`
}

// IsTerminal reports whether the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// RecordStage appends a stage history entry.
func (j *Job) RecordStage(stage Stage, at time.Time) {
	j.Stages = append(j.Stages, StageRecord{Stage: stage, CompletedAt: at})
}

// Clone returns a deep copy so callers can mutate the result without
// affecting stored state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Videos = slices.Clone(j.Videos)
	c.ImprovedTitles = slices.Clone(j.ImprovedTitles)
	c.Stages = slices.Clone(j.Stages)
	c.DiscardedErrors = slices.Clone(j.DiscardedErrors)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.FailedAt != nil {
		t := *j.FailedAt
		c.FailedAt = &t
	}
	return &c
}
