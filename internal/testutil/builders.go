package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/target/title-doctor/internal/domain/model"
)

// JobOption customizes a job built by NewJob.
type JobOption func(*model.Job)

// NewJob returns a pending job with a random id created at TestTime.
func NewJob(opts ...JobOption) *model.Job {
	now := TestTime()
	j := &model.Job{
		ID:            uuid.NewString(),
		ChannelRef:    "@veritasium",
		NotifyAddress: "creator@example.com",
		Status:        model.JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// WithStatus sets the job status.
func WithStatus(s model.JobStatus) JobOption {
	return func(j *model.Job) { j.Status = s }
}

// WithUpdatedAt sets the last update time.
func WithUpdatedAt(t time.Time) JobOption {
	return func(j *model.Job) { j.UpdatedAt = t }
}

// WithChannel sets the resolved channel.
func WithChannel(id, name string) JobOption {
	return func(j *model.Job) {
		j.ChannelID = id
		j.ChannelName = name
	}
}

// WithVideos attaches n sample videos.
func WithVideos(n int) JobOption {
	return func(j *model.Job) { j.Videos = SampleVideos(n) }
}

// SampleVideos returns n videos with deterministic ids and titles, newest first.
func SampleVideos(n int) []model.Video {
	videos := make([]model.Video, 0, n)
	for i := range n {
		id := "vid" + string(rune('A'+i))
		videos = append(videos, model.Video{
			ID:          id,
			Title:       "Original title " + string(rune('A'+i)),
			URL:         "https://www.youtube.com/watch?v=" + id,
			PublishedAt: TestTime().Add(-time.Duration(i) * time.Hour),
		})
	}
	return videos
}

// SampleTitles returns one improved title per video, in order.
func SampleTitles(videos []model.Video) []model.ImprovedTitle {
	titles := make([]model.ImprovedTitle, 0, len(videos))
	for _, v := range videos {
		titles = append(titles, model.ImprovedTitle{
			Original:  v.Title,
			Improved:  "Better: " + v.Title,
			Rationale: "more specific",
			URL:       v.URL,
		})
	}
	return titles
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
