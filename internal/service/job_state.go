package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/title-doctor/internal/core"
	domainjob "github.com/target/title-doctor/internal/domain/job"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
)

const jobLockStripes = 64

// JobStateServiceOptions groups dependencies for JobStateService.
type JobStateServiceOptions struct {
	Repo     core.JobRepository // Required: job record store
	Notifier domainjob.Notifier // Optional: change notifier, defaults to an in-process notifier
	Logger   *slog.Logger       // Optional: structured logger
	Now      func() time.Time   // Optional: clock, defaults to time.Now in UTC
}

// JobStateService owns every write to a job record. All writers go through
// Transition so status rules and change notifications apply uniformly.
type JobStateService struct {
	repo     core.JobRepository
	notifier domainjob.Notifier
	logger   *slog.Logger
	now      func() time.Time

	locks [jobLockStripes]sync.Mutex
}

// NewJobStateService constructs a new JobStateService.
func NewJobStateService(opts JobStateServiceOptions) (*JobStateService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = domainjob.NewNotifier()
	}

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobStateService{
		repo:     opts.Repo,
		notifier: notifier,
		logger:   logger.With("component", "job_state"),
		now:      now,
	}, nil
}

// Create persists a new pending job for the given submission.
func (s *JobStateService) Create(ctx context.Context, req model.SubmitRequest) (*model.Job, error) {
	now := s.now()
	j := &model.Job{
		ID:            uuid.NewString(),
		ChannelRef:    req.Channel,
		NotifyAddress: req.Email,
		Status:        model.JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Set(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.DebugContext(ctx, "job created", "job_id", j.ID, "channel", j.ChannelRef)
	s.notifier.Notify(j.ID)
	return j, nil
}

// Get returns the job record. A missing job yields an AppError with code not_found.
func (s *JobStateService) Get(ctx context.Context, id string) (*model.Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, "job not found")
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// Transition loads the job, applies t, persists the result and notifies
// subscribers. Writes to the same job from this process are serialized.
func (s *JobStateService) Transition(ctx context.Context, id string, t domainjob.Transition) (*model.Job, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := j.Status
	if err := domainjob.Apply(j, t, s.now()); err != nil {
		return nil, fmt.Errorf("transition job %s: %w", id, err)
	}
	if err := s.repo.Set(ctx, j); err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}

	if from != j.Status {
		s.logger.DebugContext(ctx, "job status changed", "job_id", id, "from", from, "to", j.Status)
	}
	s.notifier.Notify(id)
	return j, nil
}

// Wait blocks until the job is terminal, timeout elapses or ctx ends, and
// returns the latest record.
func (s *JobStateService) Wait(ctx context.Context, id string, timeout time.Duration) (*model.Job, error) {
	unsubscribe, changed := s.notifier.Subscribe(id)
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		j, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if j.IsTerminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return j, nil
		case <-timer.C:
			return j, nil
		case _, ok := <-changed:
			if !ok {
				return s.Get(ctx, id)
			}
		}
	}
}

// ListStale returns up to limit non-terminal jobs last updated before the cutoff.
func (s *JobStateService) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Job, error) {
	jobs, err := s.repo.ListStale(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}

// Now returns the current time from the service clock.
func (s *JobStateService) Now() time.Time {
	return s.now()
}

// Health checks the backing store.
func (s *JobStateService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}

func (s *JobStateService) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%jobLockStripes]
}
