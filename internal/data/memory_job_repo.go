package data

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/target/title-doctor/internal/domain/model"
)

// MemoryJobRepo keeps job records in process memory. Records are copied on
// every read and write so callers never share state with the store.
type MemoryJobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobRepo creates an empty in-memory job store.
func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{jobs: make(map[string]*model.Job)}
}

// Get returns a copy of the stored job.
func (r *MemoryJobRepo) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	return j.Clone(), nil
}

// Set stores a copy of job.
func (r *MemoryJobRepo) Set(_ context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	return nil
}

// ListStale returns non-terminal jobs last updated before the cutoff, oldest first.
func (r *MemoryJobRepo) ListStale(_ context.Context, before time.Time, limit int) ([]*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*model.Job
	for _, j := range r.jobs {
		if !j.IsTerminal() && j.UpdatedAt.Before(before) {
			stale = append(stale, j.Clone())
		}
	}
	sort.Slice(stale, func(a, b int) bool { return stale[a].UpdatedAt.Before(stale[b].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// Health always succeeds for the in-memory store.
func (r *MemoryJobRepo) Health(context.Context) error {
	return nil
}

// Len returns the number of stored jobs.
func (r *MemoryJobRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
