// Package job holds the state rules shared by every writer of a job record.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/target/title-doctor/internal/domain/model"
)

// ErrInvalidTransition indicates a status change that would move a job backwards
// or out of a terminal status.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Transition describes one read-modify-write step on a job record.
type Transition struct {
	// Status is the target status. Empty keeps the current status.
	Status model.JobStatus
	// Merge applies payload changes. It runs after the status check and must
	// not block.
	Merge func(*model.Job)
}

// CanTransition reports whether a job in status from may move to status to.
//
// Same-status writes are always allowed so terminal records can be annotated.
// Terminal statuses never change. Failed is reachable from any other status,
// and the successful path only moves forward.
func CanTransition(from, to model.JobStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == model.JobStatusFailed {
		return true
	}
	return to.Rank() > from.Rank()
}

// Apply validates t against j and applies it in place. The immutable
// submission fields are restored after Merge runs.
func Apply(j *model.Job, t Transition, now time.Time) error {
	target := t.Status
	if target == "" {
		target = j.Status
	}
	if !CanTransition(j.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, target)
	}

	id, ref, addr, created := j.ID, j.ChannelRef, j.NotifyAddress, j.CreatedAt
	if t.Merge != nil {
		t.Merge(j)
	}
	j.ID, j.ChannelRef, j.NotifyAddress, j.CreatedAt = id, ref, addr, created

	j.Status = target
	j.UpdatedAt = now
	return nil
}

// InProgress returns the transition that marks stage as running.
func InProgress(stage model.Stage) Transition {
	return Transition{Status: stage.InProgressStatus()}
}

// Failed returns the transition a stage applies when it cannot finish.
func Failed(stage model.Stage, reason string) Transition {
	return Transition{
		Status: model.JobStatusFailed,
		Merge: func(j *model.Job) {
			j.Error = reason
			j.FailedStage = stage
		},
	}
}
