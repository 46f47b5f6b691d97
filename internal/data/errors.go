package data

import (
	"errors"

	"github.com/target/title-doctor/internal/core"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job record does not exist.
	ErrJobNotFound = core.ErrJobNotFound
	// ErrJobIDRequired is returned when a job without an id is written.
	ErrJobIDRequired = errors.New("job id is required")
	// ErrQueueClosed is returned when publishing to or claiming from a closed queue.
	ErrQueueClosed = errors.New("queue closed")
)
