package scheduler

import (
	"errors"

	"github.com/conorfennell/revq/internal/domain"
)

// Sentinel errors for the scheduler package.
// Use errors.Is to check: errors.Is(err, scheduler.ErrItemNotFound)
var (
	ErrItemNotFound     = errors.New("scheduler: item not found")
	ErrStoreUnavailable = errors.New("scheduler: store unavailable")
	ErrInvalidOutcome   = errors.New("scheduler: invalid outcome")

	// ErrVersionConflict is what a Store returns when the expected version
	// of a review state is stale.
	ErrVersionConflict = domain.ErrVersionConflict
)
