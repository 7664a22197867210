// Package scheduler is the single path by which review state changes.
//
// It loads an item's state from a Store, runs the interval policy and
// writes the result back under an optimistic version check. It also answers
// due queries. The scheduler keeps no state of its own between calls.
package scheduler

//go:generate mockgen -destination=mock/store_mock.go -package=mock_scheduler . Store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/conorfennell/revq/internal/domain"
	"github.com/conorfennell/revq/internal/interval"
	"github.com/conorfennell/revq/internal/queue"
)

// DefaultMaxAttempts bounds the read-compute-write cycle on version conflicts.
const DefaultMaxAttempts = 3

// VersionedState is a review state together with the version it was read at.
type VersionedState struct {
	State   domain.ReviewState
	Version int64
}

// Store is the durable storage the scheduler reads from and writes to.
//
// GetReviewState returns an error wrapping domain.ErrNotFound when the item
// does not exist or belongs to another owner. PutReviewState must write only
// if the stored version equals expectedVersion, and otherwise return an
// error wrapping domain.ErrVersionConflict. An empty setID in QueryDue
// selects every set of the owner.
type Store interface {
	GetReviewState(ctx context.Context, itemID, ownerID string) (VersionedState, error)
	PutReviewState(ctx context.Context, itemID string, expectedVersion int64, state domain.ReviewState) error
	QueryDue(ctx context.Context, ownerID, setID string, asOf time.Time) ([]domain.DueItem, error)
}

// Config configures a Scheduler. Zero values produce defaults.
type Config struct {
	Params      *interval.Params // nil → interval.DefaultParams
	MaxAttempts int              // zero → DefaultMaxAttempts
	Logger      *slog.Logger     // nil → slog.Default
}

// Scheduler mediates between answer events and persisted review state.
type Scheduler struct {
	store       Store
	params      *interval.Params
	maxAttempts int
	log         *slog.Logger
}

// New creates a Scheduler on top of the given store.
func New(store Store, cfg Config) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("scheduler: nil store")
	}

	params := cfg.Params
	if params == nil {
		params = interval.DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}
	if attempts < 0 {
		return nil, fmt.Errorf("scheduler: max attempts %d must be positive", attempts)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:       store,
		params:      params,
		maxAttempts: attempts,
		log:         logger,
	}, nil
}

// Params returns the interval policy the scheduler runs.
func (s *Scheduler) Params() *interval.Params {
	return s.params
}

// RecordAnswer applies an answer to the item and returns its new state.
func (s *Scheduler) RecordAnswer(ctx context.Context, itemID, ownerID string, remembered bool, at time.Time) (domain.ReviewState, error) {
	if err := s.validateAnswer(itemID, ownerID, at); err != nil {
		return domain.ReviewState{}, err
	}
	outcome := domain.Outcome{Remembered: remembered, At: at}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ReviewState{}, fmt.Errorf("%w: item %s: %w", ErrStoreUnavailable, itemID, err)
		}

		current, err := s.store.GetReviewState(ctx, itemID, ownerID)
		if err != nil {
			return domain.ReviewState{}, classify(itemID, err)
		}

		next := s.params.NextState(current.State, outcome)

		err = s.store.PutReviewState(ctx, itemID, current.Version, next)
		if err == nil {
			s.log.Debug("answer recorded",
				"item_id", itemID,
				"remembered", remembered,
				"interval_days", next.IntervalDays,
				"next_due_at", next.NextDueAt,
				"version", current.Version+1,
			)
			return next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.ReviewState{}, classify(itemID, err)
		}

		lastErr = err
		s.log.Debug("version conflict, retrying", "item_id", itemID, "attempt", attempt, "version", current.Version)
	}

	s.log.Warn("giving up after version conflicts", "item_id", itemID, "attempts", s.maxAttempts)
	return domain.ReviewState{}, fmt.Errorf("%w: item %s: %d attempts: %w", ErrStoreUnavailable, itemID, s.maxAttempts, lastErr)
}

// DueQuery returns the ids of the owner's items that are due at asOf, in
// store order. An empty setID covers every set.
func (s *Scheduler) DueQuery(ctx context.Context, ownerID, setID string, asOf time.Time) ([]string, error) {
	items, err := s.due(ctx, ownerID, setID, asOf)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	return ids, nil
}

// GetDueQueue returns the owner's due items in review order.
// Nothing due gives an empty sequence and a nil error.
func (s *Scheduler) GetDueQueue(ctx context.Context, ownerID, setID string, asOf time.Time) (iter.Seq[string], error) {
	items, err := s.due(ctx, ownerID, setID, asOf)
	if err != nil {
		return nil, err
	}
	return queue.Build(items), nil
}

func (s *Scheduler) due(ctx context.Context, ownerID, setID string, asOf time.Time) ([]domain.DueItem, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidOutcome)
	}
	if asOf.IsZero() {
		return nil, fmt.Errorf("%w: reference time is required", ErrInvalidOutcome)
	}
	if !domain.InTimeRange(asOf) {
		return nil, fmt.Errorf("%w: reference time %s out of range", ErrInvalidOutcome, asOf)
	}

	items, err := s.store.QueryDue(ctx, ownerID, setID, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: querying due items for owner %s: %w", ErrStoreUnavailable, ownerID, err)
	}

	// Stores may over-select; only items due by asOf belong in the result.
	due := make([]domain.DueItem, 0, len(items))
	for _, it := range items {
		if !it.State.NextDueAt.After(asOf) {
			due = append(due, it)
		}
	}
	return due, nil
}

// validateAnswer also rejects answer times whose longest possible next due
// time could not be persisted.
func (s *Scheduler) validateAnswer(itemID, ownerID string, at time.Time) error {
	switch {
	case itemID == "":
		return fmt.Errorf("%w: item id is required", ErrInvalidOutcome)
	case ownerID == "":
		return fmt.Errorf("%w: owner id is required", ErrInvalidOutcome)
	case at.IsZero():
		return fmt.Errorf("%w: answer time is required", ErrInvalidOutcome)
	case !domain.InTimeRange(at),
		!domain.InTimeRange(interval.NextDueDate(at, s.params.MaximumIntervalDays)):
		return fmt.Errorf("%w: answer time %s out of range", ErrInvalidOutcome, at)
	}
	return nil
}

func classify(itemID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("%w: item %s: %w", ErrInvalidOutcome, itemID, err)
	}
	return fmt.Errorf("%w: item %s: %w", ErrStoreUnavailable, itemID, err)
}
