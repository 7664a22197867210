package interval

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/revq/internal/domain"
)

// ErrInvalidParameters is returned by Validate for an inconsistent parameter set.
var ErrInvalidParameters = errors.New("interval: parameters out of bounds")

const day = 24 * time.Hour

// Params holds the parameters for the interval policy.
// The defaults follow the common SM-2 family of schedulers and can be
// replaced without changing the scheduler contract.
type Params struct {
	BaseEase            float64 `koanf:"base_ease"`             // ease of a freshly created item
	MinEase             float64 `koanf:"min_ease"`              // ease floor
	MaxEase             float64 `koanf:"max_ease"`              // ease ceiling
	EaseBonus           float64 `koanf:"ease_bonus"`            // added on every successful recall
	LapsePenalty        float64 `koanf:"lapse_penalty"`         // subtracted on every lapse
	MaximumIntervalDays int     `koanf:"maximum_interval_days"` // upper bound on the spacing
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		BaseEase:            2.5,
		MinEase:             1.3,
		MaxEase:             3.5,
		EaseBonus:           0.1,
		LapsePenalty:        0.2,
		MaximumIntervalDays: 36500,
	}
}

// Validate reports whether the parameters can produce only valid states.
func (p *Params) Validate() error {
	switch {
	case p.MinEase <= 0:
		return fmt.Errorf("%w: min ease %.2f must be positive", ErrInvalidParameters, p.MinEase)
	case p.MaxEase < p.MinEase:
		return fmt.Errorf("%w: max ease %.2f below min ease %.2f", ErrInvalidParameters, p.MaxEase, p.MinEase)
	case p.BaseEase < p.MinEase || p.BaseEase > p.MaxEase:
		return fmt.Errorf("%w: base ease %.2f outside [%.2f, %.2f]", ErrInvalidParameters, p.BaseEase, p.MinEase, p.MaxEase)
	case p.EaseBonus < 0:
		return fmt.Errorf("%w: ease bonus %.2f is negative", ErrInvalidParameters, p.EaseBonus)
	case p.LapsePenalty < 0:
		return fmt.Errorf("%w: lapse penalty %.2f is negative", ErrInvalidParameters, p.LapsePenalty)
	case p.MaximumIntervalDays < 1:
		return fmt.Errorf("%w: maximum interval %d must be at least one day", ErrInvalidParameters, p.MaximumIntervalDays)
	}
	return nil
}

// NewState returns the review state of an item created at createdAt.
// A new item is due immediately.
func (p *Params) NewState(createdAt time.Time) domain.ReviewState {
	return domain.ReviewState{
		NextDueAt:    createdAt,
		IntervalDays: 0,
		EaseFactor:   p.BaseEase,
		LapseCount:   0,
	}
}

// NextState calculates the review state that follows the given outcome.
// The result is always due strictly after outcome.At.
//
// A malformed current state is normalised first: the interval is clamped to
// [0, MaximumIntervalDays] and the ease to [MinEase, MaxEase]. The lapse
// penalty applies to the normalised ease, so a lapse on a state whose ease
// lies below MinEase yields MinEase or more rather than a lower ease.
func (p *Params) NextState(current domain.ReviewState, outcome domain.Outcome) domain.ReviewState {
	ivl := min(max(current.IntervalDays, 0), max(p.MaximumIntervalDays, 1))
	ease := p.clampEase(current.EaseFactor)
	lapses := max(current.LapseCount, 0)

	if outcome.Remembered {
		ivl = int(math.Round(float64(ivl) * ease))
		ease = p.clampEase(ease + p.EaseBonus)
		lapses = 0
	} else {
		ivl /= 2
		ease = p.clampEase(ease - p.LapsePenalty)
		lapses++
	}
	ivl = p.clampInterval(ivl)

	at := outcome.At
	return domain.ReviewState{
		LastAnsweredAt: &at,
		NextDueAt:      NextDueDate(at, ivl),
		IntervalDays:   ivl,
		EaseFactor:     ease,
		LapseCount:     lapses,
	}
}

// clampEase keeps the ease within [MinEase, MaxEase]. A non-finite or
// unset ease is treated as the base ease.
func (p *Params) clampEase(ease float64) float64 {
	if math.IsNaN(ease) || math.IsInf(ease, 0) || ease == 0 {
		ease = p.BaseEase
	}
	return math.Min(p.MaxEase, math.Max(p.MinEase, ease))
}

func (p *Params) clampInterval(days int) int {
	return min(max(days, 1), max(p.MaximumIntervalDays, 1))
}

// NextDueDate returns the instant that lies the given number of days after at.
func NextDueDate(at time.Time, days int) time.Time {
	return at.Add(time.Duration(days) * day)
}
