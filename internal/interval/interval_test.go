package interval

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/conorfennell/revq/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestNewState(t *testing.T) {
	params := DefaultParams()
	s := params.NewState(t0)

	if !s.NextDueAt.Equal(t0) {
		t.Errorf("Expected new item to be due at %v, but got %v", t0, s.NextDueAt)
	}
	if s.IntervalDays != 0 || s.LapseCount != 0 || s.LastAnsweredAt != nil {
		t.Errorf("Expected zeroed state for new item, got %+v", s)
	}
	if s.EaseFactor != 2.5 {
		t.Errorf("Expected base ease 2.5, got %.2f", s.EaseFactor)
	}
}

func TestNextState(t *testing.T) {
	params := DefaultParams()

	t.Run("First success", func(t *testing.T) {
		s := params.NextState(params.NewState(t0), domain.Outcome{Remembered: true, At: t0})
		if s.IntervalDays != 1 {
			t.Errorf("Expected interval 1, got %d", s.IntervalDays)
		}
		if !s.NextDueAt.Equal(t0.Add(24 * time.Hour)) {
			t.Errorf("Expected due one day later, got %v", s.NextDueAt)
		}
		if s.LapseCount != 0 {
			t.Errorf("Expected no lapses, got %d", s.LapseCount)
		}
		if s.LastAnsweredAt == nil || !s.LastAnsweredAt.Equal(t0) {
			t.Errorf("Expected last answered at %v, got %v", t0, s.LastAnsweredAt)
		}
		if math.Abs(s.EaseFactor-2.6) > 1e-9 {
			t.Errorf("Expected ease 2.6, got %.2f", s.EaseFactor)
		}
	})

	t.Run("Success grows the interval", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: 3, EaseFactor: 2.5, LapseCount: 2, NextDueAt: t0}
		s := params.NextState(current, domain.Outcome{Remembered: true, At: t0})
		// round(3 * 2.5) = round(7.5) = 8
		if s.IntervalDays != 8 {
			t.Errorf("Expected interval 8, got %d", s.IntervalDays)
		}
		if s.LapseCount != 0 {
			t.Errorf("Expected lapses reset to 0, got %d", s.LapseCount)
		}
	})

	t.Run("Lapse halves the interval", func(t *testing.T) {
		t1 := t0.Add(72 * time.Hour)
		current := domain.ReviewState{IntervalDays: 4, EaseFactor: 2.5, LapseCount: 1, NextDueAt: t0}
		s := params.NextState(current, domain.Outcome{Remembered: false, At: t1})
		if s.IntervalDays != 2 {
			t.Errorf("Expected interval 2, got %d", s.IntervalDays)
		}
		if s.LapseCount != 2 {
			t.Errorf("Expected lapse count 2, got %d", s.LapseCount)
		}
		if !s.NextDueAt.Equal(t1.Add(48 * time.Hour)) {
			t.Errorf("Expected due two days after %v, got %v", t1, s.NextDueAt)
		}
		if math.Abs(s.EaseFactor-2.3) > 1e-9 {
			t.Errorf("Expected ease 2.3, got %.2f", s.EaseFactor)
		}
	})

	t.Run("First lapse", func(t *testing.T) {
		s := params.NextState(params.NewState(t0), domain.Outcome{Remembered: false, At: t0})
		if s.IntervalDays != 1 {
			t.Errorf("Expected interval 1, got %d", s.IntervalDays)
		}
		if s.LapseCount != 1 {
			t.Errorf("Expected lapse count 1, got %d", s.LapseCount)
		}
	})

	t.Run("Ease is floored", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: 1, EaseFactor: 1.35}
		s := params.NextState(current, domain.Outcome{Remembered: false, At: t0})
		if s.EaseFactor != params.MinEase {
			t.Errorf("Expected ease floored at %.2f, got %.2f", params.MinEase, s.EaseFactor)
		}
	})

	t.Run("Ease is capped", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: 1, EaseFactor: 3.45}
		s := params.NextState(current, domain.Outcome{Remembered: true, At: t0})
		if s.EaseFactor != params.MaxEase {
			t.Errorf("Expected ease capped at %.2f, got %.2f", params.MaxEase, s.EaseFactor)
		}
	})

	t.Run("Interval is capped", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: 30000, EaseFactor: 3.0}
		s := params.NextState(current, domain.Outcome{Remembered: true, At: t0})
		if s.IntervalDays != params.MaximumIntervalDays {
			t.Errorf("Expected interval capped at %d, got %d", params.MaximumIntervalDays, s.IntervalDays)
		}
	})

	t.Run("Huge interval stops at the cap", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: 1 << 62, EaseFactor: 2.5}
		s := params.NextState(current, domain.Outcome{Remembered: true, At: t0})
		if s.IntervalDays != params.MaximumIntervalDays {
			t.Errorf("Expected interval capped at %d, got %d", params.MaximumIntervalDays, s.IntervalDays)
		}
		s = params.NextState(current, domain.Outcome{Remembered: false, At: t0})
		if s.IntervalDays != params.MaximumIntervalDays/2 {
			t.Errorf("Expected interval %d, got %d", params.MaximumIntervalDays/2, s.IntervalDays)
		}
	})

	t.Run("Lapse below the ease floor lands on the floor", func(t *testing.T) {
		for _, ease := range []float64{1.0, 0.5} {
			current := domain.ReviewState{IntervalDays: 4, EaseFactor: ease}
			s := params.NextState(current, domain.Outcome{Remembered: false, At: t0})
			if s.EaseFactor != params.MinEase {
				t.Errorf("ease %.2f: expected %.2f, got %.2f", ease, params.MinEase, s.EaseFactor)
			}
		}
	})

	t.Run("Malformed input is normalised", func(t *testing.T) {
		current := domain.ReviewState{IntervalDays: -5, EaseFactor: math.NaN(), LapseCount: -3}
		s := params.NextState(current, domain.Outcome{Remembered: false, At: t0})
		if s.IntervalDays != 1 || s.LapseCount != 1 {
			t.Errorf("Expected interval 1 and lapse 1, got %+v", s)
		}
		if s.EaseFactor < params.MinEase || s.EaseFactor > params.MaxEase {
			t.Errorf("Expected ease within bounds, got %.2f", s.EaseFactor)
		}
	})

	t.Run("Input is not mutated", func(t *testing.T) {
		last := t0.Add(-time.Hour)
		current := domain.ReviewState{LastAnsweredAt: &last, IntervalDays: 2, EaseFactor: 2.5}
		_ = params.NextState(current, domain.Outcome{Remembered: true, At: t0})
		if !current.LastAnsweredAt.Equal(last) || current.IntervalDays != 2 {
			t.Errorf("Expected input state to be unchanged, got %+v", current)
		}
	})
}

// TestNextStateProperties walks random answer sequences and checks that
// every reachable state keeps its invariants.
func TestNextStateProperties(t *testing.T) {
	params := DefaultParams()
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 200; run++ {
		s := params.NewState(t0)
		at := t0
		for step := 0; step < 50; step++ {
			at = at.Add(time.Duration(rng.IntN(96)) * time.Hour)
			o := domain.Outcome{Remembered: rng.IntN(3) > 0, At: at}
			next := params.NextState(s, o)

			if !next.NextDueAt.After(o.At) {
				t.Fatalf("run %d step %d: due %v not after answer %v", run, step, next.NextDueAt, o.At)
			}
			if next.EaseFactor < params.MinEase || next.EaseFactor > params.MaxEase {
				t.Fatalf("run %d step %d: ease %.2f out of bounds", run, step, next.EaseFactor)
			}
			if next.IntervalDays < 0 || next.LapseCount < 0 {
				t.Fatalf("run %d step %d: negative counters %+v", run, step, next)
			}
			if next.LastAnsweredAt == nil || next.NextDueAt.Before(*next.LastAnsweredAt) {
				t.Fatalf("run %d step %d: due before last answer %+v", run, step, next)
			}
			if !o.Remembered {
				if next.LapseCount != s.LapseCount+1 {
					t.Fatalf("run %d step %d: lapse count %d, want %d", run, step, next.LapseCount, s.LapseCount+1)
				}
				if next.EaseFactor > s.EaseFactor {
					t.Fatalf("run %d step %d: ease rose on lapse %.2f -> %.2f", run, step, s.EaseFactor, next.EaseFactor)
				}
			} else if next.LapseCount != 0 {
				t.Fatalf("run %d step %d: lapse count %d after success", run, step, next.LapseCount)
			}
			s = next
		}
	}
}

func TestNextStateDeterministic(t *testing.T) {
	params := DefaultParams()
	current := domain.ReviewState{IntervalDays: 6, EaseFactor: 2.1, LapseCount: 1}
	o := domain.Outcome{Remembered: true, At: t0}

	a := params.NextState(current, o)
	b := params.NextState(current, o)
	if a.IntervalDays != b.IntervalDays || a.EaseFactor != b.EaseFactor || !a.NextDueAt.Equal(b.NextDueAt) {
		t.Errorf("Expected identical results, got %+v and %+v", a, b)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(p *Params)
		valid  bool
	}{
		{name: "Defaults", modify: func(p *Params) {}, valid: true},
		{name: "Zero min ease", modify: func(p *Params) { p.MinEase = 0 }},
		{name: "Max below min", modify: func(p *Params) { p.MaxEase = 1.0 }},
		{name: "Base outside bounds", modify: func(p *Params) { p.BaseEase = 4.0 }},
		{name: "Negative bonus", modify: func(p *Params) { p.EaseBonus = -0.1 }},
		{name: "Negative penalty", modify: func(p *Params) { p.LapsePenalty = -0.1 }},
		{name: "Zero maximum interval", modify: func(p *Params) { p.MaximumIntervalDays = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.modify(p)
			err := p.Validate()
			if tc.valid && err != nil {
				t.Fatalf("Validate() returned an unexpected error: %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("Expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestNextDueDate(t *testing.T) {
	expected := t0.Add(16 * 24 * time.Hour)
	if actual := NextDueDate(t0, 16); !actual.Equal(expected) {
		t.Errorf("Expected due date %v, but got %v", expected, actual)
	}
}
