// Package queue turns a raw set of due items into the ordered review queue.
package queue

import (
	"cmp"
	"iter"
	"slices"
	"sync"

	"github.com/conorfennell/revq/internal/domain"
)

// Compare orders due items for presentation: most overdue first, then the
// items with more lapses, then by id.
func Compare(a, b domain.DueItem) int {
	if c := a.State.NextDueAt.Compare(b.State.NextDueAt); c != 0 {
		return c
	}
	if c := cmp.Compare(b.State.LapseCount, a.State.LapseCount); c != 0 {
		return c
	}
	return cmp.Compare(a.ItemID, b.ItemID)
}

// Build returns the ordered sequence of item ids for the given due items.
// The input is copied, so later changes to items do not leak into the
// sequence. Sorting is deferred to the first iteration, and the sequence
// can be ranged over any number of times.
func Build(items []domain.DueItem) iter.Seq[string] {
	snapshot := slices.Clone(items)
	sortOnce := sync.OnceFunc(func() {
		slices.SortFunc(snapshot, Compare)
	})

	return func(yield func(string) bool) {
		sortOnce()
		for _, it := range snapshot {
			if !yield(it.ItemID) {
				return
			}
		}
	}
}

// Collect drains a sequence into a slice. An empty sequence gives an empty,
// non-nil slice.
func Collect(seq iter.Seq[string]) []string {
	ids := make([]string, 0)
	for id := range seq {
		ids = append(ids, id)
	}
	return ids
}
