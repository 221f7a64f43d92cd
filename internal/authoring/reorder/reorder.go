// Package reorder turns drag-and-drop moves into a new sibling order and the
// position write the move requires.
package reorder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// ErrUnknownItem is returned when a drag references an id that is not a sibling.
var ErrUnknownItem = errors.New("item is not in the sibling list")

// Item is one sibling as the engine sees it.
type Item struct {
	ID       ids.ID
	Position int
}

// Write is the single network update a move requires.
type Write struct {
	ID       ids.ID
	Position int
}

// Result is the outcome of planning a move.
type Result struct {
	// Order is the new sibling order. Persisted items carry their new position,
	// Local items keep whatever they had.
	Order []Item
	// Positions maps every persisted id to its new 1-based rank.
	Positions map[ids.ID]int
	// Write is nil when nothing has to be sent, which is the case when the dragged
	// item is Local or did not move.
	Write *Write
}

// IDs returns the ids of Order.
func (r Result) IDs() []ids.ID {
	out := make([]ids.ID, len(r.Order))
	for i, it := range r.Order {
		out[i] = it.ID
	}
	return out
}

// Move returns a copy of s with the element at from moved to index to.
func Move[T any](s []T, from, to int) []T {
	out := slices.Clone(s)
	if from == to || from < 0 || to < 0 || from >= len(s) || to >= len(s) {
		return out
	}
	v := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, v)
}

// Plan moves active to the index currently held by over, the way a sortable list
// handles "dropped on". Positions are recomputed over persisted items only.
func Plan(items []Item, active, over ids.ID) (Result, error) {
	from := slices.IndexFunc(items, func(it Item) bool { return it.ID == active })
	if from < 0 {
		return Result{}, fmt.Errorf("active %s: %w", active, ErrUnknownItem)
	}
	to := slices.IndexFunc(items, func(it Item) bool { return it.ID == over })
	if to < 0 {
		return Result{}, fmt.Errorf("over %s: %w", over, ErrUnknownItem)
	}
	return PlanIndex(items, from, to), nil
}

// PlanIndex is Plan with explicit indexes. Out of range indexes leave the order as is.
func PlanIndex(items []Item, from, to int) Result {
	order := Move(items, from, to)

	positions := make(map[ids.ID]int)
	rank := 0
	for i := range order {
		if !order[i].ID.IsPersisted() {
			continue
		}
		rank++
		order[i].Position = rank
		positions[order[i].ID] = rank
	}

	res := Result{Order: order, Positions: positions}
	if from == to || from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return res
	}
	moved := items[from]
	if moved.ID.IsPersisted() {
		res.Write = &Write{ID: moved.ID, Position: positions[moved.ID]}
	}
	return res
}
