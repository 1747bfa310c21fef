// internal/lucid/state.go
//
// Search nodes for the Lucid solver.
// Responsibilities:
//   - Track per-cell knowledge: a known value, or a wildcard after a refill.
//   - Keep the candidate actions (coverage set + shared value) in canonical order.
//   - Derive children incrementally: only sets through merged cells change.

package lucid

import (
	"cmp"
	"math"
	"slices"

	"github.com/robalobadob/gridentify/internal/game"
)

// maxTile is the largest value a refilled cell can take.
const maxTile = 3

// wildcard marks a cell whose refill value is not known yet.
const wildcard = 0

// LucidAction is a coverage set paired with the value its cells must share.
// When the coverage contains wildcard cells the action is speculative: it
// only exists if those cells are refilled with Value.
type LucidAction struct {
	Covered Coverage `json:"covered"`
	Value   uint32   `json:"value"`
}

// Gain is the score the action adds when taken.
func (a LucidAction) Gain() uint64 {
	return uint64(a.Covered.Len()) * uint64(a.Value)
}

func compareActions(a, b LucidAction) int {
	if c := cmp.Compare(a.Covered, b.Covered); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

// LucidState is one node of the expected-value search: the candidate actions,
// the score so far and what is known about every cell.
type LucidState struct {
	data    *ActionData
	cells   game.Board // wildcard (0) where unknown
	wild    Coverage
	score   uint64
	actions []LucidAction // sorted by (Covered, Value)
}

// NewState builds the root node for a live state. Its actions are the state's
// valid actions that fit in data, one per coverage set.
func NewState(st game.State, data *ActionData) *LucidState {
	s := &LucidState{
		data:    data,
		cells:   st.Board,
		score:   st.Score,
		actions: make([]LucidAction, 0, 64),
	}
	for _, c := range data.sets {
		s.actions = s.derive(s.actions, c)
	}
	slices.SortFunc(s.actions, compareActions)
	return s
}

// derive appends the actions coverage set c supports under the current cell
// knowledge. Known cells must agree on a value. Wildcards can only become
// 1..3, and a set of nothing but wildcards supports all three values.
func (s *LucidState) derive(dst []LucidAction, c Coverage) []LucidAction {
	known := c &^ s.wild
	if known == 0 {
		for v := uint32(1); v <= maxTile; v++ {
			dst = append(dst, LucidAction{Covered: c, Value: v})
		}
		return dst
	}

	var value uint32
	for rest := known; rest != 0; rest &= rest - 1 {
		v := s.cells[rest.lowest()]
		if value == 0 {
			value = v
		} else if v != value {
			return dst
		}
	}
	if c&s.wild != 0 && value > maxTile {
		return dst
	}
	// a merge that would not fit in a cell is not a move
	if uint64(value)*uint64(c.Len()) > math.MaxUint32 {
		return dst
	}
	return append(dst, LucidAction{Covered: c, Value: value})
}

// Next is the speculative continuation of merging covered (all holding value)
// onto end. The end cell takes the merged value, the rest of covered turns
// into wildcards, actions touching covered are dropped, and the sets through
// the changed cells are derived again.
func (s *LucidState) Next(covered Coverage, value uint32, end int) *LucidState {
	n := uint32(covered.Len())
	child := &LucidState{
		data:  s.data,
		cells: s.cells,
		wild:  (s.wild | covered) &^ (Coverage(1) << end),
		score: s.score + uint64(n)*uint64(value),
	}
	child.cells[end] = n * value
	for rest := covered &^ (Coverage(1) << end); rest != 0; rest &= rest - 1 {
		child.cells[rest.lowest()] = wildcard
	}

	child.actions = make([]LucidAction, 0, len(s.actions)+16)
	for _, a := range s.actions {
		if a.Covered&covered == 0 {
			child.actions = append(child.actions, a)
		}
	}
	for rest := covered; rest != 0; rest &= rest - 1 {
		cell := rest.lowest()
		for _, c := range s.data.byCell[cell] {
			// derive each set once, from its lowest cell inside covered
			if (c & covered).lowest() != cell {
				continue
			}
			child.actions = child.derive(child.actions, c)
		}
	}
	slices.SortFunc(child.actions, compareActions)
	return child
}

// Key is the memoization key. The action collection is a function of the
// per-cell knowledge (cell -> value, or wildcard), so that layer identifies
// equivalent states reached in any order, exactly.
func (s *LucidState) Key() game.Board { return s.cells }

// Actions returns a copy of the candidate actions, in canonical order.
func (s *LucidState) Actions() []LucidAction { return slices.Clone(s.actions) }

// Wildcards is the set of cells whose values are unknown.
func (s *LucidState) Wildcards() Coverage { return s.wild }

// Score is the cumulative score of this node.
func (s *LucidState) Score() uint64 { return s.score }

// Cell returns the value of cell, or false for a wildcard.
func (s *LucidState) Cell(cell int) (uint32, bool) {
	v := s.cells[cell]
	return v, v != wildcard
}

// staticValue is the leaf heuristic: the score plus the best gain among
// actions that need no unknown cell.
func (s *LucidState) staticValue() float64 {
	var best uint64
	for _, a := range s.actions {
		if a.Covered&s.wild == 0 {
			best = max(best, a.Gain())
		}
	}
	return float64(s.score + best)
}
