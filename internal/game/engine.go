// internal/game/engine.go
//
// Core game engine for a single Gridentify session.
// Responsibilities:
//   - Create new games with a fresh board from a tile source.
//   - Enumerate and validate actions (chains of equal, adjacent cells).
//   - Apply moves: multiply the last cell, refill the rest, add to score.
//   - Detect game over (no two adjacent cells share a value).
//
// Notes:
//   - The solver in internal/lucid consumes ValidActions/IsGameOver.
//   - Game wraps a State with a mutex; one session mutates its board at a time.
package game

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// ValidActions enumerates, from every cell, all simple paths through
// same-value adjacency and returns each path of length >= 2.
//
// The enumeration is exponential in the size of a same-valued region. Callers
// on hot paths should prefer IsGameOver or the solver's topology table.
func ValidActions(s *State) []Action {
	var neighbours [Cells][]int
	for i := range Cells {
		neighbours[i] = Neighbours(&s.Board, i)
	}

	var out []Action
	var extend func(path Action)
	extend = func(path Action) {
		last := path[len(path)-1]
		for _, n := range neighbours[last] {
			if slices.Contains(path, n) {
				continue
			}
			branch := append(slices.Clone(path), n)
			out = append(out, branch)
			extend(branch)
		}
	}
	for i := range Cells {
		extend(Action{i})
	}
	return out
}

// ValidateAction checks an action against the board and returns the first
// violated rule, wrapped with the offending cell.
//
// Rules, checked cell by cell in this order:
//   - at least two cells
//   - every cell on the board
//   - every cell holds the first cell's value
//   - no cell repeats
//   - consecutive cells share an edge
//
// Last, the merged value (first value times length) must fit in a uint32.
func ValidateAction(s *State, a Action) error {
	if len(a) < 2 {
		return fmt.Errorf("%w: %d cells", ErrTooShort, len(a))
	}
	if !onBoard(a[0]) {
		return fmt.Errorf("%w: %d", ErrOutOfBoard, a[0])
	}
	value := s.Board[a[0]]
	for i := 1; i < len(a); i++ {
		cell := a[i]
		if !onBoard(cell) {
			return fmt.Errorf("%w: %d", ErrOutOfBoard, cell)
		}
		if s.Board[cell] != value {
			return fmt.Errorf("%w: cell %d holds %d, want %d", ErrValueConflict, cell, s.Board[cell], value)
		}
		if slices.Contains(a[:i], cell) {
			return fmt.Errorf("%w: %d", ErrDuplicateCell, cell)
		}
		if !IsAdjacent(a[i-1], cell) {
			return fmt.Errorf("%w: %d and %d", ErrNotAdjacent, a[i-1], cell)
		}
	}
	if _, ok := merged(value, len(a)); !ok {
		return fmt.Errorf("%w: %d x %d", ErrOverflow, value, len(a))
	}
	return nil
}

// merged is the value an action of n cells holding v leaves on its last cell.
func merged(v uint32, n int) (uint32, bool) {
	m := uint64(v) * uint64(n)
	return uint32(m), m <= math.MaxUint32
}

func onBoard(cell int) bool { return cell >= 0 && cell < Cells }

// ApplyMove merges a validated action into the state. The last cell becomes
// its old value times the action length, every other visited cell is refilled
// from tiles, and the score grows by the new terminal value.
// It panics if the merged value overflows, which ValidateAction rejects.
func ApplyMove(s *State, a Action, tiles TileSource) {
	last := a[len(a)-1]
	v, ok := merged(s.Board[last], len(a))
	if !ok {
		panic(fmt.Sprintf("game: merging %d cells of %d overflows", len(a), s.Board[last]))
	}
	s.Board[last] = v
	for _, cell := range a[:len(a)-1] {
		s.Board[cell] = tiles.Next()
	}
	s.Score += uint64(s.Board[last])
}

// IsGameOver reports whether no two 4-adjacent cells share a value.
func IsGameOver(s *State) bool {
	for i := range Cells {
		x, y := i%Size, i/Size
		if x < Size-1 && s.Board[i+1] == s.Board[i] {
			return false
		}
		if y < Size-1 && s.Board[i+Size] == s.Board[i] {
			return false
		}
	}
	return true
}

// NewState builds a starting state from tiles.
func NewState(tiles TileSource) State {
	return State{Board: NewBoard(tiles)}
}

// New constructs a new game session for nickname, drawing every tile from
// tiles. A board with no pairs at all starts out finished.
func New(nickname string, tiles TileSource) *Game {
	st := NewState(tiles)
	return &Game{
		ID:       uuid.New().String(),
		Nickname: nickname,
		state:    st,
		tiles:    tiles,
		finished: IsGameOver(&st),
	}
}

// Apply validates and applies an action, mutating the game state.
// Returns the post-move snapshot, or an error wrapping one of the Err*
// sentinels. The move that ends the game reports Completed exactly once.
func (g *Game) Apply(a Action) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return Result{State: g.state, Moves: g.moves}, ErrGameFinished
	}
	if err := ValidateAction(&g.state, a); err != nil {
		return Result{State: g.state, Moves: g.moves}, err
	}
	ApplyMove(&g.state, a, g.tiles)
	g.moves++
	g.finished = IsGameOver(&g.state)
	return Result{State: g.state, Moves: g.moves, Completed: g.finished}, nil
}

// Snapshot returns a copy of the current state and move count.
func (g *Game) Snapshot() (State, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.moves
}

// Finished reports whether no further move is possible.
func (g *Game) Finished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finished
}
