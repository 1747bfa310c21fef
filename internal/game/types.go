// internal/game/types.go
//
// Core type definitions for the Gridentify engine.
// Defines:
//   - Board:  the 5x5 grid of tile values (row-major).
//   - State:  a board plus the cumulative score.
//   - Action: an ordered chain of cells merged in one move.
//   - Game:   state for a single in-progress or finished session.

package game

import (
	"errors"
	"sync"
)

const (
	// Size is the width and height of the grid.
	Size = 5
	// Cells is the number of cells on the board.
	Cells = Size * Size
)

// Board holds the tile values, row-major. Freshly generated tiles are always
// 1, 2 or 3; merged cells hold larger values.
type Board [Cells]uint32

// State is a board plus the cumulative score. Score only increases.
type State struct {
	Board Board  `json:"board"`
	Score uint64 `json:"score"`
}

// Action is an ordered chain of cell indices. The merged value lands on the
// last cell.
type Action []int

// Validation failures. ValidateAction wraps these with the offending cell.
var (
	ErrTooShort      = errors.New("action too short")
	ErrOutOfBoard    = errors.New("cell out of board")
	ErrValueConflict = errors.New("cells hold different values")
	ErrDuplicateCell = errors.New("cell already in action")
	ErrNotAdjacent   = errors.New("cells are not next to each other")
	ErrOverflow      = errors.New("merged value does not fit in a cell")
	ErrGameFinished  = errors.New("game finished")
)

// Game holds the state of a single Gridentify session.
type Game struct {
	mu sync.Mutex

	ID       string // Unique game identifier (uuid).
	Nickname string // Name recorded on the leaderboard.

	state    State
	moves    int
	finished bool
	tiles    TileSource
}

// Result is the outcome of an accepted move.
type Result struct {
	State State `json:"state"`
	Moves int   `json:"moves"`
	// Completed is true only for the move that ended the game.
	Completed bool `json:"completed"`
}
