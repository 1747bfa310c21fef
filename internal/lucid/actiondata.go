// internal/lucid/actiondata.go
//
// Topology table for the Lucid solver.
//
// ActionData maps every set of cells that one connected chain can consume
// (up to a length cutoff) to the cells where such a chain can end. It depends
// on the grid shape only, never on tile values, so it is built once per
// process and shared read-only by every solver call.

package lucid

import (
	"fmt"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"github.com/robalobadob/gridentify/internal/game"
)

const (
	// DefaultMaxChain is the longest chain the solver considers.
	DefaultMaxChain = 4
	// MaxChainLimit bounds the cutoff; the table grows exponentially with it.
	MaxChainLimit = 8
)

// Coverage is the unordered set of cells an action visits, one bit per cell.
type Coverage uint32

// CoverageOf builds a Coverage from cell indices.
func CoverageOf(cells ...int) Coverage {
	var c Coverage
	for _, cell := range cells {
		c |= Coverage(1) << cell
	}
	return c
}

// Len is the number of cells in the set.
func (c Coverage) Len() int { return bits.OnesCount32(uint32(c)) }

// Has reports whether cell is in the set.
func (c Coverage) Has(cell int) bool { return c&(Coverage(1)<<cell) != 0 }

// Cells lists the cells in ascending order.
func (c Coverage) Cells() []int {
	out := make([]int, 0, c.Len())
	for rest := c; rest != 0; rest &= rest - 1 {
		out = append(out, rest.lowest())
	}
	return out
}

func (c Coverage) lowest() int { return bits.TrailingZeros32(uint32(c)) }

func (c Coverage) String() string {
	cells := c.Cells()
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = strconv.Itoa(cell)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ActionData is the immutable coverage -> end-cells table.
type ActionData struct {
	maxChain int
	ends     map[Coverage]Coverage
	sets     []Coverage             // ascending
	byCell   [game.Cells][]Coverage // sets containing each cell, ascending
}

// NewActionData walks every chain of 2..maxChain cells through grid
// adjacency and records, for each distinct coverage, the cells a chain over
// it can end on. It panics if maxChain is outside [2, MaxChainLimit].
func NewActionData(maxChain int) *ActionData {
	if maxChain < 2 || maxChain > MaxChainLimit {
		panic(fmt.Sprintf("lucid: chain cutoff %d outside [2, %d]", maxChain, MaxChainLimit))
	}
	d := &ActionData{
		maxChain: maxChain,
		ends:     make(map[Coverage]Coverage),
	}

	var extend func(covered Coverage, last, n int)
	extend = func(covered Coverage, last, n int) {
		if n >= 2 {
			d.ends[covered] |= Coverage(1) << last
		}
		if n == maxChain {
			return
		}
		for _, next := range game.Adjacent(last) {
			if !covered.Has(next) {
				extend(covered|Coverage(1)<<next, next, n+1)
			}
		}
	}
	for cell := range game.Cells {
		extend(CoverageOf(cell), cell, 1)
	}

	d.sets = make([]Coverage, 0, len(d.ends))
	for c := range d.ends {
		d.sets = append(d.sets, c)
	}
	slices.Sort(d.sets)
	for _, c := range d.sets {
		for _, cell := range c.Cells() {
			d.byCell[cell] = append(d.byCell[cell], c)
		}
	}
	return d
}

// MaxChain is the length cutoff the table was built with.
func (d *ActionData) MaxChain() int { return d.maxChain }

// Len is the number of coverage sets in the table.
func (d *ActionData) Len() int { return len(d.sets) }

// Sets returns every coverage set, ascending.
func (d *ActionData) Sets() []Coverage { return slices.Clone(d.sets) }

// Ends returns the cells a chain over c can end on.
func (d *ActionData) Ends(c Coverage) (Coverage, bool) {
	e, ok := d.ends[c]
	return e, ok
}

// mustEnds is Ends for coverage sets the solver produced itself; a miss is a
// bug, not a runtime condition.
func (d *ActionData) mustEnds(c Coverage) Coverage {
	e, ok := d.ends[c]
	if !ok {
		panic(fmt.Sprintf("lucid: coverage %v missing from action data", c))
	}
	return e
}

// Path rebuilds a concrete action over covered that finishes on end. It walks
// depth-first from end through cells of covered and reverses the result.
func (d *ActionData) Path(covered Coverage, end int) game.Action {
	path := make(game.Action, 1, covered.Len())
	path[0] = end

	var walk func(visited Coverage) bool
	walk = func(visited Coverage) bool {
		if visited == covered {
			return true
		}
		for _, n := range game.Adjacent(path[len(path)-1]) {
			if !covered.Has(n) || visited.Has(n) {
				continue
			}
			path = append(path, n)
			if walk(visited | Coverage(1)<<n) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}

	if !covered.Has(end) || !walk(CoverageOf(end)) {
		panic(fmt.Sprintf("lucid: no chain over %v ends on %d", covered, end))
	}
	slices.Reverse(path)
	return path
}
