// internal/lucid/solver.go
//
// Expected-score search over speculative refills.
// Responsibilities:
//   - Value a node by recursing into every action and end to MaxDepth plies.
//   - Average over wildcard assignments (3 values per unknown cell).
//   - Pick the root move (BestAction) and drive whole games (Play).
//
// Notes:
//   - Cost grows roughly 40x per ply: with the default chain cutoff one
//     decision takes about 2s at depth 2 and over a minute at depth 3.
//   - The memo lives for one BestAction call; Solver itself is stateless.

package lucid

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/game"
)

// Decision is the solver's pick for one position.
type Decision struct {
	Action    game.Action `json:"action"`
	Expected  float64     `json:"expected"`
	Nodes     int         `json:"nodes"`
	CacheHits int         `json:"cacheHits"`
}

// Solver picks moves by expected score over unknown refills. It holds no
// per-call state and is safe for concurrent use.
type Solver struct {
	data     *ActionData
	maxDepth int
}

// MaxDepthLimit is the deepest search a Solver runs. Deeper searches take
// minutes per decision.
const MaxDepthLimit = 3

// NewSolver returns a solver searching maxDepth plies of speculation below
// each root move. Depth 0 scores every child with the leaf heuristic.
func NewSolver(data *ActionData, maxDepth int) *Solver {
	maxDepth = min(max(maxDepth, 0), MaxDepthLimit)
	return &Solver{data: data, maxDepth: maxDepth}
}

// MaxDepth is the configured search depth.
func (sv *Solver) MaxDepth() int { return sv.maxDepth }

type memoKey struct {
	cells game.Board
	depth int
}

// search is the per-call memo. Entries store the gain over the node's own
// score, so equivalent positions with different history share a value.
type search struct {
	maxDepth int
	memo     map[memoKey]float64
	nodes    int
	hits     int
}

type rankedAction struct {
	LucidAction
	value float64
}

func (sr *search) value(s *LucidState, depth int) float64 {
	if depth > sr.maxDepth {
		return s.staticValue()
	}
	k := memoKey{cells: s.Key(), depth: depth}
	if gain, ok := sr.memo[k]; ok {
		sr.hits++
		return float64(s.score) + gain
	}
	sr.nodes++

	ranked := make([]rankedAction, 0, len(s.actions))
	for _, a := range s.actions {
		best := math.Inf(-1)
		for ends := s.data.mustEnds(a.Covered); ends != 0; ends &= ends - 1 {
			v := sr.value(s.Next(a.Covered, a.Value, ends.lowest()), depth+1)
			if v > best {
				best = v
			}
		}
		ranked = append(ranked, rankedAction{LucidAction: a, value: best})
	}
	slices.SortStableFunc(ranked, func(x, y rankedAction) int {
		return cmp.Compare(y.value, x.value)
	})

	ev := s.expectation(ranked)
	sr.memo[k] = ev - float64(s.score)
	return ev
}

// expectation averages over every assignment of 1..3 to the wildcard cells
// the top-ranked actions depend on. Under each assignment the node is worth
// the first ranked action it makes real, or its own score if none.
//
// Only the ranked prefix up to the first action with no wildcard matters:
// that action is always available, so nothing ranked below it is ever chosen.
// Child values already average over wildcards outside their own coverage, so
// taking the best child per assignment is an approximation of the true
// expectation, not an exact one.
func (s *LucidState) expectation(ranked []rankedAction) float64 {
	if len(ranked) == 0 {
		return float64(s.score)
	}

	var relevant Coverage
	n := 0
	for _, r := range ranked {
		n++
		unknown := r.Covered & s.wild
		relevant |= unknown
		if unknown == 0 {
			break
		}
	}
	ranked = ranked[:n]

	cells := relevant.Cells()
	combos := 1
	for range cells {
		combos *= maxTile
	}

	var assigned game.Board
	total := 0.0
	for combo := range combos {
		x := combo
		for _, c := range cells {
			assigned[c] = uint32(x%maxTile) + 1
			x /= maxTile
		}
		v := float64(s.score)
		for _, r := range ranked {
			if consistent(r.LucidAction, s.wild, &assigned) {
				v = r.value
				break
			}
		}
		total += v
	}
	return total / float64(combos)
}

func consistent(a LucidAction, wild Coverage, assigned *game.Board) bool {
	for rest := a.Covered & wild; rest != 0; rest &= rest - 1 {
		if assigned[rest.lowest()] != a.Value {
			return false
		}
	}
	return true
}

// BestAction returns the move with the highest expected score. Moves are
// tried in canonical order with end cells ascending; ties keep the first.
// It panics if st has no valid action.
func (sv *Solver) BestAction(st game.State) Decision {
	start := time.Now()
	root := NewState(st, sv.data)
	sr := &search{maxDepth: sv.maxDepth, memo: make(map[memoKey]float64)}

	best := math.Inf(-1)
	var bestCov Coverage
	bestEnd := -1
	for _, a := range root.actions {
		for ends := sv.data.mustEnds(a.Covered); ends != 0; ends &= ends - 1 {
			end := ends.lowest()
			v := sr.value(root.Next(a.Covered, a.Value, end), 1)
			if v > best {
				best, bestCov, bestEnd = v, a.Covered, end
			}
		}
	}
	if bestEnd < 0 {
		panic("lucid: no action available; the game is over")
	}

	d := Decision{
		Action:    sv.data.Path(bestCov, bestEnd),
		Expected:  best,
		Nodes:     sr.nodes,
		CacheHits: sr.hits,
	}
	log.Debug().
		Ints("action", d.Action).
		Float64("expected", d.Expected).
		Int("nodes", d.Nodes).
		Int("cache-hits", d.CacheHits).
		Dur("took", time.Since(start)).
		Msg("lucid-decision")
	return d
}

// Play drives a game to completion, taking BestAction every turn and
// refilling from tiles. onMove, if set, sees each decision and the state
// after it. Returns the final state and the number of moves made.
func (sv *Solver) Play(st game.State, tiles game.TileSource, onMove func(move int, d Decision, after game.State)) (game.State, int) {
	moves := 0
	for !game.IsGameOver(&st) {
		d := sv.BestAction(st)
		if err := game.ValidateAction(&st, d.Action); err != nil {
			panic(fmt.Sprintf("lucid: chose invalid action %v: %v", d.Action, err))
		}
		game.ApplyMove(&st, d.Action, tiles)
		moves++
		if onMove != nil {
			onMove(moves, d, st)
		}
	}
	return st, moves
}
