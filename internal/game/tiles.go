package game

import "lukechampine.com/frand"

// TileSource produces the next tile value, always 1, 2 or 3.
//
// Two sources exist: SeededTiles for reproducible games and RandomTiles for
// live play. A session picks one when it is created and keeps it.
type TileSource interface {
	Next() uint32
}

const (
	lcgMultiplier = 16807
	lcgModulus    = 1_924_421_567
	lcgWrap       = 3_229_763_266
)

// lcg is the deterministic linear-congruential generator.
type lcg struct {
	seed uint64
}

// SeededTiles returns a deterministic source. The same seed always yields the
// same tile sequence.
func SeededTiles(seed uint64) TileSource {
	return &lcg{seed: seed}
}

func (g *lcg) Next() uint32 {
	// uint64 multiplication wraps on overflow.
	e := (lcgMultiplier * g.seed) % lcgModulus
	if e > 0 {
		g.seed = e
	} else {
		g.seed = e + lcgWrap
	}
	return uint32(e%3) + 1
}

type randomTiles struct{}

// RandomTiles returns a uniform source over {1,2,3} backed by a CSPRNG.
func RandomTiles() TileSource {
	return randomTiles{}
}

func (randomTiles) Next() uint32 {
	return uint32(frand.Intn(3)) + 1
}

// NewBoard fills every cell with a value from tiles, in cell order.
func NewBoard(tiles TileSource) Board {
	var b Board
	for i := range b {
		b[i] = tiles.Next()
	}
	return b
}
