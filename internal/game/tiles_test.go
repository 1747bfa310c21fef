package game

import (
	"testing"

	"github.com/matryer/is"
)

func TestSeededBoard(t *testing.T) {
	is := is.New(t)
	want := Board{
		1, 1, 1, 2, 3,
		3, 2, 3, 1, 3,
		2, 1, 3, 2, 1,
		2, 1, 2, 2, 2,
		3, 1, 2, 2, 2,
	}
	for range 3 {
		is.Equal(NewBoard(SeededTiles(123)), want)
	}

	tiles := SeededTiles(123)
	NewBoard(tiles)
	var next []uint32
	for range 5 {
		next = append(next, tiles.Next())
	}
	is.Equal(next, []uint32{3, 1, 2, 2, 2})
}

func TestSeededWrap(t *testing.T) {
	is := is.New(t)

	// zero seed hits the wrap branch on the first draw
	g := &lcg{seed: 0}
	is.Equal(g.Next(), uint32(1))
	is.Equal(g.seed, uint64(3_229_763_266))
	is.Equal(g.Next(), uint32(3))
	is.Equal(g.seed, uint64(472_071_293))

	// large seeds overflow the multiplication and wrap modulo 2^64
	g = &lcg{seed: 1<<63 + 12345}
	is.Equal(g.Next(), uint32(1))
	is.Equal(g.seed, uint64(1_551_916_803))
}

func TestRandomTilesRange(t *testing.T) {
	is := is.New(t)
	tiles := RandomTiles()
	counts := map[uint32]int{}
	for range 3000 {
		v := tiles.Next()
		is.True(v >= 1 && v <= 3)
		counts[v]++
	}
	// every value shows up
	is.Equal(len(counts), 3)
}
