package game

import (
	"fmt"
	"strings"
)

// adjacency lists the 4-neighbours of every cell: right, down, left, up.
var adjacency = func() (adj [Cells][]int) {
	for i := range Cells {
		x, y := i%Size, i/Size
		if x < Size-1 {
			adj[i] = append(adj[i], i+1)
		}
		if y < Size-1 {
			adj[i] = append(adj[i], i+Size)
		}
		if x > 0 {
			adj[i] = append(adj[i], i-1)
		}
		if y > 0 {
			adj[i] = append(adj[i], i-Size)
		}
	}
	return adj
}()

// Adjacent returns the cells sharing an edge with cell, ignoring tile values.
// The returned slice must not be modified.
func Adjacent(cell int) []int {
	return adjacency[cell]
}

// IsAdjacent reports whether a and b share an edge. Diagonals and row
// wrap-around do not count.
func IsAdjacent(a, b int) bool {
	ax, ay := a%Size, a/Size
	bx, by := b%Size, b/Size
	return absDiff(ax, bx)+absDiff(ay, by) == 1
}

// Neighbours returns the 4-adjacent cells that hold the same value as cell.
func Neighbours(b *Board, cell int) []int {
	out := make([]int, 0, 4)
	for _, n := range adjacency[cell] {
		if b[n] == b[cell] {
			out = append(out, n)
		}
	}
	return out
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// String renders the board as five rows of right-aligned values.
func (b Board) String() string {
	width := 1
	for _, v := range b {
		width = max(width, len(fmt.Sprint(v)))
	}
	var sb strings.Builder
	for i, v := range b {
		if i%Size != 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%*d", width, v)
		if i%Size == Size-1 && i != Cells-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
