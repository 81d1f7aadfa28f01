// package 围碁 implements Go (the board game) rules — stone placement,
// capture, suicide rejection, area scoring and ownership — and wires
// them up behind the game.State / game.BoardOracle contracts the
// search core consumes.
//
// 围碁 is a bastardized word. The first character is read "wei" in
// Chinese. The second is read "qi" in Chinese. However, the character
// 碁 is no longer actively used in Chinese. It is however, actively
// used in Japanese. Specifically, it's read "go" in Japanese.
//
// The main reason why this package is named with unicode characters
// instead of `package go` is because the standard library of the Go
// language has the prefix "go".
package 围碁

import (
	"fmt"

	"github.com/igogo/engine/game"
	"github.com/pkg/errors"
)

// emptyColor is the zero value of game.Color used as "no stone" on
// the board. It reuses game.Invalid: a board point is never itself a
// search-node colour, so the two concerns don't collide.
const emptyColor = game.Invalid

// Board is a flat Go board and its stone-placement rules: captures,
// suicide rejection and liberty counting. It carries no notion of
// whose turn it is, move history or komi — that lives one level up,
// in State.
//
// Board is indexed purely by game.Vertex (already a flat index);
// neighbours come from a precomputed adjacency table, built once per
// board size, so liberty flood fills never do coordinate math.
type Board struct {
	size      int
	stones    []game.Color
	neighbors [][]game.Vertex // <=4 entries per vertex
}

func newBoard(size int) *Board {
	b := &Board{
		size:      size,
		stones:    make([]game.Color, size*size),
		neighbors: make([][]game.Vertex, size*size),
	}
	for v := 0; v < size*size; v++ {
		x, y := v%size, v/size
		var adj []game.Vertex
		if x > 0 {
			adj = append(adj, game.Vertex(v-1))
		}
		if x < size-1 {
			adj = append(adj, game.Vertex(v+1))
		}
		if y > 0 {
			adj = append(adj, game.Vertex(v-size))
		}
		if y < size-1 {
			adj = append(adj, game.Vertex(v+size))
		}
		b.neighbors[v] = adj
	}
	return b
}

// Clone returns a deep, independently mutable copy of b. The
// adjacency table is immutable for a given size, so it is shared
// rather than copied.
func (b *Board) Clone() *Board {
	stones := make([]game.Color, len(b.stones))
	copy(stones, b.stones)
	return &Board{size: b.size, stones: stones, neighbors: b.neighbors}
}

// Format implements fmt.Formatter, printing the board with %s.
func (b *Board) Format(s fmt.State, c rune) {
	if c != 's' {
		return
	}
	for y := b.size - 1; y >= 0; y-- {
		fmt.Fprint(s, "⎢ ")
		for x := 0; x < b.size; x++ {
			fmt.Fprintf(s, "%s ", b.stones[y*b.size+x])
		}
		fmt.Fprint(s, "⎥\n")
	}
}

// group returns every stone connected to v (inclusive) and the number
// of distinct empty liberties the group has. v must hold a stone.
func (b *Board) group(v game.Vertex) (stones []game.Vertex, liberties int) {
	color := b.stones[v]
	seen := make(map[game.Vertex]bool)
	libs := make(map[game.Vertex]bool)
	stack := []game.Vertex{v}
	seen[v] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stones = append(stones, cur)
		for _, n := range b.neighbors[cur] {
			switch b.stones[n] {
			case emptyColor:
				libs[n] = true
			case color:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return stones, len(libs)
}

// apply places a c stone at v, removing any opponent groups left with
// zero liberties and then rejecting suicide. On success it returns
// the captured vertices and mutates the board; on failure the board
// is left untouched and an error describes why.
func (b *Board) apply(v game.Vertex, c game.Color) ([]game.Vertex, error) {
	if b.stones[v] != emptyColor {
		return nil, moveError{vertex: v, color: c, cause: errors.New("vertex is occupied")}
	}
	b.stones[v] = c

	opp := c.Opponent()
	var captured []game.Vertex
	checked := make(map[game.Vertex]bool)
	for _, n := range b.neighbors[v] {
		if b.stones[n] != opp || checked[n] {
			continue
		}
		group, libs := b.group(n)
		for _, g := range group {
			checked[g] = true
		}
		if libs == 0 {
			captured = append(captured, group...)
		}
	}
	for _, cap := range captured {
		b.stones[cap] = emptyColor
	}

	if _, libs := b.group(v); libs == 0 {
		// Suicide: undo everything and reject.
		for _, cap := range captured {
			b.stones[cap] = opp
		}
		b.stones[v] = emptyColor
		return nil, moveError{vertex: v, color: c, cause: errors.New("suicide")}
	}
	return captured, nil
}

// wouldCapture reports whether playing c at v would remove at least
// one opponent stone, without mutating the board.
func (b *Board) wouldCapture(v game.Vertex, c game.Color) bool {
	if b.stones[v] != emptyColor {
		return false
	}
	opp := c.Opponent()
	checked := make(map[game.Vertex]bool)
	for _, n := range b.neighbors[v] {
		if b.stones[n] != opp || checked[n] {
			continue
		}
		group, libs := b.group(n)
		for _, g := range group {
			checked[g] = true
		}
		if libs == 1 {
			return true
		}
	}
	return false
}

// isSuicide reports whether playing c at v would be rejected as
// suicide, without mutating the board.
func (b *Board) isSuicide(v game.Vertex, c game.Color) bool {
	if b.stones[v] != emptyColor {
		return false
	}
	clone := b.Clone()
	_, err := clone.apply(v, c)
	return err != nil
}

// liberties returns the liberty count of the group at v, or -1 if v
// holds no stone.
func (b *Board) liberties(v game.Vertex) int {
	if b.stones[v] == emptyColor {
		return -1
	}
	_, libs := b.group(v)
	return libs
}

// diagonalNeighbors returns the on-board diagonal points of v: 4 for
// an interior point, 2 on an edge, 1 in a corner. Used only by the
// real-eye heuristic, so it isn't worth precomputing alongside the
// orthogonal adjacency table.
func (b *Board) diagonalNeighbors(v game.Vertex) []game.Vertex {
	x, y := int(v)%b.size, int(v)/b.size
	var out []game.Vertex
	deltas := [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	for _, d := range deltas {
		nx, ny := x+d[0], y+d[1]
		if nx >= 0 && nx < b.size && ny >= 0 && ny < b.size {
			out = append(out, game.Vertex(ny*b.size+nx))
		}
	}
	return out
}
