package 围碁

import (
	"math/rand"

	"github.com/igogo/engine/game"
)

// zobristTable is a data structure for calculating Zobrist hashes.
// https://en.wikipedia.org/wiki/Zobrist_hashing
//
// The table itself is immutable once built and shared (by pointer)
// across every State forked from the same game, which is what lets
// State.Fork avoid an O(boardsize²) table copy on every playout
// descent; only the running hash travels with the mutable board
// state (see state.go).
type zobristTable struct {
	stone      [][2]uint64 // per-vertex, indexed by [Black-1, White-1]
	sideToMove uint64
}

func colorIndex(c game.Color) int {
	if c == game.White {
		return 1
	}
	return 0
}

// newZobristTable builds a table for a board of the given size,
// seeded deterministically so that repeated runs with the same seed
// produce identical hashes.
func newZobristTable(size int, seed int64) *zobristTable {
	r := rand.New(rand.NewSource(seed))
	t := &zobristTable{
		stone:      make([][2]uint64, size*size),
		sideToMove: r.Uint64(),
	}
	for i := range t.stone {
		t.stone[i][0] = r.Uint64()
		t.stone[i][1] = r.Uint64()
	}
	return t
}

// entry returns the zobrist value toggled when a c stone is placed or
// removed at v. Pass/Resign never contribute to the hash.
func (t *zobristTable) entry(v game.Vertex, c game.Color) uint64 {
	if v < 0 {
		return 0
	}
	return t.stone[v][colorIndex(c)]
}
