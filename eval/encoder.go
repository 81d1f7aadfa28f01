// Package eval provides the board-to-feature-plane encoding shared by
// the neural evaluator (dcnn) and anything else that needs a
// network-shaped view of a position, plus a helper for orienting
// planes under the 8 board symmetries.
package eval

import (
	"gorgonia.org/vecf32"

	"github.com/igogo/engine/game"
)

// NumFeatures is the number of input planes Encode produces: the
// mover's stones, the opponent's stones, and a constant plane marking
// which colour is to move.
const NumFeatures = 3

// Encode renders state as NumFeatures planes of boardSize² float32s
// in CHW order, oriented to the side to move: plane 0 is the mover's
// stones, plane 1 the opponent's, plane 2 is all ones for Black to
// move and all negative ones for White.
func Encode(state game.State) []float32 {
	size := state.NumIntersections()
	planes := make([]float32, NumFeatures*size)
	toMove := state.ToMove()

	mover := planes[:size]
	other := planes[size : 2*size]
	colorPlane := planes[2*size:]

	for idx := 0; idx < size; idx++ {
		switch state.StoneAt(game.Vertex(idx)) {
		case toMove:
			mover[idx] = 1
		case toMove.Opponent():
			other[idx] = 1
		}
	}

	for i := range colorPlane {
		colorPlane[i] = 1
	}
	if toMove == game.White {
		vecf32.Scale(colorPlane, -1)
	}
	return planes
}

// TransformPlanes reorders each boardSize² plane of in under a
// symmetry, returning a fresh slice. The inverse orientation of a
// policy produced from transformed planes uses the same symmetry's
// TransformVertex on each output index.
func TransformPlanes(in []float32, boardSize int, s game.Symmetry, oracle game.BoardOracle) []float32 {
	size := boardSize * boardSize
	out := make([]float32, len(in))
	for p := 0; p+size <= len(in); p += size {
		for idx := 0; idx < size; idx++ {
			tv := oracle.TransformVertex(boardSize, s, game.Vertex(idx))
			out[p+int(tv)] = in[p+idx]
		}
	}
	return out
}
