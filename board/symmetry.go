package 围碁

import "github.com/igogo/engine/game"

// transformXY applies one of the 8 board symmetries to a coordinate.
// The geometry is expressed as a pure coordinate map so it can be
// applied to a single vertex without materializing a transformed
// board — the form the expansion-time symmetry-pruning hash and the
// evaluator's ensemble augmentation both need.
func transformXY(size int, s game.Symmetry, x, y int) (int, int) {
	switch s {
	case game.SymmetryIdentity:
		return x, y
	case game.SymmetryRot90:
		return y, size - 1 - x
	case game.SymmetryRot180:
		return size - 1 - x, size - 1 - y
	case game.SymmetryRot270:
		return size - 1 - y, x
	case game.SymmetryFlip:
		return size - 1 - x, y
	case game.SymmetryFlipRot90:
		return size - 1 - y, size - 1 - x
	case game.SymmetryFlipRot180:
		return x, size - 1 - y
	case game.SymmetryFlipRot270:
		return y, x
	default:
		return x, y
	}
}

// TransformVertex implements game.BoardOracle.TransformVertex. Pass
// and Resign are symmetry-invariant sentinels.
func TransformVertex(size int, s game.Symmetry, v game.Vertex) game.Vertex {
	if v < 0 {
		return v
	}
	x, y := int(v)%size, int(v)/size
	tx, ty := transformXY(size, s, x, y)
	return game.Vertex(ty*size + tx)
}
