package 围碁

import "github.com/igogo/engine/game"

// Oracle is the board package's game.BoardOracle: the handle the
// search core uses to start a new game and to transform vertices under
// a symmetry without depending on this package's concrete types.
type Oracle struct{}

var _ game.BoardOracle = Oracle{}

func (Oracle) NewGame(boardSize int, komi float32) game.State {
	return newState(boardSize, komi)
}

func (Oracle) TransformVertex(boardSize int, s game.Symmetry, v game.Vertex) game.Vertex {
	return TransformVertex(boardSize, s, v)
}
