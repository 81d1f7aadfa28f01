package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	board "github.com/igogo/engine/board"
	"github.com/igogo/engine/game"
)

func TestEncodeOrientsToMover(t *testing.T) {
	oracle := board.Oracle{}
	state := oracle.NewGame(5, 7.5)
	require.True(t, state.Play(game.Vertex(12))) // Black centre

	// White to move: the black stone shows up on the opponent plane.
	planes := Encode(state)
	require.Len(t, planes, NumFeatures*25)
	mover := planes[:25]
	other := planes[25:50]
	colorPlane := planes[50:]

	assert.Equal(t, float32(0), mover[12])
	assert.Equal(t, float32(1), other[12])
	assert.Equal(t, float32(-1), colorPlane[0])

	// One white reply later Black is the mover again.
	require.True(t, state.Play(game.Vertex(0)))
	planes = Encode(state)
	assert.Equal(t, float32(1), planes[12])     // own stone
	assert.Equal(t, float32(1), planes[25])     // opponent corner stone
	assert.Equal(t, float32(1), planes[50])     // Black to move
}

func TestTransformPlanesRoundTrip(t *testing.T) {
	oracle := board.Oracle{}
	in := make([]float32, 2*9)
	for i := range in {
		in[i] = float32(i)
	}
	rotated := TransformPlanes(in, 3, game.SymmetryRot180, oracle)
	back := TransformPlanes(rotated, 3, game.SymmetryRot180, oracle)
	assert.Equal(t, in, back)

	flipped := TransformPlanes(in, 3, game.SymmetryFlip, oracle)
	assert.Equal(t, in[2], flipped[0])
	assert.Equal(t, in[0], flipped[2])
}
