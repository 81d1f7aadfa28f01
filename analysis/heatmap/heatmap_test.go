package heatmap

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderRoundTrip(t *testing.T) {
	enc := NewEncoder(5)

	frame := make([]float32, 25)
	frame[0] = 1
	frame[24] = -1
	require.NoError(t, enc.AddFrame(frame, "move 1"))
	require.NoError(t, enc.AddFrame(frame, "move 2"))

	var buf bytes.Buffer
	require.NoError(t, enc.Flush(&buf))

	decoded, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 2)
	assert.Equal(t, 5*cell, decoded.Image[0].Bounds().Dx())
}

func TestAddFrameRejectsWrongSize(t *testing.T) {
	enc := NewEncoder(9)
	assert.Error(t, enc.AddFrame(make([]float32, 10), ""))
}

func TestFlushWithoutFrames(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewEncoder(5).Flush(&buf))
}

func TestPaletteIndexBounds(t *testing.T) {
	assert.Equal(t, 1, paletteIndex(-2))
	assert.Equal(t, 17, paletteIndex(2))
	assert.Equal(t, 9, paletteIndex(0))
	for owner := float32(-1); owner <= 1; owner += 0.05 {
		idx := paletteIndex(owner)
		assert.GreaterOrEqual(t, idx, 1)
		assert.LessOrEqual(t, idx, 17)
	}
}
