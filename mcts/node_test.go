package mcts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igogo/engine/game"
)

func TestAddFloat64Concurrent(t *testing.T) {
	var acc uint64
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				addFloat64(&acc, 0.5)
			}
		}()
	}
	wg.Wait()
	assert.InDelta(t, 4000.0, loadFloat64(&acc), 1e-9)
}

func TestNodeUpdateStatistics(t *testing.T) {
	n := newNode(game.Vertex(3), 0.25)

	samples := []float32{0.9, 0.7, 0.8, 0.6}
	for _, wl := range samples {
		n.update(&NodeEvals{
			BlackWL:         wl,
			Draw:            0.1,
			BlackFinalScore: 2,
			BlackOwnership:  []float32{1, -1},
		})
	}

	require.EqualValues(t, len(samples), n.Visits())
	assert.InDelta(t, 0.75, n.GetWL(game.Black, false), 1e-5)
	assert.InDelta(t, 0.25, n.GetWL(game.White, false), 1e-5)
	assert.InDelta(t, 0.1, n.GetDraw(), 1e-5)
	assert.InDelta(t, 2.0, n.GetFinalScore(game.Black), 1e-5)
	assert.InDelta(t, -2.0, n.GetFinalScore(game.White), 1e-5)

	// Welford M2 over {0.9, 0.7, 0.8, 0.6}: mean 0.75, sum of squared
	// deviations 0.05, sample variance 0.05/3.
	assert.InDelta(t, 0.05/3, n.Variance(1.0), 1e-5)
	assert.GreaterOrEqual(t, loadFloat64(&n.squaredEvalDiff), 0.0)

	// Ownership running mean converges to the constant samples.
	own := n.Ownership(game.Black)
	require.Len(t, own, 2)
	assert.InDelta(t, 1.0, own[0], 1e-5)
	assert.InDelta(t, -1.0, own[1], 1e-5)
	ownWhite := n.Ownership(game.White)
	assert.InDelta(t, -1.0, ownWhite[0], 1e-5)
}

func TestNodeWLRange(t *testing.T) {
	n := newNode(game.Pass, 0)
	assert.Equal(t, float32(0.5), n.GetWL(game.Black, false))

	for i := 0; i < 100; i++ {
		n.update(&NodeEvals{BlackWL: float32(i%2) * 1.0})
		wl := n.GetWL(game.Black, false)
		assert.GreaterOrEqual(t, wl, float32(0))
		assert.LessOrEqual(t, wl, float32(1))
	}
}

func TestVirtualLossBias(t *testing.T) {
	n := newNode(game.Vertex(0), 0.5)
	n.update(&NodeEvals{BlackWL: 0.8})
	plain := n.GetWL(game.Black, false)

	n.IncrementThreads()
	biased := n.GetWL(game.Black, true)
	assert.Less(t, biased, plain)
	n.DecrementThreads()
	assert.EqualValues(t, 0, n.RunningThreads())
	assert.Equal(t, plain, n.GetWL(game.Black, true))
}

func TestEdgeInflateReleaseRoundTrip(t *testing.T) {
	parent := newNode(game.Pass, 0)
	parent.children = []Edge{newEdge(game.Vertex(7), 0.9)}
	parent.update(&NodeEvals{BlackWL: 0.5})
	visitsBefore := parent.Visits()
	wlBefore := parent.GetWL(game.Black, false)

	edge := &parent.children[0]
	child := edge.Inflate()
	require.NotNil(t, child)
	assert.Same(t, child, edge.Inflate())

	edge.Release()
	assert.Nil(t, edge.peek())
	assert.Equal(t, visitsBefore, parent.Visits())
	assert.Equal(t, wlBefore, parent.GetWL(game.Black, false))

	// A visited child refuses release.
	child = edge.Inflate()
	child.update(&NodeEvals{BlackWL: 0.5})
	edge.Release()
	assert.Same(t, child, edge.peek())
}

func TestExpandStateHandshake(t *testing.T) {
	n := newNode(game.Pass, 0)
	require.True(t, n.acquireExpanding())
	assert.False(t, n.acquireExpanding())
	assert.Equal(t, StateExpanding, n.ExpandState())

	n.expandCancel()
	assert.Equal(t, StateInitial, n.ExpandState())
	require.True(t, n.acquireExpanding())
	n.expandDone()
	assert.Equal(t, StateExpanded, n.ExpandState())
	assert.False(t, n.acquireExpanding())
}

func TestStatusTransitions(t *testing.T) {
	n := newNode(game.Pass, 0)
	assert.True(t, n.IsActive())
	n.Prune()
	assert.False(t, n.IsActive())
	assert.True(t, n.IsValid())
	n.Activate()
	assert.True(t, n.IsActive())
	n.Invalidate()
	assert.False(t, n.IsValid())
}
