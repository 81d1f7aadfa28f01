package mcts

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igogo/engine/game"
)

func TestNormalizeCompletedQ(t *testing.T) {
	assert.InDelta(t, 5.0, normalizeCompletedQ(1, 0), 1e-6)
	assert.InDelta(t, 10.0, normalizeCompletedQ(1, 50), 1e-6)
	assert.InDelta(t, -5.0, normalizeCompletedQ(-1, 0), 1e-6)
}

func TestSequentialHalvingSchedule(t *testing.T) {
	// Six arms, four considered, 24 root playouts = 2 epochs of
	// the (1,1,1,1) -> (2,2,0,0) -> (4,0,0,0) schedule. The per-arm
	// accumulation is 14 | 6 | 2 | 2 regardless of which arms win the
	// Gumbel draws.
	cfg := DefaultConfig(9)
	cfg.Gumbel = true
	cfg.GumbelConsideredMoves = 4
	cfg.GumbelPlayouts = 1000
	tree := syntheticSearch(cfg)

	root := newRootNode()
	root.setColor(game.Black)
	root.netBlackWL = 0.5
	priors := []float32{0.3, 0.25, 0.2, 0.1, 0.09, 0.06}
	for i, p := range priors {
		root.children = append(root.children, newEdge(game.Vertex(i), p))
	}
	root.expandDone()
	root.update(&NodeEvals{BlackWL: 0.5})

	// Distinct terminal values per arm, so halving has something to
	// rank on.
	wl := []float32{0.8, 0.6, 0.5, 0.4, 0.3, 0.2}

	r := rand.New(rand.NewSource(99))
	for i := 0; i < 24; i++ {
		child := tree.gumbelSelectChild(root, game.Black, false, r)
		require.NotNil(t, child)
		evals := NodeEvals{BlackWL: wl[child.Vertex()]}
		child.update(&evals)
		root.update(&evals)
	}

	visits := make([]int, 0, len(root.children))
	for i := range root.children {
		child := root.children[i].peek()
		if child == nil {
			visits = append(visits, 0)
			continue
		}
		visits = append(visits, int(child.Visits()))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(visits)))
	assert.Equal(t, []int{14, 6, 2, 2, 0, 0}, visits)

	// Only-max-visit mode returns the schedule's winner.
	winner := tree.gumbelBestMove(root, game.Black, rand.New(rand.NewSource(7)))
	winnerChild := root.findChild(winner).peek()
	require.NotNil(t, winnerChild)
	assert.EqualValues(t, 14, winnerChild.Visits())
}

func TestGumbelDisabledFallsBackToPUCT(t *testing.T) {
	// With gumbel on but a zero playout budget the root selection is
	// plain PUCT: identical trees and identical best moves.
	runSearch := func(gumbel bool) game.Vertex {
		tree := newSearch(t, centerStub(), func(cfg *Config) {
			cfg.Playouts = 40
			cfg.Gumbel = gumbel
			cfg.GumbelPlayouts = 0
		})
		require.NoError(t, tree.Computation(context.Background(), 40, TagThinking))
		return GetBestMove(tree.Root(), tree.State().ToMove(), tree.cfg, tree.lcb)
	}
	assert.Equal(t, runSearch(false), runSearch(true))
}

func TestShouldApplyGumbel(t *testing.T) {
	cfg := DefaultConfig(9)
	cfg.Gumbel = true
	cfg.GumbelPlayouts = 2
	tree := syntheticSearch(cfg)

	root := syntheticRoot(0.5, []float32{0.6, 0.4})
	assert.True(t, tree.shouldApplyGumbel(root)) // 0 playouts so far

	for i := 0; i < 3; i++ {
		child := root.findChild(game.Vertex(0)).Inflate()
		evals := NodeEvals{BlackWL: 0.5}
		child.update(&evals)
		root.update(&evals)
	}
	assert.False(t, tree.shouldApplyGumbel(root)) // budget consumed
}

func TestRootPolicyTarget(t *testing.T) {
	tree := newSearch(t, centerStub(), func(cfg *Config) {
		cfg.Playouts = 30
	})
	require.NoError(t, tree.Computation(context.Background(), 30, TagThinking))

	// Visit-count target by default.
	prob := tree.RootPolicyTarget()
	require.Len(t, prob, 82)
	var sum float32
	for _, p := range prob {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
	assert.Greater(t, prob[40], float32(0.5))

	// The completed-Q variant kicks in via always_completed_q_policy.
	tree.cfg.AlwaysCompletedQPolicy = true
	withQ := tree.RootPolicyTarget()
	require.Len(t, withQ, 82)
	sum = 0
	for _, p := range withQ {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}

func TestProbLogitsCompletedQ(t *testing.T) {
	nn := centerStub()
	tree := newSearch(t, nn, func(cfg *Config) {
		cfg.Playouts = 30
	})
	require.NoError(t, tree.Computation(context.Background(), 30, TagThinking))

	prob := tree.ProbLogitsCompletedQ(tree.Root(), tree.State())
	require.Len(t, prob, 82)

	var sum float32
	var nonzero int
	for _, p := range prob {
		require.GreaterOrEqual(t, p, float32(0))
		sum += p
		if p > 0 {
			nonzero++
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
	assert.Greater(t, nonzero, 0)

	// The centre dominates the priors and the visits, so it must also
	// dominate the completed-Q target.
	best := 0
	for i, p := range prob {
		if p > prob[best] {
			best = i
		}
	}
	assert.Equal(t, 40, best)
}
