package mcts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igogo/engine/eval/stub"
	"github.com/igogo/engine/game"
)

// checkVisitInvariant walks the tree checking that, once all
// playouts have drained, a node's visits equal the sum over children
// plus one for its own evaluation.
func checkVisitInvariant(t *testing.T, n *Node) {
	t.Helper()
	// Terminal nodes re-score on every visit; the sum rule only holds
	// for expanded interior nodes.
	if !n.HasChildren() || len(n.Children()) == 0 {
		return
	}
	var sum uint32
	for i := range n.children {
		child := n.children[i].peek()
		if child == nil {
			continue
		}
		sum += child.Visits()
		checkVisitInvariant(t, child)
	}
	assert.Equal(t, n.Visits(), sum+1, "visits of %v", n.Vertex())
}

func checkNoRunningThreads(t *testing.T, n *Node) {
	t.Helper()
	assert.EqualValues(t, 0, n.RunningThreads())
	for i := range n.children {
		if child := n.children[i].peek(); child != nil {
			checkNoRunningThreads(t, child)
		}
	}
}

func TestSearchInvariants(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Threads = 4
		cfg.Playouts = 300
	})
	require.NoError(t, tree.Computation(context.Background(), 300, TagThinking))

	root := tree.Root()
	require.NotNil(t, root)
	assert.GreaterOrEqual(t, tree.Playouts(), 300)
	checkVisitInvariant(t, root)
	checkNoRunningThreads(t, root)

	wl := root.GetWL(game.Black, false)
	assert.GreaterOrEqual(t, wl, float32(0))
	assert.LessOrEqual(t, wl, float32(1))
	assert.GreaterOrEqual(t, loadFloat64(&root.squaredEvalDiff), 0.0)

	// Each playout expands at most one fresh node; beyond that only the
	// root's own children get inflated eagerly.
	assert.LessOrEqual(t, root.countActiveDescendants(),
		tree.Playouts()+len(root.Children())+tree.cfg.Threads)
}

func TestSearchDeterministicWithFixedSeed(t *testing.T) {
	// Same seed, same evaluator, one thread, noise and
	// symmetry pruning off -> identical best move.
	run := func() game.Vertex {
		tree := newSearch(t, centerStub(), func(cfg *Config) {
			cfg.Playouts = 60
		})
		return tree.ThinkBestMove(context.Background())
	}
	first := run()
	require.False(t, first.IsResign())
	assert.Equal(t, first, run())
}

func TestBestMoveLCBReductionOne(t *testing.T) {
	// lcb_reduction = 1 degenerates the rule to argmax visits.
	cfg := DefaultConfig(9)
	cfg.LCBReduction = 1
	tree := syntheticSearch(cfg)
	root := syntheticRoot(0.5, []float32{0.6, 0.4})

	feed := func(v game.Vertex, n int, wl float32) {
		child := root.findChild(v).Inflate()
		for i := 0; i < n; i++ {
			evals := NodeEvals{BlackWL: wl}
			child.update(&evals)
			root.update(&evals)
		}
	}
	feed(game.Vertex(0), 20, 0.2)
	feed(game.Vertex(1), 50, 0.4)

	assert.Equal(t, game.Vertex(1), GetBestMove(root, game.Black, cfg, tree.lcb))
}

func TestBestMoveLCBFewVisits(t *testing.T) {
	// A 2-visit 0.9-winrate child cannot outrank a 200-visit
	// 0.6-winrate child, because its LCB collapses to prior - 1e6.
	cfg := DefaultConfig(9)
	tree := syntheticSearch(cfg)
	root := syntheticRoot(0.5, []float32{0.5, 0.5})

	lucky := root.findChild(game.Vertex(0)).Inflate()
	for _, wl := range []float32{0.95, 0.85} {
		evals := NodeEvals{BlackWL: wl}
		lucky.update(&evals)
		root.update(&evals)
	}
	assert.Less(t, lucky.GetLcb(game.Black, tree.lcb), float32(-1e5))

	steady := root.findChild(game.Vertex(1)).Inflate()
	for i := 0; i < 200; i++ {
		wl := float32(0.6)
		if i%2 == 0 {
			wl = 0.61
		}
		evals := NodeEvals{BlackWL: wl}
		steady.update(&evals)
		root.update(&evals)
	}

	assert.Equal(t, game.Vertex(1), GetBestMove(root, game.Black, cfg, tree.lcb))
}

func TestLCBListSorted(t *testing.T) {
	cfg := DefaultConfig(9)
	tree := syntheticSearch(cfg)
	root := syntheticRoot(0.5, []float32{0.4, 0.3, 0.2, 0.1})

	wl := []float32{0.5, 0.7, 0.3, 0.6}
	for i := 0; i < 400; i++ {
		idx := i % 4
		child := root.findChild(game.Vertex(idx)).Inflate()
		evals := NodeEvals{BlackWL: wl[idx]}
		child.update(&evals)
		root.update(&evals)
	}

	list := getLcbUtilityList(root, game.Black, cfg, tree.lcb)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.GreaterOrEqual(t, list[i-1].value, list[i].value)
	}
	assert.Equal(t, game.Vertex(1), list[0].vertex)
}

func TestTreeReuse(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 50
		cfg.ReuseTree = true
	})
	require.NoError(t, tree.Computation(context.Background(), 50, TagThinking))
	root := tree.Root()
	require.NotNil(t, root)

	// Re-root on the most visited child.
	child := probSelectChild(root)
	require.NotNil(t, child)
	require.True(t, tree.PlayMove(child.Vertex()))
	if child.HasChildren() {
		assert.Same(t, child, tree.Root())
	} else {
		assert.Nil(t, tree.Root())
	}

	// Pass is not in the tree on an open board (the three-quarters
	// rule removed it), so re-rooting on it discards everything.
	require.NoError(t, tree.Computation(context.Background(), 50, TagThinking))
	require.True(t, tree.PlayMove(game.Pass))
	assert.Nil(t, tree.Root())
}

func TestTreeReuseDisabled(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 30
		cfg.ReuseTree = false
	})
	require.NoError(t, tree.Computation(context.Background(), 30, TagThinking))
	child := probSelectChild(tree.Root())
	require.NotNil(t, child)
	require.True(t, tree.PlayMove(child.Vertex()))
	assert.Nil(t, tree.Root())
}

func TestResignation(t *testing.T) {
	// An evaluator that always scores Black hopeless makes Black
	// resign once the tree is big enough to trust. The result carries
	// the mover's perspective, so Black-to-move positions (even move
	// numbers) look lost and White-to-move ones look won.
	script := make(map[int]game.Result)
	for move := 0; move < 80; move++ {
		wdl := [3]float32{0.01, 0, 0.99}
		if move%2 == 1 {
			wdl = [3]float32{0.99, 0, 0.01}
		}
		script[move] = game.Result{
			Policy:     uniformPolicy(81),
			PassPolicy: 1.0 / 82,
			WDL:        wdl,
			Ownership:  make([]float32, 81),
		}
	}
	hopeless := stub.Scripted(game.Result{
		Policy:     uniformPolicy(81),
		PassPolicy: 1.0 / 82,
		WDL:        [3]float32{0.01, 0, 0.99},
		Ownership:  make([]float32, 81),
	}, script)
	tree := newSearch(t, hopeless, func(cfg *Config) {
		cfg.Playouts = 120
		cfg.ResignThreshold = 0.1
		cfg.ResignPlayouts = 50
	})
	best := tree.ThinkBestMove(context.Background())
	assert.Equal(t, game.Resign, best)
}

func TestStopInterruptsSearch(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Threads = 2
		cfg.Playouts = 1 << 30
	})
	go func() {
		time.Sleep(50 * time.Millisecond)
		tree.Stop()
	}()
	done := make(chan error, 1)
	go func() {
		done <- tree.Computation(context.Background(), 1<<30, TagThinking)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not interrupt the search")
	}
	checkNoRunningThreads(t, tree.Root())
}

func TestSuperkoPrunedAtRoot(t *testing.T) {
	// Set up a ko on a 5x5 board, capture it, and verify the
	// recapture is absent from White's root.
	tree := newSearchSize(t, stub.Uniform(5), 5, func(cfg *Config) {
		cfg.Playouts = 10
	})

	at := func(x, y int) game.Vertex { return game.Vertex(y*5 + x) }
	moves := []game.Vertex{
		at(1, 2), at(2, 2),
		at(0, 1), at(3, 1),
		at(1, 0), at(2, 0),
		game.Pass, at(1, 1), // White takes the ko point
		at(2, 1), // Black captures the ko stone
	}
	for _, v := range moves {
		require.True(t, tree.PlayMove(v), "setup move %v", v)
	}
	require.Equal(t, game.White, tree.State().ToMove())

	require.NoError(t, tree.Computation(context.Background(), 10, TagThinking))
	root := tree.Root()
	require.NotNil(t, root)

	recapture := root.findChild(at(1, 1))
	if recapture != nil {
		child := recapture.peek()
		require.NotNil(t, child)
		assert.False(t, child.IsValid())
		assert.Zero(t, child.Visits())
	}
	// The legal neighbourhood is unaffected.
	assert.NotNil(t, root.findChild(at(4, 4)))
}

func uniformPolicy(n int) []float32 {
	p := make([]float32, n)
	for i := range p {
		p[i] = 1 / float32(n+1)
	}
	return p
}
