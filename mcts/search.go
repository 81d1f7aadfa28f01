package mcts

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/igogo/engine/game"
)

// SearchTag distinguishes the reasons a Computation was started.
type SearchTag int

const (
	// TagThinking is a normal search: early stop and time budget apply.
	TagThinking SearchTag = iota
	// TagForced ignores early stop; the full playout budget is spent.
	TagForced
	// TagPonder runs until the context is cancelled by the next real
	// command.
	TagPonder
)

// searchState is one worker's per-search scratch: its RNG and a
// handle on the shared tree.
type searchState struct {
	tree *MCTS
	rng  *rand.Rand
	id   int
}

// Computation runs playouts until the budget is spent, the context
// expires, or Stop is called. It prepares the root, dispatches
// the configured number of workers and drains them before returning.
// Root expansion failure (an unreachable evaluator) is the only error.
func (t *MCTS) Computation(ctx context.Context, playouts int, tag SearchTag) error {
	return t.computation(ctx, playouts, tag, nil, nil)
}

func (t *MCTS) computation(ctx context.Context, playouts int, tag SearchTag, filter game.MoveFilter, reporter *AnalysisReporter) error {
	t.Lock()
	defer t.Unlock()

	atomic.StoreInt32(&t.playouts, 0)
	atomic.StoreUint32(&t.stop, 0)
	t.log.log("SEARCH move %d, budget %d playouts, %d threads", t.current.MoveNumber(), playouts, t.cfg.Threads)

	if err := t.prepareRoot(filter); err != nil {
		return err
	}

	if tag == TagThinking && t.cfg.ReducePlayouts > 0 && t.cfg.ReducePlayoutsProb > 0 {
		r := t.newWorkerRNG(-1)
		if r.Float32() < t.cfg.ReducePlayoutsProb && t.cfg.ReducePlayouts < playouts {
			playouts = t.cfg.ReducePlayouts
		}
	}

	if t.cfg.ConstTime > 0 && tag != TagPonder {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ConstTime)
		defer cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < t.cfg.Threads; i++ {
		ss := &searchState{tree: t, rng: t.newWorkerRNG(i), id: i}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ss.run(ctx, playouts, tag)
		}()
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()
	if reporter != nil {
		reporter.run(ctx, t, workersDone)
	}
	<-workersDone
	return nil
}

// run is a worker's playout loop. The stop conditions are checked at
// every descent top; a playout in flight always completes its backup.
func (ss *searchState) run(ctx context.Context, playouts int, tag SearchTag) {
	t := ss.tree
	for t.isRunning() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if tag != TagPonder && int(atomic.LoadInt32(&t.playouts)) >= playouts {
			return
		}
		state := t.current.Fork()
		if _, ok := t.playNode(ss, state, t.root, true); ok {
			atomic.AddInt32(&t.playouts, 1)
		}
	}
}

// playNode descends one step of a playout: expand the node if it is a
// fresh leaf, close it if the game has ended, otherwise select a child
// and recurse. Virtual loss (runningThreads) is held for exactly the
// time this worker is inside the node; the returned evals are folded
// into this node's statistics on the way back up, leaf to root.
func (t *MCTS) playNode(ss *searchState, state game.State, n *Node, isRoot bool) (NodeEvals, bool) {
	n.IncrementThreads()
	defer n.DecrementThreads()

	if n.ExpandState() != StateExpanded {
		if state.Passes() >= 2 {
			n.setTerminal()
			// Whether we closed it or lost the race, the position is
			// over either way; score it with the rules.
			evals := terminalEvals(state)
			n.update(&evals)
			return evals, true
		}
		evals, err := t.expand(n, state, isRoot, nil)
		switch {
		case err == nil:
			n.update(&evals)
			return evals, true
		case errors.Is(err, ErrExpansionRace):
			n.WaitExpanded()
			if n.ExpandState() != StateExpanded {
				// The other worker cancelled; release virtual loss and
				// let the next descent retry the expansion.
				return NodeEvals{}, false
			}
		default:
			return NodeEvals{}, false
		}
	}

	if n.IsTerminal() || len(n.Children()) == 0 {
		evals := terminalEvals(state)
		n.update(&evals)
		return evals, true
	}

	color := state.ToMove()
	next := t.selectChild(n, color, isRoot, state, ss.rng)
	if next == nil {
		return NodeEvals{}, false
	}
	if !state.Play(next.Vertex()) {
		// A move that is legal in the tree but illegal on this fork can
		// only be a superko discovered mid-descent; cut the branch off.
		next.Invalidate()
		return NodeEvals{}, false
	}

	evals, ok := t.playNode(ss, state, next, false)
	if ok {
		n.update(&evals)
	}
	return evals, ok
}

// ThinkBestMove runs a full search under the configured budget and
// returns the move the best-move policy picks, or the Resign sentinel
// when the winrate and visit thresholds both clear.
func (t *MCTS) ThinkBestMove(ctx context.Context) game.Vertex {
	return t.thinkBestMove(ctx, TimeControl{})
}

// ThinkBestMoveWithClock is ThinkBestMove under a real time control.
func (t *MCTS) ThinkBestMoveWithClock(ctx context.Context, tc TimeControl) game.Vertex {
	return t.thinkBestMove(ctx, tc)
}

func (t *MCTS) thinkBestMove(ctx context.Context, tc TimeControl) game.Vertex {
	if budget := tc.BudgetFor(t.cfg.LagBuffer, t.movesLeftEstimate()); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	if err := t.Computation(ctx, t.cfg.Playouts, TagThinking); err != nil {
		// The evaluator never answered for the root: fall back to the
		// bare policy argmax with no search at all.
		return t.policyArgmax()
	}
	t.Lock()
	defer t.Unlock()
	return t.bestMoveLocked()
}

// Ponder searches on the opponent's time until the context is
// cancelled by the next real command. The grown tree is kept for
// reuse.
func (t *MCTS) Ponder(ctx context.Context) error {
	playouts := int(float32(t.cfg.Playouts) * t.cfg.PonderFactor)
	return t.Computation(ctx, playouts, TagPonder)
}

func (t *MCTS) movesLeftEstimate() int {
	size := t.current.BoardSize()
	est := size*size/2 - t.current.MoveNumber()/2
	if est < 8 {
		est = 8
	}
	return est
}

func (t *MCTS) bestMoveLocked() game.Vertex {
	root := t.root
	if root == nil || !root.HasChildren() {
		return t.policyArgmax()
	}
	color := t.current.ToMove()

	var best game.Vertex
	if t.cfg.Gumbel {
		best = t.gumbelBestMove(root, color, t.newWorkerRNG(-2))
	} else if t.cfg.RandomizeMoveNumber > 0 && t.current.MoveNumber() < t.cfg.RandomizeMoveNumber {
		best = t.randomizeFirstProportionally(root, t.cfg.RandomizeTemp, t.cfg.RandomizeMinVisits, t.newWorkerRNG(-2))
	} else {
		best = GetBestMove(root, color, t.cfg, t.lcb)
	}

	if t.shouldResign(root, best, color) {
		return game.Resign
	}
	t.log.log("BEST %v after %d playouts, root visits %d", best, t.Playouts(), root.Visits())
	return best
}

// shouldResign applies the resignation rule: the best move's winrate
// has fallen below resign_threshold and the tree is large enough to
// trust it.
func (t *MCTS) shouldResign(root *Node, best game.Vertex, color game.Color) bool {
	if t.cfg.ResignPlayouts <= 0 || int(root.Visits()) < t.cfg.ResignPlayouts {
		return false
	}
	edge := root.findChild(best)
	if edge == nil {
		return false
	}
	child := edge.peek()
	if child == nil || child.Visits() == 0 {
		return false
	}
	return child.GetWL(color, false) < t.cfg.ResignThreshold
}

// randomizeFirstProportionally samples the root move with probability
// proportional to visits^(1/temp) over children exceeding minVisits,
// falling back to minVisits=0 and then to the plain best move when
// nothing qualifies. Used for opening variety in self-play.
func (t *MCTS) randomizeFirstProportionally(root *Node, temp float32, minVisits uint32, r *rand.Rand) game.Vertex {
	var accum float32
	type accumPair struct {
		accum  float32
		vertex game.Vertex
	}
	var pairs []accumPair
	for i := range root.children {
		child := root.children[i].peek()
		if child == nil {
			continue
		}
		visits := child.Visits()
		if visits > minVisits {
			accum += math32.Pow(float32(visits), 1/temp)
			pairs = append(pairs, accumPair{accum: accum, vertex: child.Vertex()})
		}
	}
	if len(pairs) == 0 {
		if minVisits > 0 {
			return t.randomizeFirstProportionally(root, temp, 0, r)
		}
		return GetBestMove(root, t.current.ToMove(), t.cfg, t.lcb)
	}
	pick := r.Float32() * accum
	for _, p := range pairs {
		if pick < p.accum {
			return p.vertex
		}
	}
	return pairs[len(pairs)-1].vertex
}

// policyArgmax asks the evaluator (or the pattern fallback) directly
// for the most probable legal move; the no-search escape hatch.
func (t *MCTS) policyArgmax() game.Vertex {
	state := t.current.Fork()
	color := state.ToMove()
	raw, err := t.rawEvaluation(state, color, true)
	if err != nil {
		return game.Pass
	}
	best := game.Pass
	bestPolicy := raw.PassPolicy
	for idx := 0; idx < state.NumIntersections(); idx++ {
		v := game.Vertex(idx)
		if raw.Policy[idx] > bestPolicy && state.IsLegal(v, color, nil) {
			bestPolicy = raw.Policy[idx]
			best = v
		}
	}
	return best
}

// Analyze streams analysis records to the reporter every interval
// until the context is cancelled; with keepRunning unset it also
// returns the chosen move once the normal budget is spent.
func (t *MCTS) Analyze(ctx context.Context, reporter *AnalysisReporter, keepRunning bool) game.Vertex {
	tag := TagThinking
	if keepRunning {
		tag = TagPonder
	}
	if err := t.computation(ctx, t.cfg.Playouts, tag, reporter.MoveFilter, reporter); err != nil {
		return t.policyArgmax()
	}
	if keepRunning {
		return game.Pass
	}
	t.Lock()
	defer t.Unlock()
	return t.bestMoveLocked()
}
