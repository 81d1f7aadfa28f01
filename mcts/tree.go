// Package mcts implements a parallel, neural-network-guided Monte
// Carlo Tree Search for the game of Go.
//
// The search tree is shared by all worker goroutines. Per-node
// statistics are atomic; the only per-node locks are the expansion
// handshake (a CAS on expandState plus a spin-yield WaitExpanded) and
// a short mutex around the per-intersection ownership averages.
// Children are published exactly once by the winning expander; a
// reader that observes StateExpanded is guaranteed to see the
// children, colour and network snapshot the expander wrote.
package mcts

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/igogo/engine/game"
	"github.com/pkg/errors"
)

// MCTS owns the search tree, the actual game position it is rooted at,
// and everything the workers share: the evaluator, the eval cache, the
// LCB quantile table and the per-search configuration.
type MCTS struct {
	sync.Mutex

	cfg    Config
	oracle game.BoardOracle
	nn     game.Evaluator
	cache  *EvalCache
	lcb    *LCBTable

	current game.State // the actual game position; root represents it
	root    *Node

	// Dirichlet noise amplitudes generated at root preparation, indexed
	// by vertex with the pass slot at numIntersections. Written by
	// prepareRoot before workers start, read-only during the search.
	noise []float32

	playouts int32  // atomic, completed playouts this search
	stop     uint32 // atomic stop flag, checked at every descent top

	seed int64
	log  lumberjack
}

// New builds a search driver over a fresh game of the given board
// size. The configuration is validated here; it is the only error the
// core surfaces to the caller.
func New(oracle game.BoardOracle, nn game.Evaluator, cfg Config, boardSize int, komi float32, seed int64) (*MCTS, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, errIllegalConfiguration(err)
	}
	state := oracle.NewGame(boardSize, komi)
	t := &MCTS{
		cfg:     cfg,
		oracle:  oracle,
		nn:      nn,
		cache:   NewEvalCache(cfg.CacheMemoryMiB, state.NumIntersections()),
		lcb:     newLCBTable(cfg.CIAlpha),
		current: state,
		noise:   make([]float32, state.NumIntersections()+1),
		seed:    seed,
		log:     makeLumberJack(),
	}
	go t.log.start()
	return t, nil
}

// State returns the actual game position the tree is rooted at.
func (t *MCTS) State() game.State { return t.current }

// Root returns the current root node; nil before the first search.
func (t *MCTS) Root() *Node { return t.root }

// Playouts returns the number of playouts completed in the current or
// last search.
func (t *MCTS) Playouts() int { return int(atomic.LoadInt32(&t.playouts)) }

// Cache exposes the evaluator cache, mainly so a caller can clear or
// resize it between games.
func (t *MCTS) Cache() *EvalCache { return t.cache }

func (t *MCTS) isRunning() bool { return atomic.LoadUint32(&t.stop) == 0 }

// Stop asks all workers to finish their current descent and return.
// Outstanding playouts complete their backup; nothing is left
// half-updated.
func (t *MCTS) Stop() { atomic.StoreUint32(&t.stop, 1) }

// PlayMove advances the actual game by v and re-roots the tree.
// If reuse_tree is set and v matches one of the root's children, that
// child becomes the new root and its siblings are dropped; otherwise
// the whole tree is discarded and the next search starts cold.
func (t *MCTS) PlayMove(v game.Vertex) bool {
	t.Lock()
	defer t.Unlock()

	if !t.current.Play(v) {
		return false
	}
	if t.root == nil {
		return true
	}
	if !t.cfg.ReuseTree {
		t.root = nil
		return true
	}
	edge := t.root.findChild(v)
	if edge == nil {
		t.root = nil
		return true
	}
	child := edge.peek()
	if child == nil || !child.HasChildren() {
		// An uninflated or unexpanded child carries no statistics worth
		// keeping; start cold.
		t.root = nil
		return true
	}
	t.root = child
	return true
}

// ClearTree drops the whole search tree, e.g. after clear_board.
func (t *MCTS) ClearTree() {
	t.Lock()
	t.root = nil
	t.Unlock()
}

// prepareRoot makes sure the root node exists, is expanded, carries
// Dirichlet noise and score bonuses if configured, and has its superko
// children pruned. A freshly expanded root backs up its own evaluation,
// which counts as the root's first visit (invariant: children visits
// sum to parent visits minus one).
func (t *MCTS) prepareRoot(filter game.MoveFilter) error {
	freshRoot := t.root == nil
	if freshRoot {
		t.root = newRootNode()
	}
	root := t.root

	if !root.HasChildren() {
		state := t.current.Fork()
		evals, err := t.expand(root, state, true, filter)
		if err != nil {
			if freshRoot {
				t.root = nil
			}
			return errors.WithMessage(err, "mcts: root expansion failed")
		}
		root.update(&evals)
	} else {
		// Reused subtree: the snapshot and statistics carry over, but
		// root-only shaping must be redone for the new root.
		t.applyDirichletNoise(root)
	}

	root.SetScoreBonus(0)
	for i := range root.children {
		child := root.children[i].Inflate()
		if t.cfg.FirstPassBonus && child.Vertex().IsPass() {
			child.SetScoreBonus(0.5)
		} else {
			child.SetScoreBonus(0)
		}
	}
	t.killRootSuperkos(root)
	return nil
}

// killRootSuperkos simulates each root child on a forked state and
// invalidates any non-pass move that recreates a previous position.
// Superko at the root is pruned, never propagated.
func (t *MCTS) killRootSuperkos(root *Node) {
	kept := root.children[:0]
	for i := range root.children {
		edge := &root.children[i]
		v := edge.Vertex()
		if !v.IsPass() {
			fork := t.current.Fork()
			if !fork.Play(v) || fork.IsSuperko() {
				if child := edge.peek(); child != nil {
					child.Invalidate()
				}
				continue
			}
		}
		kept = append(kept, *edge)
	}
	root.children = kept
}

// newWorkerRNG derives a deterministic per-worker RNG so that a
// single-threaded search with a fixed seed replays identically.
func (t *MCTS) newWorkerRNG(worker int) *rand.Rand {
	return rand.New(rand.NewSource(t.seed + int64(worker)*0x9E3779B9))
}
