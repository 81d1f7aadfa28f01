package mcts

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/igogo/engine/game"
)

// Status is a node's lifecycle flag. Pruning is reversible by the
// driver between searches; invalidation is permanent.
type Status uint32

const (
	Active Status = iota
	Pruned
	Invalid
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Pruned:
		return "Pruned"
	default:
		return "Invalid"
	}
}

// ExpandState is the expansion handshake: Initial -> Expanding ->
// Expanded, with Expanding -> Initial on cancel.
type ExpandState uint32

const (
	StateInitial ExpandState = iota
	StateExpanding
	StateExpanded
)

// NodeEvals is what a leaf evaluation (DCNN, pattern fallback, or
// terminal rules score) produces for Backup to propagate.
type NodeEvals struct {
	BlackWL          float32
	Draw             float32
	BlackFinalScore  float32
	BlackOwnership   []float32
}

// Node represents a board position implicitly, by the path taken to
// reach it from the root. All statistics are either atomic or guarded
// by a narrow per-node lock; see package doc in tree.go for the
// concurrency contract.
type Node struct {
	vertex game.Vertex
	policy float32 // set once before publish, immutable thereafter

	color       uint32 // game.Color, atomic
	visits      uint32 // atomic
	runningThreads uint32 // atomic

	// 64-bit float accumulators, stored as float64 bit patterns and
	// updated with a CAS loop over the IEEE 754 bit representation
	// (see addFloat64); the mean acc/visits stays exact without a
	// mutex on the hot Backup path.
	accBlackWL         uint64
	accDraw            uint64
	accBlackFinalScore uint64
	squaredEvalDiff    uint64 // Welford M2, always >= 0

	netBlackWL float32 // evaluator snapshot, published once at expansion

	ownershipMu    sync.Mutex
	avgBlackOwnership []float32 // guarded by ownershipMu

	scoreBonus uint32 // float32 bits, atomic

	status      uint32 // Status, atomic
	expandState uint32 // ExpandState, atomic

	inflateMu sync.Mutex // not taken: Edge.Inflate publishes children by CAS
	children  []Edge     // append-once by Expander, read-only after publish
}

func newNode(vertex game.Vertex, policy float32) *Node {
	return &Node{
		vertex: vertex,
		policy: policy,
		status: uint32(Active),
	}
}

func newRootNode() *Node {
	n := newNode(game.Pass, 0)
	return n
}

// --- read-only accessors ---

func (n *Node) Vertex() game.Vertex { return n.vertex }
func (n *Node) Policy() float32     { return n.policy }

func (n *Node) Color() game.Color { return game.Color(atomic.LoadUint32(&n.color)) }
func (n *Node) setColor(c game.Color) { atomic.StoreUint32(&n.color, uint32(c)) }

func (n *Node) Visits() uint32 { return atomic.LoadUint32(&n.visits) }

func (n *Node) RunningThreads() uint32 { return atomic.LoadUint32(&n.runningThreads) }

func (n *Node) IncrementThreads() { atomic.AddUint32(&n.runningThreads, 1) }
func (n *Node) DecrementThreads() { atomic.AddUint32(&n.runningThreads, ^uint32(0)) }

func (n *Node) Status() Status { return Status(atomic.LoadUint32(&n.status)) }
func (n *Node) Activate()      { atomic.StoreUint32(&n.status, uint32(Active)) }
func (n *Node) Prune()         { atomic.StoreUint32(&n.status, uint32(Pruned)) }
func (n *Node) Invalidate()    { atomic.StoreUint32(&n.status, uint32(Invalid)) }

func (n *Node) IsActive() bool  { return n.Status() == Active }
func (n *Node) IsValid() bool   { return n.Status() != Invalid }

func (n *Node) ExpandState() ExpandState { return ExpandState(atomic.LoadUint32(&n.expandState)) }
func (n *Node) HasChildren() bool        { return n.ExpandState() == StateExpanded }

func (n *Node) Children() []Edge {
	// Safe to read children without further synchronization once
	// expandState observes Expanded: the release store below the CAS in
	// the expander happens-before this load's corresponding acquire.
	return n.children
}

func (n *Node) NetBlackWL() float32 { return n.netBlackWL }

func (n *Node) ScoreBonus() float32 {
	return math32.Float32frombits(atomic.LoadUint32(&n.scoreBonus))
}
func (n *Node) SetScoreBonus(v float32) {
	atomic.StoreUint32(&n.scoreBonus, math32.Float32bits(v))
}

// --- float64 atomic accumulator helpers ---

func loadFloat64(addr *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(addr))
}

func addFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newV := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, newV) {
			return
		}
	}
}

// --- derived statistics ---

// GetWL returns the side-to-move win-loss estimate for colour c,
// optionally inflated by virtual loss while other workers are inside
// this node, which anti-correlates concurrent descents.
func (n *Node) GetWL(c game.Color, useVirtualLoss bool) float32 {
	visits := n.Visits()
	if visits == 0 {
		return 0.5
	}
	wl := float32(loadFloat64(&n.accBlackWL) / float64(visits))
	if c == game.White {
		wl = 1 - wl
	}
	if useVirtualLoss {
		threads := n.RunningThreads()
		if threads > 0 {
			// Each pending descent is treated as a lost playout for
			// colour c — bias it towards -1.
			virtual := float32(threads) / (float32(visits) + float32(threads))
			wl = wl*(1-virtual) + (-1)*virtual
		}
	}
	return wl
}

// GetDraw returns the accumulated draw rate.
func (n *Node) GetDraw() float32 {
	visits := n.Visits()
	if visits == 0 {
		return 0
	}
	return float32(loadFloat64(&n.accDraw) / float64(visits))
}

// GetFinalScore returns the accumulated black-perspective final score
// oriented to colour c, including the node's score bonus.
func (n *Node) GetFinalScore(c game.Color) float32 {
	visits := n.Visits()
	var score float32
	if visits > 0 {
		score = float32(loadFloat64(&n.accBlackFinalScore) / float64(visits))
	}
	score += n.ScoreBonus()
	if c == game.White {
		return -score
	}
	return score
}

// GetScoreUtility implements GetScoreUtility from the original source:
// tanh((score - parentScore) / div).
func (n *Node) GetScoreUtility(c game.Color, div, parentScore float32) float32 {
	score := n.GetFinalScore(c)
	return math32.Tanh((score - parentScore) / div)
}

// Variance returns squared_eval_diff / max(1, visits-1).
func (n *Node) Variance(defaultVar float32) float32 {
	visits := n.Visits()
	if visits <= 1 {
		return defaultVar
	}
	return float32(loadFloat64(&n.squaredEvalDiff) / float64(visits-1))
}

// Ownership returns a copy of the running per-intersection ownership
// average, oriented to colour c.
func (n *Node) Ownership(c game.Color) []float32 {
	n.ownershipMu.Lock()
	defer n.ownershipMu.Unlock()
	out := make([]float32, len(n.avgBlackOwnership))
	for i, v := range n.avgBlackOwnership {
		if c == game.White {
			out[i] = -v
		} else {
			out[i] = v
		}
	}
	return out
}

// NNEvaluate returns the raw evaluator snapshot oriented to colour c —
// used as First Play Urgency (fpu_value).
func (n *Node) NNEvaluate(c game.Color) float32 {
	if c == game.White {
		return 1 - n.netBlackWL
	}
	return n.netBlackWL
}

// countActiveDescendants counts active nodes below n (debug/analysis use).
func (n *Node) countActiveDescendants() int {
	count := 0
	for i := range n.children {
		child := n.children[i].peek()
		if child == nil || !child.IsActive() {
			continue
		}
		count += 1 + child.countActiveDescendants()
	}
	return count
}

// findChild returns the child Edge whose vertex matches v, or nil.
func (n *Node) findChild(v game.Vertex) *Edge {
	for i := range n.children {
		if n.children[i].vertex == v {
			return &n.children[i]
		}
	}
	return nil
}
