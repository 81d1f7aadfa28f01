package mcts

import (
	"sync/atomic"
	"unsafe"

	"github.com/igogo/engine/game"
)

// Edge is a (move, prior) pair plus a lazily-materialized child Node.
// The child is published through a single atomic.CompareAndSwapPointer
// from nil to a freshly allocated *Node. Once the CAS succeeds,
// every later reader observes a fully-formed *Node via the pointer's
// own release/acquire semantics; no further locking is needed to
// read it.
type Edge struct {
	vertex game.Vertex
	policy float32 // immutable once Expander publishes the parent's children

	child unsafe.Pointer // *Node, atomic
}

func newEdge(v game.Vertex, policy float32) Edge {
	return Edge{vertex: v, policy: policy}
}

func (e *Edge) Vertex() game.Vertex { return e.vertex }
func (e *Edge) Policy() float32     { return e.policy }

// peek returns the current child without allocating one.
func (e *Edge) peek() *Node {
	return (*Node)(atomic.LoadPointer(&e.child))
}

// HasChild reports whether the edge has already been inflated.
func (e *Edge) HasChild() bool { return e.peek() != nil }

// Inflate returns the child Node, materializing it on first access.
// Concurrent callers racing on the same Edge all construct a candidate
// Node, but only one CAS wins; the losers discard their candidate and
// observe the winner's through the same load.
func (e *Edge) Inflate() *Node {
	if child := e.peek(); child != nil {
		return child
	}
	candidate := newNode(e.vertex, e.policy)
	if atomic.CompareAndSwapPointer(&e.child, nil, unsafe.Pointer(candidate)) {
		return candidate
	}
	return e.peek()
}

// Child is an alias for Inflate, used at call sites that are known to
// run after expansion and want the intent of "get, materializing if
// needed" to read plainly.
func (e *Edge) Child() *Node { return e.Inflate() }

// Release drops an unvisited child back to its lazy edge form,
// freeing the node. A visited child is left in place: its statistics
// are owned by the tree and releasing them would corrupt the parent's
// invariants. Inflate followed by Release is a no-op.
func (e *Edge) Release() {
	child := e.peek()
	if child == nil || child.Visits() > 0 {
		return
	}
	atomic.CompareAndSwapPointer(&e.child, unsafe.Pointer(child), nil)
}
