package mcts

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/igogo/engine/game"
	"github.com/pkg/errors"
)

// evalTimeout bounds the only blocking call a worker can make besides
// WaitExpanded. An evaluator that has not answered by then is treated
// as unavailable and the expansion is cancelled.
const evalTimeout = 30 * time.Second

// acquireExpanding is the CAS half of the expansion handshake:
// Initial -> Expanding. Exactly one worker wins.
func (n *Node) acquireExpanding() bool {
	return atomic.CompareAndSwapUint32(&n.expandState, uint32(StateInitial), uint32(StateExpanding))
}

// expandDone publishes children, colour and the network snapshot:
// Expanding -> Expanded. The atomic store is the release barrier the
// readers' acquire in ExpandState pairs with.
func (n *Node) expandDone() {
	atomic.StoreUint32(&n.expandState, uint32(StateExpanded))
}

// expandCancel rewinds the handshake after a failed expansion so a
// later descent can retry: Expanding -> Initial.
func (n *Node) expandCancel() {
	atomic.StoreUint32(&n.expandState, uint32(StateInitial))
}

// WaitExpanded spin-yields until another worker finishes (or cancels)
// its expansion of this node.
func (n *Node) WaitExpanded() {
	for n.ExpandState() == StateExpanding {
		runtime.Gosched()
	}
}

// setTerminal marks a two-pass (or otherwise finished) position: the
// node is Expanded with no children and an Invalid colour.
func (n *Node) setTerminal() bool {
	if !n.acquireExpanding() {
		return false
	}
	n.setColor(game.Invalid)
	n.expandDone()
	return true
}

// IsTerminal reports whether the node was closed by setTerminal.
func (n *Node) IsTerminal() bool {
	return n.ExpandState() == StateExpanded && n.Color() == game.Invalid
}

// policyVertex is one expansion candidate before publication.
type policyVertex struct {
	policy float32
	vertex game.Vertex
}

// expand runs the acquire-expand-release protocol on n for the
// position in state. On success it returns the evaluation of the
// freshly expanded position for Backup to propagate. ErrExpansionRace
// means another worker holds the node; ErrEvaluatorUnavailable means
// the expansion was cancelled and may be retried later.
func (t *MCTS) expand(n *Node, state game.State, isRoot bool, filter game.MoveFilter) (NodeEvals, error) {
	if n.HasChildren() {
		return NodeEvals{}, ErrExpansionRace
	}
	if !n.acquireExpanding() {
		return NodeEvals{}, ErrExpansionRace
	}

	color := state.ToMove()
	n.setColor(color)

	raw, err := t.rawEvaluation(state, color, isRoot)
	if err != nil {
		n.expandCancel()
		return NodeEvals{}, errors.WithMessage(ErrEvaluatorUnavailable, err.Error())
	}

	evals := n.applyNetOutput(state, raw, color, t.cfg.UseSTMWinrate)

	candidates, legalSum, allowPass := t.enumerateCandidates(n, state, raw, color, filter)

	if allowPass || len(candidates) == 0 {
		candidates = append(candidates, policyVertex{policy: raw.PassPolicy, vertex: game.Pass})
		legalSum += raw.PassPolicy
	}

	if legalSum < 1e-8 {
		// The policy mass sits entirely on illegal moves; fall back to
		// uniform priors.
		uniform := 1 / float32(len(candidates))
		for i := range candidates {
			candidates[i].policy = uniform
		}
	} else {
		for i := range candidates {
			candidates[i].policy /= legalSum
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].policy > candidates[j].policy
	})

	children := make([]Edge, 0, len(candidates))
	for _, c := range candidates {
		children = append(children, newEdge(c.vertex, c.policy))
	}
	n.children = children

	if isRoot {
		for i := range n.children {
			n.children[i].Inflate()
		}
		t.applyDirichletNoise(n)
	}

	n.expandDone()
	return evals, nil
}

// rawEvaluation obtains the evaluator output for state, via the cache
// when possible, or synthesizes it from the board's pattern policy
// when the search runs without a network.
func (t *MCTS) rawEvaluation(state game.State, color game.Color, isRoot bool) (game.Result, error) {
	if t.cfg.NoDCNN && !(t.cfg.RootDCNN && isRoot) {
		return noDCNNPolicy(state, color), nil
	}

	key := state.Hash()
	if cached, ok := t.cache.Probe(key); ok {
		return cached, nil
	}

	temp := t.cfg.PolicyTemp
	if isRoot {
		temp = t.cfg.RootPolicyTemp
	}
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()
	raw, err := t.nn.Eval(ctx, state, game.EnsembleRandom, temp, game.SymmetryIdentity)
	if err != nil {
		return game.Result{}, err
	}
	t.cache.Insert(key, raw)
	return raw, nil
}

// noDCNNPolicy synthesizes an evaluator result from the board's
// hand-crafted pattern policy: the pass move gets 0.1/N, the value
// head is a coin flip and the ownership is unknown.
func noDCNNPolicy(state game.State, color game.Color) game.Result {
	policy, passPolicy := state.PatternPolicy(color)
	return game.Result{
		Policy:     policy,
		PassPolicy: passPolicy,
		WDL:        [3]float32{0.5, 0, 0.5},
		STMWinrate: 0.5,
		FinalScore: 0,
		Ownership:  make([]float32, state.NumIntersections()),
		BoardSize:  state.BoardSize(),
		Komi:       0,
	}
}

// applyNetOutput stores the black-oriented evaluator snapshot on n and
// returns the NodeEvals Backup will propagate along the path.
func (n *Node) applyNetOutput(state game.State, raw game.Result, color game.Color, useSTM bool) NodeEvals {
	var wl float32
	if useSTM {
		wl = raw.STMWinrate
	} else {
		wl = (raw.WDL[0] - raw.WDL[2] + 1) / 2
	}
	finalScore := raw.FinalScore
	if color == game.White {
		wl = 1 - wl
		finalScore = -finalScore
	}

	numIntersections := state.NumIntersections()
	blackOwnership := make([]float32, numIntersections)
	for i := 0; i < numIntersections && i < len(raw.Ownership); i++ {
		owner := raw.Ownership[i]
		if color == game.White {
			owner = -owner
		}
		blackOwnership[i] = owner
	}

	n.netBlackWL = wl
	n.ownershipMu.Lock()
	n.avgBlackOwnership = make([]float32, numIntersections)
	n.ownershipMu.Unlock()

	return NodeEvals{
		BlackWL:         wl,
		Draw:            raw.WDL[1],
		BlackFinalScore: finalScore,
		BlackOwnership:  blackOwnership,
	}
}

// enumerateCandidates walks every intersection, keeping moves that are
// legal under the caller's filter and outside the strict safe area.
// When symmetry pruning applies it also drops moves whose hypothetical
// next-position hash matches an already-kept move under any of the 8
// symmetries; the pruned mass still counts towards the legal sum so
// the surviving priors renormalize correctly. Pass is disabled when
// more than three quarters of the board is still a candidate.
func (t *MCTS) enumerateCandidates(n *Node, state game.State, raw game.Result, color game.Color, filter game.MoveFilter) (candidates []policyVertex, legalSum float32, allowPass bool) {
	boardSize := state.BoardSize()
	numIntersections := state.NumIntersections()
	safeArea := state.StrictSafeArea()

	applySymmPruning := t.cfg.SymmPruning && state.MoveNumber() <= boardSize
	var movesHash []game.Zobrist
	var symmBase [game.NumSymmetries]game.Zobrist
	if applySymmPruning {
		for symm := game.SymmetryIdentity; symm < game.NumSymmetries; symm++ {
			symmBase[symm] = state.SymmetryHash(symm)
		}
	}

	candidates = make([]policyVertex, 0, numIntersections+1)
	for idx := 0; idx < numIntersections; idx++ {
		v := game.Vertex(idx)
		if safeArea[idx] {
			continue
		}
		if !state.IsLegal(v, color, filter) {
			continue
		}
		policy := raw.Policy[idx]

		if applySymmPruning {
			found := false
			for symm := game.SymmetryIdentity + 1; symm < game.NumSymmetries && !found; symm++ {
				symmVtx := t.oracle.TransformVertex(boardSize, symm, v)
				symmHash := symmBase[symm] ^ state.MoveHash(symmVtx, color)
				for _, h := range movesHash {
					if h == symmHash {
						found = true
						break
					}
				}
			}
			if found {
				// A legal move pruned by symmetry still contributes its
				// policy mass to the renormalization sum.
				legalSum += policy
				continue
			}
			// The hypothetical hash ignores captures; in the opening
			// moves where symmetry pruning runs, captures are rare
			// enough that a miss only costs a slightly larger tree.
			movesHash = append(movesHash, state.Hash()^state.MoveHash(v, color))
		}

		candidates = append(candidates, policyVertex{policy: policy, vertex: v})
		legalSum += policy
	}

	allowPass = len(candidates) <= 3*numIntersections/4
	return candidates, legalSum, allowPass
}
