package mcts

import (
	"sync/atomic"

	"github.com/igogo/engine/game"
)

// update folds one playout result into the node's statistics:
// Welford M2 for the winrate variance, the three CAS-loop float
// accumulators, and the locked running mean over the ownership map.
// Writes are total, so Backup can never fail mid-path.
func (n *Node) update(evals *NodeEvals) {
	eval := float64(evals.BlackWL)
	oldAcc := loadFloat64(&n.accBlackWL)
	oldVisits := atomic.LoadUint32(&n.visits)

	var delta float64
	if oldVisits > 0 {
		oldDelta := eval - oldAcc/float64(oldVisits)
		newDelta := eval - (oldAcc+eval)/float64(oldVisits+1)
		delta = oldDelta * newDelta
	}

	atomic.AddUint32(&n.visits, 1)
	addFloat64(&n.squaredEvalDiff, delta)
	addFloat64(&n.accBlackWL, eval)
	addFloat64(&n.accDraw, float64(evals.Draw))
	addFloat64(&n.accBlackFinalScore, float64(evals.BlackFinalScore))

	n.ownershipMu.Lock()
	if len(n.avgBlackOwnership) < len(evals.BlackOwnership) {
		n.avgBlackOwnership = make([]float32, len(evals.BlackOwnership))
	}
	for i := range evals.BlackOwnership {
		diff := (evals.BlackOwnership[i] - n.avgBlackOwnership[i]) / float32(oldVisits+1)
		n.avgBlackOwnership[i] += diff
	}
	n.ownershipMu.Unlock()
}

// terminalEvals scores a finished position with the rules: the winner
// takes a full point of winrate, a |score| below drawEpsilon counts as
// a draw, and ownership comes from the board's pass-alive computation.
func terminalEvals(state game.State) NodeEvals {
	const drawEpsilon = 1e-4

	score := state.ComputeSimpleFinalScore(state.Komi())
	ownership := make([]float32, state.NumIntersections())
	state.ComputePassAliveOwnership(ownership)

	evals := NodeEvals{
		BlackFinalScore: score,
		BlackOwnership:  ownership,
	}
	switch {
	case score > drawEpsilon:
		evals.BlackWL = 1
	case score < -drawEpsilon:
		evals.BlackWL = 0
	default:
		evals.BlackWL = 0.5
		evals.Draw = 1
	}
	return evals
}
