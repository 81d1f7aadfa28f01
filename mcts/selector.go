package mcts

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/igogo/engine/game"
)

// puctSelectChild picks the child maximizing Q + U and returns
// it inflated. Unvisited children take the First Play Urgency value,
// parent's network winrate reduced by fpu_reduction * sqrt(sum of
// visited priors); a child mid-expansion takes a virtual-loss-like
// penalty instead so concurrent workers spread out.
func (t *MCTS) puctSelectChild(n *Node, color game.Color, isRoot bool, r *rand.Rand) *Node {
	n.WaitExpanded()

	if isRoot && t.shouldApplyGumbel(n) {
		return t.gumbelSelectChild(n, color, false, r)
	}

	var parentVisits uint32
	var totalVisitedPolicy float32
	for i := range n.children {
		child := n.children[i].peek()
		if child == nil || !child.IsValid() {
			continue
		}
		visits := child.Visits()
		parentVisits += visits
		if visits > 0 {
			totalVisitedPolicy += n.children[i].Policy()
		}
	}

	cfg := &t.cfg
	noise := isRoot && cfg.DirichletNoise
	fpuReductionFactor := cfg.FPUReduction
	if isRoot {
		fpuReductionFactor = cfg.FPURootReduction
	}

	cpuct := cfg.CPUCTInit + cfg.CPUCTBaseFactor*
		math32.Log((float32(parentVisits)+cfg.CPUCTBase+1)/cfg.CPUCTBase)
	numerator := math32.Sqrt(float32(parentVisits))
	fpuReduction := fpuReductionFactor * math32.Sqrt(totalVisitedPolicy)
	fpuValue := n.NNEvaluate(color) - fpuReduction
	parentScore := n.GetFinalScore(color)

	var best *Edge
	bestValue := negInf
	for i := range n.children {
		edge := &n.children[i]
		child := edge.peek()

		if child != nil && !child.IsActive() {
			continue
		}

		qValue := fpuValue
		denom := float32(1)
		var utility float32
		if child != nil {
			visits := child.Visits()
			if child.ExpandState() == StateExpanding {
				qValue = -1 - fpuReduction
			} else if visits > 0 {
				qValue = child.GetWL(color, true) + child.GetDraw()*cfg.DrawFactor
				utility = cfg.ScoreUtilityFactor *
					child.GetScoreUtility(color, cfg.ScoreUtilityDiv, parentScore)
			}
			denom += float32(visits)
		}

		psa := t.searchPolicy(edge, noise)
		puct := cpuct * psa * (numerator / denom)
		value := qValue + puct + utility

		if value > bestValue {
			bestValue = value
			best = edge
		}
	}
	if best == nil {
		return nil
	}
	return best.Inflate()
}

// computeWidth is the progressive-widening schedule for UCT mode:
// sqrt growth, monotonically non-decreasing and always at least 1.
func computeWidth(parentVisits uint32) int {
	w := int(math32.Sqrt(float32(parentVisits)))
	if w < 1 {
		return 1
	}
	return w
}

// uctSelectChild is the rollout-mode selector: classic UCT
// exploration plus a decaying prior bonus, restricted to the first
// computeWidth(parentVisits) children in prior order, widened by one
// for each capturing candidate encountered.
func (t *MCTS) uctSelectChild(n *Node, color game.Color, state game.State) *Node {
	n.WaitExpanded()

	var parentVisits uint32
	for i := range n.children {
		child := n.children[i].peek()
		if child != nil && child.IsValid() {
			parentVisits += child.Visits()
		}
	}

	cpuct := t.cfg.CPUCTInit
	parentQValue := n.GetWL(color, false)
	numerator := math32.Log(float32(parentVisits) + 1)
	width := computeWidth(parentVisits)

	var best *Edge
	bestValue := negInf
	for i := range n.children {
		edge := &n.children[i]
		if state.IsCapture(edge.Vertex(), color) {
			width++
		}
		if i >= width {
			break
		}

		child := edge.peek()
		if child != nil && !child.IsActive() {
			continue
		}

		qValue := parentQValue
		var visits uint32
		if child != nil {
			visits = child.Visits()
			if child.ExpandState() == StateExpanding {
				qValue = -1
			} else if visits > 0 {
				qValue = child.GetWL(color, true)
			}
		}

		denom := 1 + float32(visits)
		psa := edge.Policy()
		bonus := math32.Sqrt(1000/(float32(parentVisits)+1000)) * psa
		uct := cpuct * math32.Sqrt(numerator/denom)
		value := qValue + uct + bonus

		if value > bestValue {
			bestValue = value
			best = edge
		}
	}
	if best == nil {
		return nil
	}
	return best.Inflate()
}

// selectChild dispatches on the configured search mode. r is the
// per-worker RNG, used only by the Gumbel root path.
func (t *MCTS) selectChild(n *Node, color game.Color, isRoot bool, state game.State, r *rand.Rand) *Node {
	if t.cfg.SearchMode == ModeRollout {
		return t.uctSelectChild(n, color, state)
	}
	return t.puctSelectChild(n, color, isRoot, r)
}
