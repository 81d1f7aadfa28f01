package mcts

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/igogo/engine/game"
)

// shouldApplyGumbel reports whether the root still runs the Sequential
// Halving schedule: gumbel is on and the configured gumbel playout
// budget has not been consumed yet. The root's own evaluation visit is
// excluded from the count.
func (t *MCTS) shouldApplyGumbel(root *Node) bool {
	visits := int(root.Visits()) - 1
	return t.cfg.Gumbel && t.cfg.GumbelPlayouts > visits
}

// gumbelQValue is the mixed Q used for completed-Q imputation: winrate
// plus a score-utility term scaled by completed_q_utility_factor.
func (t *MCTS) gumbelQValue(n *Node, color game.Color, parentScore float32) float32 {
	return n.GetWL(color, false) + t.cfg.CompletedQUtilityFactor*
		n.GetScoreUtility(color, t.cfg.ScoreUtilityDiv, parentScore)
}

// normalizeCompletedQ is the sigma transformation from the Gumbel
// AlphaZero paper: it progressively increases the scale of the Q term
// relative to the prior as the best arm accumulates visits.
func normalizeCompletedQ(completedQ float32, maxVisits uint32) float32 {
	return (50 + float32(maxVisits)) * 0.1 * completedQ
}

// sequentialHalvingMask restricts gumbelLogits to the arms the
// Sequential Halving schedule wants visited right now, and adds the
// normalized completed Q of eligible visited arms.
//
// One epoch spends n*M visits, n = log2(M)+1 rounds over M considered
// arms (M rounded down to a power of two). The per-arm distribution of
// an epoch with M=4 runs
//
//	round 1 -> 1 | 1 | 1 | 1   (accumulated 1 | 1 | 1 | 1)
//	round 2 -> 2 | 2 | 0 | 0   (accumulated 3 | 3 | 1 | 1)
//	round 3 -> 4 | 0 | 0 | 0   (accumulated 7 | 3 | 1 | 1)
//
// and repeats across epochs, so 24 root visits with M=4 accumulate
// 14 | 6 | 2 | 2. Arms whose current visit count does not match the
// schedule's target are masked to mval. With onlyMaxVisit set, the
// target is instead the maximum visit count, which makes the selection
// return the schedule's winner (used by the final best-move pick).
func (t *MCTS) sequentialHalvingMask(n *Node, gumbelLogits []float32, color game.Color,
	rootVisits, maxVisits uint32, consideredMoves int, mval float32, onlyMaxVisit bool) {

	rounds := 1
	for m := consideredMoves; m >= 2; m /= 2 {
		rounds++
	}
	adjConsidered := 1 << (rounds - 1)

	// Per-epoch accumulated visit table, best arm last.
	table := make([]int, adjConsidered)
	for i, r, w := 0, 1, adjConsidered; i < rounds; i, w, r = i+1, w/2, r*2 {
		for j := 0; j < w; j++ {
			table[adjConsidered-j-1] += r
		}
	}

	visitsPerEpoch := rounds * adjConsidered
	epochs := int(rootVisits) / visitsPerEpoch
	visitsThisEpoch := int(rootVisits) - epochs*visitsPerEpoch
	round := visitsThisEpoch / adjConsidered

	height := 0
	width := adjConsidered
	offset := 0
	for i, step := 0, 1; i < round; i, step = i+1, step*2 {
		height += step
		width /= 2
		offset += width
	}

	parentScore := n.GetFinalScore(color)
	idx := offset + int(rootVisits)%width
	consideredVisits := uint32(table[idx]*epochs + height +
		(visitsThisEpoch-round*adjConsidered)/width)
	if onlyMaxVisit {
		consideredVisits = maxVisits
	}

	for i := range n.children {
		li := t.noiseIndex(n.children[i].Vertex())
		child := n.children[i].peek()
		if child != nil && !child.IsActive() {
			gumbelLogits[li] = mval
			continue
		}
		var visits uint32
		if child != nil {
			visits = child.Visits()
		}
		if visits == consideredVisits {
			if visits > 0 {
				gumbelLogits[li] += normalizeCompletedQ(
					t.gumbelQValue(child, color, parentScore), maxVisits)
			}
			// Unvisited eligible arms share the same (absent) completed
			// Q, so leaving their logits untouched is correct.
		} else {
			gumbelLogits[li] = mval
		}
	}
}

// gumbelSelectChild draws one i.i.d. Gumbel(0,1) per child, adds the
// log prior, applies the Sequential Halving mask, and returns the
// inflated child with the best resulting logit.
func (t *MCTS) gumbelSelectChild(n *Node, color game.Color, onlyMaxVisit bool, r *rand.Rand) *Node {
	n.WaitExpanded()

	gumbelLogits := make([]float32, len(t.noise))
	for i := range gumbelLogits {
		gumbelLogits[i] = negInf
	}

	var parentVisits, maxVisits uint32
	for i := range n.children {
		edge := &n.children[i]
		// Inverse-CDF sample of the standard Gumbel distribution.
		u := r.Float64()
		for u == 0 {
			u = r.Float64()
		}
		g := float32(-math32.Log(-math32.Log(float32(u))))
		gumbelLogits[t.noiseIndex(edge.Vertex())] = g + math32.Log(edge.Policy()+1e-8)

		child := edge.peek()
		if child != nil && child.IsValid() {
			visits := child.Visits()
			parentVisits += visits
			if visits > maxVisits {
				maxVisits = visits
			}
		}
	}

	consideredMoves := t.cfg.GumbelConsideredMoves
	if len(n.children) < consideredMoves {
		consideredMoves = len(n.children)
	}
	t.sequentialHalvingMask(n, gumbelLogits, color, parentVisits, maxVisits,
		consideredMoves, negInf, onlyMaxVisit)

	var best *Edge
	bestValue := negInf
	for i := range n.children {
		value := gumbelLogits[t.noiseIndex(n.children[i].Vertex())]
		if value > bestValue {
			bestValue = value
			best = &n.children[i]
		}
	}
	if best == nil {
		return nil
	}
	return best.Inflate()
}

// gumbelBestMove returns the schedule winner: the arm whose visit
// count equals the maximum (only-max-visit mode).
func (t *MCTS) gumbelBestMove(root *Node, color game.Color, r *rand.Rand) game.Vertex {
	child := t.gumbelSelectChild(root, color, true, r)
	if child == nil {
		return game.Pass
	}
	return child.Vertex()
}

// RootPolicyTarget returns the move-probability distribution a
// self-play pipeline would record for the current root: the
// completed-Q mixture when Gumbel search (or always_completed_q_policy)
// is on, otherwise the plain visit-count distribution. Indexed per
// intersection with the pass slot last.
func (t *MCTS) RootPolicyTarget() []float32 {
	root := t.root
	if root == nil || !root.HasChildren() {
		return nil
	}
	if t.cfg.Gumbel || t.cfg.AlwaysCompletedQPolicy {
		return t.ProbLogitsCompletedQ(root, t.current)
	}

	numIntersections := t.current.NumIntersections()
	prob := make([]float32, numIntersections+1)
	var total float32
	for i := range root.children {
		child := root.children[i].peek()
		if child == nil || !child.IsActive() {
			continue
		}
		idx := numIntersections
		if !child.Vertex().IsPass() {
			idx = t.current.IndexOf(child.Vertex())
		}
		prob[idx] = float32(child.Visits())
		total += prob[idx]
	}
	if total > 0 {
		for i := range prob {
			prob[i] /= total
		}
	}
	return prob
}

// ProbLogitsCompletedQ builds the root move-probability target used
// for analysis and training-data generation: the prior renormalized
// over the root's children, mixed in logit space with the normalized
// completed Q of every child, softmaxed, and thresholded at 1/|P|^2
// before the final renormalization. The slice is indexed per
// intersection with the pass slot last.
func (t *MCTS) ProbLogitsCompletedQ(root *Node, state game.State) []float32 {
	numIntersections := state.NumIntersections()
	prob := make([]float32, numIntersections+1)
	var acc float32
	for i := range root.children {
		edge := &root.children[i]
		idx := numIntersections
		if !edge.Vertex().IsPass() {
			idx = state.IndexOf(edge.Vertex())
		}
		acc += edge.Policy()
		prob[idx] = edge.Policy()
	}
	if acc <= 0 {
		return prob
	}
	for i := range prob {
		prob[i] /= acc
	}

	t.mixLogitsCompletedQ(root, state, prob)
	return prob
}

func (t *MCTS) mixLogitsCompletedQ(root *Node, state game.State, prob []float32) {
	numIntersections := state.NumIntersections()
	color := state.ToMove()
	parentScore := root.GetFinalScore(color)

	var maxVisits, parentVisits uint32
	var weightedQ, weightedPi float32
	for i := range root.children {
		child := root.children[i].peek()
		var visits uint32
		if child != nil && child.IsActive() {
			visits = child.Visits()
		}
		parentVisits += visits
		if visits > maxVisits {
			maxVisits = visits
		}
		if visits > 0 {
			weightedQ += root.children[i].Policy() * t.gumbelQValue(child, color, parentScore)
			weightedPi += root.children[i].Policy()
		}
	}

	// Completed Q per child: the mixed Q for visited arms, the
	// visit-weighted mixture estimate for unvisited ones.
	rawValue := t.gumbelQValue(root, color, parentScore)
	completedQ := make([]float32, len(root.children))
	maxCompletedQ := negInf
	minCompletedQ := -negInf
	for i := range root.children {
		child := root.children[i].peek()
		var visits uint32
		if child != nil && child.IsActive() {
			visits = child.Visits()
		}
		var q float32
		if visits == 0 {
			q = rawValue
			if weightedPi > 0 {
				q = (rawValue + (float32(parentVisits)/weightedPi)*weightedQ) /
					(1 + float32(parentVisits))
			}
		} else {
			q = t.gumbelQValue(child, color, parentScore)
		}
		completedQ[i] = q
		if q > maxCompletedQ {
			maxCompletedQ = q
		}
		if q < minCompletedQ {
			minCompletedQ = q
		}
	}
	qRange := maxCompletedQ - minCompletedQ
	if qRange < 1e-8 {
		qRange = 1e-8
	}
	for i := range completedQ {
		completedQ[i] = (completedQ[i] - minCompletedQ) / qRange
	}

	logitsQ := make([]float32, len(prob))
	for i := range logitsQ {
		logitsQ[i] = negInf
	}
	for i := range root.children {
		edge := &root.children[i]
		idx := numIntersections
		if !edge.Vertex().IsPass() {
			idx = state.IndexOf(edge.Vertex())
		}
		logitsQ[idx] = math32.Log(prob[idx]+1e-8) +
			normalizeCompletedQ(completedQ[i], maxVisits)
	}
	softmax(logitsQ, prob)

	// Zero out the noise floor and renormalize what survives.
	size := float32(len(prob))
	threshold := 1 / (size * size)
	var kept float32
	for i, v := range prob {
		if v < threshold {
			prob[i] = 0
		} else {
			kept += v
		}
	}
	if kept > 0 {
		for i := range prob {
			prob[i] /= kept
		}
	}
}

// softmax writes softmax(logits) at temperature 1 into out, guarding
// against overflow by subtracting the max logit first.
func softmax(logits, out []float32) {
	maxLogit := negInf
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float32
	for i, l := range logits {
		e := math32.Exp(l - maxLogit)
		out[i] = e
		sum += e
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
}
