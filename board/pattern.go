package 围碁

import "github.com/igogo/engine/game"

// patternPolicy synthesizes a crude move prior when the search runs
// with no_dcnn set: it hands the expansion step something shaped like
// Evaluator.Result.Policy without ever touching a network.
//
// It is a hand-tuned gamma table, not a learned one: captures (+2),
// contact with an opponent stone (+1) and contact with an own stone
// (+0.5) score higher than the base 1, matching the cheap heuristics Go
// playout policies (e.g. pachi's "moggy" policy) use before falling
// back to uniform. Legality filtering and renormalization happen in
// the Expander, same as for a real network policy.
func (b *Board) patternPolicy(c game.Color) (policy []float32, passPolicy float32) {
	policy = make([]float32, len(b.stones))
	opp := c.Opponent()
	for v := range b.stones {
		vv := game.Vertex(v)
		if b.stones[v] != emptyColor {
			continue
		}
		score := float32(1.0)
		if b.wouldCapture(vv, c) {
			score += 2.0
		}
		var sameNeighbor, oppNeighbor bool
		for _, n := range b.neighbors[v] {
			switch b.stones[n] {
			case c:
				sameNeighbor = true
			case opp:
				oppNeighbor = true
			}
		}
		if oppNeighbor {
			score += 1.0
		}
		if sameNeighbor {
			score += 0.5
		}
		policy[v] = score
	}
	return policy, 0.1 / float32(len(b.stones))
}
