package mcts

import (
	"github.com/chewxy/math32"

	"github.com/igogo/engine/game"
)

const negInf = float32(-1e38)

// lcbCandidate pairs a ranking value with the move it was computed for.
type lcbCandidate struct {
	value  float32
	vertex game.Vertex
}

// GetLcb returns the lower confidence bound of n's win rate for colour
// c. With fewer than 3 visits the variance estimate is too unstable to
// bound anything, so the node is ranked below any well-visited sibling
// by returning its raw policy minus a large constant (the leelaz
// convention).
func (n *Node) GetLcb(c game.Color, table *LCBTable) float32 {
	visits := n.Visits()
	if visits <= 2 {
		return n.Policy() - 1e6
	}
	mean := n.GetWL(c, false)
	variance := n.Variance(1.0)
	stddev := math32.Sqrt(variance / float32(visits))
	z := table.CachedTQuantile(int(visits) - 1)
	return mean - z*stddev
}

// getLcbUtilityList implements the original GetLcbUtilityList: every
// active, visited child is ranked by its LCB plus a score-utility
// term, blended with a visit-share floor controlled by lcb_reduction,
// then stable-sorted best first.
func getLcbUtilityList(n *Node, c game.Color, cfg Config, table *LCBTable) []lcbCandidate {
	lcbUtilityFactor := cfg.LCBUtilityFactor
	if lcbUtilityFactor < 0 {
		lcbUtilityFactor = 0
	}
	lcbReduction := cfg.LCBReduction
	if lcbReduction < 0 {
		lcbReduction = 0
	} else if lcbReduction > 1 {
		lcbReduction = 1
	}

	children := n.Children()
	var parentVisits uint32
	for i := range children {
		child := children[i].peek()
		if child != nil && child.IsActive() {
			parentVisits += child.Visits()
		}
	}
	if parentVisits == 0 {
		return nil
	}

	score := n.GetFinalScore(c)
	list := make([]lcbCandidate, 0, len(children))
	for i := range children {
		child := children[i].peek()
		if child == nil || !child.IsActive() {
			continue
		}
		visits := child.Visits()
		if visits == 0 {
			continue
		}
		lcb := child.GetLcb(c, table)
		utility := lcbUtilityFactor * child.GetScoreUtility(c, cfg.ScoreUtilityDiv, score)
		ulcb := (lcb+utility)*(1-lcbReduction) + lcbReduction*(float32(visits)/float32(parentVisits))
		list = append(list, lcbCandidate{value: ulcb, vertex: child.Vertex()})
	}

	// stable sort, descending by value
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].value > list[j-1].value; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	return list
}

// GetBestMove implements the default (non-Gumbel) best-move policy:
// rank by LCB utility, falling back to the most-visited active child
// (probSelectChild) when no child has been visited yet.
func GetBestMove(n *Node, c game.Color, cfg Config, table *LCBTable) game.Vertex {
	list := getLcbUtilityList(n, c, cfg, table)

	bestValue := negInf
	best := game.Pass
	found := false
	for _, cand := range list {
		if cand.value > bestValue {
			bestValue = cand.value
			best = cand.vertex
			found = true
		}
	}
	if !found {
		if child := probSelectChild(n); child != nil {
			return child.Vertex()
		}
	}
	return best
}

// probSelectChild falls back to the most-visited active child when no
// candidate enters the LCB ranking (every child still has 0 visits);
// ties go to the first child in prior order.
func probSelectChild(n *Node) *Node {
	children := n.Children()
	var best *Node
	var bestVisits uint32 = 0
	first := true
	for i := range children {
		child := children[i].peek()
		if child == nil || !child.IsActive() {
			continue
		}
		v := child.Visits()
		if first || v > bestVisits {
			best = child
			bestVisits = v
			first = false
		}
	}
	return best
}
