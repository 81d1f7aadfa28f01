package mcts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chewxy/math32"

	"github.com/igogo/engine/game"
)

// AnalysisDialect selects the textual format of emitted records.
type AnalysisDialect int

const (
	// DialectLeelaz emits winrate/prior/lcb as integers in [0,10000].
	DialectLeelaz AnalysisDialect = iota
	// DialectKata emits them as floats, KataGo style.
	DialectKata
	// DialectEngine is the native format: kata fields plus the KL
	// divergence and tree complexity of each candidate's subtree.
	DialectEngine
)

// AnalysisReporter periodically snapshots the root's LCB ranking and
// writes one record per candidate move. Entries are ordered by
// descending mixed LCB; entries beyond MaxMoves are dropped.
type AnalysisReporter struct {
	Interval       int // centiseconds between records
	MaxMoves       int
	Dialect        AnalysisDialect
	Ownership      bool // append root ownership to each record
	MovesOwnership bool // append per-move ownership to each candidate
	MoveFilter     game.MoveFilter
	Out            io.Writer
}

// run emits records until ctx is cancelled or the search stops. It is
// driven by computation, on the caller's goroutine, while the workers
// descend.
func (a *AnalysisReporter) run(ctx context.Context, t *MCTS, done <-chan struct{}) {
	interval := a.Interval
	if interval <= 0 {
		interval = 100
	}
	ticker := time.NewTicker(time.Duration(interval) * 10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if !t.isRunning() {
				return
			}
			if record := t.analysisString(a); record != "" {
				fmt.Fprint(a.Out, record)
			}
		}
	}
}

// AnalysisEntry is one candidate move in a snapshot, already oriented
// to the root's side to move.
type AnalysisEntry struct {
	Vertex    game.Vertex
	Visits    uint32
	Winrate   float32
	ScoreLead float32
	Prior     float32
	LCB       float32
	Order     int
	PV        []game.Vertex
	Ownership []float32
}

// AnalysisSnapshot ranks the root's visited children by the mixed LCB
// best-move score and resolves each candidate's principal variation.
func (t *MCTS) AnalysisSnapshot(maxMoves int, movesOwnership bool) []AnalysisEntry {
	root := t.root
	if root == nil || !root.HasChildren() {
		return nil
	}
	color := t.current.ToMove()
	list := getLcbUtilityList(root, color, t.cfg, t.lcb)

	entries := make([]AnalysisEntry, 0, len(list))
	for order, cand := range list {
		if maxMoves > 0 && order >= maxMoves {
			break
		}
		edge := root.findChild(cand.vertex)
		if edge == nil {
			continue
		}
		child := edge.peek()
		if child == nil {
			continue
		}
		lcb := cand.value
		if lcb < 0 {
			lcb = 0
		}
		entry := AnalysisEntry{
			Vertex:    cand.vertex,
			Visits:    child.Visits(),
			Winrate:   child.GetWL(color, false),
			ScoreLead: child.GetFinalScore(color),
			Prior:     edge.Policy(),
			LCB:       lcb,
			Order:     order,
			PV:        t.principalVariation(child),
		}
		if movesOwnership {
			entry.Ownership = child.Ownership(color)
		}
		entries = append(entries, entry)
	}
	return entries
}

// principalVariation chains best-move picks down the tree from n.
func (t *MCTS) principalVariation(n *Node) []game.Vertex {
	color := t.current.ToMove().Opponent() // n is a root child
	var pv []game.Vertex
	next := n
	for next.HasChildren() && !next.IsTerminal() {
		v := GetBestMove(next, color, t.cfg, t.lcb)
		edge := next.findChild(v)
		if edge == nil {
			break
		}
		child := edge.peek()
		if child == nil {
			break
		}
		pv = append(pv, v)
		next = child
		color = color.Opponent()
	}
	return pv
}

// analysisString renders one record in the reporter's dialect.
func (t *MCTS) analysisString(a *AnalysisReporter) string {
	// The root pointer is stable for the duration of a computation, so
	// no lock is needed here (and computation's own lock is held by the
	// goroutine driving this reporter).
	root := t.root
	if root == nil {
		return ""
	}
	entries := t.AnalysisSnapshot(a.MaxMoves, a.MovesOwnership)
	if len(entries) == 0 {
		return ""
	}
	boardSize := t.current.BoardSize()
	color := t.current.ToMove()

	var sb strings.Builder
	for i := range entries {
		e := &entries[i]
		pv := pvString(e.Vertex, e.PV, boardSize)
		switch a.Dialect {
		case DialectLeelaz:
			fmt.Fprintf(&sb, "info move %s visits %d winrate %d scoreLead %.6f prior %d lcb %d order %d pv %s",
				game.GTPString(e.Vertex, boardSize), e.Visits,
				clamp10k(e.Winrate), e.ScoreLead,
				clamp10k(e.Prior), clamp10k(e.LCB), e.Order, pv)
		case DialectKata:
			fmt.Fprintf(&sb, "info move %s visits %d winrate %.6f scoreLead %.6f prior %.6f lcb %.6f order %d pv %s",
				game.GTPString(e.Vertex, boardSize), e.Visits,
				e.Winrate, e.ScoreLead, e.Prior, e.LCB, e.Order, pv)
		case DialectEngine:
			child := root.findChild(e.Vertex).peek()
			fmt.Fprintf(&sb, "info move %s visits %d winrate %.6f scorelead %.6f prior %.6f lcb %.6f kl %.6f complexity %.6f order %d pv %s",
				game.GTPString(e.Vertex, boardSize), e.Visits,
				e.Winrate, e.ScoreLead, e.Prior, e.LCB,
				t.klDivergence(child), treeComplexity(child), e.Order, pv)
		}
		if a.MovesOwnership {
			sb.WriteString(ownershipString(e.Ownership, boardSize, a.Dialect))
		}
	}
	if a.Ownership {
		sb.WriteString(ownershipString(root.Ownership(color), boardSize, a.Dialect))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func pvString(first game.Vertex, pv []game.Vertex, boardSize int) string {
	var sb strings.Builder
	sb.WriteString(game.GTPString(first, boardSize))
	for _, v := range pv {
		sb.WriteByte(' ')
		sb.WriteString(game.GTPString(v, boardSize))
	}
	return sb.String()
}

func ownershipString(ownership []float32, boardSize int, dialect AnalysisDialect) string {
	var sb strings.Builder
	if dialect == DialectEngine {
		sb.WriteString(" movesownership")
	} else {
		sb.WriteString(" ownership")
	}
	// GTP analysis order: top row first.
	for y := boardSize - 1; y >= 0; y-- {
		for x := 0; x < boardSize; x++ {
			fmt.Fprintf(&sb, " %.6f", ownership[y*boardSize+x])
		}
	}
	return sb.String()
}

func clamp10k(v float32) int {
	scaled := int(10000 * v)
	if scaled > 10000 {
		return 10000
	}
	if scaled < 0 {
		return 0
	}
	return scaled
}

// klDivergence measures how concentrated the search is on the best
// move: -log(best visits / parent visits), 0 when fully concentrated.
func (t *MCTS) klDivergence(n *Node) float32 {
	if n == nil || !n.HasChildren() || n.IsTerminal() {
		return 0
	}
	best := GetBestMove(n, n.Color(), t.cfg, t.lcb)
	var parentVisits, bestVisits uint32
	for i := range n.children {
		child := n.children[i].peek()
		if child == nil || !child.IsActive() {
			continue
		}
		visits := child.Visits()
		parentVisits += visits
		if child.Vertex() == best {
			bestVisits = visits
		}
	}
	if parentVisits == bestVisits {
		return 0
	}
	if parentVisits == 0 || bestVisits == 0 {
		return -1
	}
	return -math32.Log(float32(bestVisits) / float32(parentVisits))
}

// treeComplexity is the scaled winrate standard deviation of the
// subtree; a calm position scores near zero.
func treeComplexity(n *Node) float32 {
	if n == nil || n.Visits() <= 1 {
		return 0
	}
	return math32.Sqrt(100 * n.Variance(1.0))
}
