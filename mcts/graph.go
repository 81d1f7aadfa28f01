package mcts

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"

	"github.com/igogo/engine/game"
)

// dotNode is the view of one tree node the DOT template renders.
type dotNode struct {
	ID      string
	Move    string
	Color   game.Color
	Visits  uint32
	Policy  float32
	WL      float32
	LCB     float32
	Status  Status
}

// ToDot dumps the current search tree as a graphviz digraph, one table
// per node with its visit, prior, winrate and LCB statistics. Meant
// for debugging small searches; a full tree dump of a real search is
// enormous.
func (t *MCTS) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	if t.root != nil {
		t.addDotSubtree(g, t.root, t.current.ToMove(), "r")
	}
	return g.String()
}

func (t *MCTS) addDotSubtree(g *gographviz.Graph, n *Node, color game.Color, id string) {
	var buf bytes.Buffer
	dotTmpl.Execute(&buf, dotNode{
		ID:     id,
		Move:   game.GTPString(n.Vertex(), t.current.BoardSize()),
		Color:  color,
		Visits: n.Visits(),
		Policy: n.Policy(),
		WL:     n.GetWL(color, false),
		LCB:    n.GetLcb(color, t.lcb),
		Status: n.Status(),
	})
	g.AddNode("G", fmt.Sprintf("%q", id), map[string]string{
		"fontname": "Monaco",
		"shape":    "none",
		"label":    buf.String(),
	})

	for i := range n.children {
		child := n.children[i].peek()
		if child == nil || !child.IsActive() || child.Visits() == 0 {
			continue
		}
		childID := fmt.Sprintf("%s_%d", id, i)
		t.addDotSubtree(g, child, color.Opponent(), childID)
		g.AddEdge(fmt.Sprintf("%q", id), fmt.Sprintf("%q", childID), true, nil)
	}
}

const dotTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Move</TD><TD>{{.Move}}</TD></TR>
<TR><TD>To move</TD><TD>{{.Color}}</TD></TR>
<TR><TD>Visits</TD><TD>{{.Visits}}</TD></TR>
<TR><TD>Prior</TD><TD>{{printf "%.4f" .Policy}}</TD></TR>
<TR><TD>WL</TD><TD>{{printf "%.4f" .WL}}</TD></TR>
<TR><TD>LCB</TD><TD>{{printf "%.4f" .LCB}}</TD></TR>
<TR><TD>Status</TD><TD>{{.Status}}</TD></TR>
</TABLE>
>
`

var dotTmpl *template.Template

func init() {
	dotTmpl = template.Must(template.New("mctsdot").Parse(dotTmplRaw))
}
