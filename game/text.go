package game

import "fmt"

// gtpColumns skips the letter I, per the GTP coordinate convention.
const gtpColumns = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// GTPString renders a vertex in GTP coordinates ("D4", "pass",
// "resign") for a board of the given size.
func GTPString(v Vertex, boardSize int) string {
	switch {
	case v.IsPass():
		return "pass"
	case v.IsResign():
		return "resign"
	}
	x := int(v) % boardSize
	y := int(v) / boardSize
	if x < 0 || x >= len(gtpColumns) {
		return v.String()
	}
	return fmt.Sprintf("%c%d", gtpColumns[x], y+1)
}
