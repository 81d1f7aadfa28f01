package 围碁

import (
	"fmt"

	"github.com/igogo/engine/game"
)

// moveError describes a rejected move at the board level (occupied
// point, suicide); State.Play reports these as a plain bool per the
// game.State contract, but the underlying error is preserved for
// callers (tests, cmd/analyze) that want the reason.
type moveError struct {
	vertex game.Vertex
	color  game.Color
	cause  error
}

func (err moveError) Error() string {
	return fmt.Sprintf("围碁: unable to play %v@%v: %v", err.color, err.vertex, err.cause)
}

func (err moveError) Unwrap() error { return err.cause }
