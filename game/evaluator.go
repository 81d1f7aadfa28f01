package game

import "context"

// Ensemble controls how an Evaluator augments its input with board
// symmetries before inference.
type Ensemble int

const (
	// EnsembleNone disables symmetry augmentation.
	EnsembleNone Ensemble = iota
	// EnsembleDirect evaluates under exactly the caller-supplied symmetry.
	EnsembleDirect
	// EnsembleRandom picks uniformly among the 8 symmetries.
	EnsembleRandom
)

// Result is the full output of one evaluator call, already oriented to
// the colour that was to move in the evaluated State.
type Result struct {
	Policy      []float32 // per-intersection prior, length == NumIntersections
	PassPolicy  float32
	WDL         [3]float32 // win, draw, loss from the mover's perspective
	STMWinrate  float32
	FinalScore  float32
	Ownership   []float32 // per-intersection, from the mover's perspective
	BoardSize   int
	Komi        float32
}

// Evaluator is the narrow, asynchronous-from-the-caller's-perspective
// contract the core uses to get a policy/value/ownership estimate for a
// State. Implementations may batch calls across worker goroutines; the
// core makes no assumption about batch size, only that eval either
// returns within ctx's deadline or yields ctx.Err().
type Evaluator interface {
	Eval(ctx context.Context, s State, ensemble Ensemble, temperature float32, symm Symmetry) (Result, error)
}
