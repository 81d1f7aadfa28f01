// Package stub is a deterministic in-memory Evaluator for tests and
// for driving the search without a network: results are fixed per
// call or per scripted move number, never learned.
package stub

import (
	"context"
	"sync"

	"github.com/igogo/engine/game"
)

// Evaluator returns a scripted result for every position. The zero
// value is unusable; construct with Uniform or Scripted.
type Evaluator struct {
	mu sync.Mutex

	// base is returned when no script entry matches.
	base game.Result
	// script overrides base, keyed by move number of the evaluated
	// position.
	script map[int]game.Result

	// Err, when set, makes every Eval fail; used to exercise the
	// evaluator-unavailable path.
	Err error

	calls int
}

var _ game.Evaluator = (*Evaluator)(nil)

// Uniform returns an evaluator that spreads the policy evenly over a
// board of the given size and always predicts an even game.
func Uniform(boardSize int) *Evaluator {
	n := boardSize * boardSize
	policy := make([]float32, n)
	for i := range policy {
		policy[i] = 1 / float32(n+1)
	}
	return &Evaluator{
		base: game.Result{
			Policy:     policy,
			PassPolicy: 1 / float32(n+1),
			WDL:        [3]float32{0.5, 0, 0.5},
			STMWinrate: 0.5,
			Ownership:  make([]float32, n),
			BoardSize:  boardSize,
		},
	}
}

// Scripted returns an evaluator that serves base by default and the
// scripted result for positions whose move number has an entry.
func Scripted(base game.Result, script map[int]game.Result) *Evaluator {
	return &Evaluator{base: base, script: script}
}

// Calls reports how many evaluations were served, letting tests
// verify cache behaviour.
func (e *Evaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Eval implements game.Evaluator. The ensemble, temperature and
// symmetry arguments are accepted and ignored: a stub's output is
// already canonical.
func (e *Evaluator) Eval(_ context.Context, s game.State, _ game.Ensemble, _ float32, _ game.Symmetry) (game.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return game.Result{}, e.Err
	}
	if r, ok := e.script[s.MoveNumber()]; ok {
		return cloneResult(r, s), nil
	}
	return cloneResult(e.base, s), nil
}

// cloneResult hands every caller its own slices so a search cannot
// corrupt the script, and fills in the position-dependent fields.
func cloneResult(r game.Result, s game.State) game.Result {
	out := r
	out.Policy = append([]float32(nil), r.Policy...)
	if len(out.Policy) == 0 {
		out.Policy = make([]float32, s.NumIntersections())
	}
	out.Ownership = append([]float32(nil), r.Ownership...)
	if len(out.Ownership) == 0 {
		out.Ownership = make([]float32, s.NumIntersections())
	}
	out.BoardSize = s.BoardSize()
	out.Komi = s.Komi()
	return out
}
