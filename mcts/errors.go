package mcts

import "github.com/pkg/errors"

// Error taxonomy. Transient errors (ExpansionRace,
// EvaluatorUnavailable, NoLegalMoves) recover locally within a playout.
// The exception is a root that cannot expand: Computation then returns
// the wrapped ErrEvaluatorUnavailable. New returns configuration errors.

// ErrExpansionRace means the CAS from Initial to Expanding lost to
// another worker; the caller must release virtual loss and retry
// selection from the parent.
var ErrExpansionRace = errors.New("mcts: expansion race, another worker owns this node")

// ErrEvaluatorUnavailable means the Evaluator failed or timed out;
// Expander rewinds expand_state back to Initial. Search continues; if
// the root itself cannot expand, SearchDriver falls back to the
// policy-argmax move with no search.
var ErrEvaluatorUnavailable = errors.New("mcts: evaluator unavailable")

// ErrNoLegalMoves means the candidate list came back empty even of
// PASS; the position is treated as terminal and scored by the rules.
var ErrNoLegalMoves = errors.New("mcts: no legal moves, including pass")

// errIllegalConfiguration wraps a Config.IsValid failure; New returns
// it to the caller.
func errIllegalConfiguration(cause error) error {
	return errors.WithMessage(cause, "mcts: illegal configuration")
}
