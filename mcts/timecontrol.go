package mcts

import "time"

// TimeControl is the clock state for the side about to move: absolute
// main time plus Canadian/byo-yomi overtime.
type TimeControl struct {
	Main     time.Duration
	Byoyomi  time.Duration
	Stones   int
	Periods  int
}

// BudgetFor computes the per-move thinking budget before a search
// starts: remaining main time divided by the estimated moves left (plus
// half an overtime period when there is one), or, once main time is
// gone, one overtime period divided by its stone count; less the
// configured network lag buffer. A zero TimeControl means no clock;
// the search then runs on playouts or const_time alone.
func (tc TimeControl) BudgetFor(lagBuffer time.Duration, movesLeftEstimate int) time.Duration {
	if tc.Main <= 0 && tc.Byoyomi <= 0 {
		return 0
	}
	if movesLeftEstimate < 1 {
		movesLeftEstimate = 1
	}

	var budget time.Duration
	if tc.Main > 0 {
		budget = tc.Main / time.Duration(movesLeftEstimate)
		if tc.Byoyomi > 0 {
			// With overtime behind us we can afford to spend main time
			// a little faster.
			budget += tc.Byoyomi / 2
		}
	} else {
		stones := tc.Stones
		if stones < 1 {
			stones = 1
		}
		budget = tc.Byoyomi / time.Duration(stones)
	}

	budget -= lagBuffer
	if budget < time.Millisecond {
		budget = time.Millisecond
	}
	return budget
}
