package mcts

import (
	"time"

	"github.com/pkg/errors"
)

// SearchMode selects which evaluator path Expander takes.
type SearchMode int

const (
	// ModeDCNN always asks the neural-network evaluator.
	ModeDCNN SearchMode = iota
	// ModeNoDCNN always uses the pattern/gamma policy fallback.
	ModeNoDCNN
	// ModeRollout runs UCT selection with a rollout-style evaluator.
	ModeRollout
	// ModeRootDCNN uses the DCNN only at the root, pattern policy below it.
	ModeRootDCNN
)

// Config is the immutable-per-search record threaded through the
// driver, expander and selectors. Parsing CLI flags into a Config is
// the caller's job, not the core's.
type Config struct {
	// Selection
	CPUCTInit       float32
	CPUCTBase       float32
	CPUCTBaseFactor float32
	DrawFactor      float32

	ScoreUtilityFactor float32
	ScoreUtilityDiv    float32

	FPUReduction     float32
	FPURootReduction float32

	RootPolicyTemp float32
	PolicyTemp     float32

	LCBReduction           float32
	LCBUtilityFactor       float32
	CompletedQUtilityFactor float32

	// Dirichlet noise at the root
	DirichletNoise bool
	DirichletEps   float32
	DirichletInit  float32
	DirichletFactor float32

	SymmPruning   bool
	UseSTMWinrate bool
	FirstPassBonus bool

	// Gumbel / Sequential Halving
	Gumbel                 bool
	GumbelConsideredMoves  int
	GumbelPlayouts         int
	AlwaysCompletedQPolicy bool

	// External evaluator mode
	NoDCNN     bool
	RootDCNN   bool
	SearchMode SearchMode
	BatchSize  int

	// Confidence bound
	CIAlpha float32

	// Resignation / early stop
	ResignThreshold    float32
	ResignPlayouts     int
	ReducePlayouts     int
	ReducePlayoutsProb float32

	// Opening randomization
	RandomizeMoveNumber int
	RandomizeTemp       float32
	RandomizeMinVisits  uint32

	// Driver / scheduling
	Threads         int
	Playouts        int
	ConstTime       time.Duration
	Ponder          bool
	PonderFactor    float32
	ReuseTree       bool
	AnalysisVerbose bool
	LagBuffer       time.Duration

	// Cache
	CacheMemoryMiB int
}

// DefaultConfig returns the engine's documented defaults, adjusted
// for boardSize where a default scales with it.
func DefaultConfig(boardSize int) Config {
	return Config{
		CPUCTInit:       0.5,
		CPUCTBase:       19652,
		CPUCTBaseFactor: 1.0,
		DrawFactor:      0,

		ScoreUtilityFactor: 0.1,
		ScoreUtilityDiv:    20,

		FPUReduction:     0.25,
		FPURootReduction: 0.25,

		RootPolicyTemp: 1.0,
		PolicyTemp:     1.0,

		LCBReduction:            0.02,
		LCBUtilityFactor:        0.1,
		CompletedQUtilityFactor: 0,

		DirichletNoise:  false,
		DirichletEps:    0.25,
		DirichletInit:   0.03,
		DirichletFactor: float32(boardSize * boardSize),

		SymmPruning:    false,
		UseSTMWinrate:  false,
		FirstPassBonus: false,

		Gumbel:                false,
		GumbelConsideredMoves: 16,
		GumbelPlayouts:        400,

		NoDCNN:     false,
		RootDCNN:   false,
		SearchMode: ModeDCNN,
		BatchSize:  1,

		CIAlpha: 1e-4,

		ResignThreshold:    0.1,
		ResignPlayouts:     0,
		ReducePlayouts:     0,
		ReducePlayoutsProb: 0,

		RandomizeMoveNumber: 0,
		RandomizeTemp:       1,
		RandomizeMinVisits:  0,

		Threads:      1,
		Playouts:     1000,
		ConstTime:    0,
		Ponder:       false,
		PonderFactor: 1,
		ReuseTree:    true,
		LagBuffer:    0,

		CacheMemoryMiB: 400,
	}
}

// IsValid performs the illegal-configuration checks. Only configuration
// errors are meant to surface to the user; everything else recovers
// locally within a playout.
func (c Config) IsValid() error {
	if c.CIAlpha <= 0 || c.CIAlpha >= 1 {
		return errors.Errorf("IllegalConfiguration: ci_alpha must be in (0,1), got %v", c.CIAlpha)
	}
	if c.CPUCTInit <= 0 {
		return errors.Errorf("IllegalConfiguration: cpuct_init must be > 0, got %v", c.CPUCTInit)
	}
	if c.CPUCTBase <= 0 {
		return errors.Errorf("IllegalConfiguration: cpuct_base must be > 0, got %v", c.CPUCTBase)
	}
	if c.ScoreUtilityDiv == 0 {
		return errors.Errorf("IllegalConfiguration: score_utility_div must be nonzero")
	}
	if c.LCBReduction < 0 || c.LCBReduction > 1 {
		return errors.Errorf("IllegalConfiguration: lcb_reduction must be in [0,1], got %v", c.LCBReduction)
	}
	if c.DirichletNoise && c.DirichletFactor <= 0 {
		return errors.Errorf("IllegalConfiguration: dirichlet_factor must be > 0 when dirichlet_noise is set")
	}
	if c.Threads <= 0 {
		return errors.Errorf("IllegalConfiguration: threads must be > 0, got %v", c.Threads)
	}
	if c.GumbelConsideredMoves < 0 || c.GumbelPlayouts < 0 {
		return errors.Errorf("IllegalConfiguration: gumbel_considered_moves and gumbel_playouts must be >= 0")
	}
	return nil
}
