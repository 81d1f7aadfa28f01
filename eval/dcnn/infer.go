package dcnn

import (
	"context"
	"math/rand"
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/igogo/engine/eval"
	"github.com/igogo/engine/game"
)

// Inferencer pairs a forward-only *Dual with a tape machine so a VM
// is not rebuilt on every evaluation. The tape machine is not
// reentrant; Eval serializes calls with a mutex, which is also where
// concurrent search workers implicitly batch up behind one another.
type Inferencer struct {
	mu sync.Mutex

	d     *Dual
	m     G.VM
	input *tensor.Dense

	oracle game.BoardOracle
	rng    *rand.Rand
}

var _ game.Evaluator = (*Inferencer)(nil)

// NewInferencer builds the network for the given board size and wraps
// it as a game.Evaluator. The weights are freshly initialized; a
// caller with trained weights copies them into Model() before the
// first Eval.
func NewInferencer(boardSize int, oracle game.BoardOracle, seed int64) (*Inferencer, error) {
	conf := DefaultConf(boardSize)
	conf.Features = eval.NumFeatures
	d := New(conf)
	if err := d.Init(); err != nil {
		return nil, errors.WithMessage(err, "dcnn: graph construction failed")
	}
	d.SetTesting()

	return &Inferencer{
		d:      d,
		m:      G.NewTapeMachine(d.g),
		input:  tensor.New(tensor.WithShape(conf.BatchSize, conf.Features, conf.Height, conf.Width), tensor.Of(Float)),
		oracle: oracle,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Dual exposes the underlying network, mainly for weight loading.
func (inf *Inferencer) Dual() *Dual { return inf.d }

// Close releases the tape machine.
func (inf *Inferencer) Close() error { return inf.m.Close() }

// Eval implements game.Evaluator: encode the position (under the
// requested symmetry), run the forward pipe, undo the symmetry on the
// policy, and apply the softmax temperature.
func (inf *Inferencer) Eval(ctx context.Context, s game.State, ensemble game.Ensemble, temperature float32, symm game.Symmetry) (game.Result, error) {
	if err := ctx.Err(); err != nil {
		return game.Result{}, err
	}

	inf.mu.Lock()
	defer inf.mu.Unlock()

	switch ensemble {
	case game.EnsembleNone:
		symm = game.SymmetryIdentity
	case game.EnsembleRandom:
		symm = game.Symmetry(inf.rng.Intn(int(game.NumSymmetries)))
	}

	boardSize := s.BoardSize()
	planes := eval.Encode(s)
	if symm != game.SymmetryIdentity {
		planes = eval.TransformPlanes(planes, boardSize, symm, inf.oracle)
	}

	rawPolicy, value, err := inf.infer(planes)
	if err != nil {
		return game.Result{}, errors.WithMessage(err, "dcnn: inference failed")
	}

	numIntersections := s.NumIntersections()
	policy := make([]float32, numIntersections)
	for idx := 0; idx < numIntersections; idx++ {
		tv := inf.oracle.TransformVertex(boardSize, symm, game.Vertex(idx))
		policy[idx] = rawPolicy[tv]
	}
	passPolicy := rawPolicy[numIntersections]

	if temperature > 0 && temperature != 1 {
		applyTemperature(policy, &passPolicy, temperature)
	}

	stm := (value + 1) / 2
	return game.Result{
		Policy:     policy,
		PassPolicy: passPolicy,
		WDL:        [3]float32{stm, 0, 1 - stm},
		STMWinrate: stm,
		FinalScore: 0,
		Ownership:  make([]float32, numIntersections),
		BoardSize:  boardSize,
		Komi:       s.Komi(),
	}, nil
}

func (inf *Inferencer) infer(planes []float32) (policy []float32, value float32, err error) {
	for _, op := range inf.d.ops {
		if err = op.Reset(); err != nil {
			return nil, 0, err
		}
	}
	inf.input.Zero()
	copy(inf.input.Data().([]float32), planes)

	inf.m.Reset()
	if err = G.Let(inf.d.planes, inf.input); err != nil {
		return nil, 0, err
	}
	if err = inf.m.RunAll(); err != nil {
		return nil, 0, err
	}

	raw := inf.d.policyValue.Data().([]float32)
	policy = make([]float32, inf.d.ActionSpace)
	copy(policy, raw[:inf.d.ActionSpace])
	value = inf.d.value.Data().([]float32)[0]
	return policy, value, nil
}

// applyTemperature re-softmaxes the probabilities at the given
// temperature: p_i^(1/T), renormalized.
func applyTemperature(policy []float32, passPolicy *float32, temperature float32) {
	invT := 1 / temperature
	var sum float32
	for i, p := range policy {
		policy[i] = math32.Pow(p, invT)
		sum += policy[i]
	}
	*passPolicy = math32.Pow(*passPolicy, invT)
	sum += *passPolicy
	if sum <= 0 {
		return
	}
	for i := range policy {
		policy[i] /= sum
	}
	*passPolicy /= sum
}
