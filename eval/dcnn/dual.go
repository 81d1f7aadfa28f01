// Package dcnn is the neural evaluator: a dual-headed residual
// network whose policy head covers every intersection plus pass and
// whose value head estimates the side-to-move winrate. Only the
// forward pipe lives here; training the weights is a separate
// concern and out of scope for the engine.
package dcnn

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Float is the element type of every tensor in the network.
var Float = G.Float32

// Dual is the policy+value network graph.
type Dual struct {
	Config
	ops []batchNormOp

	g *G.ExprGraph

	planes       *G.Node
	policyOutput *G.Node
	valueOutput  *G.Node

	policyValue G.Value
	value       G.Value
}

// New returns a new, uninitialized *Dual.
func New(conf Config) *Dual {
	return &Dual{Config: conf}
}

// Init builds the forward graph.
func (d *Dual) Init() error {
	if err := d.Config.IsValid(); err != nil {
		return err
	}
	d.reset()
	d.g = G.NewGraph()
	return d.fwd()
}

func (d *Dual) fwd() error {
	boardSize := d.Width * d.Height

	// Gorgonia convolutions want BCHW.
	d.planes = G.NewTensor(d.g, Float, 4,
		G.WithShape(d.BatchSize, d.Features, d.Height, d.Width),
		G.WithName("Planes"))

	var m maebe
	sharedOut, initOp := m.res(d.planes, d.K, "Init")
	d.ops = append(d.ops, initOp)

	for i := 0; i < d.SharedLayers; i++ {
		var op1, op2 batchNormOp
		sharedOut, op1, op2 = m.share(sharedOut, d.K, i)
		d.ops = append(d.ops, op1, op2)
	}

	// Policy head: two 1x1 filters, flattened, linear to action space,
	// softmaxed for consumption.
	policy, pop := m.batchnorm(m.conv(sharedOut, 2, 1, "PolicyHead"))
	policy = m.rectify(policy)
	policy = m.reshape(policy, tensor.Shape{d.BatchSize, boardSize * 2})
	logits := m.linear(policy, d.ActionSpace, "Policy")
	d.policyOutput = m.do(func() (*G.Node, error) { return G.SoftMax(logits) })
	if m.err == nil {
		G.Read(d.policyOutput, &d.policyValue)
	}

	// Value head: one 1x1 filter, hidden layer, tanh scalar.
	value, vop := m.batchnorm(m.conv(sharedOut, 1, 1, "ValueHead"))
	value = m.rectify(value)
	value = m.reshape(value, tensor.Shape{d.BatchSize, boardSize})
	value = m.linear(value, d.FC, "Value")
	value = m.rectify(value)
	value = m.linear(value, 1, "ValueOutput")
	value = m.reshape(value, tensor.Shape{d.BatchSize})
	d.valueOutput = m.do(func() (*G.Node, error) { return G.Tanh(value) })
	if m.err == nil {
		G.Read(d.valueOutput, &d.value)
	}

	d.ops = append(d.ops, pop, vop)
	return m.err
}

// Model returns the learnable nodes, for weight loading and cloning.
func (d *Dual) Model() G.Nodes {
	retVal := make(G.Nodes, 0, d.g.Nodes().Len())
	for _, n := range d.g.AllNodes() {
		if n.IsVar() && n != d.planes {
			retVal = append(retVal, n)
		}
	}
	return retVal
}

// SetTesting locks every batchnorm into inference mode.
func (d *Dual) SetTesting() {
	for _, op := range d.ops {
		op.SetTesting()
	}
}

func (d *Dual) reset() {
	d.ops = nil
	d.g = nil
	d.planes = nil
	d.policyOutput = nil
	d.valueOutput = nil
}
