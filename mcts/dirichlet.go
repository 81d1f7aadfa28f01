package mcts

import (
	rng "github.com/leesper/go_rng"

	"github.com/igogo/engine/game"
)

// applyDirichletNoise draws one Dirichlet(alpha) sample over the
// root's children, alpha = init * factor / |children|, and stores the
// per-vertex amplitudes in t.noise for the selector to mix into the
// priors. The pass move lives in the last slot of the buffer.
func (t *MCTS) applyDirichletNoise(root *Node) {
	for i := range t.noise {
		t.noise[i] = 0
	}
	if !t.cfg.DirichletNoise || len(root.children) == 0 {
		return
	}

	alpha := float64(t.cfg.DirichletInit * t.cfg.DirichletFactor / float32(len(root.children)))
	gamma := rng.NewGammaGenerator(t.seed)

	buffer := make([]float64, len(root.children))
	var sum float64
	for i := range buffer {
		buffer[i] = gamma.Gamma(alpha, 1)
		sum += buffer[i]
	}
	// A degenerate sample (all mass underflowed) is left as zero noise
	// rather than divided through.
	if sum < 1e-38 {
		return
	}
	for i := range root.children {
		t.noise[t.noiseIndex(root.children[i].Vertex())] = float32(buffer[i] / sum)
	}
}

// noiseIndex maps a vertex to its slot in the noise buffer.
func (t *MCTS) noiseIndex(v game.Vertex) int {
	if v.IsPass() {
		return len(t.noise) - 1
	}
	return int(v)
}

// searchPolicy returns the prior for a child, mixed with Dirichlet
// noise at the root when enabled: (1-eps)*policy + eps*noise.
func (t *MCTS) searchPolicy(e *Edge, useNoise bool) float32 {
	policy := e.Policy()
	if useNoise {
		eps := t.cfg.DirichletEps
		policy = policy*(1-eps) + eps*t.noise[t.noiseIndex(e.Vertex())]
	}
	return policy
}
