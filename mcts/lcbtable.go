package mcts

import "math"

// LCBTable precomputes Student's-t quantiles for the Lower Confidence
// Bound ranking used by the best-move policy. Entry i holds the
// quantile for i+1 degrees of freedom (visits-1); lookups are clamped
// at lcbTableSize, since the quantile is nearly constant for large
// sample sizes.
type LCBTable struct {
	z [lcbTableSize]float32
}

const lcbTableSize = 1000

// rationalApprox is the Abramowitz & Stegun formula 26.2.23 rational
// approximation to the inverse normal CDF's tail, accurate to about
// 4.5e-4 (Cook, "C++ Phi Inverse").
func rationalApprox(t float64) float64 {
	c := [3]float64{2.515517, 0.802853, 0.010328}
	d := [3]float64{1.432788, 0.189269, 0.001308}
	return t - ((c[2]*t+c[1])*t+c[0])/(((d[2]*t+d[1])*t+d[0])*t+1.0)
}

// normalCdfInverse is the probit function, valid for p in (0,1).
func normalCdfInverse(p float64) float64 {
	if p < 0.5 {
		return -rationalApprox(math.Sqrt(-2.0 * math.Log(p)))
	}
	return rationalApprox(math.Sqrt(-2.0 * math.Log(1-p)))
}

// normToTApprox converts a normal-distribution z-score into the
// equivalent Student's-t quantile at the given degrees of freedom,
// using the two-branch rational approximation KataGo's fancymath.h
// documents.
func normToTApprox(z, degreesOfFreedom float64) float64 {
	n := degreesOfFreedom + 2
	if degreesOfFreedom > 8 {
		n--
		return math.Sqrt(n*math.Exp(z*z*(n-1.5)/((n-1)*(n-1))) - n)
	}
	return math.Sqrt(n*math.Exp(z*z*(n-0.853999327911)/((n-1.044042304114)*(n-0.954115472059))) - n)
}

// newLCBTable builds the quantile table for a one-sided confidence
// level of 1-complementProbability (e.g. alpha=1e-4 gives a ~99.99%
// one-sided bound).
func newLCBTable(complementProbability float32) *LCBTable {
	z := normalCdfInverse(1.0 - float64(complementProbability))
	t := &LCBTable{}
	for i := 0; i < lcbTableSize; i++ {
		t.z[i] = float32(normToTApprox(z, float64(i+1)))
	}
	return t
}

// CachedTQuantile returns the quantile for v degrees of freedom,
// clamped to the precomputed range.
func (t *LCBTable) CachedTQuantile(v int) float32 {
	if v < 1 {
		return t.z[0]
	}
	if v < lcbTableSize {
		return t.z[v-1]
	}
	return t.z[lcbTableSize-1]
}
