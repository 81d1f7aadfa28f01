package mcts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLCBTableQuantiles(t *testing.T) {
	table := newLCBTable(1e-4)

	// Low degrees of freedom demand a wider bound than many.
	assert.Greater(t, table.CachedTQuantile(1), table.CachedTQuantile(100))
	assert.Greater(t, table.CachedTQuantile(100), table.CachedTQuantile(999))

	// With many samples the t quantile converges towards the normal
	// z for the same alpha, about 3.72 at 1e-4.
	z := table.CachedTQuantile(999)
	assert.InDelta(t, 3.72, z, 0.1)

	// Clamping below and above the table range.
	assert.Equal(t, table.CachedTQuantile(1), table.CachedTQuantile(0))
	assert.Equal(t, table.CachedTQuantile(1), table.CachedTQuantile(-5))
	assert.Equal(t, table.CachedTQuantile(lcbTableSize), table.CachedTQuantile(100000))
}

func TestLCBTableDeterministic(t *testing.T) {
	a := newLCBTable(0.05)
	b := newLCBTable(0.05)
	require.Equal(t, a.z, b.z)
}

func TestNormalCdfInverse(t *testing.T) {
	assert.InDelta(t, 0, normalCdfInverse(0.5), 1e-3)
	assert.InDelta(t, 1.2816, normalCdfInverse(0.9), 5e-3)
	assert.InDelta(t, -1.2816, normalCdfInverse(0.1), 5e-3)
	assert.InDelta(t, 3.719, normalCdfInverse(1-1e-4), 2e-2)
}
