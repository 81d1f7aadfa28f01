package dcnn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConf(t *testing.T) {
	conf := DefaultConf(9)
	require.NoError(t, conf.IsValid())
	assert.Equal(t, 82, conf.ActionSpace)
	assert.Equal(t, 9, conf.Width)
	assert.Equal(t, 1, conf.BatchSize)
	assert.Equal(t, 32, conf.K) // 81/3 = 27 rounds to 32
}

func TestConfigRejectsDegenerate(t *testing.T) {
	conf := DefaultConf(9)
	conf.K = 0
	assert.Error(t, conf.IsValid())

	conf = DefaultConf(9)
	conf.ActionSpace = 10
	assert.Error(t, conf.IsValid())

	conf = DefaultConf(9)
	conf.BatchSize = 0
	assert.Error(t, conf.IsValid())
}

func TestRoundPow2(t *testing.T) {
	assert.Equal(t, 32, roundPow2(27))
	assert.Equal(t, 8, roundPow2(8))
	assert.Equal(t, 4, roundPow2(5))
	assert.Equal(t, 8, roundPow2(7))
}

func TestDualInitBuildsGraph(t *testing.T) {
	conf := DefaultConf(3)
	conf.SharedLayers = 1
	d := New(conf)
	require.NoError(t, d.Init())
	assert.NotEmpty(t, d.Model())
}
