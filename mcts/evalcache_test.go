package mcts

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igogo/engine/game"
)

func cacheResult(seed float32) game.Result {
	return game.Result{
		Policy:     []float32{seed, seed + 1, seed + 2},
		PassPolicy: seed / 10,
		WDL:        [3]float32{0.4, 0.2, 0.4},
		FinalScore: seed,
		Ownership:  []float32{1, -1, 0},
		BoardSize:  3,
	}
}

func TestEvalCacheProbeInsert(t *testing.T) {
	c := NewEvalCache(1, 9)

	_, ok := c.Probe(game.Zobrist(42))
	assert.False(t, ok)

	want := cacheResult(7)
	c.Insert(game.Zobrist(42), want)
	got, ok := c.Probe(game.Zobrist(42))
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cached result mutated (-want +got):\n%s", diff)
	}

	c.Clear()
	_, ok = c.Probe(game.Zobrist(42))
	assert.False(t, ok)
}

func TestEvalCacheBounded(t *testing.T) {
	c := NewEvalCache(1, 81)
	perShard := c.shards[0].capacity

	// Overfill a single shard; occupancy must never exceed capacity.
	shardKey := func(i int) game.Zobrist {
		return game.Zobrist(uint64(i) * evalCacheShardCount)
	}
	for i := 0; i < 3*perShard; i++ {
		c.Insert(shardKey(i), cacheResult(float32(i)))
	}
	assert.LessOrEqual(t, len(c.shards[0].entries), perShard)
}

func TestEvalCacheSetCapacityBytes(t *testing.T) {
	c := NewEvalCache(64, 81)
	for i := 0; i < 1000; i++ {
		c.Insert(game.Zobrist(i), cacheResult(float32(i)))
	}
	c.SetCapacityBytes(1024, 81)
	for _, shard := range c.shards {
		assert.LessOrEqual(t, len(shard.entries), shard.capacity)
	}
}

func TestEvalCacheConcurrent(t *testing.T) {
	c := NewEvalCache(1, 81)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := game.Zobrist(w*1000 + i)
				c.Insert(key, cacheResult(float32(i)))
				c.Probe(key)
				c.Probe(game.Zobrist(i)) // other writers' keys
			}
		}(w)
	}
	wg.Wait()
}
