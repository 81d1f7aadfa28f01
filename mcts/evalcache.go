package mcts

import (
	"sync"

	"github.com/igogo/engine/game"
)

// evalCacheShardCount is fixed rather than derived from GOMAXPROCS: the
// cache is sized in bytes (cache_memory_mib), not in thread count, and
// a fixed shard count keeps the per-shard capacity computation simple.
const evalCacheShardCount = 64

// cacheEntry is one cached evaluator result plus enough bookkeeping
// for clock-style (second-chance) eviction.
type cacheEntry struct {
	result game.Result
	used   bool
}

type cacheShard struct {
	mu       sync.Mutex
	entries  map[game.Zobrist]*cacheEntry
	order    []game.Zobrist // clock hand order
	hand     int
	capacity int
}

// EvalCache is a bounded, concurrent-safe cache of Evaluator outputs
// keyed by position fingerprint. It is sharded by key, and one mutex
// per shard guards both Probe and Insert: keys in different shards
// never contend, while a probe waits behind an insert into the same
// shard, and no probe is lock-free. Each shard evicts independently with a clock (second-chance) policy once
// its capacity is exceeded, which keeps a recently re-probed entry
// alive without the bookkeeping cost of a full LRU list.
type EvalCache struct {
	shards [evalCacheShardCount]*cacheShard
}

// estimatedEntrySize approximates the footprint of one cached Result
// for a board of numIntersections points: policy + ownership slices,
// plus a fixed overhead for the map entry itself.
func estimatedEntrySize(numIntersections int) int {
	return numIntersections*4*2 + 96
}

// NewEvalCache builds a cache sized to roughly memoryMiB mebibytes,
// split evenly across shards.
func NewEvalCache(memoryMiB int, numIntersections int) *EvalCache {
	totalBytes := memoryMiB * 1024 * 1024
	perEntry := estimatedEntrySize(numIntersections)
	if perEntry <= 0 {
		perEntry = 1
	}
	totalEntries := totalBytes / perEntry
	perShard := totalEntries / evalCacheShardCount
	if perShard < 1 {
		perShard = 1
	}
	c := &EvalCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			entries:  make(map[game.Zobrist]*cacheEntry, perShard),
			capacity: perShard,
		}
	}
	return c
}

func (c *EvalCache) shardFor(key game.Zobrist) *cacheShard {
	return c.shards[uint64(key)%evalCacheShardCount]
}

// Probe returns the cached result for key, if present.
func (c *EvalCache) Probe(key game.Zobrist) (game.Result, bool) {
	shard := c.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	entry, ok := shard.entries[key]
	if !ok {
		return game.Result{}, false
	}
	entry.used = true
	return entry.result, true
}

// Insert stores result under key, evicting via clock policy if the
// owning shard is at capacity. A re-probe returns exactly the bytes
// stored because Result is never mutated after Eval returns it, and
// Insert always replaces rather than merges.
func (c *EvalCache) Insert(key game.Zobrist, result game.Result) {
	shard := c.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.entries[key]; ok {
		existing.result = result
		existing.used = true
		return
	}

	if len(shard.entries) >= shard.capacity {
		shard.evictLocked()
	}
	shard.entries[key] = &cacheEntry{result: result, used: true}
	shard.order = append(shard.order, key)
}

func (shard *cacheShard) evictLocked() {
	if len(shard.order) == 0 {
		return
	}
	for tries := 0; tries < 2*len(shard.order)+1; tries++ {
		if shard.hand >= len(shard.order) {
			shard.hand = 0
		}
		key := shard.order[shard.hand]
		entry, ok := shard.entries[key]
		if !ok {
			shard.order = append(shard.order[:shard.hand], shard.order[shard.hand+1:]...)
			continue
		}
		if entry.used {
			entry.used = false
			shard.hand++
			continue
		}
		delete(shard.entries, key)
		shard.order = append(shard.order[:shard.hand], shard.order[shard.hand+1:]...)
		return
	}
}

// Clear empties every shard.
func (c *EvalCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.entries = make(map[game.Zobrist]*cacheEntry, shard.capacity)
		shard.order = shard.order[:0]
		shard.hand = 0
		shard.mu.Unlock()
	}
}

// SetCapacityBytes resizes every shard's capacity, evicting
// immediately if the new size is smaller than current occupancy.
func (c *EvalCache) SetCapacityBytes(totalBytes int, numIntersections int) {
	perEntry := estimatedEntrySize(numIntersections)
	if perEntry <= 0 {
		perEntry = 1
	}
	perShard := (totalBytes / perEntry) / evalCacheShardCount
	if perShard < 1 {
		perShard = 1
	}
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.capacity = perShard
		for len(shard.entries) > shard.capacity {
			shard.evictLocked()
		}
		shard.mu.Unlock()
	}
}
