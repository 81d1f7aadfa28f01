package mcts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igogo/engine/eval/stub"
	"github.com/igogo/engine/game"
)

func TestAnalysisSnapshotOrdering(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 200
	})
	require.NoError(t, tree.Computation(context.Background(), 200, TagThinking))

	entries := tree.AnalysisSnapshot(0, false)
	require.NotEmpty(t, entries)
	for i, e := range entries {
		assert.Equal(t, i, e.Order)
		assert.GreaterOrEqual(t, e.Visits, uint32(1))
	}

	// Order must follow the mixed-LCB ranking, which is what the
	// best-move rule consumes.
	list := getLcbUtilityList(tree.Root(), tree.State().ToMove(), tree.cfg, tree.lcb)
	require.GreaterOrEqual(t, len(list), len(entries))
	for i := range entries {
		assert.Equal(t, list[i].vertex, entries[i].Vertex)
	}
}

func TestAnalysisMaxMoves(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 120
	})
	require.NoError(t, tree.Computation(context.Background(), 120, TagThinking))

	entries := tree.AnalysisSnapshot(3, false)
	assert.LessOrEqual(t, len(entries), 3)
}

func TestAnalysisDialects(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 100
	})
	require.NoError(t, tree.Computation(context.Background(), 100, TagThinking))

	for _, dialect := range []AnalysisDialect{DialectLeelaz, DialectKata, DialectEngine} {
		record := tree.analysisString(&AnalysisReporter{
			MaxMoves: 5,
			Dialect:  dialect,
		})
		require.NotEmpty(t, record)
		assert.True(t, strings.HasPrefix(record, "info move "))
		assert.Contains(t, record, "visits")
		assert.Contains(t, record, "order")
		assert.Contains(t, record, "pv")
		if dialect == DialectEngine {
			assert.Contains(t, record, "kl")
			assert.Contains(t, record, "complexity")
		}
	}
}

func TestAnalysisOwnership(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 60
	})
	require.NoError(t, tree.Computation(context.Background(), 60, TagThinking))

	record := tree.analysisString(&AnalysisReporter{
		MaxMoves:  2,
		Dialect:   DialectKata,
		Ownership: true,
	})
	assert.Contains(t, record, " ownership ")
	// 81 intersections worth of floats after the keyword.
	tail := record[strings.Index(record, " ownership ")+len(" ownership "):]
	assert.Len(t, strings.Fields(strings.TrimSpace(tail)), 81)
}

func TestAnalyzeStreams(t *testing.T) {
	tree := newSearch(t, stub.Uniform(9), func(cfg *Config) {
		cfg.Playouts = 3000
		cfg.Threads = 2
	})
	var buf bytes.Buffer
	reporter := &AnalysisReporter{
		Interval: 1, // every 10ms
		MaxMoves: 5,
		Dialect:  DialectKata,
		Out:      &buf,
	}
	// keep_running mode: the search ponders until the context is
	// cancelled, so the ticker is guaranteed several firings.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	best := tree.Analyze(ctx, reporter, true)
	assert.Equal(t, game.Pass, best)
	assert.Contains(t, buf.String(), "info move ")
}

func TestGTPString(t *testing.T) {
	assert.Equal(t, "A1", game.GTPString(game.Vertex(0), 9))
	assert.Equal(t, "J9", game.GTPString(game.Vertex(80), 9))
	assert.Equal(t, "E5", game.GTPString(game.Vertex(40), 9))
	assert.Equal(t, "pass", game.GTPString(game.Pass, 9))
	assert.Equal(t, "resign", game.GTPString(game.Resign, 9))
}
