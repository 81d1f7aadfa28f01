// Command analyze runs a fixed-budget search from an empty board (or
// a sequence of setup moves) and streams analysis records to stdout.
// It is the smallest useful harness around the engine core: board +
// evaluator + search, no GTP loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/igogo/engine/analysis/heatmap"
	board "github.com/igogo/engine/board"
	"github.com/igogo/engine/eval/dcnn"
	"github.com/igogo/engine/eval/stub"
	"github.com/igogo/engine/game"
	"github.com/igogo/engine/mcts"
)

var (
	boardSize = flag.Int("boardsize", 9, "board size")
	komi      = flag.Float64("komi", 7.0, "komi")
	playouts  = flag.Int("playouts", 400, "playout budget per search")
	threads   = flag.Int("threads", 1, "search worker threads")
	seed      = flag.Int64("seed", 1337, "RNG seed")
	mode      = flag.String("search-mode", "dcnn", "dcnn | nodcnn | rollout | rootdcnn")
	cacheMiB  = flag.Int("cache-memory-mib", 400, "evaluator cache size")
	constTime = flag.Duration("const-time", 0, "fixed thinking time per search, 0 to use playouts")
	interval  = flag.Int("interval", 10, "analysis interval in centiseconds")
	maxMoves  = flag.Int("max-moves", 10, "analysis candidates per record")
	dialect   = flag.String("dialect", "kata", "analysis dialect: leelaz | kata | engine")
	gumbel    = flag.Bool("gumbel", false, "use Sequential Halving with Gumbel at the root")
	dirichlet = flag.Bool("dirichlet-noise", false, "mix Dirichlet noise into root priors")
	ownership = flag.Bool("ownership", false, "append ownership to analysis records")
	heatmapGIF = flag.String("heatmap", "", "write an ownership heatmap GIF to this file")
	dotFile    = flag.String("dot", "", "write the final search tree as graphviz DOT to this file")
	moves      = flag.String("moves", "", "comma-separated setup moves in GTP coordinates, e.g. D4,Q16")
	nMoves     = flag.Int("genmoves", 1, "number of consecutive best moves to generate")
)

func main() {
	flag.Parse()

	cfg := mcts.DefaultConfig(*boardSize)
	cfg.Playouts = *playouts
	cfg.Threads = *threads
	cfg.ConstTime = *constTime
	cfg.CacheMemoryMiB = *cacheMiB
	cfg.Gumbel = *gumbel
	cfg.DirichletNoise = *dirichlet
	switch *mode {
	case "dcnn":
		cfg.SearchMode = mcts.ModeDCNN
	case "nodcnn":
		cfg.SearchMode = mcts.ModeNoDCNN
		cfg.NoDCNN = true
	case "rollout":
		cfg.SearchMode = mcts.ModeRollout
		cfg.NoDCNN = true
	case "rootdcnn":
		cfg.SearchMode = mcts.ModeRootDCNN
		cfg.NoDCNN = true
		cfg.RootDCNN = true
	default:
		log.Fatalf("unknown search mode %q", *mode)
	}

	oracle := board.Oracle{}
	nn, err := evaluator(oracle)
	if err != nil {
		log.Fatal(err)
	}

	t, err := mcts.New(oracle, nn, cfg, *boardSize, float32(*komi), *seed)
	if err != nil {
		log.Fatal(err)
	}

	if err := playSetupMoves(t); err != nil {
		log.Fatal(err)
	}

	reporter := &mcts.AnalysisReporter{
		Interval:  *interval,
		MaxMoves:  *maxMoves,
		Dialect:   parseDialect(*dialect),
		Ownership: *ownership,
		Out:       os.Stdout,
	}

	var enc *heatmap.Encoder
	if *heatmapGIF != "" {
		enc = heatmap.NewEncoder(*boardSize)
	}

	for i := 0; i < *nMoves; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		best := t.Analyze(ctx, reporter, false)
		cancel()

		fmt.Printf("play %s %s\n", t.State().ToMove(), game.GTPString(best, *boardSize))
		if enc != nil && t.Root() != nil {
			caption := fmt.Sprintf("move %d, %d playouts", t.State().MoveNumber(), t.Playouts())
			if err := enc.AddFrame(t.Root().Ownership(t.State().ToMove()), caption); err != nil {
				log.Fatal(err)
			}
		}
		if best.IsResign() || !t.PlayMove(best) {
			break
		}
	}

	if *dotFile != "" {
		if err := os.WriteFile(*dotFile, []byte(t.ToDot()), 0o644); err != nil {
			log.Fatal(err)
		}
	}
	if enc != nil {
		f, err := os.Create(*heatmapGIF)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := enc.Flush(f); err != nil {
			log.Fatal(err)
		}
	}
}

func evaluator(oracle board.Oracle) (game.Evaluator, error) {
	if *mode == "nodcnn" || *mode == "rollout" {
		// The pattern fallback never calls the evaluator below the
		// root; a uniform stub covers the rootdcnn-off case.
		return stub.Uniform(*boardSize), nil
	}
	inf, err := dcnn.NewInferencer(*boardSize, oracle, *seed)
	if err != nil {
		return nil, err
	}
	return inf, nil
}

func playSetupMoves(t *mcts.MCTS) error {
	if *moves == "" {
		return nil
	}
	for _, text := range strings.Split(*moves, ",") {
		v, err := parseGTP(strings.TrimSpace(text), *boardSize)
		if err != nil {
			return err
		}
		if !t.PlayMove(v) {
			return fmt.Errorf("illegal setup move %q", text)
		}
	}
	return nil
}

func parseDialect(s string) mcts.AnalysisDialect {
	switch s {
	case "leelaz":
		return mcts.DialectLeelaz
	case "engine":
		return mcts.DialectEngine
	default:
		return mcts.DialectKata
	}
}

func parseGTP(text string, size int) (game.Vertex, error) {
	if strings.EqualFold(text, "pass") {
		return game.Pass, nil
	}
	if len(text) < 2 {
		return game.Pass, fmt.Errorf("bad move %q", text)
	}
	col := strings.IndexByte("ABCDEFGHJKLMNOPQRSTUVWXYZ", byte(strings.ToUpper(text)[0]))
	if col < 0 || col >= size {
		return game.Pass, fmt.Errorf("bad column in %q", text)
	}
	var row int
	if _, err := fmt.Sscanf(text[1:], "%d", &row); err != nil || row < 1 || row > size {
		return game.Pass, fmt.Errorf("bad row in %q", text)
	}
	return game.Vertex((row-1)*size + col), nil
}
