package 围碁

import (
	"math"

	"github.com/igogo/engine/game"
)

// zobristSeed is fixed rather than time-derived so that two States
// created for the same board size hash identically from run to run;
// single-threaded searches with a pinned RNG seed replay exactly.
const zobristSeed = 0x67756767

// State implements game.State: a Board plus the move history, komi
// and side-to-move bookkeeping. Rather than keeping a full board
// snapshot per move, State only retains the running stone-only hash
// of each position reached, which is all positional superko needs.
type State struct {
	board   *Board
	zobrist *zobristTable

	toMove     game.Color
	komi       float32
	moveNumber int
	passes     int

	stoneHash uint64   // running zobrist over stones only, no side-to-move/komi
	koHistory []uint64 // stoneHash after every move played so far, oldest first

	lastMove game.PlayerMove
}

func newState(boardSize int, komi float32) *State {
	return &State{
		board:     newBoard(boardSize),
		zobrist:   newZobristTable(boardSize, zobristSeed),
		toMove:    game.Black,
		komi:      komi,
		koHistory: []uint64{0},
		lastMove:  game.PlayerMove{Color: game.Invalid, Vertex: game.Pass},
	}
}

func (s *State) Fork() game.State {
	koHistory := make([]uint64, len(s.koHistory))
	copy(koHistory, s.koHistory)
	return &State{
		board:      s.board.Clone(),
		zobrist:    s.zobrist,
		toMove:     s.toMove,
		komi:       s.komi,
		moveNumber: s.moveNumber,
		passes:     s.passes,
		stoneHash:  s.stoneHash,
		koHistory:  koHistory,
		lastMove:   s.lastMove,
	}
}

func (s *State) ToMove() game.Color { return s.toMove }

func (s *State) Passes() int     { return s.passes }
func (s *State) MoveNumber() int { return s.moveNumber }
func (s *State) Komi() float32   { return s.komi }

func (s *State) StoneAt(v game.Vertex) game.Color {
	if int(v) < 0 || int(v) >= len(s.board.stones) {
		return emptyColor
	}
	return s.board.stones[v]
}

func (s *State) NumIntersections() int { return len(s.board.stones) }
func (s *State) BoardSize() int        { return s.board.size }

func (s *State) VertexOf(x, y int) game.Vertex { return game.Vertex(y*s.board.size + x) }
func (s *State) IndexOf(v game.Vertex) int      { return int(v) }
func (s *State) XYOf(v game.Vertex) (x, y int) {
	return int(v) % s.board.size, int(v) / s.board.size
}

// IsLegal rejects occupied points, suicide and any move whose
// resulting stone-only position has already occurred (positional
// superko), in addition to running filter if supplied.
func (s *State) IsLegal(v game.Vertex, c game.Color, filter game.MoveFilter) bool {
	if v.IsResign() {
		return false
	}
	if filter != nil && !filter(v, c) {
		return false
	}
	if v.IsPass() {
		return true
	}
	if int(v) < 0 || int(v) >= len(s.board.stones) {
		return false
	}
	if s.board.stones[v] != emptyColor {
		return false
	}
	clone := s.board.Clone()
	captured, err := clone.apply(v, c)
	if err != nil {
		return false
	}
	hypothetical := s.stoneHash ^ s.zobrist.entry(v, c)
	for _, cap := range captured {
		hypothetical ^= s.zobrist.entry(cap, c.Opponent())
	}
	for _, h := range s.koHistory {
		if h == hypothetical {
			return false
		}
	}
	return true
}

func (s *State) Play(v game.Vertex) bool {
	if !s.IsLegal(v, s.toMove, nil) {
		return false
	}
	s.PlayAssumeLegal(v)
	return true
}

// PlayAssumeLegal mutates s in place. Callers that have not already
// confirmed legality (e.g. via IsLegal) get a panic rather than a
// silently corrupted position.
func (s *State) PlayAssumeLegal(v game.Vertex) {
	c := s.toMove
	s.lastMove = game.PlayerMove{Color: c, Vertex: v}
	if v.IsPass() {
		s.passes++
		s.koHistory = append(s.koHistory, s.stoneHash)
		s.toMove = c.Opponent()
		s.moveNumber++
		return
	}
	captured, err := s.board.apply(v, c)
	if err != nil {
		panic("围碁: PlayAssumeLegal called with an illegal move: " + err.Error())
	}
	s.stoneHash ^= s.zobrist.entry(v, c)
	opp := c.Opponent()
	for _, cap := range captured {
		s.stoneHash ^= s.zobrist.entry(cap, opp)
	}
	s.passes = 0
	s.koHistory = append(s.koHistory, s.stoneHash)
	s.toMove = opp
	s.moveNumber++
}

func (s *State) StrictSafeArea() []bool { return s.board.strictSafeArea() }

func (s *State) IsCapture(v game.Vertex, c game.Color) bool { return s.board.wouldCapture(v, c) }

// IsSimpleEye reports whether every orthogonal neighbour of an empty v
// is held by c.
func (s *State) IsSimpleEye(v game.Vertex, c game.Color) bool {
	if s.board.stones[v] != emptyColor {
		return false
	}
	for _, n := range s.board.neighbors[v] {
		if s.board.stones[n] != c {
			return false
		}
	}
	return true
}

// IsRealEye refines IsSimpleEye with the classic diagonal-control
// heuristic: a corner or edge point needs every on-board diagonal
// controlled by c, a centre point needs 3 of its 4. This is the
// standard false-eye test used by playout policies; it is not a full
// life-and-death proof.
func (s *State) IsRealEye(v game.Vertex, c game.Color) bool {
	if !s.IsSimpleEye(v, c) {
		return false
	}
	diag := s.board.diagonalNeighbors(v)
	controlled := 0
	for _, d := range diag {
		if s.board.stones[d] == c {
			controlled++
		}
	}
	if len(diag) == 4 {
		return controlled >= 3
	}
	return controlled == len(diag)
}

// IsEscape reports whether v is the sole liberty of a c-coloured group
// currently in atari, i.e. playing it would rescue that group.
func (s *State) IsEscape(v game.Vertex, c game.Color) bool {
	for _, n := range s.board.neighbors[v] {
		if s.board.stones[n] == c && s.board.liberties(n) == 1 {
			return true
		}
	}
	return false
}

func (s *State) ComputePassAliveOwnership(out []float32) { s.board.computePassAliveOwnership(out) }

func (s *State) ComputeSimpleFinalScore(effectiveKomi float32) float32 {
	return s.board.computeSimpleFinalScore(effectiveKomi)
}

// komiSalt folds komi into the position hash via a golden-ratio mix so
// that two states differing only in komi never collide.
func komiSalt(komi float32) uint64 {
	return uint64(math.Float32bits(komi)) * 0x9E3779B97F4A7C15
}

func (s *State) Hash() game.Zobrist {
	h := s.stoneHash
	if s.toMove == game.White {
		h ^= s.zobrist.sideToMove
	}
	return game.Zobrist(h ^ komiSalt(s.komi))
}

func (s *State) KoHash() game.Zobrist { return game.Zobrist(s.stoneHash) }

// MoveHash is an incremental, capture-blind estimate of the hash
// that would result from c playing at v: it folds in the played
// stone but not any captures it triggers. It is used only to cheaply
// rule out duplicate children under symmetry during expansion, where
// a false negative costs a slightly larger tree, never correctness.
func (s *State) MoveHash(v game.Vertex, c game.Color) game.Zobrist {
	if v.IsPass() || v.IsResign() {
		return s.Hash()
	}
	h := s.stoneHash ^ s.zobrist.entry(v, c)
	if c.Opponent() == game.White {
		h ^= s.zobrist.sideToMove
	}
	return game.Zobrist(h ^ komiSalt(s.komi))
}

func (s *State) symmetryStoneHash(sym game.Symmetry) uint64 {
	var h uint64
	size := s.board.size
	for v, c := range s.board.stones {
		if c == emptyColor {
			continue
		}
		h ^= s.zobrist.entry(TransformVertex(size, sym, game.Vertex(v)), c)
	}
	return h
}

func (s *State) SymmetryHash(sym game.Symmetry) game.Zobrist {
	h := s.symmetryStoneHash(sym)
	if s.toMove == game.White {
		h ^= s.zobrist.sideToMove
	}
	return game.Zobrist(h ^ komiSalt(s.komi))
}

func (s *State) SymmetryKoHash(sym game.Symmetry) game.Zobrist {
	return game.Zobrist(s.symmetryStoneHash(sym))
}

// IsSuperko reports whether the current stone position has already
// occurred earlier in the game.
func (s *State) IsSuperko() bool {
	for _, h := range s.koHistory[:len(s.koHistory)-1] {
		if h == s.stoneHash {
			return true
		}
	}
	return false
}

func (s *State) PatternPolicy(c game.Color) ([]float32, float32) { return s.board.patternPolicy(c) }
