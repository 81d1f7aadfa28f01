package dcnn

import "github.com/pkg/errors"

// Config describes the dual-headed residual network.
type Config struct {
	K            int // filters per convolution
	SharedLayers int // residual blocks in the shared tower
	FC           int // value-head hidden width

	BatchSize     int
	Width, Height int
	Features      int // input planes

	ActionSpace int // board intersections + 1 for pass
}

// DefaultConf sizes the network for a square board: the filter count
// rounds boardSize²/3 to the nearest power of two and the tower is one
// block per row, the same shaping rule the AlphaZero-style nets in
// this family use for small boards.
func DefaultConf(boardSize int) Config {
	k := roundPow2(boardSize * boardSize / 3)
	return Config{
		K:            k,
		SharedLayers: boardSize,
		FC:           2 * k,
		BatchSize:    1,
		Width:        boardSize,
		Height:       boardSize,
		Features:     3,
		ActionSpace:  boardSize*boardSize + 1,
	}
}

// IsValid rejects configurations the graph builder cannot express.
func (conf Config) IsValid() error {
	switch {
	case conf.K < 1:
		return errors.Errorf("dcnn: need at least one filter, got %d", conf.K)
	case conf.SharedLayers < 0:
		return errors.Errorf("dcnn: negative shared layers %d", conf.SharedLayers)
	case conf.FC <= 1:
		return errors.Errorf("dcnn: value head hidden width must exceed 1, got %d", conf.FC)
	case conf.BatchSize < 1:
		return errors.Errorf("dcnn: batch size must be at least 1, got %d", conf.BatchSize)
	case conf.Features < 1:
		return errors.Errorf("dcnn: need at least one input feature plane, got %d", conf.Features)
	case conf.ActionSpace < conf.Width*conf.Height+1:
		return errors.Errorf("dcnn: action space %d cannot cover the board plus pass", conf.ActionSpace)
	}
	return nil
}

func roundPow2(a int) int {
	n := a - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++

	lt := n / 2
	if (a - lt) < (n - a) {
		return lt
	}
	return n
}
