// Package block implements LT coding and decoding of a single,
// fixed-size block of input symbols: block.Encoder produces an
// endless stream of coded output packets from a block of K input
// packets, and block.Decoder recovers the block from any sufficient
// subset of coded packets via the mp package's belief propagation.
package block

import (
	"github.com/ARwMq9b6/uepfountain/internal/rowgen"
	"github.com/pkg/errors"
)

// ErrInvalidK is returned when Params names a non-positive block
// size.
var ErrInvalidK = errors.New("block: K must be positive")

// Params describes the LT code parameters shared by an encoder and a
// decoder that must agree on the same graph structure: the block size
// and the degree distribution used to build the row generator.
// Params mirrors the constructor parameters of the original engine's
// lt_row_generator.
type Params struct {
	K int
	// Robust selects the Robust Soliton distribution instead of the
	// Ideal Soliton one; C and Delta are only meaningful when Robust
	// is true.
	Robust     bool
	C, Delta float64
}

func (p Params) newGenerator(seed int64) (*rowgen.Generator, error) {
	if p.K <= 0 {
		return nil, ErrInvalidK
	}
	if p.Robust {
		return rowgen.NewRobust(p.K, p.C, p.Delta, seed)
	}
	return rowgen.New(p.K, seed)
}
