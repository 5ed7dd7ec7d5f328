package block

import (
	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/rowgen"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// ErrNoBlock is returned by NextCoded when the encoder has not yet
// been given a full block of K input packets.
var ErrNoBlock = errors.New("block: encoder does not have a block")

// ErrWrongBlockLength is returned by SetBlock/SetBlockShallow when the
// supplied slice does not have exactly K elements.
var ErrWrongBlockLength = errors.New("block: block must have exactly K packets")

// Encoder LT-encodes a single block of K input packets: each call to
// NextCoded draws a new row from the row generator and returns the
// XOR of the referenced input packets.
//
// The seed is a uint32, not the wider int64 rowgen.Generator accepts
// internally: every coded packet carries its block's seed on the wire
// in a 32-bit field (see lt.Encoder.NextCoded/internal/wire), and the
// receiving block.Decoder can only ever reconstruct the row generator
// from that truncated value. Restricting Encoder's seed domain to
// uint32 up front guarantees the value put on the wire is the exact
// value that seeded the generator, so the two sides can never diverge.
type Encoder struct {
	params Params
	seed   uint32
	rng    *rowgen.Generator
	block  []xorbuf.Packet
	outCnt int
}

// NewEncoder builds an encoder for the given parameters, with its row
// generator seeded by seed. It holds no block until SetBlock or
// SetBlockShallow is called.
func NewEncoder(params Params, seed uint32) (*Encoder, error) {
	rng, err := params.newGenerator(int64(seed))
	if err != nil {
		return nil, err
	}
	return &Encoder{params: params, seed: seed, rng: rng}, nil
}

// SetSeed reseeds the row generator without touching the current
// block.
func (e *Encoder) SetSeed(seed uint32) error {
	rng, err := e.params.newGenerator(int64(seed))
	if err != nil {
		return err
	}
	e.rng = rng
	e.seed = seed
	return nil
}

// SetBlock replaces the current block with deep copies of block,
// which must have exactly BlockSize() elements.
func (e *Encoder) SetBlock(block []xorbuf.Packet) error {
	if len(block) != e.params.K {
		return ErrWrongBlockLength
	}
	cp := make([]xorbuf.Packet, len(block))
	for i, p := range block {
		cp[i] = p.DeepCopy()
	}
	e.block = cp
	e.outCnt = 0
	return nil
}

// SetBlockShallow replaces the current block with shallow copies of
// block, aliasing its storage. Used by the UEP expander to repeat
// sub-block references cheaply without duplicating payload data.
func (e *Encoder) SetBlockShallow(block []xorbuf.Packet) error {
	if len(block) != e.params.K {
		return ErrWrongBlockLength
	}
	cp := make([]xorbuf.Packet, len(block))
	for i, p := range block {
		cp[i] = p.ShallowCopy()
	}
	e.block = cp
	e.outCnt = 0
	return nil
}

// Reset clears the current block and reseeds the row generator.
func (e *Encoder) Reset(seed uint32) error {
	if err := e.SetSeed(seed); err != nil {
		return err
	}
	e.block = nil
	e.outCnt = 0
	return nil
}

// CanEncode reports whether the encoder currently holds a full block.
func (e *Encoder) CanEncode() bool {
	return len(e.block) == e.params.K
}

// Seed returns the seed last used to (re)set the row generator.
func (e *Encoder) Seed() uint32 { return e.seed }

// BlockSize returns the fixed input block size K.
func (e *Encoder) BlockSize() int { return e.params.K }

// OutputCount returns the number of coded packets produced for the
// current block so far.
func (e *Encoder) OutputCount() int { return e.outCnt }

// NextCoded draws the next row and returns the XOR of the referenced
// input packets, starting from a deep copy of the first one so the
// block's own storage is never mutated.
func (e *Encoder) NextCoded() (xorbuf.Packet, error) {
	if !e.CanEncode() {
		return xorbuf.Packet{}, ErrNoBlock
	}
	row := e.rng.Next()
	out := e.block[row[0]].DeepCopy()
	for _, idx := range row[1:] {
		if err := out.XOR(e.block[idx]); err != nil {
			return xorbuf.Packet{}, errors.Wrap(err, "block: mixing row into coded packet")
		}
	}
	e.outCnt++
	return out, nil
}
