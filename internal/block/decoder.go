package block

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/metrics"
	"github.com/ARwMq9b6/uepfountain/internal/mp"
	"github.com/ARwMq9b6/uepfountain/internal/rowgen"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// ErrBlockMismatch is returned by Push when a packet's block number,
// seed, or payload size disagrees with the block currently being
// decoded.
var ErrBlockMismatch = errors.New("block: packet does not belong to the current block")

func packetOps() mp.Symbol[xorbuf.Packet] {
	return mp.Symbol[xorbuf.Packet]{
		Zero:   func() xorbuf.Packet { return xorbuf.Packet{} },
		IsZero: func(p xorbuf.Packet) bool { return p.IsEmpty() },
		XOR: func(a, b xorbuf.Packet) xorbuf.Packet {
			out := a.DeepCopy()
			// Rows are only ever built over packets of the same payload
			// size within a block, so this XOR cannot fail.
			_ = out.XOR(b)
			return out
		},
	}
}

// Decoder LT-decodes a single block of packets belonging to one
// (block_number, block_seed) pair, recovering input packets via
// belief propagation as coded packets arrive. Partial decoding
// persists across calls to Push.
type Decoder struct {
	params Params

	haveBlock   bool
	blockNumber uint16
	blockSeed   uint32
	pktSize     int

	rng      *rowgen.Generator
	received map[uint16]struct{}
	rowCache [][]int

	ctx          *mp.Context[xorbuf.Packet]
	decodedCount int

	avgMP metrics.AverageCounter
}

// NewDecoder builds a decoder for the given block parameters. It does
// not expect any particular block number or seed until the first
// packet is pushed.
func NewDecoder(params Params) (*Decoder, error) {
	if params.K <= 0 {
		return nil, ErrInvalidK
	}
	return &Decoder{
		params:   params,
		received: make(map[uint16]struct{}),
		ctx:      mp.NewContext[xorbuf.Packet](params.K, packetOps()),
	}, nil
}

// Reset returns the decoder to its initial state: no block number,
// seed, or received packets. The next pushed packet determines the
// block being decoded.
func (d *Decoder) Reset() {
	d.haveBlock = false
	d.received = make(map[uint16]struct{})
	d.rowCache = nil
	d.decodedCount = 0
	d.ctx = mp.NewContext[xorbuf.Packet](d.params.K, packetOps())
	d.avgMP.Reset()
}

func (d *Decoder) checkCorrectBlock(p FountainPacket) error {
	if len(d.received) == 0 {
		d.blockNumber = p.BlockNumber
		d.blockSeed = p.BlockSeed
		d.pktSize = p.Len()
		rng, err := d.params.newGenerator(int64(p.BlockSeed))
		if err != nil {
			return err
		}
		d.rng = rng
		d.haveBlock = true
		return nil
	}
	if d.blockNumber != p.BlockNumber || d.blockSeed != p.BlockSeed {
		return ErrBlockMismatch
	}
	if d.pktSize != p.Len() {
		return ErrBlockMismatch
	}
	return nil
}

// Push adds a coded packet to the block being decoded. It returns
// false, without error, if the packet's sequence number has already
// been seen. It fails with ErrBlockMismatch if the packet does not
// belong to the block currently being decoded.
func (d *Decoder) Push(p FountainPacket) (bool, error) {
	if err := d.checkCorrectBlock(p); err != nil {
		return false, err
	}
	if _, dup := d.received[p.SequenceNumber]; dup {
		return false, nil
	}
	d.received[p.SequenceNumber] = struct{}{}

	seq := int(p.SequenceNumber)
	if len(d.rowCache) <= seq {
		prev := len(d.rowCache)
		grown := make([][]int, seq+1)
		copy(grown, d.rowCache)
		d.rowCache = grown
		for i := prev; i <= seq; i++ {
			d.rowCache[i] = d.rng.Next()
		}
	}

	if err := d.ctx.AddOutput(p.Packet, d.rowCache[seq]); err != nil {
		return false, errors.Wrap(err, "block: adding received packet to the decode graph")
	}

	if !d.HasDecoded() {
		start := time.Now()
		d.ctx.Run()
		d.avgMP.AddDuration(time.Since(start))
		d.decodedCount = d.ctx.DecodedCount()
	}
	return true, nil
}

// Seed returns the seed used to decode the current block.
func (d *Decoder) Seed() int64 {
	if d.rng == nil {
		return 0
	}
	return int64(d.blockSeed)
}

// BlockNumber returns the block number of the block being decoded.
func (d *Decoder) BlockNumber() uint16 { return d.blockNumber }

// HasDecoded reports whether the entire input block has been
// decoded.
func (d *Decoder) HasDecoded() bool { return d.decodedCount == d.params.K }

// DecodedCount returns the number of input packets decoded so far.
func (d *Decoder) DecodedCount() int { return d.decodedCount }

// ReceivedCount returns the number of unique coded packets received.
func (d *Decoder) ReceivedCount() int { return len(d.received) }

// BlockSize returns the fixed block size K.
func (d *Decoder) BlockSize() int { return d.params.K }

// PartialBlock returns every input slot, decoded or not; undecoded
// slots hold the empty Packet zero value.
func (d *Decoder) PartialBlock() []xorbuf.Packet { return d.ctx.InputSymbols() }

// DecodedBlock returns the indices and values of every input slot
// decoded so far.
func (d *Decoder) DecodedBlock() (indices []int, packets []xorbuf.Packet) {
	return d.ctx.DecodedSymbols()
}

// AverageMessagePassingTime returns the average wall-clock time spent
// running message passing per Push call since the last Reset.
func (d *Decoder) AverageMessagePassingTime() time.Duration {
	return time.Duration(d.avgMP.Mean() * float64(time.Second))
}
