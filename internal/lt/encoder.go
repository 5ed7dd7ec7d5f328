package lt

import (
	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/block"
	"github.com/ARwMq9b6/uepfountain/internal/seqcounter"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// MaxSeqno is the largest sequence number an encoder can emit for a
// single block before NextCoded starts failing with
// seqcounter.ErrOverflow.
const MaxSeqno = 0xffff

// MaxBlockno is the modulus of the circular block number: the counter
// loops back to 0 after this value.
const MaxBlockno = 0xffff

// BlockWindow is the largest forward jump NextBlockTo will perform in
// one call; anything further is rejected. Decoder.Flush does not check
// it.
const BlockWindow = (MaxBlockno + 1) / 2

// ErrBlockWindowExceeded is returned when a requested block number
// skip is further ahead than BlockWindow.
var ErrBlockWindowExceeded = errors.New("lt: requested block is outside the forward window")

// Encoder is the stream-level LT encoder: it holds a FIFO of input
// packets grouped into fixed-size blocks and produces one coded
// packet at a time, tagged with an internal sequence counter and the
// current block number.
type Encoder struct {
	params  block.Params
	queue   *BlockQueue[xorbuf.Packet]
	blockEnc *block.Encoder
	seedGen func() uint32

	seqCounter   *seqcounter.Counter
	blockCounter *seqcounter.CircularCounter
}

// NewEncoder builds a stream encoder over the given block parameters.
// seedGen is called once per block to produce the seed for that
// block's row generator, mirroring the original's Gen template
// parameter (typically a seeded PRNG or a true-random source). The
// seed is a uint32 because it travels on the wire in a 32-bit field
// (see block.Encoder's doc comment): the receiver can only ever
// reconstruct the same generator from that truncated value, so the
// domain is restricted here rather than silently losing bits later.
func NewEncoder(params block.Params, seedGen func() uint32) (*Encoder, error) {
	blockEnc, err := block.NewEncoder(params, seedGen())
	if err != nil {
		return nil, err
	}
	blockCounter := seqcounter.NewCircularCounter(MaxBlockno)
	if err := blockCounter.Set(0); err != nil {
		return nil, err
	}
	return &Encoder{
		params:       params,
		queue:        NewBlockQueue[xorbuf.Packet](params.K),
		blockEnc:     blockEnc,
		seedGen:      seedGen,
		seqCounter:   seqcounter.NewCounter(MaxSeqno),
		blockCounter: blockCounter,
	}, nil
}

// Push enqueues p as the next input packet.
func (e *Encoder) Push(p xorbuf.Packet) error {
	e.queue.Push(p)
	return e.checkHasBlock()
}

func (e *Encoder) checkHasBlock() error {
	if e.queue.HasBlock() && !e.blockEnc.CanEncode() {
		blk, err := e.queue.Block()
		if err != nil {
			return err
		}
		if err := e.blockEnc.SetBlockShallow(blk); err != nil {
			return err
		}
		return e.blockEnc.SetSeed(e.seedGen())
	}
	return nil
}

// NextCoded produces the next coded packet from the current block,
// tagged with the block's number, seed, and the next sequence number.
func (e *Encoder) NextCoded() (block.FountainPacket, error) {
	coded, err := e.blockEnc.NextCoded()
	if err != nil {
		return block.FountainPacket{}, err
	}
	seq, err := e.seqCounter.Next()
	if err != nil {
		return block.FountainPacket{}, errors.Wrap(err, "lt: sequence number overflow")
	}
	return block.FountainPacket{
		Packet:         coded,
		BlockNumber:    uint16(e.blockCounter.Last()),
		SequenceNumber: uint16(seq),
		BlockSeed:      e.blockEnc.Seed(),
	}, nil
}

// NextBlock discards the current block and promotes the next one
// queued, advancing the block number by one and resetting the
// sequence counter.
func (e *Encoder) NextBlock() error {
	if err := e.blockEnc.Reset(0); err != nil {
		return err
	}
	if err := e.queue.PopBlock(); err != nil {
		return err
	}
	e.blockCounter.Next()
	e.seqCounter.Reset()
	return e.checkHasBlock()
}

// PadPartialBlock completes a partially filled pending block with
// empty packets of the given size, so the encoder can drain the
// source even when fewer than K packets remain. It is a no-op if no
// partial block is pending.
func (e *Encoder) PadPartialBlock(size int) error {
	if e.queue.QueueSize() == 0 {
		return nil
	}
	return e.padQueueToFull(size)
}

// padQueueToFull pushes empty packets until the pending queue holds a
// full block, even if it currently holds none at all. Used internally
// by NextBlockTo to manufacture throwaway blocks for entirely skipped
// block numbers.
func (e *Encoder) padQueueToFull(size int) error {
	for i := e.queue.QueueSize(); i < e.params.K; i++ {
		if err := e.Push(xorbuf.NewPacket(size)); err != nil {
			return err
		}
	}
	return nil
}

// NextBlockTo advances directly to block number bn, which must be
// within BlockWindow of the current block number. Any intervening
// blocks that are not yet full are padded with empty packets of
// padSize bytes and dropped, so the block-number sequence stays
// continuous.
func (e *Encoder) NextBlockTo(bn uint16, padSize int) error {
	target := seqcounter.NewCircularCounter(MaxBlockno)
	if err := target.Set(uint32(bn)); err != nil {
		return err
	}
	dist, err := e.blockCounter.ForwardDistance(target)
	if err != nil {
		return err
	}
	if dist == 0 {
		return nil
	}
	if dist > BlockWindow {
		return ErrBlockWindowExceeded
	}
	for i := uint32(0); i < dist; i++ {
		if !e.queue.HasBlock() {
			if err := e.padQueueToFull(padSize); err != nil {
				return err
			}
		}
		if err := e.NextBlock(); err != nil {
			return err
		}
	}
	return nil
}

// HasBlock reports whether the encoder currently holds a full block
// and can produce coded packets.
func (e *Encoder) HasBlock() bool { return e.blockEnc.CanEncode() }

// K returns the fixed block size.
func (e *Encoder) K() int { return e.params.K }

// BlockNo returns the current block number.
func (e *Encoder) BlockNo() uint16 { return uint16(e.blockCounter.Last()) }

// SeqNo returns the sequence number of the last packet produced for
// the current block.
func (e *Encoder) SeqNo() uint16 { return uint16(e.seqCounter.Last()) }

// BlockSeed returns the seed used for the current block.
func (e *Encoder) BlockSeed() uint32 { return e.blockEnc.Seed() }

// QueueSize returns the number of packets waiting to form the next
// block.
func (e *Encoder) QueueSize() int { return e.queue.QueueSize() }

// Size returns the total number of packets held, queued and blocked.
func (e *Encoder) Size() int { return e.queue.Size() }
