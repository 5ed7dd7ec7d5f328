package lt

import (
	"github.com/ARwMq9b6/uepfountain/internal/block"
	"github.com/ARwMq9b6/uepfountain/internal/seqcounter"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// PushOutcome classifies the result of Decoder.Push.
type PushOutcome int

const (
	// OutcomeAccepted means the packet was new and belongs to the
	// block (or a forward block) currently tracked.
	OutcomeAccepted PushOutcome = iota
	// OutcomeDuplicate means the packet's sequence number was already
	// seen for its block.
	OutcomeDuplicate
	// OutcomeStale means the packet's block number is behind the
	// decoder's current window and was dropped.
	OutcomeStale
)

// Decoder is the stream-level LT decoder: it tracks a single
// in-progress block.Decoder at a time, switching forward to a
// new block number as soon as a packet for it arrives, and queuing
// every block it fully decodes (or abandons, with undecoded slots as
// empty packets) for retrieval in order.
type Decoder struct {
	params block.Params

	blockDec *block.Decoder
	out      *OutputBlockQueue[xorbuf.Packet]

	// curBlockNumber is the block number the decoder is positioned at
	// whenever blockDec itself cannot say so, i.e. right after
	// block.Decoder.Reset clears it: on a full decode (Push below) and
	// on an explicit advanceTo/Flush. block.Decoder forgets its block
	// number on Reset, the way the original's lt_decoder does not (its
	// blockno_counter survives a decode), so this field is what lets
	// CurrentBlockNumber keep reporting the right answer across one.
	curBlockNumber uint16
	// curDecoded is true while curBlockNumber names a block that has
	// fully decoded and no packet of a later block has arrived since;
	// Push then rejects packets for that block, or for any block not
	// after it, as stale.
	curDecoded bool

	totalReceived int
	totalDecoded  int
	totalFailed   int
}

// NewDecoder builds a stream decoder for the given block parameters.
func NewDecoder(params block.Params) (*Decoder, error) {
	blockDec, err := block.NewDecoder(params)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		params:   params,
		blockDec: blockDec,
		out:      NewOutputBlockQueue[xorbuf.Packet](params.K),
	}, nil
}

// Push adds a coded packet to the decoder. If the packet's block
// number is ahead of the block currently tracked (within the forward
// window), the decoder flushes the in-progress block as Flush does
// (queuing what it decoded, counting it failed) and switches to the
// new one; if it is behind the window, the packet is rejected as
// stale. Once a block has fully decoded, further packets for it are
// rejected as stale too.
func (d *Decoder) Push(p block.FountainPacket) (PushOutcome, error) {
	tracking := d.blockDec.ReceivedCount() > 0
	if (tracking && p.BlockNumber != d.blockDec.BlockNumber()) || (!tracking && d.curDecoded) {
		pktBn := seqcounter.NewCircularCounter(MaxBlockno)
		if err := pktBn.Set(uint32(p.BlockNumber)); err != nil {
			return OutcomeStale, err
		}
		curBn := seqcounter.NewCircularCounter(MaxBlockno)
		if err := curBn.Set(uint32(d.CurrentBlockNumber())); err != nil {
			return OutcomeStale, err
		}
		after, err := pktBn.IsAfter(curBn)
		if err != nil {
			return OutcomeStale, err
		}
		if !after {
			return OutcomeStale, nil
		}
		if err := d.Flush(p.BlockNumber); err != nil {
			return OutcomeStale, err
		}
	}

	ok, err := d.blockDec.Push(p)
	if err != nil {
		return OutcomeStale, err
	}
	if !ok {
		return OutcomeDuplicate, nil
	}
	d.totalReceived++

	if d.blockDec.HasDecoded() {
		_, packets := d.blockDec.DecodedBlock()
		if err := d.out.PushBlock(packets); err != nil {
			return OutcomeAccepted, err
		}
		d.totalDecoded++
		d.curBlockNumber = d.blockDec.BlockNumber()
		d.curDecoded = true
		d.blockDec.Reset()
	}
	return OutcomeAccepted, nil
}

// advanceTo drops the in-progress block (if any, counting it failed
// unless it had already fully decoded), leaving the decoder ready to
// track whichever block arrives next. bn is recorded so
// CurrentBlockNumber/FlushNBlocks have a base to count forward from
// when no packet has arrived for it yet.
func (d *Decoder) advanceTo(bn uint16) {
	if d.blockDec.ReceivedCount() > 0 && !d.blockDec.HasDecoded() {
		d.totalFailed++
	}
	d.blockDec.Reset()
	d.curBlockNumber = bn
	d.curDecoded = false
}

// Flush pushes whatever has been decoded of the block currently in
// progress onto the output queue (undecoded slots stand in as empty
// packets), counts it failed if it did not finish decoding, and
// repositions the decoder at block number bn. bn is not checked
// against BlockWindow.
func (d *Decoder) Flush(bn uint16) error {
	if d.blockDec.ReceivedCount() > 0 && !d.blockDec.HasDecoded() {
		if err := d.out.PushBlock(d.blockDec.PartialBlock()); err != nil {
			return err
		}
	}
	d.advanceTo(bn)
	return nil
}

// FlushNBlocks flushes forward by n blocks from the block currently
// tracked.
func (d *Decoder) FlushNBlocks(n uint16) error {
	next := uint32(d.CurrentBlockNumber()) + uint32(n)
	return d.Flush(uint16(next % (MaxBlockno + 1)))
}

// NextDecoded returns the oldest fully decoded packet not yet
// retrieved, without removing it. The second return value is false if
// no decoded packet is queued.
func (d *Decoder) NextDecoded() (xorbuf.Packet, bool) { return d.out.Front() }

// PopDecoded removes the oldest queued decoded packet, if any.
func (d *Decoder) PopDecoded() { d.out.Pop() }

// HasDecoded reports whether at least one decoded packet is queued
// for retrieval.
func (d *Decoder) HasDecoded() bool { return !d.out.Empty() }

// DecodedQueueSize returns the number of decoded packets queued for
// retrieval.
func (d *Decoder) DecodedQueueSize() int { return d.out.Size() }

// CurrentBlockNumber returns the block number currently being
// decoded, or the block number last fully decoded or established by
// Flush/FlushNBlocks if no packet has arrived since.
func (d *Decoder) CurrentBlockNumber() uint16 {
	if d.blockDec.ReceivedCount() > 0 {
		return d.blockDec.BlockNumber()
	}
	return d.curBlockNumber
}

// NextWantedBlockNumber returns the block number the decoder expects
// next, i.e. CurrentBlockNumber()+1 wrapping modulo MaxBlockno+1. This
// is the value an ack should name, matching the original's
// `schedule_ack(bnc.next())`.
func (d *Decoder) NextWantedBlockNumber() uint16 {
	return uint16((uint32(d.CurrentBlockNumber()) + 1) % (MaxBlockno + 1))
}

// TotalReceived returns the cumulative number of unique coded packets
// accepted across every block.
func (d *Decoder) TotalReceived() int { return d.totalReceived }

// TotalDecoded returns the cumulative number of blocks fully decoded.
func (d *Decoder) TotalDecoded() int { return d.totalDecoded }

// TotalFailed returns the cumulative number of blocks abandoned before
// fully decoding.
func (d *Decoder) TotalFailed() int { return d.totalFailed }
