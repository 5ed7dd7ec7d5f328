package uep

import (
	"github.com/ARwMq9b6/uepfountain/internal/block"
	"github.com/ARwMq9b6/uepfountain/internal/lt"
	"github.com/ARwMq9b6/uepfountain/internal/seqcounter"
)

// outQueue is a plain FIFO of Packet, used per priority class to hold
// deduplicated, decoded packets awaiting retrieval in sequence-number
// order.
type outQueue struct {
	items []Packet
}

func (q *outQueue) push(p Packet) { q.items = append(q.items, p) }
func (q *outQueue) empty() bool   { return len(q.items) == 0 }
func (q *outQueue) front() Packet { return q.items[0] }
func (q *outQueue) pop()          { q.items = q.items[1:] }
func (q *outQueue) size() int     { return len(q.items) }

// Decoder wraps a stream-level lt.Decoder: it deduplicates the RF/EF
// repeated copies produced by Encoder back into a single stream of
// output packets, delivered in the order of the application-level
// sequence number embedded in each Packet, with confirmed losses
// reported as synthesized padding packets.
type Decoder struct {
	params Params

	std        *lt.Decoder
	outQueues  []outQueue
	emptyCount int
	seqCtr     *seqcounter.CircularCounter

	totalDecoded int
	totalFailed  int
}

// NewDecoder builds a UEP decoder over the given parameters.
func NewDecoder(params Params) (*Decoder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	std, err := lt.NewDecoder(block.Params{K: params.ExpandedSize(), Robust: true, C: params.C, Delta: params.Delta})
	if err != nil {
		return nil, err
	}
	seqCtr := seqcounter.NewCircularCounter(MaxUEPSeqno)
	if err := seqCtr.Set(0); err != nil {
		return nil, err
	}
	return &Decoder{
		params:    params,
		std:       std,
		outQueues: make([]outQueue, len(params.Ks)),
		seqCtr:    seqCtr,
	}, nil
}

// MaxUEPSeqno bounds the decoder's internal output sequence counter,
// matching Packet's MaxSeqno.
const MaxUEPSeqno = MaxSeqno

// Push adds a received coded packet to the decoder.
func (d *Decoder) Push(p block.FountainPacket) (lt.PushOutcome, error) {
	outcome, err := d.std.Push(p)
	if err != nil {
		return outcome, err
	}
	if err := d.deduplicateQueued(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Flush pushes whatever has been decoded of the current expanded
// block and repositions the decoder at block number bn.
func (d *Decoder) Flush(bn uint16) error {
	if err := d.std.Flush(bn); err != nil {
		return err
	}
	return d.deduplicateQueued()
}

// FlushNBlocks flushes forward by n expanded blocks.
func (d *Decoder) FlushNBlocks(n uint16) error {
	if err := d.std.FlushNBlocks(n); err != nil {
		return err
	}
	return d.deduplicateQueued()
}

// mapInToOut maps an index into the expanded block (after folding out
// the EF repetitions) to an index into the original, undeduplicated
// UEP block.
func (d *Decoder) mapInToOut(i int) int {
	i %= d.params.ExpandedSize() / d.params.EF
	subblock, offset, outOffset := 0, 0, 0
	for d.params.RFs[subblock]*d.params.Ks[subblock]+offset <= i {
		offset += d.params.RFs[subblock] * d.params.Ks[subblock]
		outOffset += d.params.Ks[subblock]
		subblock++
	}
	return (i-offset)%d.params.Ks[subblock] + outOffset
}

// deduplicateQueued drains every fully processed expanded block from
// the underlying decoder, maps each of its slots back to its original
// priority/position, keeps the first packet recovered for each
// original slot, and enqueues the deduplicated block onto the
// per-priority output queues.
func (d *Decoder) deduplicateQueued() error {
	origSize := d.params.OrigSize()
	for d.std.HasDecoded() {
		outBlock := make([]Packet, origSize)
		haveSlot := make([]bool, origSize)
		decoded := 0
		for i := 0; i < d.params.ExpandedSize(); i++ {
			raw, ok := d.std.NextDecoded()
			d.std.PopDecoded()
			if !ok || raw.IsEmpty() {
				continue
			}
			if decoded == origSize {
				continue
			}
			outIdx := d.mapInToOut(i)
			if haveSlot[outIdx] {
				continue
			}
			p, err := DecodePacket(raw)
			if err != nil {
				return err
			}
			outBlock[outIdx] = p
			haveSlot[outIdx] = true
			decoded++
		}
		d.totalDecoded += decoded
		d.totalFailed += origSize - decoded

		j := 0
		for sub := 0; sub < len(d.params.Ks); sub++ {
			for i := 0; i < d.params.Ks[sub]; i++ {
				if haveSlot[j] {
					d.outQueues[sub].push(outBlock[j])
				} else {
					d.emptyCount++
				}
				j++
			}
		}
	}
	return nil
}

// NextDecoded returns the next packet in application sequence-number
// order: either the real packet recovered for that sequence number,
// or a synthesized padding Packet if it is a confirmed loss. The
// second return value is false if neither is available yet — callers
// should gate calls on HasQueuedPackets.
func (d *Decoder) NextDecoded() (Packet, bool) {
	nextSeqno := d.seqCtr.Last()
	for i := range d.outQueues {
		q := &d.outQueues[i]
		if !q.empty() && q.front().Seqno == nextSeqno {
			p := q.front()
			q.pop()
			d.seqCtr.Next()
			return p, true
		}
	}
	if d.emptyCount == 0 {
		return Packet{}, false
	}
	d.emptyCount--
	d.seqCtr.Next()
	return MakePadding(nextSeqno, 0), true
}

// HasQueuedPackets reports whether NextDecoded has something to
// return: either a queued packet matching the next expected sequence
// number, or at least one confirmed loss to report.
func (d *Decoder) HasQueuedPackets() bool {
	if d.emptyCount > 0 {
		return true
	}
	nextSeqno := d.seqCtr.Last()
	for i := range d.outQueues {
		if !d.outQueues[i].empty() && d.outQueues[i].front().Seqno == nextSeqno {
			return true
		}
	}
	return false
}

// PriorityOf returns the priority class a given application sequence
// number belongs to, derived from its position within a block cycle
// (the same convention Encoder.Push relies on: callers assign
// sequence numbers consecutively, highest priority sub-block first).
// This lets a caller report a priority alongside a packet returned by
// NextDecoded even when it is a synthesized, confirmed loss with no
// recovered priority queue to read it from.
func (d *Decoder) PriorityOf(seqno uint32) int {
	pos := int(seqno % uint32(d.params.OrigSize()))
	offset := 0
	for i, k := range d.params.Ks {
		if pos < offset+k {
			return i
		}
		offset += k
	}
	return len(d.params.Ks) - 1
}

// QueueSize returns the number of packets (real or confirmed losses)
// waiting across every priority queue.
func (d *Decoder) QueueSize() int {
	sum := d.emptyCount
	for i := range d.outQueues {
		sum += d.outQueues[i].size()
	}
	return sum
}

// CurrentBlockNumber returns the expanded block number the underlying
// LT decoder currently expects.
func (d *Decoder) CurrentBlockNumber() uint16 { return d.std.CurrentBlockNumber() }

// NextWantedBlockNumber returns the expanded block number an ack
// should name: the one after CurrentBlockNumber.
func (d *Decoder) NextWantedBlockNumber() uint16 { return d.std.NextWantedBlockNumber() }

// K returns the expanded block size used by the underlying LT
// decoder.
func (d *Decoder) K() int { return d.params.ExpandedSize() }

// OrigSize returns the size of one deduplicated UEP block.
func (d *Decoder) OrigSize() int { return d.params.OrigSize() }

// TotalReceived returns the cumulative number of unique coded packets
// accepted by the underlying LT decoder.
func (d *Decoder) TotalReceived() int { return d.std.TotalReceived() }

// TotalDecoded returns the cumulative number of original (pre-RF/EF)
// packets successfully recovered.
func (d *Decoder) TotalDecoded() int { return d.totalDecoded }

// TotalFailed returns the cumulative number of original packets that
// could not be recovered once their block was retired.
func (d *Decoder) TotalFailed() int { return d.totalFailed }
