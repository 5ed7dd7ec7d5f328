package uep

import (
	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/block"
	"github.com/ARwMq9b6/uepfountain/internal/lt"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// ErrPriorityOutOfRange is returned by Push when given a priority
// class beyond what Params declares.
var ErrPriorityOutOfRange = errors.New("uep: priority is out of range")

// Encoder wraps a stream-level lt.Encoder with per-priority input
// queues: pushed packets are grouped by priority, and once every
// queue holds a full sub-block, the sub-blocks are repeated (RF) and
// globally expanded (EF) into one block handed to the underlying LT
// encoder.
type Encoder struct {
	params  Params
	inQueue []*lt.BlockQueue[xorbuf.Packet]
	std     *lt.Encoder
}

// NewEncoder builds a UEP encoder over the given parameters. seedGen
// is called once per expanded block to seed its row generator, as in
// lt.NewEncoder. The seed is a uint32: see block.Encoder's doc comment
// for why the domain is restricted to what actually fits on the wire.
func NewEncoder(params Params, seedGen func() uint32) (*Encoder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	std, err := lt.NewEncoder(block.Params{K: params.ExpandedSize(), Robust: true, C: params.C, Delta: params.Delta}, seedGen)
	if err != nil {
		return nil, err
	}
	queues := make([]*lt.BlockQueue[xorbuf.Packet], len(params.Ks))
	for i, k := range params.Ks {
		queues[i] = lt.NewBlockQueue[xorbuf.Packet](k)
	}
	return &Encoder{params: params, inQueue: queues, std: std}, nil
}

// Push enqueues p under the given priority class, serializing its
// sequence number header ahead of the payload.
func (e *Encoder) Push(p Packet, priority int) error {
	if priority < 0 || priority >= len(e.inQueue) {
		return ErrPriorityOutOfRange
	}
	wire, err := p.Encode()
	if err != nil {
		return err
	}
	e.inQueue[priority].Push(wire)
	return e.checkHasBlock()
}

// checkHasBlock builds and pushes the expanded block to the
// underlying encoder once every priority queue holds a full
// sub-block.
func (e *Encoder) checkHasBlock() error {
	if e.std.HasBlock() {
		return nil
	}
	for _, q := range e.inQueue {
		if !q.HasBlock() {
			return nil
		}
	}

	expanded := make([]xorbuf.Packet, 0, e.params.ExpandedSize())
	for i, q := range e.inQueue {
		sub, err := q.Block()
		if err != nil {
			return err
		}
		for rep := 0; rep < e.params.RFs[i]; rep++ {
			for _, p := range sub {
				expanded = append(expanded, p.ShallowCopy())
			}
		}
		if err := q.PopBlock(); err != nil {
			return err
		}
	}

	origLen := len(expanded)
	for rep := 0; rep < e.params.EF-1; rep++ {
		for i := 0; i < origLen; i++ {
			expanded = append(expanded, expanded[i].ShallowCopy())
		}
	}

	for _, p := range expanded {
		if err := e.std.Push(p); err != nil {
			return err
		}
	}
	return nil
}

// NextCoded produces the next coded packet from the current expanded
// block.
func (e *Encoder) NextCoded() (block.FountainPacket, error) { return e.std.NextCoded() }

// NextBlock discards the current expanded block and promotes the
// next one, if the priority queues have accumulated enough data.
func (e *Encoder) NextBlock() error {
	if err := e.std.NextBlock(); err != nil {
		return err
	}
	return e.checkHasBlock()
}

// NextBlockTo advances directly to expanded block number bn. The
// priority sub-block queues are independent of the underlying
// expanded block's skip-ahead: any skipped expanded blocks are
// zero-padded at that level (see lt.Encoder.NextBlockTo), while real
// per-priority data keeps accumulating at its own pace and is folded
// in by the usual checkHasBlock path the next time every sub-block
// fills up.
func (e *Encoder) NextBlockTo(bn uint16, padSize int) error {
	if err := e.std.NextBlockTo(bn, padSize); err != nil {
		return err
	}
	return e.checkHasBlock()
}

// HasBlock reports whether the encoder currently holds a full
// expanded block and can produce coded packets.
func (e *Encoder) HasBlock() bool { return e.std.HasBlock() }

// K returns the expanded block size used by the underlying LT
// encoder.
func (e *Encoder) K() int { return e.params.ExpandedSize() }

// OrigSize returns the number of distinct (undeduplicated) input
// packets making up one UEP block.
func (e *Encoder) OrigSize() int { return e.params.OrigSize() }

// BlockNo returns the current expanded block's number.
func (e *Encoder) BlockNo() uint16 { return e.std.BlockNo() }

// BlockSeed returns the seed used for the current expanded block.
func (e *Encoder) BlockSeed() uint32 { return e.std.BlockSeed() }

// SeqNo returns the sequence number of the last coded packet produced
// for the current expanded block.
func (e *Encoder) SeqNo() uint16 { return e.std.SeqNo() }

// QueueSize returns the number of packets held across every priority
// queue, including any already-promoted but not yet expanded
// sub-blocks.
func (e *Encoder) QueueSize() int {
	sum := 0
	for _, q := range e.inQueue {
		sum += q.Size()
	}
	return sum
}

// Size returns the total number of original (pre-RF/EF) packets the
// encoder is effectively holding: the per-priority queues plus
// whatever is held by the underlying expanded-block encoder,
// converted back to original-packet units.
func (e *Encoder) Size() int {
	return e.QueueSize() + e.std.Size()/e.params.ExpandedSize()*e.params.OrigSize()
}
