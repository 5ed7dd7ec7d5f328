package block

import "github.com/ARwMq9b6/uepfountain/internal/xorbuf"

// FountainPacket is a coded (or raw input) packet tagged with the LT
// stream metadata needed to place it within a block and regenerate
// the row that produced it: the block it belongs to, its sequence
// number within that block, and the seed used to build the block's
// row generator.
type FountainPacket struct {
	xorbuf.Packet
	BlockNumber    uint16
	SequenceNumber uint16
	BlockSeed      uint32
	Priority       uint8
}

// ShallowCopy returns a FountainPacket that aliases this packet's
// underlying data but copies its header fields independently.
func (p FountainPacket) ShallowCopy() FountainPacket {
	p.Packet = p.Packet.ShallowCopy()
	return p
}

// DeepCopy returns a FountainPacket with an independent copy of the
// underlying data.
func (p FountainPacket) DeepCopy() FountainPacket {
	p.Packet = p.Packet.DeepCopy()
	return p
}
