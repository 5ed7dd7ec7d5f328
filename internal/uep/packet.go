package uep

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// MaxSeqno is the largest application-level sequence number a Packet
// can carry; the top bit of the 32-bit wire header is reserved as the
// padding flag.
const MaxSeqno = 0x7fffffff

const paddingBit = uint32(1) << 31

// seqnoHeaderSize is the width, in bytes, of the seqno+padding-flag
// prefix every encoded Packet carries ahead of its payload.
const seqnoHeaderSize = 4

// ErrShortPacket is returned by DecodePacket when the raw packet is
// too small to hold the seqno header.
var ErrShortPacket = errors.New("uep: packet shorter than the sequence number header")

// ErrSeqnoTooLarge is returned by Packet.Encode when Seqno exceeds
// MaxSeqno.
var ErrSeqnoTooLarge = errors.New("uep: sequence number exceeds MaxSeqno")

// Packet is an application-level UEP packet: a payload tagged with a
// 32-bit sequence number assigned by the source, plus a flag marking
// it as synthesized padding rather than real data. This is the unit
// pushed into Encoder and retrieved from Decoder; internally it rides
// inside the LT/UEP pipeline as a plain xorbuf.Packet with this header
// serialized ahead of the payload, exactly as the pipeline treats any
// other opaque payload.
type Packet struct {
	Seqno   uint32
	Padding bool
	Payload xorbuf.Packet
}

// Encode serializes p into a xorbuf.Packet: 4 bytes of big-endian
// seqno (top bit reserved for the padding flag) followed by the
// payload bytes.
func (p Packet) Encode() (xorbuf.Packet, error) {
	if p.Seqno > MaxSeqno {
		return xorbuf.Packet{}, ErrSeqnoTooLarge
	}
	out := xorbuf.NewPacket(seqnoHeaderSize + p.Payload.Len())
	hdr := p.Seqno
	if p.Padding {
		hdr |= paddingBit
	}
	binary.BigEndian.PutUint32(out.Bytes()[:seqnoHeaderSize], hdr)
	copy(out.Bytes()[seqnoHeaderSize:], p.Payload.Bytes())
	return out, nil
}

// DecodePacket parses a xorbuf.Packet produced by Packet.Encode.
func DecodePacket(raw xorbuf.Packet) (Packet, error) {
	if raw.Len() < seqnoHeaderSize {
		return Packet{}, ErrShortPacket
	}
	hdr := binary.BigEndian.Uint32(raw.Bytes()[:seqnoHeaderSize])
	payload := xorbuf.NewPacket(raw.Len() - seqnoHeaderSize)
	copy(payload.Bytes(), raw.Bytes()[seqnoHeaderSize:])
	return Packet{
		Seqno:   hdr &^ paddingBit,
		Padding: hdr&paddingBit != 0,
		Payload: payload,
	}, nil
}

// MakePadding builds a zero-payload Packet of the given size, marked
// as padding, for the given sequence number.
func MakePadding(seqno uint32, size int) Packet {
	return Packet{Seqno: seqno, Padding: true, Payload: xorbuf.NewPacket(size)}
}
