// Package wire encodes and decodes the raw frames exchanged over a UDP
// socket: a one-byte type tag identifies a frame as either a coded
// data packet or a block acknowledgement, each with its own
// fixed-size header ahead of any payload.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/block"
	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

// FrameType identifies the kind of frame a raw packet carries.
type FrameType byte

const (
	// Data tags a frame carrying a coded fountain packet.
	Data FrameType = 0
	// Ack tags a frame carrying a block acknowledgement.
	Ack FrameType = 1
)

// DataHeaderSize is the size, in bytes, of a data frame's header:
// type(1) + block number(2) + sequence number(2) + block seed(4) +
// payload length(2).
const DataHeaderSize = 11

// AckHeaderSize is the size, in bytes, of an ack frame: type(1) + next
// wanted block number(2).
const AckHeaderSize = 3

// ErrShortPacket is returned when a raw frame is too small to hold its
// header, or its declared payload length overruns the buffer.
var ErrShortPacket = errors.New("wire: packet too short")

// ErrWrongType is returned when a raw frame's type tag does not match
// the frame kind being decoded.
var ErrWrongType = errors.New("wire: unexpected frame type")

// EncodeData serializes a coded fountain packet into a raw data frame.
func EncodeData(fp block.FountainPacket) []byte {
	payload := fp.Packet.Bytes()
	out := make([]byte, DataHeaderSize+len(payload))
	out[0] = byte(Data)
	binary.BigEndian.PutUint16(out[1:3], fp.BlockNumber)
	binary.BigEndian.PutUint16(out[3:5], fp.SequenceNumber)
	binary.BigEndian.PutUint32(out[5:9], fp.BlockSeed)
	binary.BigEndian.PutUint16(out[9:11], uint16(len(payload)))
	copy(out[DataHeaderSize:], payload)
	return out
}

// DecodeData parses a raw data frame produced by EncodeData.
func DecodeData(raw []byte) (block.FountainPacket, error) {
	if len(raw) < DataHeaderSize {
		return block.FountainPacket{}, ErrShortPacket
	}
	if FrameType(raw[0]) != Data {
		return block.FountainPacket{}, ErrWrongType
	}
	blockNo := binary.BigEndian.Uint16(raw[1:3])
	seqNo := binary.BigEndian.Uint16(raw[3:5])
	seed := binary.BigEndian.Uint32(raw[5:9])
	length := binary.BigEndian.Uint16(raw[9:11])

	payload := make([]byte, length)
	if length > 0 {
		if len(raw)-DataHeaderSize < int(length) {
			return block.FountainPacket{}, ErrShortPacket
		}
		copy(payload, raw[DataHeaderSize:DataHeaderSize+int(length)])
	}

	fp := block.FountainPacket{
		BlockNumber:    blockNo,
		SequenceNumber: seqNo,
		BlockSeed:      seed,
	}
	fp.Packet = xorbuf.WrapPacket(payload)
	return fp, nil
}

// EncodeAck serializes a block acknowledgement naming the next block
// number the receiver still wants.
func EncodeAck(nextWantedBlock uint16) []byte {
	out := make([]byte, AckHeaderSize)
	out[0] = byte(Ack)
	binary.BigEndian.PutUint16(out[1:3], nextWantedBlock)
	return out
}

// DecodeAck parses a raw ack frame produced by EncodeAck.
func DecodeAck(raw []byte) (uint16, error) {
	if len(raw) < AckHeaderSize {
		return 0, ErrShortPacket
	}
	if FrameType(raw[0]) != Ack {
		return 0, ErrWrongType
	}
	return binary.BigEndian.Uint16(raw[1:3]), nil
}
