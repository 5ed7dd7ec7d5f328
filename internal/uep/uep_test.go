package uep

import (
	"testing"

	"github.com/ARwMq9b6/uepfountain/internal/xorbuf"
)

func constSeed(seed uint32) func() uint32 { return func() uint32 { return seed } }

func makePayload(n int, fill byte) xorbuf.Packet {
	p := xorbuf.NewPacket(n)
	for i := range p.Bytes() {
		p.Bytes()[i] = fill
	}
	return p
}

func twoLevelParams() Params {
	return Params{
		Ks:    []int{2, 4},
		RFs:   []int{3, 1},
		EF:    2,
		C:     0.1,
		Delta: 0.5,
	}
}

func TestParamsValidateFillsRFsFromTwoLevelFallback(t *testing.T) {
	p := Params{Ks: []int{2, 4}, RFM: 3, RFL: 1, EF: 2, C: 0.1, Delta: 0.5}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(p.RFs) != 2 || p.RFs[0] != 3 || p.RFs[1] != 1 {
		t.Fatalf("RFs = %v, want [3 1]", p.RFs)
	}
}

func TestParamsSizes(t *testing.T) {
	p := twoLevelParams()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.OrigSize() != 6 {
		t.Fatalf("OrigSize() = %d, want 6", p.OrigSize())
	}
	// EF * (RF0*K0 + RF1*K1) = 2 * (3*2 + 1*4) = 2 * 10 = 20
	if p.ExpandedSize() != 20 {
		t.Fatalf("ExpandedSize() = %d, want 20", p.ExpandedSize())
	}
}

func TestMapInToOutCoversEveryOriginalSlot(t *testing.T) {
	p := twoLevelParams()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(p)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]bool)
	for i := 0; i < p.ExpandedSize()/p.EF; i++ {
		out := dec.mapInToOut(i)
		if out < 0 || out >= p.OrigSize() {
			t.Fatalf("mapInToOut(%d) = %d, out of range [0,%d)", i, out, p.OrigSize())
		}
		seen[out] = true
	}
	if len(seen) != p.OrigSize() {
		t.Fatalf("mapInToOut covered %d distinct slots, want %d", len(seen), p.OrigSize())
	}
	// High priority sub-block (index < RF0*K0 = 6) must map only to
	// original indices [0,2).
	for i := 0; i < p.RFs[0]*p.Ks[0]; i++ {
		out := dec.mapInToOut(i)
		if out >= p.Ks[0] {
			t.Fatalf("high-priority expanded index %d mapped to %d, want < %d", i, out, p.Ks[0])
		}
	}
}

func drainOneBlock(t *testing.T, enc *Encoder, dec *Decoder, cap int) {
	t.Helper()
	for i := 0; i < cap; i++ {
		coded, err := enc.NextCoded()
		if err != nil {
			t.Fatalf("NextCoded: %v", err)
		}
		if _, err := dec.Push(coded); err != nil {
			t.Fatalf("Push: %v", err)
		}
		if dec.QueueSize() >= dec.OrigSize() {
			return
		}
	}
	t.Fatal("decoder did not accumulate a full deduplicated block within the iteration cap")
}

func TestEncoderDecoderRoundTripPreservesPriorityContent(t *testing.T) {
	params := twoLevelParams()
	enc, err := NewEncoder(params, constSeed(7))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(params)
	if err != nil {
		t.Fatal(err)
	}

	var seq uint32
	var wantHigh, wantLow []xorbuf.Packet
	for i := 0; i < params.Ks[0]; i++ {
		payload := makePayload(8, byte(0x10+i))
		wantHigh = append(wantHigh, payload)
		if err := enc.Push(Packet{Seqno: seq, Payload: payload}, 0); err != nil {
			t.Fatal(err)
		}
		seq++
	}
	for i := 0; i < params.Ks[1]; i++ {
		payload := makePayload(8, byte(0x40+i))
		wantLow = append(wantLow, payload)
		if err := enc.Push(Packet{Seqno: seq, Payload: payload}, 1); err != nil {
			t.Fatal(err)
		}
		seq++
	}
	if !enc.HasBlock() {
		t.Fatal("encoder should have a full expanded block ready")
	}

	drainOneBlock(t, enc, dec, 2000)

	var gotHigh, gotLow []xorbuf.Packet
	for dec.HasQueuedPackets() {
		p, ok := dec.NextDecoded()
		if !ok {
			break
		}
		if p.Padding {
			t.Fatalf("unexpected padding at seqno %d in a loss-free round trip", p.Seqno)
		}
		if p.Seqno < uint32(params.Ks[0]) {
			gotHigh = append(gotHigh, p.Payload)
		} else {
			gotLow = append(gotLow, p.Payload)
		}
	}

	if len(gotHigh) != len(wantHigh) || len(gotLow) != len(wantLow) {
		t.Fatalf("got %d high + %d low packets, want %d + %d", len(gotHigh), len(gotLow), len(wantHigh), len(wantLow))
	}
	for i := range wantHigh {
		if !gotHigh[i].Equal(wantHigh[i]) {
			t.Fatalf("high priority packet %d mismatch", i)
		}
	}
	for i := range wantLow {
		if !gotLow[i].Equal(wantLow[i]) {
			t.Fatalf("low priority packet %d mismatch", i)
		}
	}
	if dec.TotalFailed() != 0 {
		t.Fatalf("TotalFailed() = %d, want 0 in a loss-free round trip", dec.TotalFailed())
	}
	if dec.TotalDecoded() != params.OrigSize() {
		t.Fatalf("TotalDecoded() = %d, want %d", dec.TotalDecoded(), params.OrigSize())
	}
}

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	payload := makePayload(10, 0x5A)
	p := Packet{Seqno: 12345, Padding: false, Payload: payload}
	wire, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePacket(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got.Seqno != p.Seqno || got.Padding != p.Padding || !got.Payload.Equal(payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestPacketEncodeSetsPaddingBit(t *testing.T) {
	p := MakePadding(99, 4)
	wire, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePacket(wire)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Padding || got.Seqno != 99 {
		t.Fatalf("got %+v, want Seqno=99 Padding=true", got)
	}
}

func TestPacketEncodeRejectsSeqnoTooLarge(t *testing.T) {
	p := Packet{Seqno: MaxSeqno + 1, Payload: xorbuf.NewPacket(4)}
	if _, err := p.Encode(); err != ErrSeqnoTooLarge {
		t.Fatalf("Encode() error = %v, want ErrSeqnoTooLarge", err)
	}
}

func TestDecodePacketRejectsShortPacket(t *testing.T) {
	if _, err := DecodePacket(xorbuf.NewPacket(2)); err != ErrShortPacket {
		t.Fatalf("DecodePacket() error = %v, want ErrShortPacket", err)
	}
}

func TestEncoderPushRejectsPriorityOutOfRange(t *testing.T) {
	params := twoLevelParams()
	enc, err := NewEncoder(params, constSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Push(Packet{Payload: xorbuf.NewPacket(4)}, 2); err != ErrPriorityOutOfRange {
		t.Fatalf("Push() error = %v, want ErrPriorityOutOfRange", err)
	}
}
