package xorbuf

import "testing"

func TestXORInPlace(t *testing.T) {
	lhs := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99}
	rhs := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	want := make([]byte, len(lhs))
	for i := range lhs {
		want[i] = lhs[i] ^ rhs[i]
	}
	if err := XORInPlace(lhs, rhs); err != nil {
		t.Fatalf("XORInPlace: %v", err)
	}
	for i := range want {
		if lhs[i] != want[i] {
			t.Fatalf("byte %d: got %x want %x", i, lhs[i], want[i])
		}
	}
}

func TestXORInPlaceSizeMismatch(t *testing.T) {
	if err := XORInPlace([]byte{1, 2}, []byte{1}); err != ErrSizeMismatch {
		t.Fatalf("got %v, want ErrSizeMismatch", err)
	}
	if err := XORInPlace(nil, nil); err != ErrSizeMismatch {
		t.Fatalf("got %v, want ErrSizeMismatch on empty buffers", err)
	}
}

func TestBufferTrimExtend(t *testing.T) {
	b := New(16)
	if err := b.TrimFront(4); err != nil {
		t.Fatal(err)
	}
	if err := b.TrimBack(4); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", b.Len())
	}
	if err := b.ExtendFront(4); err != nil {
		t.Fatal(err)
	}
	if err := b.ExtendBack(4); err != nil {
		t.Fatal(err)
	}
	if b.Len() != b.AllocatedLen() {
		t.Fatalf("Len() = %d, want %d", b.Len(), b.AllocatedLen())
	}
	if err := b.ExtendFront(1); err == nil {
		t.Fatal("expected error extending past allocation")
	}
}

func TestPacketShallowDeepCopy(t *testing.T) {
	p := NewPacket(4)
	copy(p.Bytes(), []byte{1, 2, 3, 4})

	shallow := p.ShallowCopy()
	shallow.Bytes()[0] = 0xff
	if p.Bytes()[0] != 0xff {
		t.Fatal("shallow copy should alias the original data")
	}

	deep := p.DeepCopy()
	deep.Bytes()[1] = 0xee
	if p.Bytes()[1] == 0xee {
		t.Fatal("deep copy should not alias the original data")
	}
}

func TestPacketEqual(t *testing.T) {
	a := NewPacket(3)
	copy(a.Bytes(), []byte{1, 2, 3})
	b := NewPacket(3)
	copy(b.Bytes(), []byte{1, 2, 3})
	if !a.Equal(b) {
		t.Fatal("packets with identical content should be equal")
	}
	b.Bytes()[0] = 9
	if a.Equal(b) {
		t.Fatal("packets with different content should not be equal")
	}
	if !a.Equal(a.ShallowCopy()) {
		t.Fatal("a shallow copy should be equal to its source")
	}
}
