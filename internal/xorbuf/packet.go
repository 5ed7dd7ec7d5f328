package xorbuf

// Packet is a shared byte buffer. Two Packets created via ShallowCopy
// alias the same backing array; DeepCopy duplicates it. The zero
// Packet is a valid, empty packet.
type Packet struct {
	data *[]byte
}

// NewPacket allocates a packet of the given size, zero-filled.
func NewPacket(size int) Packet {
	b := make([]byte, size)
	return Packet{data: &b}
}

// WrapPacket wraps an existing slice without copying it.
func WrapPacket(b []byte) Packet {
	return Packet{data: &b}
}

// Bytes returns the packet's content. Mutating the returned slice
// mutates every alias produced by ShallowCopy.
func (p Packet) Bytes() []byte {
	if p.data == nil {
		return nil
	}
	return *p.data
}

// Len returns the number of bytes held by the packet.
func (p Packet) Len() int {
	return len(p.Bytes())
}

// IsEmpty reports whether the packet holds no data, mirroring the
// original's use of a default-constructed packet as an empty slot.
func (p Packet) IsEmpty() bool {
	return p.data == nil || len(*p.data) == 0
}

// ShallowCopy returns a Packet that shares this packet's storage.
func (p Packet) ShallowCopy() Packet {
	return Packet{data: p.data}
}

// DeepCopy returns a Packet with a freshly allocated, independent copy
// of the data.
func (p Packet) DeepCopy() Packet {
	if p.data == nil {
		return Packet{}
	}
	b := make([]byte, len(*p.data))
	copy(b, *p.data)
	return Packet{data: &b}
}

// XOR combines other into p in place. Both packets must hold the same
// non-zero number of bytes.
func (p Packet) XOR(other Packet) error {
	return XORInPlace(p.Bytes(), other.Bytes())
}

// Equal reports whether p and other either alias the same storage or
// hold identical content.
func (p Packet) Equal(other Packet) bool {
	if p.data == other.data {
		return true
	}
	a, b := p.Bytes(), other.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
