// Package xorbuf implements the byte-buffer and XOR kernel underlying
// every coded symbol in the fountain code engine.
package xorbuf

import (
	"github.com/pkg/errors"
)

// ErrRange is returned when a trim or extend would move a bound
// outside the allocated memory.
var ErrRange = errors.New("xorbuf: out of allocated range")

// ErrSizeMismatch is returned by XOR when the operands have different
// lengths, or either is empty.
var ErrSizeMismatch = errors.New("xorbuf: size mismatch")

// Buffer is a contiguous byte region with an allocated range and a
// logical range contained within it. Front and back bounds can be
// trimmed or extended without reallocating, as long as they stay
// within the allocated memory.
//
// The zero Buffer is not usable; construct one with New or View.
type Buffer struct {
	mem        []byte // the full allocated memory
	begin, end int     // logical range, mem[begin:end]
}

// New allocates a fresh buffer of size bytes; the logical range
// initially spans the whole allocation.
func New(size int) *Buffer {
	return &Buffer{mem: make([]byte, size), begin: 0, end: size}
}

// View wraps an already-allocated slice without copying it. The
// logical range initially spans the whole slice.
func View(mem []byte) *Buffer {
	return &Buffer{mem: mem, begin: 0, end: len(mem)}
}

// Bytes returns the logical range as a slice aliasing the underlying
// allocation.
func (b *Buffer) Bytes() []byte {
	return b.mem[b.begin:b.end]
}

// Len returns the size of the logical range.
func (b *Buffer) Len() int {
	return b.end - b.begin
}

// AllocatedLen returns the size of the full allocated memory.
func (b *Buffer) AllocatedLen() int {
	return len(b.mem)
}

// TrimFront shrinks the logical range by moving its start forward.
func (b *Buffer) TrimFront(n int) error {
	if b.end-b.begin < n {
		return errors.Wrap(ErrRange, "trim_front past the end")
	}
	b.begin += n
	return nil
}

// TrimBack shrinks the logical range by moving its end backward.
func (b *Buffer) TrimBack(n int) error {
	if b.end-b.begin < n {
		return errors.Wrap(ErrRange, "trim_back past the beginning")
	}
	b.end -= n
	return nil
}

// ExtendFront grows the logical range backward into the allocated
// memory preceding it.
func (b *Buffer) ExtendFront(n int) error {
	if b.begin < n {
		return errors.Wrap(ErrRange, "extend_front past the allocated memory")
	}
	b.begin -= n
	return nil
}

// ExtendBack grows the logical range forward into the allocated
// memory following it.
func (b *Buffer) ExtendBack(n int) error {
	if len(b.mem)-b.end < n {
		return errors.Wrap(ErrRange, "extend_back past the allocated memory")
	}
	b.end += n
	return nil
}

// Slice returns a view over [seek, seek+size) counted from the start
// of the current logical range, still backed by the same allocation.
// The view may extend past the logical end, up to the end of the
// allocated memory.
func (b *Buffer) Slice(seek, size int) (*Buffer, error) {
	nb := &Buffer{mem: b.mem, begin: b.begin, end: b.end}
	if err := nb.TrimFront(seek); err != nil {
		return nil, err
	}
	if len(nb.mem)-nb.begin < size {
		return nil, errors.Wrap(ErrRange, "slice past the allocated memory")
	}
	nb.end = nb.begin + size
	return nb, nil
}

// XORInPlace XORs rhs into lhs, byte for byte. Both slices must have
// the same, non-zero length. Aligned 8-byte words are combined first,
// the unaligned tail is combined byte by byte.
func XORInPlace(lhs, rhs []byte) error {
	if len(lhs) != len(rhs) || len(lhs) == 0 {
		return ErrSizeMismatch
	}
	n := len(lhs)
	words := n / 8
	for i := 0; i < words; i++ {
		off := i * 8
		// Unrolled byte xor stands in for a word-wide xor: Go gives no
		// portable way to reinterpret a []byte as a []uint64 without
		// unsafe, but the compiler recognizes this pattern and emits
		// wide loads/stores.
		for k := 0; k < 8; k++ {
			lhs[off+k] ^= rhs[off+k]
		}
	}
	for i := words * 8; i < n; i++ {
		lhs[i] ^= rhs[i]
	}
	return nil
}
