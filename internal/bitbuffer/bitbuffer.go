// Package bitbuffer provides the bounded bit queue feeding the sync
// correlator. Bits are stored unpacked, one bit per byte, because every
// supported protocol is searched at bit granularity. The buffer tracks the
// absolute stream offset of its head so consumers can attach stream
// positions to decoded messages.
package bitbuffer

import "fmt"

// Buffer is a bounded FIFO of unpacked bits with a sliding window view.
// It is not safe for concurrent use; each decoder instance owns one.
type Buffer struct {
	bits []byte
	head int   // index of the first unconsumed bit
	max  int   // capacity bound
	base int64 // absolute stream offset of bits[head]
}

// New creates a buffer holding at most max bits.
func New(max int) *Buffer {
	if max <= 0 {
		panic("bitbuffer: capacity must be > 0")
	}
	return &Buffer{bits: make([]byte, 0, max), max: max}
}

// Append adds bits to the buffer, up to the free space, and returns how many
// were accepted. Values are normalized to 0/1.
func (b *Buffer) Append(bits []byte) int {
	free := b.max - b.Len()
	n := len(bits)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	b.compact(n)
	for _, bit := range bits[:n] {
		b.bits = append(b.bits, bit&1)
	}
	return n
}

// Len returns the number of unconsumed bits.
func (b *Buffer) Len() int {
	return len(b.bits) - b.head
}

// Window returns the unconsumed bits as a read-only view. The slice is
// invalidated by the next Append or Consume.
func (b *Buffer) Window() []byte {
	return b.bits[b.head:]
}

// Offset returns the absolute stream offset of the first unconsumed bit.
func (b *Buffer) Offset() int64 {
	return b.base
}

// Consume discards n bits from the head of the buffer.
func (b *Buffer) Consume(n int) error {
	if n < 0 || n > b.Len() {
		return fmt.Errorf("bitbuffer: consume %d of %d buffered bits", n, b.Len())
	}
	b.head += n
	b.base += int64(n)
	return nil
}

// compact reclaims consumed space when the pending append would outgrow the
// backing array or the head has moved past half of it, keeping Append
// amortized linear within the capacity bound.
func (b *Buffer) compact(pending int) {
	if b.head == 0 {
		return
	}
	if len(b.bits)+pending <= cap(b.bits) && b.head < len(b.bits)/2 {
		return
	}
	remaining := copy(b.bits, b.bits[b.head:])
	b.bits = b.bits[:remaining]
	b.head = 0
}
