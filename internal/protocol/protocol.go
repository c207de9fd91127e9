// Package protocol defines the parameter-table contract the shared frame
// automaton runs against. Each supported protocol supplies a Table: its sync
// patterns, fixed field widths, and three handlers (header decode, payload
// finalize, scratch construction). The automaton itself never branches on
// protocol identity; adding a protocol means adding a table.
package protocol

import (
	"errors"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correlator"
)

// ErrUncorrectable marks a mandatory header field whose FEC exceeded its
// correction radius; the automaton drops the frame and resyncs.
var ErrUncorrectable = errors.New("protocol: uncorrectable header field")

// ErrMalformed marks a frame whose structure is invalid beyond bit errors
// (bad length field, failed checksum, unknown frame type).
var ErrMalformed = errors.New("protocol: malformed frame")

// Context is the per-stream decode state a protocol's handlers operate on.
// It is owned by exactly one automaton instance.
type Context struct {
	// Match is the sync detection that opened the current frame.
	Match correlator.Match
	// Scratch is protocol-private state surviving across frames (superframe
	// tracking, in-progress batch identities).
	Scratch any
	// Header is the parsed header of the frame in progress, reset per frame.
	Header any
	// HeaderErrors is the number of FEC errors corrected in the header.
	HeaderErrors int

	fragments []assemble.Fragment
}

// Emit queues a fragment for the assembler once the frame completes.
func (c *Context) Emit(frag assemble.Fragment) {
	c.fragments = append(c.fragments, frag)
}

// TakeFragments returns and clears the queued fragments.
func (c *Context) TakeFragments() []assemble.Fragment {
	out := c.fragments
	c.fragments = nil
	return out
}

// ResetFrame clears per-frame state, preserving Scratch.
func (c *Context) ResetFrame() {
	c.Header = nil
	c.HeaderErrors = 0
	c.fragments = nil
}

// Table is one protocol's configuration for the shared automaton.
type Table struct {
	Name string

	// Patterns are the sync words searched for this protocol. Protocols
	// with several frame classes (M17) list one pattern per class and
	// dispatch on Context.Match.Pattern.
	Patterns []correlator.Pattern

	// HeaderBits is the fixed header width following the sync word. Zero
	// for protocols whose frames carry no distinct header field.
	HeaderBits int

	// TrailerBits is the fixed trailer width following the payload, zero
	// when the protocol has none.
	TrailerBits int

	// NewScratch builds the protocol's private per-stream state. May be nil.
	NewScratch func() any

	// DecodeHeader corrects and parses the header bits (unpacked, polarity
	// already normalized) and returns the payload width in bits for this
	// frame. Returning an error drops the frame per the protocol's header
	// failure policy and resyncs.
	DecodeHeader func(ctx *Context, bits []byte) (payloadBits int, err error)

	// Finalize consumes the complete payload and trailer, emitting
	// fragments on the context. An error discards the frame's fragments
	// and resyncs.
	Finalize func(ctx *Context, payload, trailer []byte) error
}

// Uint reads n bits (MSB first) starting at bit offset off.
func Uint(bits []byte, off, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<1 | uint64(bits[off+i]&1)
	}
	return v
}

// PutUint writes n bits of v (MSB first) starting at bit offset off.
func PutUint(bits []byte, off, n int, v uint64) {
	for i := 0; i < n; i++ {
		bits[off+i] = byte(v>>uint(n-1-i)) & 1
	}
}

// PackBits packs unpacked bits into bytes, MSB first, zero padded.
func PackBits(bits []byte) []byte {
	if len(bits) == 0 {
		return nil
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b&1 != 0 {
			out[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return out
}

// UnpackBytes expands packed bytes into unpacked bits, MSB first.
func UnpackBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, byte(b>>uint(i))&1)
		}
	}
	return out
}
