// Package pocsag decodes POCSAG paging batches. A batch is the 32-bit frame
// sync word followed by 16 codewords of 32 bits arranged as 8 frames of two.
// Each codeword is a BCH(31,21) codeword plus an even parity bit; an address
// codeword opens a message and message codewords extend it, possibly across
// batches, until the next address or idle codeword. An uncorrectable
// codeword is skipped and scanning continues within the batch, since sync is
// batch-relative rather than per-codeword.
package pocsag

import (
	"fmt"
	"math/bits"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correction"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

const (
	// SyncWord is the POCSAG frame synchronization codeword.
	SyncWord = 0x7CD215D8
	// IdleWord fills frames with nothing addressed to them.
	IdleWord = 0x7A89C197

	SyncBits     = 32
	CodewordBits = 32
	Codewords    = 16
	BatchBits    = Codewords * CodewordBits
)

// idleData is the 21-bit data field of the idle codeword.
const idleData = IdleWord >> 11

// Function bit values select the payload encoding. Function 3 carries
// 7-bit alphanumeric text, the others carry BCD numerics.
const FunctionAlpha = 3

// numericChars maps a BCD nibble to its display character.
var numericChars = [16]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', '*', 'U', ' ', '-', ')', '(',
}

type state struct {
	open  bool
	key   string
	addr  uint32
	fn    uint8
	alpha bool
}

// Table returns the POCSAG parameter table.
func Table() *protocol.Table {
	return &protocol.Table{
		Name: "pocsag",
		Patterns: []correlator.Pattern{
			{Name: "pocsag", Bits: syncPattern(), CheckInverted: true},
		},
		HeaderBits: 0,
		NewScratch: func() any { return &state{} },
		DecodeHeader: func(ctx *protocol.Context, bits []byte) (int, error) {
			return BatchBits, nil
		},
		Finalize: finalize,
	}
}

func syncPattern() []byte {
	bits := make([]byte, SyncBits)
	protocol.PutUint(bits, 0, SyncBits, SyncWord)
	return bits
}

func finalize(ctx *protocol.Context, payload, trailer []byte) error {
	st := ctx.Scratch.(*state)

	for i := 0; i < Codewords; i++ {
		cw := uint32(protocol.Uint(payload, i*CodewordBits, CodewordBits))

		data, result := correction.BCH3121Decode(cw >> 1)
		if result.Uncorrectable {
			// Skip the codeword, keep scanning the batch.
			continue
		}
		// The trailing bit brings the transmitted 32-bit word to even
		// parity. A mismatch against the corrected codeword means more
		// errors than the BCH accounted for.
		if bits.OnesCount32(correction.BCH3121Encode(data)<<1|cw&1)%2 == 1 {
			continue
		}

		flag := data >> 20 & 1
		switch {
		case flag == 0 && data == idleData:
			closeMessage(ctx, st)
		case flag == 0:
			closeMessage(ctx, st)
			openMessage(ctx, st, data, i/2, result.Errors)
		default:
			appendMessage(ctx, st, data&0xFFFFF, result.Errors)
		}
	}
	return nil
}

// openMessage starts a new page for the address codeword found in frame
// position frame (0-7). The three low address bits are implied by the
// position, per the POCSAG frame mapping.
func openMessage(ctx *protocol.Context, st *state, data uint32, frame int, errors int) {
	addrHigh := data >> 2 & 0x3FFFF
	fn := uint8(data & 3)
	addr := addrHigh<<3 | uint32(frame)

	st.open = true
	st.addr = addr
	st.fn = fn
	st.alpha = fn == FunctionAlpha
	st.key = fmt.Sprintf("pocsag:%d:%d", addr, fn)

	render := RenderNumeric
	if st.alpha {
		render = RenderAlpha
	}
	ctx.Emit(assemble.Fragment{
		Protocol:  "pocsag",
		Kind:      assemble.KindPage,
		Key:       st.key,
		Source:    fmt.Sprintf("%d", addr),
		SourceID:  addr,
		Render:    render,
		Errors:    errors,
		SyncRatio: ctx.Match.Ratio,
		Offset:    ctx.Match.Offset,
	})
}

func appendMessage(ctx *protocol.Context, st *state, content uint32, errors int) {
	if !st.open {
		// Message codeword with no preceding address; nothing to attach
		// it to.
		return
	}
	contributed := make([]byte, 20)
	protocol.PutUint(contributed, 0, 20, uint64(content))
	ctx.Emit(assemble.Fragment{
		Protocol:  "pocsag",
		Kind:      assemble.KindPage,
		Key:       st.key,
		SourceID:  st.addr,
		Bits:      contributed,
		Errors:    errors,
		SyncRatio: ctx.Match.Ratio,
		Offset:    ctx.Match.Offset,
	})
}

func closeMessage(ctx *protocol.Context, st *state) {
	if !st.open {
		return
	}
	ctx.Emit(assemble.Fragment{
		Protocol: "pocsag",
		Kind:     assemble.KindPage,
		Key:      st.key,
		SourceID: st.addr,
		Final:    true,
	})
	st.open = false
	st.key = ""
}

// RenderAlpha decodes the accumulated 20-bit message groups as 7-bit
// characters per ITU-R M.584-2, least significant bit transmitted first.
// Trailing padding and control characters are stripped.
func RenderAlpha(bits []byte) []byte {
	var out []byte
	for i := 0; i+7 <= len(bits); i += 7 {
		var c byte
		for j := 0; j < 7; j++ {
			c |= (bits[i+j] & 1) << uint(j)
		}
		out = append(out, c)
	}
	for len(out) > 0 && out[len(out)-1] < 0x20 {
		out = out[:len(out)-1]
	}
	return out
}

// RenderNumeric decodes the accumulated bits as BCD nibbles, least
// significant bit transmitted first within each nibble.
func RenderNumeric(bits []byte) []byte {
	var out []byte
	for i := 0; i+4 <= len(bits); i += 4 {
		var n byte
		for j := 0; j < 4; j++ {
			n |= (bits[i+j] & 1) << uint(j)
		}
		out = append(out, numericChars[n])
	}
	return out
}
