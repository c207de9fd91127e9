// Package m17 decodes M17 link setup, stream, and packet frames. Forward
// error correction for M17 is handled upstream of this layer, so frames
// arrive as plain bits; the decoder's job is sync classification, link
// setup frame (LSF) validation against its CRC, base-40 callsign recovery,
// and reassembly of stream and packet superframes. Which of the three sync
// words matched selects the frame class.
package m17

import (
	"fmt"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

// Sync words, 16 bits each.
const (
	LSFSync    = 0x55F7
	StreamSync = 0xFF5D
	PacketSync = 0x75FF
	EOTMarker  = 0x555D

	SyncBits = 16
)

// Pattern indices within the table, in declaration order.
const (
	patternLSF = iota
	patternStream
	patternPacket
	patternEOT
)

// Frame payload widths in bits.
const (
	LSFBits    = 240 // dst, src, type, meta, crc
	StreamBits = 144 // frame number plus voice payload
	PacketBits = 208 // 25 chunk bytes plus the frame marker byte
)

// Broadcast is the all-ones destination address.
const Broadcast = 0xFFFFFFFFFFFF

// LSF is the decoded link setup frame.
type LSF struct {
	Destination string
	Source      string
	Type        uint16
	Meta        [14]byte
}

// StreamType reports whether the LSF announces a stream transmission
// (voice) rather than a packet one.
func (l LSF) StreamType() bool {
	return l.Type&1 != 0
}

type state struct {
	open bool
	key  string
	lsf  LSF
}

// Table returns the M17 parameter table.
func Table() *protocol.Table {
	return &protocol.Table{
		Name: "m17",
		Patterns: []correlator.Pattern{
			{Name: "m17-lsf", Bits: syncPattern(LSFSync)},
			{Name: "m17-stream", Bits: syncPattern(StreamSync)},
			{Name: "m17-packet", Bits: syncPattern(PacketSync)},
			{Name: "m17-eot", Bits: syncPattern(EOTMarker)},
		},
		HeaderBits: 0,
		NewScratch: func() any { return &state{} },
		DecodeHeader: func(ctx *protocol.Context, bits []byte) (int, error) {
			switch ctx.Match.Pattern {
			case patternLSF:
				return LSFBits, nil
			case patternStream:
				return StreamBits, nil
			case patternPacket:
				return PacketBits, nil
			case patternEOT:
				return 0, nil
			}
			return 0, fmt.Errorf("m17: sync pattern %d: %w", ctx.Match.Pattern, protocol.ErrMalformed)
		},
		Finalize: finalize,
	}
}

func syncPattern(word uint16) []byte {
	bits := make([]byte, SyncBits)
	protocol.PutUint(bits, 0, SyncBits, uint64(word))
	return bits
}

func finalize(ctx *protocol.Context, payload, trailer []byte) error {
	st := ctx.Scratch.(*state)

	switch ctx.Match.Pattern {
	case patternLSF:
		lsf, err := DecodeLSF(payload)
		if err != nil {
			return err
		}
		st.lsf = lsf
		st.open = true
		st.key = fmt.Sprintf("m17:%s>%s", lsf.Source, lsf.Destination)

		ctx.Emit(assemble.Fragment{
			Protocol:    "m17",
			Kind:        assemble.KindCallsign,
			Source:      lsf.Source,
			Destination: lsf.Destination,
			Bits:        append([]byte(nil), payload...),
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})

	case patternStream:
		if !st.open {
			return nil // stream frame without a link setup; nothing to join
		}
		fn := uint16(protocol.Uint(payload, 0, 16))
		last := fn&0x8000 != 0
		ctx.Emit(assemble.Fragment{
			Protocol:    "m17",
			Kind:        assemble.KindVoice,
			Key:         st.key,
			Source:      st.lsf.Source,
			Destination: st.lsf.Destination,
			Bits:        append([]byte(nil), payload[16:]...),
			Final:       last,
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})
		if last {
			st.open = false
		}

	case patternPacket:
		if !st.open {
			return nil
		}
		marker := byte(protocol.Uint(payload, 200, 8))
		last := marker&0x80 != 0
		ctx.Emit(assemble.Fragment{
			Protocol:    "m17",
			Kind:        assemble.KindData,
			Key:         st.key,
			Source:      st.lsf.Source,
			Destination: st.lsf.Destination,
			Bits:        append([]byte(nil), payload[:200]...),
			Final:       last,
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})
		if last {
			st.open = false
		}

	case patternEOT:
		if st.open {
			ctx.Emit(assemble.Fragment{
				Protocol: "m17",
				Kind:     assemble.KindVoice,
				Key:      st.key,
				Final:    true,
			})
			st.open = false
		}
	}
	return nil
}

// DecodeLSF parses and CRC-checks a 240-bit link setup frame.
func DecodeLSF(bits []byte) (LSF, error) {
	raw := protocol.PackBits(bits)
	if CRC(raw[:28]) != uint16(raw[28])<<8|uint16(raw[29]) {
		return LSF{}, fmt.Errorf("m17: LSF CRC mismatch: %w", protocol.ErrMalformed)
	}

	return LSF{
		Destination: DecodeCallsign(protocol.Uint(bits, 0, 48)),
		Source:      DecodeCallsign(protocol.Uint(bits, 48, 48)),
		Type:        uint16(protocol.Uint(bits, 96, 16)),
		Meta:        [14]byte(raw[14:28]),
	}, nil
}

// EncodeLSF builds a 240-bit link setup frame, used by the sample generator
// and tests.
func EncodeLSF(l LSF) []byte {
	bits := make([]byte, LSFBits)
	protocol.PutUint(bits, 0, 48, EncodeCallsign(l.Destination))
	protocol.PutUint(bits, 48, 48, EncodeCallsign(l.Source))
	protocol.PutUint(bits, 96, 16, uint64(l.Type))
	for i, b := range l.Meta {
		protocol.PutUint(bits, 112+i*8, 8, uint64(b))
	}
	crc := CRC(protocol.PackBits(bits[:224]))
	protocol.PutUint(bits, 224, 16, uint64(crc))
	return bits
}

// base40Chars is the M17 callsign alphabet; index zero terminates.
const base40Chars = " ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-/."

// DecodeCallsign expands a 48-bit base-40 encoded address.
func DecodeCallsign(v uint64) string {
	if v == Broadcast {
		return "@ALL"
	}
	if v == 0 || v >= Broadcast {
		return ""
	}
	var out []byte
	for v > 0 {
		out = append(out, base40Chars[v%40])
		v /= 40
	}
	return string(out)
}

// EncodeCallsign packs a callsign into its 48-bit base-40 address.
func EncodeCallsign(call string) uint64 {
	if call == "@ALL" {
		return Broadcast
	}
	var v uint64
	for i := len(call) - 1; i >= 0; i-- {
		idx := 0
		for j, c := range base40Chars {
			if byte(c) == call[i] {
				idx = j
				break
			}
		}
		v = v*40 + uint64(idx)
	}
	return v
}

// CRC is the M17 CRC-16: polynomial 0x5935, initial value 0xFFFF, no final
// inversion.
func CRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x5935
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
