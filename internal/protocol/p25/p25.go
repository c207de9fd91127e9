// Package p25 decodes P25 Phase 1 data units. Every unit opens with the
// 48-bit frame sync word and the network identifier (NID), a BCH(63,16)
// codeword carrying the 12-bit NAC and the 4-bit data unit ID plus a status
// bit. Voice logical data units LDU1 and LDU2 alternate to form a
// superframe; LDU1 carries the link control word naming the talkgroup and
// source, decoded here through the rate 1/2 trellis. A frame whose NID is
// uncorrectable is dropped and the decoder resyncs.
package p25

import (
	"fmt"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correction"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

const (
	// SyncWord is the 48-bit P25 frame synchronization word.
	SyncWord = 0x5575F5FF77FF

	SyncBits = 48
	// NIDBits is the BCH(63,16) codeword plus one status bit.
	NIDBits = 64
)

// Data unit IDs.
const (
	DUIDHDU   = 0x0
	DUIDTDU   = 0x3
	DUIDLDU1  = 0x5
	DUIDTSDU  = 0x7
	DUIDLDU2  = 0xA
	DUIDPDU   = 0xC
	DUIDTDULC = 0xF
)

// Payload widths in bits following the NID, per data unit.
var payloadBits = map[uint8]int{
	DUIDHDU:   648,
	DUIDTDU:   0,
	DUIDLDU1:  LDUBits,
	DUIDTSDU:  288,
	DUIDLDU2:  LDUBits,
	DUIDPDU:   288,
	DUIDTDULC: 288,
}

// An LDU payload is the trellis-protected link control region followed by
// the voice codeword region.
const (
	LDUBits    = 1616
	LCInfoBits = 176
	LCRegion   = 2 * (LCInfoBits + 4) // rate 1/2 plus tail
	VoiceBits  = LDUBits - LCRegion
)

// NID is the decoded network identifier.
type NID struct {
	NAC    uint16
	DUID   uint8
	Errors int
}

// LinkControl is the decoded link control word from an LDU1.
type LinkControl struct {
	Format     uint8
	Talkgroup  uint32
	Source     uint32
	PathMetric int
}

type state struct {
	inCall bool
	key    string
	tg     uint32
	src    uint32
	nac    uint16
}

// Table returns the P25 Phase 1 parameter table.
func Table() *protocol.Table {
	return &protocol.Table{
		Name: "p25",
		Patterns: []correlator.Pattern{
			{Name: "p25", Bits: syncPattern(), CheckInverted: true},
		},
		HeaderBits:   NIDBits,
		NewScratch:   func() any { return &state{} },
		DecodeHeader: decodeNID,
		Finalize:     finalize,
	}
}

func syncPattern() []byte {
	bits := make([]byte, SyncBits)
	protocol.PutUint(bits, 0, SyncBits, SyncWord)
	return bits
}

func decodeNID(ctx *protocol.Context, bits []byte) (int, error) {
	codeword := protocol.Uint(bits, 0, 63)
	data, result := correction.BCH6316Decode(codeword)
	if result.Uncorrectable {
		return 0, fmt.Errorf("p25: NID: %w", protocol.ErrUncorrectable)
	}

	nid := NID{
		NAC:    uint16(data >> 4),
		DUID:   uint8(data & 0xF),
		Errors: result.Errors,
	}
	width, ok := payloadBits[nid.DUID]
	if !ok {
		return 0, fmt.Errorf("p25: unknown DUID %X: %w", nid.DUID, protocol.ErrMalformed)
	}

	ctx.Header = nid
	ctx.HeaderErrors = result.Errors
	return width, nil
}

func finalize(ctx *protocol.Context, payload, trailer []byte) error {
	st := ctx.Scratch.(*state)
	nid := ctx.Header.(NID)

	switch nid.DUID {
	case DUIDLDU1:
		lc := decodeLinkControl(payload[:LCRegion])
		st.inCall = true
		st.nac = nid.NAC
		st.tg = lc.Talkgroup
		st.src = lc.Source
		st.key = fmt.Sprintf("p25:%03X:%d:%d", nid.NAC, lc.Talkgroup, lc.Source)

		ctx.Emit(assemble.Fragment{
			Protocol:    "p25",
			Kind:        assemble.KindControl,
			Source:      fmt.Sprintf("%d", lc.Source),
			Destination: fmt.Sprintf("TG%d", lc.Talkgroup),
			SourceID:    lc.Source,
			DestID:      lc.Talkgroup,
			Bits:        payload[:LCRegion],
			Errors:      nid.Errors,
			PathMetric:  lc.PathMetric,
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})
		ctx.Emit(voiceFragment(ctx, st, nid, payload[LCRegion:], lc.PathMetric, false))

	case DUIDLDU2:
		if !st.inCall {
			// LDU2 without a preceding LDU1: assemble what we have under
			// an identity-less key so the superframe is still reported.
			st.inCall = true
			st.key = fmt.Sprintf("p25:%03X:?", nid.NAC)
		}
		_, metric := correction.ViterbiDecode(payload[:LCRegion])
		ctx.Emit(voiceFragment(ctx, st, nid, payload[LCRegion:], metric, true))
		st.inCall = false

	case DUIDTDU, DUIDTDULC:
		if st.inCall {
			ctx.Emit(assemble.Fragment{
				Protocol: "p25",
				Kind:     assemble.KindVoice,
				Key:      st.key,
				Final:    true,
			})
			st.inCall = false
		}

	case DUIDHDU, DUIDTSDU, DUIDPDU:
		ctx.Emit(assemble.Fragment{
			Protocol:  "p25",
			Kind:      assemble.KindControl,
			Source:    fmt.Sprintf("NAC %03X", nid.NAC),
			Bits:      append([]byte(nil), payload...),
			Errors:    nid.Errors,
			SyncRatio: ctx.Match.Ratio,
			Offset:    ctx.Match.Offset,
		})
	}
	return nil
}

func voiceFragment(ctx *protocol.Context, st *state, nid NID, voice []byte, metric int, final bool) assemble.Fragment {
	return assemble.Fragment{
		Protocol:    "p25",
		Kind:        assemble.KindVoice,
		Key:         st.key,
		Source:      fmt.Sprintf("%d", st.src),
		Destination: fmt.Sprintf("TG%d", st.tg),
		SourceID:    st.src,
		DestID:      st.tg,
		Bits:        append([]byte(nil), voice...),
		Final:       final,
		Errors:      nid.Errors,
		PathMetric:  metric,
		SyncRatio:   ctx.Match.Ratio,
		Offset:      ctx.Match.Offset,
	}
}

// decodeLinkControl trellis-decodes the link control region of an LDU1.
func decodeLinkControl(bits []byte) LinkControl {
	info, metric := correction.ViterbiDecode(bits)
	return LinkControl{
		Format:     uint8(protocol.Uint(info, 0, 8)),
		Talkgroup:  uint32(protocol.Uint(info, 8, 24)),
		Source:     uint32(protocol.Uint(info, 32, 24)),
		PathMetric: metric,
	}
}

// EncodeLinkControl builds the trellis-protected link control region for a
// given identity, used by the batch generator and tests.
func EncodeLinkControl(format uint8, talkgroup, source uint32) []byte {
	info := make([]byte, LCInfoBits)
	protocol.PutUint(info, 0, 8, uint64(format))
	protocol.PutUint(info, 8, 24, uint64(talkgroup))
	protocol.PutUint(info, 32, 24, uint64(source))
	return correction.ConvEncode(info)
}
