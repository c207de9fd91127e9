// Package ysf decodes System Fusion frames. The 40-bit frame sync word is
// followed by the Frame Information CHannel (FICH) in Golay(24,12)
// codewords, then five payload sections whose data channel (DCH) and voice
// channel (VCH) bits are interleaved bit by bit. The de-interleave pattern
// is table data built at init, not automaton logic. An uncorrectable FICH
// codeword drops the frame and resyncs.
package ysf

import (
	"fmt"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correction"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

const (
	// SyncWord is the 40-bit YSF frame synchronization word.
	SyncWord = 0xD471C9634D

	SyncBits = 40

	// The FICH carries 48 information bits in four Golay codewords.
	fichChunks = 4
	FICHBits   = fichChunks * 24

	Sections    = 5
	SectionBits = 144
	PayloadBits = Sections * SectionBits
)

// Frame indicator values.
const (
	FIHeader         = 0
	FICommunications = 1
	FITerminator     = 2
)

// FICH is the decoded Frame Information CHannel.
type FICH struct {
	FI     uint8 // frame indicator
	CS     uint8 // calling standards
	CM     uint8 // call mode
	BN     uint8 // block number
	BT     uint8 // block type
	FN     uint8 // frame number
	FT     uint8 // frame total
	DT     uint8 // data type
	SQL    uint8 // squelch flag
	SQ     uint8 // squelch code
	Errors int
}

// dchPositions and vchPositions give the source bit index within a section
// for each DCH and VCH bit. DCH rides the even positions, VCH the odd.
var (
	dchPositions [SectionBits / 2]int
	vchPositions [SectionBits / 2]int
)

func init() {
	for i := range dchPositions {
		dchPositions[i] = 2 * i
		vchPositions[i] = 2*i + 1
	}
}

// Table returns the YSF parameter table.
func Table() *protocol.Table {
	return &protocol.Table{
		Name: "ysf",
		Patterns: []correlator.Pattern{
			{Name: "ysf", Bits: syncPattern()},
		},
		HeaderBits: FICHBits,
		DecodeHeader: func(ctx *protocol.Context, bits []byte) (int, error) {
			fich, err := DecodeFICH(bits)
			if err != nil {
				return 0, err
			}
			ctx.Header = fich
			ctx.HeaderErrors = fich.Errors
			return PayloadBits, nil
		},
		Finalize: finalize,
	}
}

func syncPattern() []byte {
	bits := make([]byte, SyncBits)
	protocol.PutUint(bits, 0, SyncBits, SyncWord)
	return bits
}

// DecodeFICH Golay-corrects the FICH region and unpacks its fields.
func DecodeFICH(bits []byte) (FICH, error) {
	info := make([]byte, fichChunks*12)
	totalErrors := 0
	for i := 0; i < fichChunks; i++ {
		codeword := uint32(protocol.Uint(bits, i*24, 24))
		data, result := correction.Golay2412Decode(codeword)
		if result.Uncorrectable {
			return FICH{}, fmt.Errorf("ysf: FICH codeword %d: %w", i, protocol.ErrUncorrectable)
		}
		totalErrors += result.Errors
		protocol.PutUint(info, i*12, 12, uint64(data))
	}

	f := FICH{
		FI:     uint8(protocol.Uint(info, 0, 2)),
		CS:     uint8(protocol.Uint(info, 2, 2)),
		CM:     uint8(protocol.Uint(info, 4, 2)),
		BN:     uint8(protocol.Uint(info, 6, 2)),
		BT:     uint8(protocol.Uint(info, 8, 2)),
		FN:     uint8(protocol.Uint(info, 10, 3)),
		FT:     uint8(protocol.Uint(info, 13, 3)),
		DT:     uint8(protocol.Uint(info, 16, 2)),
		SQL:    uint8(protocol.Uint(info, 18, 1)),
		SQ:     uint8(protocol.Uint(info, 19, 7)),
		Errors: totalErrors,
	}
	return f, nil
}

// EncodeFICH builds the Golay-protected FICH bit region.
func EncodeFICH(f FICH) []byte {
	info := make([]byte, fichChunks*12)
	protocol.PutUint(info, 0, 2, uint64(f.FI))
	protocol.PutUint(info, 2, 2, uint64(f.CS))
	protocol.PutUint(info, 4, 2, uint64(f.CM))
	protocol.PutUint(info, 6, 2, uint64(f.BN))
	protocol.PutUint(info, 8, 2, uint64(f.BT))
	protocol.PutUint(info, 10, 3, uint64(f.FN))
	protocol.PutUint(info, 13, 3, uint64(f.FT))
	protocol.PutUint(info, 16, 2, uint64(f.DT))
	protocol.PutUint(info, 18, 1, uint64(f.SQL))
	protocol.PutUint(info, 19, 7, uint64(f.SQ))

	bits := make([]byte, FICHBits)
	for i := 0; i < fichChunks; i++ {
		data := uint16(protocol.Uint(info, i*12, 12))
		protocol.PutUint(bits, i*24, 24, uint64(correction.Golay2412Encode(data)))
	}
	return bits
}

// Deinterleave splits a payload into its DCH and VCH bit streams.
func Deinterleave(payload []byte) (dch, vch []byte) {
	dch = make([]byte, 0, Sections*SectionBits/2)
	vch = make([]byte, 0, Sections*SectionBits/2)
	for s := 0; s < Sections; s++ {
		section := payload[s*SectionBits : (s+1)*SectionBits]
		for _, p := range dchPositions {
			dch = append(dch, section[p])
		}
		for _, p := range vchPositions {
			vch = append(vch, section[p])
		}
	}
	return dch, vch
}

// Interleave is the inverse of Deinterleave, used by the sample generator
// and tests.
func Interleave(dch, vch []byte) []byte {
	payload := make([]byte, Sections*SectionBits)
	for s := 0; s < Sections; s++ {
		section := payload[s*SectionBits : (s+1)*SectionBits]
		for i, p := range dchPositions {
			section[p] = dch[s*len(dchPositions)+i]
		}
		for i, p := range vchPositions {
			section[p] = vch[s*len(vchPositions)+i]
		}
	}
	return payload
}

func finalize(ctx *protocol.Context, payload, trailer []byte) error {
	f := ctx.Header.(FICH)
	dch, vch := Deinterleave(payload)

	meta := fmt.Sprintf("FN %d/%d", f.FN, f.FT)
	switch f.FI {
	case FICommunications:
		ctx.Emit(assemble.Fragment{
			Protocol:    "ysf",
			Kind:        assemble.KindVoice,
			Destination: meta,
			Bits:        vch,
			Errors:      f.Errors,
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})
		ctx.Emit(assemble.Fragment{
			Protocol:  "ysf",
			Kind:      assemble.KindData,
			Bits:      dch,
			SyncRatio: ctx.Match.Ratio,
			Offset:    ctx.Match.Offset,
		})
	default:
		// Channel header and terminator frames carry control data only.
		ctx.Emit(assemble.Fragment{
			Protocol:    "ysf",
			Kind:        assemble.KindControl,
			Destination: meta,
			Bits:        dch,
			Errors:      f.Errors,
			SyncRatio:   ctx.Match.Ratio,
			Offset:      ctx.Match.Offset,
		})
	}
	return nil
}
