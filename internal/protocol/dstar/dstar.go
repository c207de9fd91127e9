// Package dstar decodes D-STAR voice transmissions. The 24-bit frame sync
// word is followed by the radio header: flag bytes, the four callsign
// fields, the four-character suffix, and a CCITT checksum, protected as a
// run of Golay(24,12) codewords. The header is followed by a superframe of
// 21 voice frames, each 72 voice bits and 24 slow-data bits. Any
// uncorrectable header codeword drops the frame and resyncs.
package dstar

import (
	"fmt"
	"strings"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correction"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

const (
	// SyncWord is the 24-bit D-STAR frame synchronization word.
	SyncWord = 0x557650

	SyncBits = 24

	// The radio header is 41 bytes before FEC: 3 flag bytes, four 8-byte
	// callsign fields, a 4-byte suffix and a 2-byte checksum. Golay
	// protection splits it into 28 12-bit chunks of 24 bits each.
	HeaderBytes    = 41
	headerChunks   = 28
	HeaderBits     = headerChunks * 24
	CallsignLength = 8
	SuffixLength   = 4

	// A superframe carries 21 voice frames of 72 voice and 24 data bits.
	FramesPerSuper = 21
	VoiceFrameBits = 72
	DataFrameBits  = 24
	PayloadBits    = FramesPerSuper * (VoiceFrameBits + DataFrameBits)
)

// Header is the decoded radio header.
type Header struct {
	Flags    [3]byte
	RPT2     string
	RPT1     string
	UR       string
	MY       string
	MYSuffix string
	Errors   int
}

// Table returns the D-STAR parameter table.
func Table() *protocol.Table {
	return &protocol.Table{
		Name: "dstar",
		Patterns: []correlator.Pattern{
			{Name: "dstar", Bits: syncPattern()},
		},
		HeaderBits: HeaderBits,
		DecodeHeader: func(ctx *protocol.Context, bits []byte) (int, error) {
			header, err := DecodeHeader(bits)
			if err != nil {
				return 0, err
			}
			ctx.Header = header
			ctx.HeaderErrors = header.Errors
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

// DecodeHeader Golay-corrects the header region and parses the radio
// header. The checksum must verify after correction.
func DecodeHeader(bits []byte) (Header, error) {
	decoded := make([]byte, headerChunks*12)
	totalErrors := 0
	for i := 0; i < headerChunks; i++ {
		codeword := uint32(protocol.Uint(bits, i*24, 24))
		data, result := correction.Golay2412Decode(codeword)
		if result.Uncorrectable {
			return Header{}, fmt.Errorf("dstar: header codeword %d: %w", i, protocol.ErrUncorrectable)
		}
		totalErrors += result.Errors
		protocol.PutUint(decoded, i*12, 12, uint64(data))
	}

	raw := protocol.PackBits(decoded[:HeaderBytes*8])
	sum := uint16(raw[39]) | uint16(raw[40])<<8
	if sum != Checksum(raw[:39]) {
		return Header{}, fmt.Errorf("dstar: header checksum mismatch: %w", protocol.ErrMalformed)
	}

	h := Header{
		RPT2:     field(raw[3:11]),
		RPT1:     field(raw[11:19]),
		UR:       field(raw[19:27]),
		MY:       field(raw[27:35]),
		MYSuffix: field(raw[35:39]),
		Errors:   totalErrors,
	}
	copy(h.Flags[:], raw[0:3])
	return h, nil
}

// EncodeHeader builds the Golay-protected header bit region, used by the
// sample generator and tests.
func EncodeHeader(h Header) []byte {
	raw := make([]byte, HeaderBytes)
	copy(raw[0:3], h.Flags[:])
	putField(raw[3:11], h.RPT2)
	putField(raw[11:19], h.RPT1)
	putField(raw[19:27], h.UR)
	putField(raw[27:35], h.MY)
	putField(raw[35:39], h.MYSuffix)
	sum := Checksum(raw[:39])
	raw[39] = byte(sum)
	raw[40] = byte(sum >> 8)

	plain := protocol.UnpackBytes(raw)
	// Pad to a whole number of 12-bit chunks.
	plain = append(plain, make([]byte, headerChunks*12-len(plain))...)

	bits := make([]byte, HeaderBits)
	for i := 0; i < headerChunks; i++ {
		data := uint16(protocol.Uint(plain, i*12, 12))
		protocol.PutUint(bits, i*24, 24, uint64(correction.Golay2412Encode(data)))
	}
	return bits
}

func finalize(ctx *protocol.Context, payload, trailer []byte) error {
	h := ctx.Header.(Header)

	voice := make([]byte, 0, FramesPerSuper*VoiceFrameBits)
	slow := make([]byte, 0, FramesPerSuper*DataFrameBits)
	for i := 0; i < FramesPerSuper; i++ {
		frame := payload[i*(VoiceFrameBits+DataFrameBits):]
		voice = append(voice, frame[:VoiceFrameBits]...)
		slow = append(slow, frame[VoiceFrameBits:VoiceFrameBits+DataFrameBits]...)
	}

	ctx.Emit(assemble.Fragment{
		Protocol:    "dstar",
		Kind:        assemble.KindCallsign,
		Source:      strings.TrimSpace(h.MY + " " + h.MYSuffix),
		Destination: h.UR,
		Bits:        protocol.UnpackBytes(headerBytes(h)),
		Errors:      h.Errors,
		SyncRatio:   ctx.Match.Ratio,
		Offset:      ctx.Match.Offset,
	})
	ctx.Emit(assemble.Fragment{
		Protocol:    "dstar",
		Kind:        assemble.KindVoice,
		Source:      h.MY,
		Destination: h.UR,
		Bits:        voice,
		Errors:      h.Errors,
		SyncRatio:   ctx.Match.Ratio,
		Offset:      ctx.Match.Offset,
	})
	ctx.Emit(assemble.Fragment{
		Protocol:    "dstar",
		Kind:        assemble.KindData,
		Source:      h.MY,
		Destination: h.UR,
		Bits:        slow,
		SyncRatio:   ctx.Match.Ratio,
		Offset:      ctx.Match.Offset,
	})
	return nil
}

func headerBytes(h Header) []byte {
	raw := make([]byte, HeaderBytes-2)
	copy(raw[0:3], h.Flags[:])
	putField(raw[3:11], h.RPT2)
	putField(raw[11:19], h.RPT1)
	putField(raw[19:27], h.UR)
	putField(raw[27:35], h.MY)
	putField(raw[35:39], h.MYSuffix)
	return raw
}

func field(raw []byte) string {
	return strings.TrimRight(string(raw), " \x00")
}

func putField(dst []byte, s string) {
	for i := range dst {
		if i < len(s) {
			dst[i] = s[i]
		} else {
			dst[i] = ' '
		}
	}
}

// Checksum is the CCITT checksum over the header body: polynomial 0x8408,
// initial value 0xFFFF, final complement, transmitted little endian.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}
