package dstar

import (
	"errors"
	"testing"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correction"
	"github.com/mmlink/dvdecode/internal/protocol"
)

func sampleHeader() Header {
	return Header{
		Flags:    [3]byte{0x00, 0x00, 0x00},
		RPT2:     "DB0ABC G",
		RPT1:     "DB0ABC B",
		UR:       "CQCQCQ",
		MY:       "DL1XYZ",
		MYSuffix: "705",
	}
}

func TestHeader_Roundtrip(t *testing.T) {
	bits := EncodeHeader(sampleHeader())
	if len(bits) != HeaderBits {
		t.Fatalf("header length = %d, want %d", len(bits), HeaderBits)
	}

	got, err := DecodeHeader(bits)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	want := sampleHeader()
	if got.MY != want.MY || got.MYSuffix != want.MYSuffix ||
		got.UR != want.UR || got.RPT1 != want.RPT1 || got.RPT2 != want.RPT2 {
		t.Errorf("header = %+v, want %+v", got, want)
	}
	if got.Errors != 0 {
		t.Errorf("clean header Errors = %d, want 0", got.Errors)
	}
}

func TestHeader_CorrectsBitErrors(t *testing.T) {
	bits := EncodeHeader(sampleHeader())
	// Up to three errors per Golay codeword are correctable: two in the
	// first chunk, three in the fifth.
	for _, p := range []int{0, 13, 4*24 + 1, 4*24 + 9, 4*24 + 20} {
		bits[p] ^= 1
	}

	got, err := DecodeHeader(bits)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	if got.MY != "DL1XYZ" {
		t.Errorf("MY = %q, want DL1XYZ", got.MY)
	}
	if got.Errors != 5 {
		t.Errorf("Errors = %d, want 5", got.Errors)
	}
}

func TestHeader_UncorrectableChunk(t *testing.T) {
	bits := EncodeHeader(sampleHeader())
	// Four errors in one codeword exceed the Golay correction radius.
	for _, p := range []int{24, 29, 35, 41} {
		bits[p] ^= 1
	}
	_, err := DecodeHeader(bits)
	if err == nil {
		t.Fatal("DecodeHeader() should fail on an over-corrupted codeword")
	}
	if !errors.Is(err, protocol.ErrUncorrectable) {
		t.Errorf("error = %v, want ErrUncorrectable", err)
	}
}

func TestHeader_ChecksumMismatch(t *testing.T) {
	h := sampleHeader()
	raw := headerBytes(h)
	raw = append(raw, 0xDE, 0xAD) // wrong checksum

	plain := protocol.UnpackBytes(raw)
	plain = append(plain, make([]byte, headerChunks*12-len(plain))...)
	bits := make([]byte, HeaderBits)
	for i := 0; i < headerChunks; i++ {
		data := uint16(protocol.Uint(plain, i*12, 12))
		protocol.PutUint(bits, i*24, 24, uint64(correction.Golay2412Encode(data)))
	}

	_, err := DecodeHeader(bits)
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{name: "empty", data: nil, want: ^uint16(0xFFFF)},
		{name: "single zero byte", data: []byte{0x00}, want: ^crcStep(0xFFFF, 0x00)},
		{name: "123456789", data: []byte("123456789"), want: 0x906E},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = %04X, want %04X", got, tt.want)
			}
		})
	}
}

func TestFinalize_SplitsVoiceAndData(t *testing.T) {
	tbl := Table()
	ctx := &protocol.Context{Scratch: nil, Header: sampleHeader()}

	payload := make([]byte, PayloadBits)
	// Mark every voice bit 1 and every slow-data bit 0 so the split is
	// observable.
	for i := 0; i < FramesPerSuper; i++ {
		base := i * (VoiceFrameBits + DataFrameBits)
		for j := 0; j < VoiceFrameBits; j++ {
			payload[base+j] = 1
		}
	}

	if err := tbl.Finalize(ctx, payload, nil); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	frags := ctx.TakeFragments()
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}

	call, voice, slow := frags[0], frags[1], frags[2]
	if call.Kind != assemble.KindCallsign || call.Source != "DL1XYZ 705" {
		t.Errorf("callsign fragment = %+v", call)
	}
	if voice.Kind != assemble.KindVoice || len(voice.Bits) != FramesPerSuper*VoiceFrameBits {
		t.Errorf("voice fragment: kind %s, %d bits", voice.Kind, len(voice.Bits))
	}
	for i, b := range voice.Bits {
		if b != 1 {
			t.Fatalf("voice bit %d = %d, want 1", i, b)
		}
	}
	if slow.Kind != assemble.KindData || len(slow.Bits) != FramesPerSuper*DataFrameBits {
		t.Errorf("slow data fragment: kind %s, %d bits", slow.Kind, len(slow.Bits))
	}
	for i, b := range slow.Bits {
		if b != 0 {
			t.Fatalf("slow data bit %d = %d, want 0", i, b)
		}
	}
}

// crcStep runs the checksum shift register over one byte.
func crcStep(crc uint16, b byte) uint16 {
	crc ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = crc>>1 ^ 0x8408
		} else {
			crc >>= 1
		}
	}
	return crc
}
