package m17

import (
	"errors"
	"testing"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

func TestCallsign_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		call string
	}{
		{name: "plain", call: "N0CALL"},
		{name: "with slash", call: "DL1XYZ/P"},
		{name: "with dash", call: "SP5WWW-9"},
		{name: "single character", call: "A"},
		{name: "digits", call: "4X4XX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := EncodeCallsign(tt.call)
			if got := DecodeCallsign(v); got != tt.call {
				t.Errorf("DecodeCallsign(EncodeCallsign(%q)) = %q", tt.call, got)
			}
		})
	}
}

func TestCallsign_Broadcast(t *testing.T) {
	if got := DecodeCallsign(Broadcast); got != "@ALL" {
		t.Errorf("DecodeCallsign(Broadcast) = %q, want @ALL", got)
	}
	if got := EncodeCallsign("@ALL"); got != uint64(Broadcast) {
		t.Errorf("EncodeCallsign(@ALL) = %012X, want %012X", got, uint64(Broadcast))
	}
	if got := DecodeCallsign(0); got != "" {
		t.Errorf("DecodeCallsign(0) = %q, want empty", got)
	}
}

func TestLSF_Roundtrip(t *testing.T) {
	want := LSF{
		Destination: "@ALL",
		Source:      "N0CALL",
		Type:        0x0005,
		Meta:        [14]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
	}
	got, err := DecodeLSF(EncodeLSF(want))
	if err != nil {
		t.Fatalf("DecodeLSF() error: %v", err)
	}
	if got != want {
		t.Errorf("LSF = %+v, want %+v", got, want)
	}
	if !got.StreamType() {
		t.Error("type 0x0005 should announce a stream")
	}
}

func TestLSF_CRCMismatch(t *testing.T) {
	bits := EncodeLSF(LSF{Destination: "@ALL", Source: "N0CALL"})
	bits[100] ^= 1
	_, err := DecodeLSF(bits)
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestCRC_KnownVectors(t *testing.T) {
	// Check values from the M17 specification.
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{name: "empty", data: nil, want: 0xFFFF},
		{name: "A", data: []byte("A"), want: 0x206E},
		{name: "123456789", data: []byte("123456789"), want: 0x772B},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC(tt.data); got != tt.want {
				t.Errorf("CRC(%q) = %04X, want %04X", tt.data, got, tt.want)
			}
		})
	}
}

// session drives finalize through a frame sequence, returning all fragments.
func session(t *testing.T, tbl *protocol.Table, ctx *protocol.Context, pattern int, payload []byte) []assemble.Fragment {
	t.Helper()
	ctx.Match = correlator.Match{Pattern: pattern}
	width, err := tbl.DecodeHeader(ctx, nil)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	if width != len(payload) {
		t.Fatalf("declared width %d, payload %d", width, len(payload))
	}
	if err := tbl.Finalize(ctx, payload, nil); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	frags := ctx.TakeFragments()
	ctx.ResetFrame()
	return frags
}

func streamFrame(fn uint16) []byte {
	bits := make([]byte, StreamBits)
	protocol.PutUint(bits, 0, 16, uint64(fn))
	return bits
}

func TestFinalize_StreamSession(t *testing.T) {
	tbl := Table()
	ctx := &protocol.Context{Scratch: tbl.NewScratch()}

	lsfFrags := session(t, tbl, ctx, patternLSF, EncodeLSF(LSF{
		Destination: "@ALL", Source: "N0CALL", Type: 0x0005,
	}))
	if len(lsfFrags) != 1 || lsfFrags[0].Kind != assemble.KindCallsign {
		t.Fatalf("LSF fragments = %+v", lsfFrags)
	}
	if lsfFrags[0].Source != "N0CALL" || lsfFrags[0].Destination != "@ALL" {
		t.Errorf("LSF identity = %s > %s", lsfFrags[0].Source, lsfFrags[0].Destination)
	}

	first := session(t, tbl, ctx, patternStream, streamFrame(0))
	if len(first) != 1 || first[0].Final {
		t.Fatalf("first stream fragments = %+v", first)
	}
	if first[0].Key != "m17:N0CALL>@ALL" {
		t.Errorf("key = %q", first[0].Key)
	}
	if len(first[0].Bits) != StreamBits-16 {
		t.Errorf("voice bits = %d, want %d", len(first[0].Bits), StreamBits-16)
	}

	last := session(t, tbl, ctx, patternStream, streamFrame(0x8001))
	if len(last) != 1 || !last[0].Final {
		t.Fatalf("last stream fragments = %+v", last)
	}

	// The session is closed; further stream frames are orphans.
	orphan := session(t, tbl, ctx, patternStream, streamFrame(2))
	if len(orphan) != 0 {
		t.Errorf("orphan stream frame emitted %d fragments", len(orphan))
	}
}

func TestFinalize_PacketSession(t *testing.T) {
	tbl := Table()
	ctx := &protocol.Context{Scratch: tbl.NewScratch()}

	session(t, tbl, ctx, patternLSF, EncodeLSF(LSF{
		Destination: "N0CALL", Source: "DL1XYZ", Type: 0x0000,
	}))

	chunk := make([]byte, PacketBits)
	mid := session(t, tbl, ctx, patternPacket, chunk)
	if len(mid) != 1 || mid[0].Final {
		t.Fatalf("mid packet fragments = %+v", mid)
	}
	if mid[0].Kind != assemble.KindData || len(mid[0].Bits) != 200 {
		t.Errorf("packet fragment: kind %s, %d bits", mid[0].Kind, len(mid[0].Bits))
	}

	lastChunk := make([]byte, PacketBits)
	protocol.PutUint(lastChunk, 200, 8, 0x80)
	last := session(t, tbl, ctx, patternPacket, lastChunk)
	if len(last) != 1 || !last[0].Final {
		t.Fatalf("last packet fragments = %+v", last)
	}
}

func TestFinalize_EOTClosesStream(t *testing.T) {
	tbl := Table()
	ctx := &protocol.Context{Scratch: tbl.NewScratch()}

	session(t, tbl, ctx, patternLSF, EncodeLSF(LSF{
		Destination: "@ALL", Source: "N0CALL", Type: 0x0005,
	}))
	session(t, tbl, ctx, patternStream, streamFrame(0))

	eot := session(t, tbl, ctx, patternEOT, nil)
	if len(eot) != 1 || !eot[0].Final {
		t.Fatalf("EOT fragments = %+v", eot)
	}

	// EOT with no open session is silent.
	again := session(t, tbl, ctx, patternEOT, nil)
	if len(again) != 0 {
		t.Errorf("idle EOT emitted %d fragments", len(again))
	}
}

func TestFinalize_StreamWithoutLSFIgnored(t *testing.T) {
	tbl := Table()
	ctx := &protocol.Context{Scratch: tbl.NewScratch()}
	frags := session(t, tbl, ctx, patternStream, streamFrame(0))
	if len(frags) != 0 {
		t.Errorf("stream frame without link setup emitted %d fragments", len(frags))
	}
}
