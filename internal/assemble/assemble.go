// Package assemble gathers decoded frame fragments into complete
// application messages. Single-frame protocols emit standalone fragments
// that become messages immediately; multi-frame structures (POCSAG messages
// spanning codewords and batches, P25 LDU1/LDU2 superframes, M17 streams
// and packets) are buffered under a protocol-chosen identity key and
// flushed on an end marker or on a frame-count inactivity timeout. The
// timeout is measured in elapsed frames rather than wall-clock time so
// replayed streams assemble deterministically.
package assemble

import (
	"github.com/google/uuid"

	"github.com/mmlink/dvdecode/internal/lookup"
)

// Kind classifies a decoded message.
type Kind string

const (
	KindVoice    Kind = "voice"
	KindControl  Kind = "control"
	KindPage     Kind = "page"
	KindCallsign Kind = "callsign"
	KindData     Kind = "data"
)

// Fragment is one frame's contribution to a message. A fragment with an
// empty Key is a complete message on its own. Keyed fragments accumulate
// until one arrives with Final set or the key times out.
type Fragment struct {
	Protocol    string
	Kind        Kind
	Key         string
	Source      string
	Destination string
	SourceID    uint32
	DestID      uint32

	// Bits is the unpacked payload contributed by this frame. Render, when
	// set, converts the accumulated bits of the finished message into
	// payload bytes; otherwise bits are packed MSB first.
	Bits   []byte
	Render func(bits []byte) []byte

	Final      bool
	Errors     int
	PathMetric int
	SyncRatio  float64
	Offset     int64
}

// Message is an assembled application message, immutable once emitted.
type Message struct {
	ID          uuid.UUID
	Protocol    string
	Kind        Kind
	Source      string
	Destination string
	SourceID    uint32
	DestID      uint32
	SourceCall  string // resolved via the lookup store, when available

	Payload []byte

	// Quality metadata.
	Errors     int     // total block FEC errors corrected
	PathMetric int     // accumulated trellis metric, zero for block-only protocols
	SyncRatio  float64 // mean sync correlation ratio across frames
	Frames     int
	Offset     int64 // stream offset of the first contributing frame
	FrameIndex int64 // assembler frame clock at emission
	Incomplete bool  // flushed by timeout before an end marker arrived
}

type partial struct {
	first     Fragment
	bits      []byte
	render    func([]byte) []byte
	errors    int
	metric    int
	ratioSum  float64
	frames    int
	lastFrame int64
}

// Assembler buffers keyed partial messages and stamps emitted messages with
// quality metadata. It is not safe for concurrent use.
type Assembler struct {
	timeoutFrames int64
	resolver      lookup.Resolver
	partials      map[string]*partial
	order         []string // keys in arrival order, for deterministic flushes
	frameIndex    int64
}

// New creates an assembler. timeoutFrames is the number of elapsed frames
// after which an inactive partial message is flushed as incomplete; zero
// disables the timeout. The resolver may be nil.
func New(timeoutFrames int, resolver lookup.Resolver) *Assembler {
	return &Assembler{
		timeoutFrames: int64(timeoutFrames),
		resolver:      resolver,
		partials:      make(map[string]*partial),
	}
}

// Push adds a fragment and returns any messages completed by it.
func (a *Assembler) Push(frag Fragment) []Message {
	if frag.Key == "" {
		return []Message{a.emit(&partial{
			first:     frag,
			bits:      frag.Bits,
			render:    frag.Render,
			errors:    frag.Errors,
			metric:    frag.PathMetric,
			ratioSum:  frag.SyncRatio,
			frames:    1,
			lastFrame: a.frameIndex,
		}, false)}
	}

	p, ok := a.partials[frag.Key]
	if !ok {
		p = &partial{first: frag}
		a.partials[frag.Key] = p
		a.order = append(a.order, frag.Key)
	}
	p.bits = append(p.bits, frag.Bits...)
	if frag.Render != nil {
		p.render = frag.Render
	}
	p.errors += frag.Errors
	p.metric += frag.PathMetric
	p.ratioSum += frag.SyncRatio
	p.frames++
	p.lastFrame = a.frameIndex

	if frag.Final {
		a.drop(frag.Key)
		return []Message{a.emit(p, false)}
	}
	return nil
}

// Tick advances the assembler's frame clock by one frame and flushes
// partials that have been inactive longer than the timeout. Flushed
// messages are flagged incomplete rather than silently discarded.
func (a *Assembler) Tick() []Message {
	a.frameIndex++
	if a.timeoutFrames == 0 {
		return nil
	}

	var out []Message
	for _, key := range append([]string(nil), a.order...) {
		p, ok := a.partials[key]
		if !ok {
			continue
		}
		if a.frameIndex-p.lastFrame > a.timeoutFrames {
			a.drop(key)
			out = append(out, a.emit(p, true))
		}
	}
	return out
}

// Flush emits every pending partial as incomplete. Called when the host
// tears the stream down.
func (a *Assembler) Flush() []Message {
	var out []Message
	for _, key := range a.order {
		if p, ok := a.partials[key]; ok {
			out = append(out, a.emit(p, true))
		}
	}
	a.partials = make(map[string]*partial)
	a.order = nil
	return out
}

func (a *Assembler) drop(key string) {
	delete(a.partials, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *Assembler) emit(p *partial, incomplete bool) Message {
	render := p.render
	if render == nil {
		render = packBits
	}

	m := Message{
		ID:          uuid.New(),
		Protocol:    p.first.Protocol,
		Kind:        p.first.Kind,
		Source:      p.first.Source,
		Destination: p.first.Destination,
		SourceID:    p.first.SourceID,
		DestID:      p.first.DestID,
		Payload:     render(p.bits),
		Errors:      p.errors,
		PathMetric:  p.metric,
		Frames:      p.frames,
		Offset:      p.first.Offset,
		FrameIndex:  a.frameIndex,
		Incomplete:  incomplete,
	}
	if p.frames > 0 {
		m.SyncRatio = p.ratioSum / float64(p.frames)
	}
	if a.resolver != nil && m.SourceID != 0 {
		if call, ok := a.resolver.Callsign(m.SourceID); ok {
			m.SourceCall = call
		}
	}
	return m
}

// packBits packs unpacked bits into bytes, MSB first, zero padded.
func packBits(bits []byte) []byte {
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
