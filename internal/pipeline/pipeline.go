// Package pipeline ties one protocol's decoding chain together behind the
// host streaming boundary: a single Step operation that accepts whatever
// input is available, reports how much it consumed, and hands back at most
// the requested number of decoded messages. The pipeline never blocks and
// holds no background work; the host re-invokes Step as input arrives.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/frame"
	"github.com/mmlink/dvdecode/internal/lookup"
	"github.com/mmlink/dvdecode/internal/metrics"
	"github.com/mmlink/dvdecode/internal/protocol"
)

// Config is the construction-time configuration of a decoder instance.
// Invalid configuration is the one hard failure the decoder surfaces; every
// runtime error resolves to a resync instead.
type Config struct {
	// Threshold is the sync detection knob, in (0, 1].
	Threshold float64
	// MaxFrameBits bounds a frame's declared payload. Frames announcing
	// more are rejected as malformed rather than buffered.
	MaxFrameBits int
	// TimeoutFrames flushes a multi-frame message as incomplete after this
	// many frames without a contribution. Zero disables the timeout.
	TimeoutFrames int
	// Resolver enriches numeric radio IDs with callsigns. Optional.
	Resolver lookup.Resolver
	// Metrics receives pipeline counters. Optional.
	Metrics *metrics.DecoderMetrics
}

// Decoder is one protocol decoding pipeline bound to one input stream.
// Instances share nothing; independent channels decode on independent
// decoders without locking.
type Decoder struct {
	ID uuid.UUID

	table   *protocol.Table
	machine *frame.Machine
	asm     *assemble.Assembler
	met     *metrics.DecoderMetrics

	pending      []assemble.Message
	tickedFrames uint64
	lastStats    frame.Stats
}

// New builds a decoder for the protocol table.
func New(table *protocol.Table, cfg Config) (*Decoder, error) {
	if cfg.MaxFrameBits <= 0 {
		return nil, fmt.Errorf("pipeline: max frame length must be positive, got %d", cfg.MaxFrameBits)
	}
	machine, err := frame.New(table, cfg.Threshold, cfg.MaxFrameBits)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Decoder{
		ID:      uuid.New(),
		table:   table,
		machine: machine,
		asm:     assemble.New(cfg.TimeoutFrames, cfg.Resolver),
		met:     cfg.Metrics,
	}, nil
}

// Step feeds input bits (one bit per byte) through the pipeline. It returns
// how many input bits were consumed and up to maxOut decoded messages.
// Messages beyond maxOut stay queued for the next call. Step never consumes
// more than offered and never blocks waiting for the rest of a frame.
func (d *Decoder) Step(in []byte, maxOut int) (int, []assemble.Message) {
	consumed := 0
	for {
		n := d.machine.Offer(in[consumed:])
		consumed += n
		d.collect(d.machine.Process())
		if n == 0 || consumed == len(in) {
			break
		}
	}
	if d.met != nil {
		d.met.BitsConsumed.WithLabelValues(d.table.Name).Add(float64(consumed))
	}
	d.updateMetrics()

	if maxOut < 0 {
		maxOut = 0
	}
	emit := maxOut
	if emit > len(d.pending) {
		emit = len(d.pending)
	}
	out := d.pending[:emit:emit]
	d.pending = d.pending[emit:]
	return consumed, out
}

// Flush abandons any frame in progress and emits every pending partial
// message, flagged incomplete. The host calls it when tearing the stream
// down.
func (d *Decoder) Flush() []assemble.Message {
	d.machine.Reset()
	d.enqueue(d.asm.Flush())
	out := d.pending
	d.pending = nil
	d.updateMetrics()
	return out
}

// Stats returns the cumulative stream quality counters.
func (d *Decoder) Stats() frame.Stats {
	return d.machine.Stats()
}

// collect routes fragments into the assembler and advances its frame clock
// once per completed frame, sweeping inactivity timeouts.
func (d *Decoder) collect(frags []assemble.Fragment) {
	framesSeen := d.machine.Stats().FramesDecoded

	for _, frag := range frags {
		d.enqueue(d.asm.Push(frag))
	}
	for ; d.tickedFrames < framesSeen; d.tickedFrames++ {
		d.enqueue(d.asm.Tick())
	}
}

func (d *Decoder) enqueue(msgs []assemble.Message) {
	for _, m := range msgs {
		d.pending = append(d.pending, m)
		if d.met != nil {
			d.met.Messages.WithLabelValues(d.table.Name, string(m.Kind)).Inc()
			if m.Incomplete {
				d.met.Incomplete.WithLabelValues(d.table.Name).Inc()
			}
		}
	}
}

func (d *Decoder) updateMetrics() {
	if d.met == nil {
		return
	}
	stats := d.machine.Stats()
	name := d.table.Name

	d.met.FramesDecoded.WithLabelValues(name).Add(float64(stats.FramesDecoded - d.lastStats.FramesDecoded))
	d.met.SyncLosses.WithLabelValues(name).Add(float64(stats.SyncLosses - d.lastStats.SyncLosses))
	d.met.Uncorrectable.WithLabelValues(name).Add(float64(stats.Uncorrectable - d.lastStats.Uncorrectable))
	d.met.ErrorsCorrected.WithLabelValues(name).Add(float64(stats.ErrorsCorrected - d.lastStats.ErrorsCorrected))

	d.lastStats = stats
}
