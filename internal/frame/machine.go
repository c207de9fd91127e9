// Package frame runs the shared decode automaton over a protocol parameter
// table: search for sync, decode the header, accumulate the declared
// payload, verify any trailer, emit fragments, and go back to searching.
// Every failure mode resolves to a resync rather than a fault; a live
// channel must keep being scanned through transient corruption.
package frame

import (
	"errors"
	"fmt"

	"github.com/mmlink/dvdecode/internal/assemble"
	"github.com/mmlink/dvdecode/internal/bitbuffer"
	"github.com/mmlink/dvdecode/internal/correlator"
	"github.com/mmlink/dvdecode/internal/protocol"
)

// State is the automaton state.
type State int

const (
	SearchingSync State = iota
	HeaderDecode
	PayloadAccumulate
	Complete
)

func (s State) String() string {
	switch s {
	case SearchingSync:
		return "searching-sync"
	case HeaderDecode:
		return "header-decode"
	case PayloadAccumulate:
		return "payload-accumulate"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats are cumulative per-stream quality counters. They survive resyncs
// and frame resets; only discarding the machine clears them.
type Stats struct {
	FramesDecoded   uint64
	SyncLosses      uint64
	Malformed       uint64
	Uncorrectable   uint64
	ErrorsCorrected uint64
}

// Machine is one protocol decode automaton bound to one bit stream. It is
// owned by a single pipeline instance and is not safe for concurrent use.
type Machine struct {
	table *protocol.Table
	corr  *correlator.Correlator
	buf   *bitbuffer.Buffer
	ctx   protocol.Context

	state        State
	maxFrameBits int
	payloadBits  int
	stats        Stats
}

// New builds a machine for the protocol table. threshold is the sync
// detection knob (0, 1]; maxFrameBits bounds a frame's declared payload and
// must be positive.
func New(table *protocol.Table, threshold float64, maxFrameBits int) (*Machine, error) {
	if maxFrameBits <= 0 {
		return nil, fmt.Errorf("frame: max frame length must be positive, got %d", maxFrameBits)
	}
	corr, err := correlator.New(table.Patterns, threshold)
	if err != nil {
		return nil, err
	}

	maxSync := 0
	for _, p := range table.Patterns {
		if len(p.Bits) > maxSync {
			maxSync = len(p.Bits)
		}
	}
	capacity := 2 * (maxSync + table.HeaderBits + maxFrameBits + table.TrailerBits)

	m := &Machine{
		table:        table,
		corr:         corr,
		buf:          bitbuffer.New(capacity),
		state:        SearchingSync,
		maxFrameBits: maxFrameBits,
	}
	if table.NewScratch != nil {
		m.ctx.Scratch = table.NewScratch()
	}
	return m, nil
}

// Offer appends input bits, returning how many were accepted. The machine
// never blocks for more input; unaccepted bits should be offered again
// after Process drains the buffer.
func (m *Machine) Offer(bits []byte) int {
	return m.buf.Append(bits)
}

// State returns the current automaton state.
func (m *Machine) State() State {
	return m.state
}

// Stats returns the cumulative quality counters.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Reset abandons any frame in progress and returns to sync search. Scratch
// state and cumulative counters are preserved.
func (m *Machine) Reset() {
	m.ctx.ResetFrame()
	m.state = SearchingSync
	m.corr.Rewind(m.buf.Offset())
}

// Process advances the automaton as far as the buffered bits allow and
// returns the fragments of every frame completed. It never blocks: when a
// frame is incomplete it simply returns, to be resumed once more input has
// been offered.
func (m *Machine) Process() []assemble.Fragment {
	var out []assemble.Fragment
	for {
		switch m.state {
		case SearchingSync:
			match, ok := m.corr.Search(m.buf.Window(), m.buf.Offset())
			if !ok {
				m.discardCleared()
				return out
			}
			m.skipTo(match.Offset + int64(len(m.table.Patterns[match.Pattern].Bits)))
			m.ctx.Match = match
			m.state = HeaderDecode

		case HeaderDecode:
			if m.buf.Len() < m.table.HeaderBits {
				return out
			}
			width, err := m.table.DecodeHeader(&m.ctx, m.extract(m.table.HeaderBits))
			if err != nil {
				m.resync(err)
				continue
			}
			if width < 0 || width > m.maxFrameBits {
				m.resync(protocol.ErrMalformed)
				continue
			}
			m.consume(m.table.HeaderBits)
			m.payloadBits = width
			m.state = PayloadAccumulate

		case PayloadAccumulate:
			need := m.payloadBits + m.table.TrailerBits
			if m.buf.Len() < need {
				return out
			}
			bits := m.extract(need)
			m.consume(need)
			err := m.table.Finalize(&m.ctx, bits[:m.payloadBits], bits[m.payloadBits:])
			if err != nil {
				m.resync(err)
				continue
			}
			m.state = Complete

		case Complete:
			out = append(out, m.ctx.TakeFragments()...)
			m.stats.FramesDecoded++
			m.stats.ErrorsCorrected += uint64(m.ctx.HeaderErrors)
			m.ctx.ResetFrame()
			m.corr.Rewind(m.buf.Offset())
			m.state = SearchingSync
		}
	}
}

// extract copies n bits from the head of the buffer, normalizing polarity
// when the sync matched inverted.
func (m *Machine) extract(n int) []byte {
	window := m.buf.Window()
	bits := make([]byte, n)
	if m.ctx.Match.Inverted {
		for i := 0; i < n; i++ {
			bits[i] = window[i]&1 ^ 1
		}
	} else {
		for i := 0; i < n; i++ {
			bits[i] = window[i] & 1
		}
	}
	return bits
}

func (m *Machine) consume(n int) {
	// The automaton only consumes what it has verified is buffered.
	if err := m.buf.Consume(n); err != nil {
		panic(err)
	}
}

func (m *Machine) skipTo(offset int64) {
	m.consume(int(offset - m.buf.Offset()))
}

// discardCleared drops bits the correlator has ruled out as sync starts,
// bounding buffer growth during a long search.
func (m *Machine) discardCleared() {
	if n := m.corr.Cleared() - m.buf.Offset(); n > 0 {
		m.consume(int(n))
	}
}

// resync drops the frame in progress and resumes the sync search at the
// current stream position. Payload accumulation is abandoned; cumulative
// counters are kept.
func (m *Machine) resync(err error) {
	m.stats.SyncLosses++
	if errors.Is(err, protocol.ErrUncorrectable) {
		m.stats.Uncorrectable++
	}
	if errors.Is(err, protocol.ErrMalformed) {
		m.stats.Malformed++
	}
	m.ctx.ResetFrame()
	m.corr.Rewind(m.buf.Offset())
	m.state = SearchingSync
}
