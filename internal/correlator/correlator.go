// Package correlator locates protocol sync words in an unbounded bit stream
// by sliding the known patterns across the buffered window and scoring each
// alignment by Hamming distance. The scan is incremental: positions that
// have already been cleared are never rescored, so the cost stays linear in
// the length of the stream regardless of how often the host delivers input.
package correlator

import "fmt"

// Pattern is a fixed sync bit sequence. Protocols that transmit with
// ambiguous polarity set CheckInverted so the complement is scored as well;
// a match then reports which polarity fit, letting the frame decoder flip
// bit sense for the rest of the frame.
type Pattern struct {
	Name          string
	Bits          []byte // unpacked, one bit per byte
	CheckInverted bool
}

// Match reports a sync detection.
type Match struct {
	Offset   int64 // absolute stream offset of the first sync bit
	Pattern  int   // index into the correlator's pattern set
	Errors   int   // Hamming distance at the matched alignment
	Ratio    float64
	Inverted bool
}

// Correlator scans for one or more sync patterns at a common threshold.
type Correlator struct {
	patterns  []Pattern
	threshold float64
	maxLen    int
	next      int64 // first stream offset not yet cleared
}

// New creates a correlator. The threshold is the minimum fraction of
// pattern bits that must match, between 0 and 1.
func New(patterns []Pattern, threshold float64) (*Correlator, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("correlator: no sync patterns")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("correlator: threshold %v outside (0, 1]", threshold)
	}
	c := &Correlator{patterns: patterns, threshold: threshold}
	for _, p := range patterns {
		if len(p.Bits) == 0 {
			return nil, fmt.Errorf("correlator: pattern %q is empty", p.Name)
		}
		if len(p.Bits) > c.maxLen {
			c.maxLen = len(p.Bits)
		}
	}
	return c, nil
}

// Rewind moves the scan position to the given stream offset. The frame
// decoder calls this after consuming a frame so the search resumes exactly
// at the frame boundary, and back-to-back syncs are not skipped.
func (c *Correlator) Rewind(offset int64) {
	c.next = offset
}

// Cleared returns the stream offset below which no sync can begin. Bits
// before it are safe to discard while searching.
func (c *Correlator) Cleared() int64 {
	return c.next
}

// Search scans the window, whose first bit sits at the given absolute
// stream offset, for the earliest alignment meeting the threshold. Ties
// between patterns at the same alignment go to the lower distance ratio.
// Alignments where the longest pattern does not fully fit are left for the
// next call, once more bits have arrived.
func (c *Correlator) Search(window []byte, base int64) (Match, bool) {
	start := int(c.next - base)
	if start < 0 {
		start = 0
	}

	for i := start; i+c.maxLen <= len(window); i++ {
		best := Match{Ratio: -1}
		for pi, p := range c.patterns {
			allowed := c.allowedErrors(len(p.Bits))

			if d, ok := distanceWithin(window[i:], p.Bits, false, allowed); ok {
				m := c.match(base+int64(i), pi, d, len(p.Bits), false)
				if m.Ratio > best.Ratio {
					best = m
				}
			}
			if p.CheckInverted {
				if d, ok := distanceWithin(window[i:], p.Bits, true, allowed); ok {
					m := c.match(base+int64(i), pi, d, len(p.Bits), true)
					if m.Ratio > best.Ratio {
						best = m
					}
				}
			}
		}
		if best.Ratio >= 0 {
			return best, true
		}
		c.next = base + int64(i) + 1
	}
	return Match{}, false
}

func (c *Correlator) allowedErrors(patternLen int) int {
	// 1-threshold is inexact in float64 (1-0.9 lands just below 0.1), so
	// nudge the product up before truncating or exact-integer bounds come
	// out one error short.
	return int((1-c.threshold)*float64(patternLen) + 1e-9)
}

func (c *Correlator) match(offset int64, pattern, errors, patternLen int, inverted bool) Match {
	return Match{
		Offset:   offset,
		Pattern:  pattern,
		Errors:   errors,
		Ratio:    1 - float64(errors)/float64(patternLen),
		Inverted: inverted,
	}
}

// distanceWithin computes the Hamming distance between the head of the
// window and the pattern, aborting early once the allowance is exceeded.
func distanceWithin(window, pattern []byte, inverted bool, allowed int) (int, bool) {
	want := byte(0)
	if inverted {
		want = 1
	}
	d := 0
	for i, b := range pattern {
		if window[i]&1 != b^want {
			d++
			if d > allowed {
				return 0, false
			}
		}
	}
	return d, true
}
