// Package correction implements the forward error correction codes used by
// the supported digital voice and paging protocols: Golay(24,12) for D-STAR
// and YSF header fields, BCH(31,21) for POCSAG codewords, BCH(63,16) for the
// P25 network identifier, and a rate 1/2 convolutional code decoded with the
// Viterbi algorithm.
//
// All block decoders share the same contract: they return the corrected
// message bits together with the exact number of bit errors corrected, or
// ErrUncorrectable when the error weight exceeds the code's correction
// radius. The Viterbi decoder reports an accumulated path metric instead of
// an error count; the two are not comparable across codeword sizes.
package correction

import "errors"

// ErrUncorrectable is returned when a received codeword lies outside the
// correction radius of its code.
var ErrUncorrectable = errors.New("correction: uncorrectable codeword")

// Result is the outcome of a block decode operation.
type Result struct {
	// Errors is the number of bit errors corrected.
	Errors int
	// Uncorrectable is set when the codeword could not be corrected. The
	// message bits are undefined in that case.
	Uncorrectable bool
}

// popcount32 counts set bits in a 32-bit word.
func popcount32(v uint32) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}
