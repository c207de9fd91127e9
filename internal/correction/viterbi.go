package correction

// Rate 1/2, constraint length K=5 convolutional code with generator
// polynomials G1 = 0x19 and G2 = 0x17, the code protecting YSF data channel
// payloads and, in this decoder, the P25 voice codeword region. Decoding is
// hard-decision Viterbi over the 16-state trellis with full traceback. The
// encoder appends four zero tail bits so the trellis terminates in the
// all-zero state.

const (
	convStates = 16
	convG1     = 0x19 // 1 + x^3 + x^4
	convG2     = 0x17 // 1 + x^2 + x^3 + x^4
	convTail   = 4
)

// parity5 returns the parity of the low 5 bits.
func parity5(v uint8) uint8 {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

// convOutputs returns the two encoder output bits for input bit b in
// register state s. The state holds the previous four input bits, newest
// in the low position.
func convOutputs(s uint8, b uint8) (uint8, uint8) {
	reg := b<<4 | s
	return parity5(reg & convG1), parity5(reg & convG2)
}

// convNext returns the register state after shifting in input bit b.
func convNext(s uint8, b uint8) uint8 {
	return (s<<1 | b) & 0xF
}

// ConvEncode encodes a bit slice (one bit per byte) at rate 1/2, appending
// four tail bits. The output holds 2*(len(bits)+4) bits, one per byte.
func ConvEncode(bits []byte) []byte {
	out := make([]byte, 0, 2*(len(bits)+convTail))
	state := uint8(0)
	emit := func(b uint8) {
		o1, o2 := convOutputs(state, b)
		out = append(out, o1, o2)
		state = convNext(state, b)
	}
	for _, b := range bits {
		emit(b & 1)
	}
	for i := 0; i < convTail; i++ {
		emit(0)
	}
	return out
}

// ViterbiDecode decodes a rate 1/2 encoded bit slice (one bit per byte,
// length must be even and cover the four tail bits). It returns the decoded
// information bits and the accumulated path metric of the surviving path.
// The metric counts trellis branch mismatches; zero means the received
// sequence was a valid encoder output. It is not an exact Hamming error
// count and must not be compared across codeword sizes.
func ViterbiDecode(encoded []byte) ([]byte, int) {
	steps := len(encoded) / 2
	if steps < convTail {
		return nil, 0
	}

	const unreachable = 1 << 24

	metrics := make([]int, convStates)
	next := make([]int, convStates)
	for s := 1; s < convStates; s++ {
		metrics[s] = unreachable
	}

	// decisions[t][s] is the input bit that moved the survivor into state
	// s at step t.
	decisions := make([][convStates]uint8, steps)
	prev := make([][convStates]uint8, steps)

	for t := 0; t < steps; t++ {
		r1 := encoded[2*t] & 1
		r2 := encoded[2*t+1] & 1
		for s := range next {
			next[s] = unreachable
		}
		for s := uint8(0); s < convStates; s++ {
			if metrics[s] >= unreachable {
				continue
			}
			for b := uint8(0); b <= 1; b++ {
				o1, o2 := convOutputs(s, b)
				m := metrics[s] + int(o1^r1) + int(o2^r2)
				ns := convNext(s, b)
				if m < next[ns] {
					next[ns] = m
					decisions[t][ns] = b
					prev[t][ns] = s
				}
			}
		}
		copy(metrics, next)
	}

	// Tail bits force the encoder to state zero; trace back from there.
	pathMetric := metrics[0]
	state := uint8(0)
	decoded := make([]byte, steps)
	for t := steps - 1; t >= 0; t-- {
		decoded[t] = decisions[t][state]
		state = prev[t][state]
	}

	return decoded[:steps-convTail], pathMetric
}
