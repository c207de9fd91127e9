package correction

// Extended Golay (24,12,8) code as used by the D-STAR radio header and the
// YSF FICH. Encoding uses the standard parity matrix; decoding uses a
// syndrome lookup table covering every error pattern of weight <= 3, built
// once at package init. Because the minimum distance is 8, those patterns
// occupy disjoint cosets, so the table lookup is exact: any pattern of up to
// three errors is corrected with its true weight, and anything heavier is
// reported as uncorrectable.

// golayEncodeMatrix holds the 12 parity columns of the (24,12) generator
// matrix, one 12-bit column per data bit.
var golayEncodeMatrix = [12]uint16{
	0x8EB, 0x93E, 0xA97, 0xDC6, 0x367, 0x6CD,
	0xD99, 0x3DA, 0x7B4, 0xF68, 0x63B, 0xC75,
}

type golayCoset struct {
	pattern uint32 // 24-bit error pattern
	weight  uint8
}

// golaySyndromes maps a 12-bit syndrome to its minimum-weight error pattern.
// 2325 of the 4096 cosets have a leader of weight <= 3; the rest are
// uncorrectable.
var golaySyndromes map[uint16]golayCoset

func init() {
	golaySyndromes = make(map[uint16]golayCoset, 2325)
	add := func(pattern uint32, weight uint8) {
		golaySyndromes[golaySyndrome(pattern)] = golayCoset{pattern, weight}
	}
	for i := 0; i < 24; i++ {
		add(1<<uint(i), 1)
		for j := i + 1; j < 24; j++ {
			add(1<<uint(i)|1<<uint(j), 2)
			for k := j + 1; k < 24; k++ {
				add(1<<uint(i)|1<<uint(j)|1<<uint(k), 3)
			}
		}
	}
}

// golayParity computes the 12 parity bits for a 12-bit data word.
func golayParity(data uint16) uint16 {
	var parity uint16
	for i := uint(0); i < 12; i++ {
		if data&(1<<i) != 0 {
			parity ^= golayEncodeMatrix[i]
		}
	}
	return parity
}

// golaySyndrome computes the syndrome of a 24-bit received word. A valid
// codeword has syndrome zero.
func golaySyndrome(codeword uint32) uint16 {
	data := uint16(codeword>>12) & 0xFFF
	parity := uint16(codeword) & 0xFFF
	return golayParity(data) ^ parity
}

// Golay2412Encode encodes a 12-bit data word into a 24-bit codeword with the
// data bits in the upper half.
func Golay2412Encode(data uint16) uint32 {
	data &= 0xFFF
	return uint32(data)<<12 | uint32(golayParity(data))
}

// Golay2412Decode corrects up to 3 bit errors in a 24-bit codeword and
// returns the 12 data bits together with the decode result. On an
// uncorrectable codeword the returned data bits are the received ones,
// unmodified.
func Golay2412Decode(codeword uint32) (uint16, Result) {
	codeword &= 0xFFFFFF

	syndrome := golaySyndrome(codeword)
	if syndrome == 0 {
		return uint16(codeword>>12) & 0xFFF, Result{}
	}

	coset, ok := golaySyndromes[syndrome]
	if !ok {
		return uint16(codeword>>12) & 0xFFF, Result{Uncorrectable: true}
	}

	corrected := codeword ^ coset.pattern
	return uint16(corrected>>12) & 0xFFF, Result{Errors: int(coset.weight)}
}
