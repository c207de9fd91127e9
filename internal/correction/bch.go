package correction

import "math/bits"

// BCH(31,21,5) as used by POCSAG codewords. Generator polynomial
// x^10 + x^9 + x^8 + x^6 + x^5 + x^3 + 1. The code corrects two errors;
// decoding is a syndrome table lookup over the 496 correctable cosets,
// built once at package init.
const bch3121Generator = 0x769

type bchCoset struct {
	pattern uint32 // 31-bit error pattern
	weight  uint8
}

var bch3121Syndromes map[uint16]bchCoset

func init() {
	bch3121Syndromes = make(map[uint16]bchCoset, 496)
	add := func(pattern uint32, weight uint8) {
		bch3121Syndromes[bch3121Syndrome(pattern)] = bchCoset{pattern, weight}
	}
	for i := 0; i < 31; i++ {
		add(1<<uint(i), 1)
		for j := i + 1; j < 31; j++ {
			add(1<<uint(i)|1<<uint(j), 2)
		}
	}
}

// bch3121Syndrome computes the 10-bit polynomial remainder of a 31-bit word.
func bch3121Syndrome(word uint32) uint16 {
	remainder := word & 0x7FFFFFFF
	for i := 30; i >= 10; i-- {
		if remainder&(1<<uint(i)) != 0 {
			remainder ^= bch3121Generator << uint(i-10)
		}
	}
	return uint16(remainder) & 0x3FF
}

// BCH3121Encode encodes a 21-bit data word into a 31-bit codeword with the
// data bits in the upper half.
func BCH3121Encode(data uint32) uint32 {
	data &= 0x1FFFFF
	shifted := data << 10
	return shifted | uint32(bch3121Syndrome(shifted))
}

// BCH3121Decode corrects up to 2 bit errors in a 31-bit codeword and returns
// the 21 data bits together with the decode result.
func BCH3121Decode(codeword uint32) (uint32, Result) {
	codeword &= 0x7FFFFFFF

	syndrome := bch3121Syndrome(codeword)
	if syndrome == 0 {
		return codeword >> 10, Result{}
	}

	coset, ok := bch3121Syndromes[syndrome]
	if !ok {
		return codeword >> 10, Result{Uncorrectable: true}
	}

	corrected := codeword ^ coset.pattern
	return corrected >> 10, Result{Errors: int(coset.weight)}
}

// BCH(63,16,23) as used by the P25 network identifier. With only 2^16
// codewords the maximum-likelihood decode is an exact search over the full
// codebook, which is precomputed at init from the generator polynomial. A
// syndrome table is impractical here (47 parity bits, correction radius 11),
// and the exhaustive search stays within the microsecond range per NID.
//
// The degree-47 generator polynomial is derived at init as the product of
// the minimal polynomials of alpha^1..alpha^22 over GF(64) built on
// x^6 + x + 1, the construction specified for the code's designed
// distance of 23.

const bch6316Radius = 11

var (
	bch6316Generator uint64 // degree-47 generator polynomial
	bch6316Codebook  []uint64
)

func init() {
	bch6316Generator = bch6316BuildGenerator()
	bch6316Codebook = make([]uint64, 1<<16)
	for data := 0; data < 1<<16; data++ {
		bch6316Codebook[data] = bch6316EncodeRaw(uint16(data))
	}
}

// bch6316BuildGenerator computes the generator polynomial as the least
// common multiple of the minimal polynomials of alpha^1..alpha^22.
func bch6316BuildGenerator() uint64 {
	const primitive = 0x43 // x^6 + x + 1

	// GF(64) antilog table.
	var antilog [63]int
	v := 1
	for i := 0; i < 63; i++ {
		antilog[i] = v
		v <<= 1
		if v&0x40 != 0 {
			v ^= primitive
		}
	}

	generator := uint64(1)
	covered := make([]bool, 63)
	for root := 1; root <= 22; root++ {
		if covered[root] {
			continue
		}

		// Cyclotomic coset of root: root, 2*root, 4*root, ... mod 63.
		coset := []int{}
		for e := root; !covered[e]; e = (e * 2) % 63 {
			covered[e] = true
			coset = append(coset, e)
		}

		// Minimal polynomial: product over the coset of (x + alpha^e),
		// with coefficients in GF(64). The result has binary coefficients.
		poly := []int{1}
		for _, e := range coset {
			next := make([]int, len(poly)+1)
			for i, c := range poly {
				next[i+1] ^= c
				next[i] ^= gf64Mul(c, antilog[e], primitive)
			}
			poly = next
		}

		var minimal uint64
		for i, c := range poly {
			if c&1 != 0 {
				minimal |= 1 << uint(i)
			}
		}
		generator = polyMul64(generator, minimal)
	}
	return generator
}

func gf64Mul(a, b, primitive int) int {
	result := 0
	for b != 0 {
		if b&1 != 0 {
			result ^= a
		}
		a <<= 1
		if a&0x40 != 0 {
			a ^= primitive
		}
		b >>= 1
	}
	return result
}

func polyMul64(a, b uint64) uint64 {
	var result uint64
	for i := uint(0); i < 64; i++ {
		if b&(1<<i) != 0 {
			result ^= a << i
		}
	}
	return result
}

// bch6316EncodeRaw computes the systematic 63-bit codeword for a 16-bit data
// word, data bits in the upper half.
func bch6316EncodeRaw(data uint16) uint64 {
	shifted := uint64(data) << 47
	remainder := shifted
	for i := 62; i >= 47; i-- {
		if remainder&(1<<uint(i)) != 0 {
			remainder ^= bch6316Generator << uint(i-47)
		}
	}
	return shifted | (remainder & (1<<47 - 1))
}

// BCH6316Encode encodes a 16-bit data word into a 63-bit codeword.
func BCH6316Encode(data uint16) uint64 {
	return bch6316Codebook[data]
}

// BCH6316Decode finds the codeword nearest the received 63-bit word. Up to
// 11 bit errors are corrected; beyond that the word is uncorrectable even
// when some codeword happens to lie closer, since the correction guarantee
// no longer holds.
func BCH6316Decode(word uint64) (uint16, Result) {
	word &= 1<<63 - 1

	bestData := uint16(0)
	bestDistance := 64
	for data, codeword := range bch6316Codebook {
		d := bits.OnesCount64(word ^ codeword)
		if d < bestDistance {
			bestDistance = d
			bestData = uint16(data)
			if d == 0 {
				break
			}
		}
	}

	if bestDistance > bch6316Radius {
		return uint16(word >> 47), Result{Uncorrectable: true}
	}
	return bestData, Result{Errors: bestDistance}
}
