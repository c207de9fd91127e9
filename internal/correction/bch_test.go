package correction

import (
	"math/bits"
	"math/rand"
	"testing"
)

func TestBCH3121_EncodeDecodeClean(t *testing.T) {
	tests := []struct {
		name string
		data uint32
	}{
		{name: "all zeros", data: 0x000000},
		{name: "all ones", data: 0x1FFFFF},
		{name: "POCSAG idle upper bits", data: 0x7A89C1 >> 3},
		{name: "address-like value", data: 0x04CAF0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeword := BCH3121Encode(tt.data)
			data, result := BCH3121Decode(codeword)
			if result.Uncorrectable || result.Errors != 0 {
				t.Fatalf("BCH3121Decode() = %+v for clean codeword", result)
			}
			if data != tt.data {
				t.Errorf("BCH3121Decode() = %06X, want %06X", data, tt.data)
			}
		})
	}
}

func TestBCH3121_CorrectsUpToTwoErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 300; trial++ {
		data := uint32(rng.Intn(1 << 21))
		codeword := BCH3121Encode(data)

		for weight := 1; weight <= 2; weight++ {
			corrupted := codeword ^ randomPattern(rng, 31, weight)
			decoded, result := BCH3121Decode(corrupted)
			if result.Uncorrectable {
				t.Fatalf("weight %d: uncorrectable for data %06X", weight, data)
			}
			if result.Errors != weight {
				t.Errorf("weight %d: reported %d errors", weight, result.Errors)
			}
			if decoded != data {
				t.Errorf("weight %d: decoded %06X, want %06X", weight, decoded, data)
			}
		}
	}
}

func TestBCH6316_GeneratorDegree(t *testing.T) {
	if got := bits.Len64(bch6316Generator) - 1; got != 47 {
		t.Fatalf("generator polynomial degree = %d, want 47", got)
	}
}

func TestBCH6316_EncodeDecodeClean(t *testing.T) {
	tests := []struct {
		name string
		data uint16
	}{
		{name: "all zeros", data: 0x0000},
		{name: "all ones", data: 0xFFFF},
		{name: "NAC 0x293 LDU1", data: 0x293<<4 | 0x5},
		{name: "NAC 0x293 LDU2", data: 0x293<<4 | 0xA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeword := BCH6316Encode(tt.data)
			data, result := BCH6316Decode(codeword)
			if result.Uncorrectable || result.Errors != 0 {
				t.Fatalf("BCH6316Decode() = %+v for clean codeword", result)
			}
			if data != tt.data {
				t.Errorf("BCH6316Decode() = %04X, want %04X", data, tt.data)
			}
		})
	}
}

func TestBCH6316_CorrectsUpToElevenErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	for trial := 0; trial < 20; trial++ {
		data := uint16(rng.Intn(1 << 16))
		codeword := BCH6316Encode(data)

		for _, weight := range []int{1, 5, 11} {
			corrupted := codeword ^ randomPattern64(rng, 63, weight)
			decoded, result := BCH6316Decode(corrupted)
			if result.Uncorrectable {
				t.Fatalf("weight %d: uncorrectable for data %04X", weight, data)
			}
			if result.Errors != weight {
				t.Errorf("weight %d: reported %d errors", weight, result.Errors)
			}
			if decoded != data {
				t.Errorf("weight %d: decoded %04X, want %04X", weight, decoded, data)
			}
		}
	}
}

func TestBCH6316_BeyondRadiusIsUncorrectable(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	codeword := BCH6316Encode(0x1234)
	for trial := 0; trial < 20; trial++ {
		corrupted := codeword ^ randomPattern64(rng, 63, 23)
		decoded, result := BCH6316Decode(corrupted)
		if !result.Uncorrectable && decoded == 0x1234 && result.Errors <= bch6316Radius {
			// Distance 23 from the transmitted word can land within radius
			// of another codeword, but never back on the original.
			t.Errorf("weight 23 error decoded back to the original with %d errors", result.Errors)
		}
	}
}

func randomPattern64(rng *rand.Rand, n, weight int) uint64 {
	var pattern uint64
	for bits.OnesCount64(pattern) < weight {
		pattern |= 1 << uint(rng.Intn(n))
	}
	return pattern
}
