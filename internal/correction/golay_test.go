package correction

import (
	"math/rand"
	"testing"
)

func TestGolay2412_EncodeDecodeClean(t *testing.T) {
	tests := []struct {
		name string
		data uint16
	}{
		{name: "all zeros", data: 0x000},
		{name: "all ones", data: 0xFFF},
		{name: "alternating", data: 0xAAA},
		{name: "FICH-like value", data: 0x123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeword := Golay2412Encode(tt.data)
			data, result := Golay2412Decode(codeword)
			if result.Uncorrectable {
				t.Fatalf("Golay2412Decode() uncorrectable for clean codeword %06X", codeword)
			}
			if result.Errors != 0 {
				t.Errorf("Golay2412Decode() reported %d errors for clean codeword", result.Errors)
			}
			if data != tt.data {
				t.Errorf("Golay2412Decode() = %03X, want %03X", data, tt.data)
			}
		})
	}
}

func TestGolay2412_CorrectsUpToThreeErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 200; trial++ {
		data := uint16(rng.Intn(1 << 12))
		codeword := Golay2412Encode(data)

		for weight := 1; weight <= 3; weight++ {
			corrupted := codeword ^ randomPattern(rng, 24, weight)
			decoded, result := Golay2412Decode(corrupted)
			if result.Uncorrectable {
				t.Fatalf("weight %d: uncorrectable for data %03X", weight, data)
			}
			if result.Errors != weight {
				t.Errorf("weight %d: reported %d errors", weight, result.Errors)
			}
			if decoded != data {
				t.Errorf("weight %d: decoded %03X, want %03X", weight, decoded, data)
			}
		}
	}
}

func TestGolay2412_FourErrorsNeverSilentlySucceed(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 200; trial++ {
		data := uint16(rng.Intn(1 << 12))
		codeword := Golay2412Encode(data)
		corrupted := codeword ^ randomPattern(rng, 24, 4)

		decoded, result := Golay2412Decode(corrupted)
		if !result.Uncorrectable && decoded == data && result.Errors < 4 {
			t.Errorf("weight 4 error on data %03X decoded to the original with %d reported errors",
				data, result.Errors)
		}
	}
}

// randomPattern builds an n-bit error pattern with the exact Hamming weight.
func randomPattern(rng *rand.Rand, n, weight int) uint32 {
	var pattern uint32
	for popcount32(pattern) < weight {
		pattern |= 1 << uint(rng.Intn(n))
	}
	return pattern
}
