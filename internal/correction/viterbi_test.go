package correction

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomBits(rng *rand.Rand, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(rng.Intn(2))
	}
	return bits
}

func TestViterbi_CleanRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		bits []byte
	}{
		{name: "all zeros", bits: make([]byte, 40)},
		{name: "single one", bits: append([]byte{1}, make([]byte, 39)...)},
		{name: "alternating", bits: []byte{1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := ConvEncode(tt.bits)
			if len(encoded) != 2*(len(tt.bits)+convTail) {
				t.Fatalf("ConvEncode() length = %d, want %d", len(encoded), 2*(len(tt.bits)+convTail))
			}

			decoded, metric := ViterbiDecode(encoded)
			if metric != 0 {
				t.Errorf("path metric = %d for clean sequence, want 0", metric)
			}
			if !bytes.Equal(decoded, tt.bits) {
				t.Errorf("decoded = %v, want %v", decoded, tt.bits)
			}
		})
	}
}

func TestViterbi_CorrectsScatteredErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(6))

	for trial := 0; trial < 50; trial++ {
		bits := randomBits(rng, 100)
		encoded := ConvEncode(bits)

		// Flip three well-separated bits; the free distance of the code
		// comfortably covers isolated errors this sparse.
		for _, pos := range []int{10, 80, 150} {
			encoded[pos] ^= 1
		}

		decoded, metric := ViterbiDecode(encoded)
		if !bytes.Equal(decoded, bits) {
			t.Fatalf("trial %d: decode mismatch", trial)
		}
		if metric == 0 {
			t.Errorf("trial %d: path metric 0 after injecting errors", trial)
		}
	}
}

func TestViterbi_MetricGrowsWithNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	bits := randomBits(rng, 100)
	clean := ConvEncode(bits)

	noisy := make([]byte, len(clean))
	copy(noisy, clean)
	for i := 0; i < len(noisy); i += 4 {
		noisy[i] ^= 1
	}

	_, cleanMetric := ViterbiDecode(clean)
	_, noisyMetric := ViterbiDecode(noisy)
	if noisyMetric <= cleanMetric {
		t.Errorf("noisy metric %d not above clean metric %d", noisyMetric, cleanMetric)
	}
}
