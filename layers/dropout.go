package layers

import "math/rand"

// dropoutMask draws an inverted-dropout mask: each entry is 0 with
// probability p and 1/(1-p) otherwise, so the expectation of the masked
// signal matches the unmasked one.
func dropoutMask(rng *rand.Rand, n int, p float64) []float64 {
	mask := make([]float64, n)
	keep := 1.0 / (1.0 - p)
	for i := range mask {
		if rng.Float64() >= p {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(data, mask []float64) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		out[i] = data[i] * mask[i]
	}
	return out
}
