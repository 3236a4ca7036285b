package spectral

import "math"

// fft computes the discrete Fourier transform of x in place using an
// iterative radix-2 Cooley-Tukey algorithm. len(x) must be a power of
// two. The algorithm is a fixed, non-randomized sequence of arithmetic
// operations, so it is deterministic given the same input, satisfying
// spec.md §9's determinism requirement without needing a pinned
// external FFT library (none appears anywhere in the retrieval pack;
// see DESIGN.md).
func fft(x []complex128) {
	n := len(x)
	if n&(n-1) != 0 {
		panic("spectral: fft requires a power-of-two length")
	}
	if n <= 1 {
		return
	}

	bitReverse(x)

	for size := 2; size <= n; size *= 2 {
		half := size / 2
		theta := -2 * math.Pi / float64(size)
		wStep := complex(math.Cos(theta), math.Sin(theta))
		for start := 0; start < n; start += size {
			w := complex(1.0, 0.0)
			for k := 0; k < half; k++ {
				even := x[start+k]
				odd := x[start+k+half] * w
				x[start+k] = even + odd
				x[start+k+half] = even - odd
				w *= wStep
			}
		}
	}
}

func bitReverse(x []complex128) {
	n := len(x)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
}
