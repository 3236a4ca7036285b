// Package spectral implements the Spectral Analyzer: a Welch-style
// power-spectral-density estimate of a displacement sequence, fit in
// log-log space to a power-law scaling exponent α.
package spectral

import (
	"math"
	"math/cmplx"

	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// MinSamples is the minimum displacement-sequence length the analyzer
// can fit; below it, INSUFFICIENT_DATA is signaled (spec.md §4.3).
const MinSamples = 64

// RecommendedWindow is the recommended sequence length for a
// well-conditioned fit (spec.md §4.3).
const RecommendedWindow = 256

// Bands are the classification boundaries for α, configurable but
// defaulting to the protocol-fixed values in spec.md §4.3.
type Bands struct {
	BiologicalLow  float64
	BiologicalHigh float64
	SyntheticHigh  float64 // [0, SyntheticHigh) classifies as synthetic
	ReplayLow      float64 // [ReplayLow, ∞) classifies as replay/drift
}

// DefaultBands returns spec.md's protocol-fixed defaults.
func DefaultBands() Bands {
	return Bands{BiologicalLow: 0.30, BiologicalHigh: 0.80, SyntheticHigh: 0.15, ReplayLow: 1.20}
}

// Classification is the coarse, protocol-visible band α falls into.
type Classification string

const (
	ClassBiological Classification = "biological"
	ClassSynthetic  Classification = "synthetic"
	ClassReplay     Classification = "replay_drift"
	ClassSuspicious Classification = "suspicious"
)

// Label is a finer five-tier diagnostic label, supplementing the
// protocol classification for logging and operator dashboards, adapted
// from original_source/verifier/src/psd.rs's PsdClassification enum.
type Label string

const (
	LabelWhiteNoise        Label = "white_noise"
	LabelBorderline        Label = "borderline"
	LabelBiological        Label = "biological"
	LabelStrongCorrelation Label = "strong_correlation"
	LabelBrownNoise        Label = "brown_noise"
)

func labelFor(alpha float64) Label {
	switch {
	case alpha < 0.15:
		return LabelWhiteNoise
	case alpha < 0.30:
		return LabelBorderline
	case alpha <= 0.80:
		return LabelBiological
	case alpha < 1.20:
		return LabelStrongCorrelation
	default:
		return LabelBrownNoise
	}
}

// Result is the Spectral Analyzer's output for one displacement window.
type Result struct {
	Alpha          float64
	RSquared       float64
	Confidence     float64
	Classification Classification
	Label          Label
	SegmentLength  int
	NumSegments    int
}

// Analyze fits α and R² over displacements per spec.md §4.3. It returns
// an INSUFFICIENT_DATA error if len(displacements) < MinSamples.
func Analyze(displacements []float64, bands Bands) (*Result, error) {
	n := len(displacements)
	if n < MinSamples {
		return nil, protocol.Newf(protocol.InsufficientData, "spectral analysis needs at least %d samples, got %d", MinSamples, n)
	}

	segLen := segmentLength(n)
	spectrum, freqs, numSegments := welchPSD(displacements, segLen)

	// discard the DC bin (index 0) and the Nyquist bin (last index)
	xs := make([]float64, 0, len(freqs)-2)
	ys := make([]float64, 0, len(freqs)-2)
	for i := 1; i < len(freqs)-1; i++ {
		s := spectrum[i]
		if s <= 0 {
			s = 1e-300
		}
		xs = append(xs, math.Log(freqs[i]))
		ys = append(ys, math.Log(s))
	}

	slope, _, r2 := olsFit(xs, ys)
	alpha := -slope

	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return &Result{Alpha: alpha, RSquared: 0, Confidence: 0, Classification: ClassSuspicious, SegmentLength: segLen, NumSegments: numSegments}, nil
	}
	if r2 < 0 {
		r2 = 0
	}

	return &Result{
		Alpha:          alpha,
		RSquared:       r2,
		Confidence:     confidence(alpha, r2),
		Classification: classify(alpha, bands),
		Label:          labelFor(alpha),
		SegmentLength:  segLen,
		NumSegments:    numSegments,
	}, nil
}

func classify(alpha float64, bands Bands) Classification {
	switch {
	case alpha < bands.SyntheticHigh:
		return ClassSynthetic
	case alpha >= bands.ReplayLow:
		return ClassReplay
	case alpha >= bands.BiologicalLow && alpha <= bands.BiologicalHigh:
		return ClassBiological
	default:
		return ClassSuspicious
	}
}

// confidence implements spec.md §4.3's criticality-confidence formula.
func confidence(alpha, r2 float64) float64 {
	alphaScore := 1 - math.Abs(alpha-0.55)/0.25
	if alphaScore < 0 {
		alphaScore = 0
	}
	c := alphaScore * r2
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func segmentLength(n int) int {
	seg := n / 4
	p := prevPowerOfTwo(seg)
	if p < 16 {
		p = 16
	}
	return p
}

func prevPowerOfTwo(x int) int {
	if x < 1 {
		return 1
	}
	p := 1
	for p*2 <= x {
		p *= 2
	}
	return p
}

// welchPSD computes a Welch periodogram estimate over x using
// 50%-overlapping, Hann-windowed segments of the given length. It
// returns the one-sided averaged power spectrum, the corresponding
// normalized frequency axis (cycles per sample), and the segment count.
func welchPSD(x []float64, segLen int) (spectrum []float64, freqs []float64, numSegments int) {
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	window := hannWindow(segLen)
	windowPower := 0.0
	for _, w := range window {
		windowPower += w * w
	}

	numBins := segLen/2 + 1
	accum := make([]float64, numBins)
	step := segLen / 2
	if step < 1 {
		step = 1
	}

	for start := 0; start+segLen <= len(x); start += step {
		buf := make([]complex128, segLen)
		for i := 0; i < segLen; i++ {
			buf[i] = complex((x[start+i]-mean)*window[i], 0)
		}
		fft(buf)
		for k := 0; k < numBins; k++ {
			mag := cmplx.Abs(buf[k])
			power := (mag * mag) / windowPower
			if k != 0 && k != numBins-1 {
				power *= 2
			}
			accum[k] += power
		}
		numSegments++
	}

	if numSegments == 0 {
		// segments never fit (can't happen given MinSamples/segmentLength
		// invariants, but guard rather than divide by zero)
		numSegments = 1
		buf := make([]complex128, segLen)
		for i := 0; i < segLen && i < len(x); i++ {
			buf[i] = complex((x[i]-mean)*window[i], 0)
		}
		fft(buf)
		for k := 0; k < numBins; k++ {
			accum[k] = cmplx.Abs(buf[k]) * cmplx.Abs(buf[k]) / windowPower
		}
	}

	spectrum = make([]float64, numBins)
	freqs = make([]float64, numBins)
	for k := 0; k < numBins; k++ {
		spectrum[k] = accum[k] / float64(numSegments)
		freqs[k] = float64(k) / float64(segLen)
	}
	// avoid a zero DC frequency reaching the log-log fit's domain check;
	// the DC bin is discarded by the caller regardless.
	if len(freqs) > 0 {
		freqs[0] = 1e-12
	}
	return spectrum, freqs, numSegments
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// olsFit fits y = intercept + slope*x by ordinary least squares and
// returns (slope, intercept, R²).
func olsFit(xs, ys []float64) (slope, intercept, r2 float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	denom := sumXX - n*meanX*meanX
	if denom == 0 {
		return math.NaN(), meanY, 0
	}
	slope = (sumXY - n*meanX*meanY) / denom
	intercept = meanY - slope*meanX

	var ssRes, ssTot float64
	for i := range xs {
		pred := intercept + slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	if ssTot == 0 {
		r2 = 1
	} else {
		r2 = 1 - ssRes/ssTot
	}
	return slope, intercept, r2
}
