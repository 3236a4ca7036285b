// Package heavytail implements the Heavy-Tail Fitter: a truncated
// power-law fit over displacement magnitudes, grounded on
// original_source/verifier/src/levy.rs's Hill-estimator-plus-grid-search
// MLE, constrained to spec.md §4.4's human-mobility parameter ranges.
package heavytail

import (
	"math"
	"sort"

	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// MinSamples is the minimum count of displacements above XMin the
// fitter needs (spec.md §4.4 implies an epoch's worth; the Hill
// estimator itself is unstable below this).
const MinSamples = 20

// DefaultXMin is the minimum displacement magnitude, in kilometers,
// included in the fit; smaller displacements are grid-quantization
// noise (original_source/verifier/src/levy.rs).
const DefaultXMin = 0.01

// Beta is constrained to this range by spec.md §4.4.
var BetaRange = [2]float64{1.0, 3.0}

// Kappa is constrained to this range, in kilometers, by spec.md §4.4.
var KappaRange = [2]float64{0.05, 1000.0}

// QualityPercentile is the fitted-CDF level above which a displacement
// counts as a spatial anomaly (compare Result.Percentile against it).
// No spatial-anomaly counter is kept: nothing in the module compares
// new displacements against this level.
const QualityPercentile = 0.999

const kappaGridPoints = 100

// Result is the Heavy-Tail Fitter's output for one fit.
type Result struct {
	Beta        float64
	KappaKM     float64
	Quality     float64 // percentile placement of the observed maximum
	KSStatistic float64
	NumSamples  int
}

// Fit estimates β and κ for a truncated power law P(Δr) ∝ Δr^(−β)·exp(−Δr/κ)
// over the displacement magnitudes above xMin, per spec.md §4.4.
func Fit(displacements []float64, xMin float64) (*Result, error) {
	valid := make([]float64, 0, len(displacements))
	for _, d := range displacements {
		if d > xMin && !math.IsNaN(d) && !math.IsInf(d, 0) {
			valid = append(valid, d)
		}
	}
	if len(valid) < MinSamples {
		return nil, protocol.Newf(protocol.InsufficientData, "heavy-tail fit needs at least %d displacements above x_min=%.3fkm, got %d", MinSamples, xMin, len(valid))
	}
	sort.Float64s(valid)
	n := len(valid)

	sumLog := 0.0
	for _, x := range valid {
		sumLog += math.Log(x / xMin)
	}
	if sumLog <= 0 {
		return nil, protocol.Newf(protocol.InsufficientData, "heavy-tail fit: all displacements equal x_min")
	}

	// Hill-estimator seed for the power-law exponent, then clamp into
	// the human-mobility range spec.md §4.4 mandates.
	beta := float64(n) / sumLog
	beta = clamp(beta, BetaRange[0], BetaRange[1])

	kappa := estimateKappa(valid, beta, xMin)
	kappa = clamp(kappa, KappaRange[0], KappaRange[1])

	ks := ksStatistic(valid, beta, kappa, xMin)
	quality := percentileQuality(valid, beta, kappa, xMin)

	return &Result{
		Beta:        beta,
		KappaKM:     kappa,
		Quality:     quality,
		KSStatistic: ks,
		NumSamples:  n,
	}, nil
}

// FitDefault fits with spec.md's default x_min.
func FitDefault(displacements []float64) (*Result, error) {
	return Fit(displacements, DefaultXMin)
}

// ConsistencyWarning implements spec.md §4.4's advisory cross-check
// between the spectral exponent α and the heavy-tail exponent β: it
// reports whether α falls outside [0.3·(3−β), 0.7·(3−β)].
func ConsistencyWarning(alpha, beta float64) bool {
	lo := 0.3 * (3 - beta)
	hi := 0.7 * (3 - beta)
	return alpha < lo || alpha > hi
}

func estimateKappa(sorted []float64, beta, xMin float64) float64 {
	xMax := sorted[len(sorted)-1]
	bestKappa := xMax
	bestLL := math.Inf(-1)

	logMin := math.Log(xMin)
	logMax := math.Log(10 * xMax)

	for i := 0; i < kappaGridPoints; i++ {
		kappa := math.Exp(logMin + (logMax-logMin)*float64(i)/float64(kappaGridPoints))
		ll := logLikelihood(sorted, beta, kappa, xMin)
		if ll > bestLL {
			bestLL = ll
			bestKappa = kappa
		}
	}
	return bestKappa
}

func logLikelihood(data []float64, beta, kappa, xMin float64) float64 {
	z := normalizationConstant(beta, kappa, xMin)
	if z <= 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return math.Inf(-1)
	}
	logZ := math.Log(z)
	sum := 0.0
	for _, x := range data {
		sum += (-1-beta)*math.Log(x) - x/kappa - logZ
	}
	return sum
}

// normalizationConstant numerically integrates Z = ∫_{xMin}^{∞}
// x^(−1−β)·exp(−x/κ) dx via the trapezoidal rule, truncated at
// xMin+20κ (original_source/verifier/src/levy.rs).
func normalizationConstant(beta, kappa, xMin float64) float64 {
	xMax := xMin + 20*kappa
	const steps = 1000
	dx := (xMax - xMin) / steps

	integral := 0.0
	for i := 0; i <= steps; i++ {
		x := xMin + dx*float64(i)
		f := math.Pow(x, -1-beta) * math.Exp(-x/kappa)
		weight := 1.0
		if i == 0 || i == steps {
			weight = 0.5
		}
		integral += weight * f
	}
	return integral * dx
}

func ksStatistic(sorted []float64, beta, kappa, xMin float64) float64 {
	n := float64(len(sorted))
	zTotal := normalizationConstant(beta, kappa, xMin)
	if zTotal <= 0 {
		return 1.0
	}

	maxDiff := 0.0
	for i, x := range sorted {
		empirical := float64(i+1) / n
		zTail := normalizationConstant(beta, kappa, x)
		theoretical := 1 - zTail/zTotal
		diff := math.Abs(empirical - theoretical)
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}

// percentileQuality returns the fitted CDF's value at the observed
// maximum displacement: how extreme the largest sample is relative to
// the fitted tail (spec.md §4.4's "percentile placement").
func percentileQuality(sorted []float64, beta, kappa, xMin float64) float64 {
	zTotal := normalizationConstant(beta, kappa, xMin)
	if zTotal <= 0 {
		return 0
	}
	xMax := sorted[len(sorted)-1]
	zTail := normalizationConstant(beta, kappa, xMax)
	cdf := 1 - zTail/zTotal
	return clamp(cdf, 0, 1)
}

// Density returns the fitted truncated power law's probability density
// at x, P(x) = x^(−1−β)·exp(−x/κ) / Z, the value the Hamiltonian
// Scorer's H_spatial = −log P(Δr) term needs (spec.md §4.6).
func (r *Result) Density(x, xMin float64) float64 {
	if x <= 0 {
		return 0
	}
	z := normalizationConstant(r.Beta, r.KappaKM, xMin)
	if z <= 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return 0
	}
	return math.Pow(x, -1-r.Beta) * math.Exp(-x/r.KappaKM) / z
}

// Percentile returns the fitted CDF's value at x, for comparing a
// displacement against QualityPercentile.
func (r *Result) Percentile(x, xMin float64) float64 {
	zTotal := normalizationConstant(r.Beta, r.KappaKM, xMin)
	if zTotal <= 0 || x <= xMin {
		return 0
	}
	zTail := normalizationConstant(r.Beta, r.KappaKM, x)
	return clamp(1-zTail/zTotal, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
