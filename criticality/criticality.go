// Package criticality implements the Criticality Engine: it combines
// the outputs of the Spectral Analyzer, Heavy-Tail Fitter, Mobility
// Profiler, and Hamiltonian Scorer, which callers compute over a chain,
// into a single Verdict, per spec.md §4.7.
package criticality

import (
	"math"

	"github.com/GNS-Foundation/trip-protocol/hamiltonian"
	"github.com/GNS-Foundation/trip-protocol/spectral"
)

// Classification is the protocol-visible tag spec.md §3 defines on a
// Verdict.
type Classification string

const (
	ClassHuman             Classification = "HUMAN"
	ClassSuspicious        Classification = "SUSPICIOUS"
	ClassSynthetic         Classification = "SYNTHETIC"
	ClassInsufficientData  Classification = "INSUFFICIENT_DATA"
)

// TrustTier is a supplementary, purely derived classification of the
// numeric trust score for relying-party convenience, adapted from
// original_source/reference/src/trust.rs's five-level ladder. It has
// no effect on the numeric trust score itself (spec.md §9 Open
// Question c: endorsements are opaque policy inputs to the score, not
// a separate ladder).
type TrustTier string

const (
	TierAnonymous   TrustTier = "ANONYMOUS"
	TierVerified    TrustTier = "VERIFIED"
	TierEstablished TrustTier = "ESTABLISHED"
	TierTrusted     TrustTier = "TRUSTED"
	TierVouched     TrustTier = "VOUCHED"
)

// TierFromScore derives a TrustTier from the numeric trust score.
func TierFromScore(score float64) TrustTier {
	switch {
	case score >= 90:
		return TierVouched
	case score >= 70:
		return TierTrusted
	case score >= 40:
		return TierEstablished
	case score >= 15:
		return TierVerified
	default:
		return TierAnonymous
	}
}

// TrustInputs are the four terms spec.md §4.7's trust-score formula
// combines.
type TrustInputs struct {
	Count           int
	UniqueCells     int
	DaysSinceFirst  float64
	ChainIntegrity  bool
}

// TrustScore implements spec.md §4.7:
// T = 40·min(count/200,1) + 30·min(unique_cells/50,1) +
//     20·min(days_since_first/365,1) + 10·chain_integrity
func TrustScore(in TrustInputs) float64 {
	integrity := 0.0
	if in.ChainIntegrity {
		integrity = 1.0
	}
	return 40*minRatio(float64(in.Count), 200) +
		30*minRatio(float64(in.UniqueCells), 50) +
		20*minRatio(in.DaysSinceFirst, 365) +
		10*integrity
}

func minRatio(value, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	r := value / cap
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

// HandleClaimThreshold is the minimum (N, T) pair spec.md §4.7 requires
// before an identity may claim a human-readable handle under policy.
const (
	HandleClaimMinSamples    = 100
	HandleClaimMinTrustScore = 20.0
)

// CanClaimHandle reports whether (n, trustScore) satisfies spec.md
// §4.7's handle-claim policy floor.
func CanClaimHandle(n int, trustScore float64) bool {
	return n >= HandleClaimMinSamples && trustScore >= HandleClaimMinTrustScore
}

// Verdict is the Criticality Engine's snapshot output, per spec.md §3.
type Verdict struct {
	Alpha                float64
	RSquared             float64
	Beta                 float64
	KappaKM              float64
	Predictability        float64
	CriticalityConfidence float64
	TrustScore            float64
	TrustTier             TrustTier
	Classification        Classification
	AlertLevel            hamiltonian.AlertLevel
}

// ClassificationCap is the trust-score ceiling spec.md §4.7 applies
// when α falls outside the biological band.
const ClassificationCap = 50.0

// Classify implements spec.md §4.7's classification policy: if
// N < spectral.MinSamples, INSUFFICIENT_DATA; otherwise if α is
// outside [BiologicalLow, BiologicalHigh], the trust score is capped
// and the classification is SUSPICIOUS, unless α signals SYNTHETIC (too
// low) or REPLAY (too high, also reported as SYNTHETIC per spec.md).
func Classify(n int, alpha float64, bands spectral.Bands, trustScore float64) (Classification, float64) {
	if n < spectral.MinSamples {
		return ClassInsufficientData, trustScore
	}
	if alpha >= bands.BiologicalLow && alpha <= bands.BiologicalHigh {
		return ClassHuman, trustScore
	}
	capped := trustScore
	if capped > ClassificationCap {
		capped = ClassificationCap
	}
	switch {
	case alpha < bands.SyntheticHigh:
		return ClassSynthetic, capped
	case alpha >= bands.ReplayLow:
		return ClassSynthetic, capped // replay/drift is reported as SYNTHETIC per spec.md §4.7
	default:
		return ClassSuspicious, capped
	}
}

// ConvergenceConfidence implements the supplementary convergence curve
// adapted from original_source/verifier/src/criticality.rs: confidence
// in the statistical estimates themselves grows with sample count
// toward 1, independent of the criticality_confidence spec.md §4.3
// defines for α. It is a diagnostic only; it does not gate the
// Verdict's Classification.
func ConvergenceConfidence(n int) float64 {
	return 1 - math.Exp(-float64(n)/200)
}

// Evaluate assembles a full Verdict from the component outputs. Callers
// are responsible for running the Spectral Analyzer, Heavy-Tail
// Fitter, Mobility Profiler, and Hamiltonian Scorer beforehand; this
// function performs no I/O and caches nothing, consistent with
// spec.md §4.7: "the engine is stateless across calls except for the
// caches it delegates to §4.5 and §4.6."
func Evaluate(n int, spectralResult *spectral.Result, beta, kappaKM, predictability float64, trust TrustInputs, baselineH, currentH float64) Verdict {
	score := TrustScore(trust)

	alpha := 0.0
	r2 := 0.0
	confidence := 0.0
	if spectralResult != nil {
		alpha = spectralResult.Alpha
		r2 = spectralResult.RSquared
		confidence = spectralResult.Confidence
	}

	class, cappedScore := Classify(n, alpha, spectral.DefaultBands(), score)

	return Verdict{
		Alpha:                 alpha,
		RSquared:              r2,
		Beta:                  beta,
		KappaKM:               kappaKM,
		Predictability:        predictability,
		CriticalityConfidence: confidence,
		TrustScore:            cappedScore,
		TrustTier:             TierFromScore(cappedScore),
		Classification:        class,
		AlertLevel:            hamiltonian.Classify(currentH, baselineH),
	}
}
