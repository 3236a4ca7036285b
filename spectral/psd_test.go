package spectral

import (
	"math"
	"math/rand"
	"testing"

	"github.com/GNS-Foundation/trip-protocol/protocol"
)

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := Analyze(make([]float64, MinSamples-1), DefaultBands())
	if protocol.CodeOf(err) != protocol.InsufficientData {
		t.Fatalf("error code = %v, want InsufficientData", protocol.CodeOf(err))
	}
}

func TestAnalyzeWhiteNoiseLowAlpha(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	x := make([]float64, RecommendedWindow)
	for i := range x {
		x[i] = r.NormFloat64() + 1 // strictly positive displacement magnitudes
	}
	res, err := Analyze(x, DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	if res.Alpha > 0.3 {
		t.Fatalf("white noise alpha = %.3f, want close to 0", res.Alpha)
	}
}

func TestAnalyzeBrownNoiseHighAlpha(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	x := make([]float64, RecommendedWindow)
	walk := 10.0
	for i := range x {
		walk += r.NormFloat64()
		if walk < 0.1 {
			walk = 0.1
		}
		x[i] = walk
	}
	res, err := Analyze(x, DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	if res.Alpha < 1.0 {
		t.Fatalf("brown noise alpha = %.3f, want > 1.0", res.Alpha)
	}
}

func TestHannWindowShape(t *testing.T) {
	w := hannWindow(16)
	if w[0] > 0.01 {
		t.Fatalf("Hann window should start near 0, got %v", w[0])
	}
	mid := w[len(w)/2]
	if mid < 0.9 {
		t.Fatalf("Hann window should peak near the center, got %v", mid)
	}
}

func TestOLSFitPerfectLine(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 3 - 2*x
	}
	slope, intercept, r2 := olsFit(xs, ys)
	if math.Abs(slope-(-2)) > 1e-9 || math.Abs(intercept-3) > 1e-9 {
		t.Fatalf("fit = (slope=%v, intercept=%v), want (-2, 3)", slope, intercept)
	}
	if math.Abs(r2-1) > 1e-9 {
		t.Fatalf("R2 = %v, want 1", r2)
	}
}

func TestSegmentLengthBounds(t *testing.T) {
	if got := segmentLength(64); got != 16 {
		t.Fatalf("segmentLength(64) = %d, want 16", got)
	}
	if got := segmentLength(256); got != 64 {
		t.Fatalf("segmentLength(256) = %d, want 64", got)
	}
}
