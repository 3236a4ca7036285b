package heavytail

import (
	"math"
	"math/rand"
	"testing"

	"github.com/GNS-Foundation/trip-protocol/protocol"
)

func TestFitInsufficientData(t *testing.T) {
	_, err := FitDefault([]float64{0.1, 0.2, 0.3})
	if protocol.CodeOf(err) != protocol.InsufficientData {
		t.Fatalf("error code = %v, want InsufficientData", protocol.CodeOf(err))
	}
}

func TestFitSyntheticPowerLaw(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	xMin := 0.01
	betaTrue := 1.0

	data := make([]float64, 500)
	for i := range data {
		u := 0.001 + r.Float64()*0.999
		data[i] = xMin * math.Pow(u, -1/betaTrue)
	}

	res, err := Fit(data, xMin)
	if err != nil {
		t.Fatal(err)
	}
	if res.Beta < BetaRange[0] || res.Beta > BetaRange[1] {
		t.Fatalf("beta = %v out of constrained range %v", res.Beta, BetaRange)
	}
	if res.KappaKM < KappaRange[0] || res.KappaKM > KappaRange[1] {
		t.Fatalf("kappa = %v out of constrained range %v", res.KappaKM, KappaRange)
	}
	if res.KSStatistic < 0 || res.KSStatistic > 1 {
		t.Fatalf("KS statistic = %v, want within [0,1]", res.KSStatistic)
	}
}

func TestConsistencyWarning(t *testing.T) {
	// beta=2.0 -> lo=0.3*(1)=0.3, hi=0.7*(1)=0.7
	if ConsistencyWarning(0.5, 2.0) {
		t.Fatal("alpha=0.5 should be within the consistency band for beta=2.0")
	}
	if !ConsistencyWarning(0.9, 2.0) {
		t.Fatal("alpha=0.9 should trip the consistency warning for beta=2.0")
	}
}

func TestPercentileMonotonic(t *testing.T) {
	res := &Result{Beta: 1.5, KappaKM: 5.0}
	low := res.Percentile(0.1, DefaultXMin)
	high := res.Percentile(10.0, DefaultXMin)
	if high < low {
		t.Fatalf("Percentile not monotonic: Percentile(0.1)=%v, Percentile(10)=%v", low, high)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-1, 0, 10) != 0 {
		t.Fatal("clamp should floor at lo")
	}
	if clamp(20, 0, 10) != 10 {
		t.Fatal("clamp should ceiling at hi")
	}
	if clamp(5, 0, 10) != 5 {
		t.Fatal("clamp should pass through in-range values")
	}
}
