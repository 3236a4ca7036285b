package displacement

import (
	"math"
	"testing"
)

func TestHaversineSamePointIsZero(t *testing.T) {
	d := Haversine(41.9, 12.5, 41.9, 12.5)
	if d != 0 {
		t.Fatalf("Haversine of identical points = %v, want 0", d)
	}
}

func TestHaversineRomeToNaples(t *testing.T) {
	// Rome (41.9028, 12.4964) to Naples (40.8518, 14.2681) is
	// approximately 190km great-circle.
	d := Haversine(41.9028, 12.4964, 40.8518, 14.2681)
	if d < 170 || d > 210 {
		t.Fatalf("Rome-Naples distance = %.1fkm, want ~190km", d)
	}
}

func TestCellIDRoundTrip(t *testing.T) {
	for _, tc := range [][2]int32{{0, 0}, {5, -3}, {-100, 200}, {1 << 20, -(1 << 20)}} {
		cell := CellID(tc[0], tc[1])
		q, r := decodeCellID(cell)
		if q != tc[0] || r != tc[1] {
			t.Fatalf("CellID/decodeCellID round trip for (%d,%d) produced (%d,%d)", tc[0], tc[1], q, r)
		}
	}
}

func TestCentroidDeterministic(t *testing.T) {
	cell := CellID(12, -7)
	lat1, lon1 := Centroid(cell, 9)
	lat2, lon2 := Centroid(cell, 9)
	if lat1 != lat2 || lon1 != lon2 {
		t.Fatal("Centroid is not deterministic for the same (cell, resolution)")
	}
}

func TestCentroidDistinctCellsDiffer(t *testing.T) {
	lat1, lon1 := Centroid(CellID(0, 0), 9)
	lat2, lon2 := Centroid(CellID(1, 0), 9)
	if lat1 == lat2 && lon1 == lon2 {
		t.Fatal("distinct cells mapped to the same centroid")
	}
}

func TestExtractClampsZeroDisplacement(t *testing.T) {
	points := []CellPoint{
		{Cell: CellID(0, 0), Resolution: 9, Timestamp: 0},
		{Cell: CellID(0, 0), Resolution: 9, Timestamp: 900}, // same cell: degenerate zero distance
	}
	series := Extract(points)
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(series))
	}
	if series[0].DeltaKM != MinDisplacementKM {
		t.Fatalf("DeltaKM = %v, want the %v floor", series[0].DeltaKM, MinDisplacementKM)
	}
	if math.IsNaN(series[0].DeltaKM) || math.IsInf(series[0].DeltaKM, 0) {
		t.Fatal("degenerate displacement produced a non-finite value")
	}
}

func TestExtractLength(t *testing.T) {
	points := make([]CellPoint, 10)
	for i := range points {
		points[i] = CellPoint{Cell: CellID(int32(i), 0), Resolution: 9, Timestamp: int64(i) * 900}
	}
	series := Extract(points)
	if len(series) != 9 {
		t.Fatalf("len(series) = %d, want 9", len(series))
	}
}
