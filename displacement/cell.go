// Package displacement implements the Displacement Extractor: mapping
// consecutive breadcrumb cells to great-circle distances and time
// deltas, using a deterministic cell-to-centroid model.
//
// No Go H3 library appears anywhere in the retrieval pack (the original
// Rust implementation binds to the h3o crate, which has no pack-visible
// Go port). This package substitutes a self-contained deterministic
// axial-hex-grid centroid mapping rather than reaching for a fabricated
// dependency; see DESIGN.md.
package displacement

import "math"

// MinResolution and MaxResolution mirror the breadcrumb package's
// resolution bounds.
const (
	MinResolution = 7
	MaxResolution = 10
)

// baseCellSizeKM is the edge length, in kilometers, of a cell at
// MaxResolution (the finest grain). Coarser resolutions double the
// cell size per step down, the same halving relationship H3 uses
// between adjacent resolutions.
const baseCellSizeKM = 1.0

func cellSizeKM(resolution uint8) float64 {
	steps := MaxResolution - int(resolution)
	if steps < 0 {
		steps = 0
	}
	return baseCellSizeKM * math.Pow(2, float64(steps))
}

// CellID packs axial hex coordinates (q, r) into a single cell
// identifier, via zigzag encoding so negative coordinates (any
// direction from the grid origin) round-trip losslessly.
func CellID(q, r int32) uint64 {
	return uint64(zigzagEncode(q))<<32 | uint64(zigzagEncode(r))
}

func decodeCellID(cell uint64) (q, r int32) {
	return zigzagDecode(uint32(cell >> 32)), zigzagDecode(uint32(cell))
}

func zigzagEncode(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func zigzagDecode(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// Centroid returns the latitude/longitude, in degrees, of the center of
// cell at the given resolution. The mapping is a pure function of
// (cell, resolution): the same pair always yields the same centroid,
// satisfying spec.md §4.2's determinism requirement.
func Centroid(cell uint64, resolution uint8) (lat, lon float64) {
	q, r := decodeCellID(cell)
	size := cellSizeKM(resolution)

	// standard axial-to-cartesian hex layout, flat-top orientation
	xKM := size * 1.5 * float64(q)
	yKM := size * (math.Sqrt(3)*float64(r) + math.Sqrt(3)/2*float64(q))

	return planarOffsetToLatLon(xKM, yKM)
}

// planarOffsetToLatLon converts a flat-earth (xKM east, yKM north)
// offset from a fixed origin at (0, 0) into a latitude/longitude pair,
// using an equirectangular approximation. It is only used to turn an
// abstract grid into a pair of distinguishable points for the haversine
// computation below, not as a claim of geodesic accuracy.
func planarOffsetToLatLon(xKM, yKM float64) (lat, lon float64) {
	const earthRadiusKM = 6371.0
	dLat := (yKM / earthRadiusKM) * (180 / math.Pi)
	dLon := (xKM / earthRadiusKM) * (180 / math.Pi)
	return dLat, dLon
}
