// Package transform provides coordinate frame transformations for near-Earth
// object positions.
//
// The pipeline runs heliocentric ecliptic → equatorial (fixed obliquity
// rotation) → Earth-centered inertial (by subtracting Earth's own
// heliocentric position) → Earth-fixed (GMST rotation about the z-axis).
// Cesium-style globe renderers expect Earth-fixed Cartesian meters, which is
// what the final frame delivers.
//
// Method: simplified GMST-only rotation, ignoring precession, nutation and
// polar motion. The two-body element sets feeding this pipeline carry far
// more model error than those terms, so the extra machinery would buy
// nothing for a visualization.
package transform

import "math"

// Vec3 is a Cartesian 3-vector in meters.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Norm returns the Euclidean magnitude of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Array returns v as a fixed-size array for wire payloads.
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// IsFinite reports whether all three components are finite.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
