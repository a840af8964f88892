package transform

import (
	"math"
	"time"
)

// ObliquityRad is Earth's mean obliquity of the ecliptic at J2000.0
// (23.439281°), treated as a fixed constant. Precession is not modeled.
const ObliquityRad = 23.439281 * math.Pi / 180.0

// EclipticToEquatorial rotates an ecliptic-frame vector about the x-axis by
// the obliquity, producing an equatorial-frame vector.
func EclipticToEquatorial(v Vec3) Vec3 {
	sinE := math.Sin(ObliquityRad)
	cosE := math.Cos(ObliquityRad)
	return Vec3{
		X: v.X,
		Y: v.Y*cosE - v.Z*sinE,
		Z: v.Y*sinE + v.Z*cosE,
	}
}

// ECIToECEF rotates an Earth-centered inertial vector into the rotating
// Earth-fixed frame at time t.
func ECIToECEF(v Vec3, t time.Time) Vec3 {
	return ECIToECEFWithGMST(v, GMST(t))
}

// ECIToECEFWithGMST rotates ECI to ECEF using a precomputed GMST angle in
// radians. Useful when evaluating many objects at the same instant (compute
// GMST once).
//
// This is a frame rotation about the z-axis, not a vector rotation:
//
//	x' = x·cosθ + y·sinθ
//	y' = -x·sinθ + y·cosθ
//	z' = z
func ECIToECEFWithGMST(v Vec3, gmst float64) Vec3 {
	sinG := math.Sin(gmst)
	cosG := math.Cos(gmst)
	return Vec3{
		X: v.X*cosG + v.Y*sinG,
		Y: -v.X*sinG + v.Y*cosG,
		Z: v.Z,
	}
}
