package transform

import "math"

// GeodeticPoint holds a spherical-Earth geodetic position (degrees, meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// GeodeticToECEF converts spherical latitude/longitude/altitude to ECEF
// meters. The engine treats Earth as a sphere of EarthRadiusM, consistent
// with the safe-altitude floor; WGS-84 flattening is below the two-body
// model's noise floor.
func GeodeticToECEF(latDeg, lonDeg, altM float64) Vec3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	r := EarthRadiusM + altM

	cosLat := math.Cos(lat)
	return Vec3{
		X: r * cosLat * math.Cos(lon),
		Y: r * cosLat * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// ECEFToGeodetic converts an ECEF position to spherical geodetic
// coordinates.
func ECEFToGeodetic(v Vec3) GeodeticPoint {
	r := v.Norm()
	if r == 0 {
		return GeodeticPoint{AltM: -EarthRadiusM}
	}
	return GeodeticPoint{
		LatDeg: math.Asin(v.Z/r) * 180.0 / math.Pi,
		LonDeg: math.Atan2(v.Y, v.X) * 180.0 / math.Pi,
		AltM:   r - EarthRadiusM,
	}
}
