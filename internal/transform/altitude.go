package transform

const (
	// EarthRadiusM is the mean Earth radius in meters. The rendering model
	// treats Earth as a sphere of this radius.
	EarthRadiusM = 6371000.0

	// MinRenderAltitudeM is the minimum altitude above the globe surface at
	// which an object may be rendered.
	MinRenderAltitudeM = 150000.0

	// SafeAltitudeFloorM is the minimum geocentric distance for a rendered
	// position.
	SafeAltitudeFloorM = EarthRadiusM + MinRenderAltitudeM
)

// EnsureSafeAltitude rescales v uniformly onto the minimum rendering sphere
// when the simplified two-body model places it below the floor, so objects
// never render inside or clip through the globe. Vectors at or above the
// floor, and the zero vector (which has no direction to rescale), are
// returned unchanged.
func EnsureSafeAltitude(v Vec3) Vec3 {
	mag := v.Norm()
	if mag == 0 || mag >= SafeAltitudeFloorM {
		return v
	}
	return v.Scale(SafeAltitudeFloorM / mag)
}
