package propagation

import "time"

// Keyframe holds the positions of all tracked objects at a single point in time.
type Keyframe struct {
	Timestamp time.Time
	Objects   []ObjectPosition
}

// ObjectPosition holds a single object's rendered ECEF position at a keyframe time.
type ObjectPosition struct {
	ID           string
	PositionECEF [3]float64 // meters (X, Y, Z in ECEF)
	DistanceM    float64    // geocentric distance before the altitude floor
	Label        string
	Fallback     bool
}

// PropConfig holds propagation configuration loaded from environment variables.
type PropConfig struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Keyframe interval (default: 1s)
	Horizon time.Duration // Propagation horizon (default: 120s)
}
