package astro

import "math"

const (
	keplerMaxIter = 15
	keplerTol     = 1e-10
)

// SolveKepler solves Kepler's equation M = E - e·sin(E) for the eccentric
// anomaly E using Newton-Raphson iteration.
//
// The initial guess is M itself below e=0.8; high-eccentricity orbits
// converge poorly from M, so π is used instead. Iteration stops once the
// correction drops below 1e-10 or the budget of 15 steps is spent, in which
// case the last iterate is returned as a best effort rather than failing;
// good enough for a visualization-grade two-body model.
//
// ok is false only when an input is not finite; no other condition is
// reported as an error.
func SolveKepler(meanAnomaly, eccentricity float64) (eccentricAnomaly float64, ok bool) {
	if !IsFinite(meanAnomaly) || !IsFinite(eccentricity) {
		return 0, false
	}

	E := meanAnomaly
	if eccentricity >= 0.8 {
		E = math.Pi
	}

	for i := 0; i < keplerMaxIter; i++ {
		delta := (E - eccentricity*math.Sin(E) - meanAnomaly) / (1 - eccentricity*math.Cos(E))
		E -= delta
		if math.Abs(delta) < keplerTol {
			break
		}
	}

	return E, true
}
