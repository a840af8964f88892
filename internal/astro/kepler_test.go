package astro

import (
	"math"
	"testing"
)

// TestSolveKeplerConvergence verifies the residual of Kepler's equation stays
// below 1e-9 across the full supported eccentricity range within the
// iteration budget.
func TestSolveKeplerConvergence(t *testing.T) {
	eccs := []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.79, 0.8, 0.9, 0.95, 0.99}

	for _, e := range eccs {
		for M := 0.0; M < TwoPi; M += TwoPi / 32 {
			E, ok := SolveKepler(M, e)
			if !ok {
				t.Fatalf("SolveKepler(%g, %g) reported not ok for finite input", M, e)
			}
			residual := math.Abs(E - e*math.Sin(E) - M)
			if residual > 1e-9 {
				t.Errorf("SolveKepler(M=%g, e=%g): residual %g exceeds 1e-9", M, e, residual)
			}
		}
	}
}

func TestSolveKeplerCircular(t *testing.T) {
	// With e=0 the equation is the identity: E == M.
	for M := 0.0; M < TwoPi; M += 0.7 {
		E, ok := SolveKepler(M, 0)
		if !ok {
			t.Fatalf("SolveKepler(%g, 0) not ok", M)
		}
		if math.Abs(E-M) > 1e-12 {
			t.Errorf("SolveKepler(%g, 0) = %g, want %g", M, E, M)
		}
	}
}

func TestSolveKeplerNonFinite(t *testing.T) {
	tests := []struct {
		name string
		m, e float64
	}{
		{"NaN mean anomaly", math.NaN(), 0.1},
		{"NaN eccentricity", 1.0, math.NaN()},
		{"Inf mean anomaly", math.Inf(1), 0.1},
		{"-Inf eccentricity", 1.0, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := SolveKepler(tt.m, tt.e); ok {
				t.Errorf("SolveKepler(%g, %g) = ok, want not ok", tt.m, tt.e)
			}
		})
	}
}
