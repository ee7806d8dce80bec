package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/BewareOfTheRocks/rockviz/model"
)

func circularOrbit(t *testing.T, a, period float64) model.OrbitalElements {
	t.Helper()
	el, err := model.NewOrbitalElements(a, 0, period, 0, 0, 0)
	if err != nil {
		t.Fatalf("building circular orbit: %v", err)
	}
	return el
}

func TestPropagateElements_CircularYearOrbit(t *testing.T) {
	// A circular one-year orbit of radius 150 starts on +X, sits on -X at
	// the half period, and returns to +X after a full period.
	el := circularOrbit(t, 150, 365)

	checks := []struct {
		at   float64
		want model.Vec3
	}{
		{at: 0, want: model.Vec3{X: 150}},
		{at: 182.5, want: model.Vec3{X: -150}},
		{at: 365, want: model.Vec3{X: 150}},
	}
	for _, c := range checks {
		got := PropagateElements(el, c.at)
		if !scalar.EqualWithinAbs(got.X, c.want.X, 1e-9) ||
			!scalar.EqualWithinAbs(got.Y, c.want.Y, 1e-9) ||
			!scalar.EqualWithinAbs(got.Z, c.want.Z, 1e-9) {
			t.Errorf("position at t=%v = %+v, want %+v", c.at, got, c.want)
		}
	}
}

func TestPropagateElements_Periodicity(t *testing.T) {
	el, err := model.NewOrbitalElements(168, 0.31, 436, 0.2, 1.1, 2.4)
	if err != nil {
		t.Fatalf("building orbit: %v", err)
	}

	for _, at := range []float64{0, 17.5, 100, 399.99, 1000} {
		p1 := PropagateElements(el, at)
		p2 := PropagateElements(el, at+el.Period)
		for axis, pair := range map[string][2]float64{
			"X": {p1.X, p2.X},
			"Y": {p1.Y, p2.Y},
			"Z": {p1.Z, p2.Z},
		} {
			if !scalar.EqualWithinAbsOrRel(pair[0], pair[1], 1e-4, 1e-4) {
				t.Errorf("t=%v: %s component %v vs %v one period later", at, axis, pair[0], pair[1])
			}
		}
	}
}

func TestPropagateElements_CircularRadiusInvariant(t *testing.T) {
	// With zero eccentricity the distance from the origin equals the
	// semi-major axis at every time, whatever the orientation angles.
	el, err := model.NewOrbitalElements(200, 0, 500, 0.7, 2.3, 4.1)
	if err != nil {
		t.Fatalf("building orbit: %v", err)
	}

	for at := 0.0; at < 500; at += 13.7 {
		r := PropagateElements(el, at).Norm()
		if !scalar.EqualWithinAbs(r, 200, 1e-6) {
			t.Errorf("radius at t=%v = %v, want 200", at, r)
		}
	}
}

func TestPropagateElements_NegativeTime(t *testing.T) {
	el := circularOrbit(t, 150, 365)

	got := PropagateElements(el, -182.5)
	want := PropagateElements(el, 182.5)
	if !scalar.EqualWithinAbs(got.X, want.X, 1e-9) || !scalar.EqualWithinAbs(got.Z, want.Z, 1e-9) {
		t.Errorf("t=-182.5 gave %+v, want the t=182.5 position %+v", got, want)
	}
	if !got.IsFinite() {
		t.Errorf("negative time produced non-finite position %+v", got)
	}
}

func TestSolveKepler_ConvergesAcrossEccentricities(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.3, 0.7, 0.9, 0.97} {
		for m := 0.0; m < 2*math.Pi; m += math.Pi / 7 {
			E, iterations := SolveKepler(m, e)

			residual := math.Abs(E - e*math.Sin(E) - m)
			if residual > 1e-5 {
				t.Errorf("e=%v M=%v: residual %v after %d iterations", e, m, residual, iterations)
			}
			if iterations > keplerMaxIterations {
				t.Errorf("e=%v M=%v: iteration count %d above cap", e, m, iterations)
			}
		}
	}
}

func TestSolveKepler_NeverNaNForFiniteInput(t *testing.T) {
	for _, e := range []float64{0, 0.5, 0.999} {
		for _, m := range []float64{-100, -math.Pi, 0, math.Pi, 1e6} {
			E, _ := SolveKepler(m, e)
			if math.IsNaN(E) || math.IsInf(E, 0) {
				t.Errorf("e=%v M=%v: solver returned %v", e, m, E)
			}
		}
	}
}

func TestPropagateElements_EccentricOrbitExtremes(t *testing.T) {
	// Periapsis at t=0 sits at a(1-e) on +X; apoapsis at half period sits
	// at a(1+e) on -X.
	el, err := model.NewOrbitalElements(100, 0.6, 200, 0, 0, 0)
	if err != nil {
		t.Fatalf("building orbit: %v", err)
	}

	peri := PropagateElements(el, 0)
	if !scalar.EqualWithinAbs(peri.X, 40, 1e-6) || !scalar.EqualWithinAbs(peri.Z, 0, 1e-6) {
		t.Errorf("periapsis = %+v, want (40,0,0)", peri)
	}

	apo := PropagateElements(el, 100)
	if !scalar.EqualWithinAbs(apo.X, -160, 1e-4) || !scalar.EqualWithinAbs(apo.Z, 0, 1e-4) {
		t.Errorf("apoapsis = %+v, want (-160,0,0)", apo)
	}
}

func TestPropagateElements_InclinationTiltsOutOfPlane(t *testing.T) {
	flat := circularOrbit(t, 150, 365)
	tilted, err := model.NewOrbitalElements(150, 0, 365, 0.4, 0, 0)
	if err != nil {
		t.Fatalf("building orbit: %v", err)
	}

	// A quarter period in, the flat orbit stays at Y=0 while the tilted
	// one has climbed out of the reference plane.
	if y := PropagateElements(flat, 91.25).Y; !scalar.EqualWithinAbs(y, 0, 1e-9) {
		t.Errorf("flat orbit left the plane: Y=%v", y)
	}
	if y := math.Abs(PropagateElements(tilted, 91.25).Y); y < 1 {
		t.Errorf("tilted orbit stayed in plane: |Y|=%v", y)
	}
}
