package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/BewareOfTheRocks/rockviz/model"
)

func TestSphericalRoundTrip(t *testing.T) {
	cases := []struct{ radius, theta, phi float64 }{
		{radius: 10, theta: 0, phi: math.Pi / 2},
		{radius: 250, theta: 1.2, phi: 0.4},
		{radius: 5, theta: -2.8, phi: 2.9},
		{radius: 499, theta: 3.0, phi: 1.5},
	}

	for _, c := range cases {
		v := sphericalToCartesian(c.radius, c.theta, c.phi)
		r, theta, phi := cartesianToSpherical(v)

		if !scalar.EqualWithinAbs(r, c.radius, 1e-9) {
			t.Errorf("radius %v round-tripped to %v", c.radius, r)
		}
		if !scalar.EqualWithinAbs(wrapPi(theta-c.theta), 0, 1e-9) {
			t.Errorf("theta %v round-tripped to %v", c.theta, theta)
		}
		if !scalar.EqualWithinAbs(phi, c.phi, 1e-9) {
			t.Errorf("phi %v round-tripped to %v", c.phi, phi)
		}
	}
}

func TestCartesianToSpherical_Degenerate(t *testing.T) {
	r, theta, phi := cartesianToSpherical(model.Vec3{})
	if r != 0 || !isFinite(theta) || !isFinite(phi) {
		t.Errorf("zero vector gave r=%v theta=%v phi=%v", r, theta, phi)
	}
}

func TestEaseInOutQuad(t *testing.T) {
	checks := map[float64]float64{
		0:    0,
		0.25: 0.125,
		0.5:  0.5,
		0.75: 0.875,
		1:    1,
	}
	for in, want := range checks {
		if got := easeInOutQuad(in); !scalar.EqualWithinAbs(got, want, 1e-12) {
			t.Errorf("ease(%v) = %v, want %v", in, got, want)
		}
	}

	// Out-of-range progress clamps instead of extrapolating.
	if got := easeInOutQuad(-0.5); got != 0 {
		t.Errorf("ease(-0.5) = %v, want 0", got)
	}
	if got := easeInOutQuad(1.5); got != 1 {
		t.Errorf("ease(1.5) = %v, want 1", got)
	}

	// Monotone over the unit interval.
	prev := -1.0
	for p := 0.0; p <= 1.0; p += 0.05 {
		cur := easeInOutQuad(p)
		if cur < prev {
			t.Fatalf("easing not monotone at p=%v: %v < %v", p, cur, prev)
		}
		prev = cur
	}
}

func TestNormalizeAngle(t *testing.T) {
	checks := map[float64]float64{
		0:            0,
		math.Pi:      math.Pi,
		2 * math.Pi:  0,
		-math.Pi / 2: 3 * math.Pi / 2,
		5 * math.Pi:  math.Pi,
	}
	for in, want := range checks {
		if got := normalizeAngle(in); !scalar.EqualWithinAbs(got, want, 1e-12) {
			t.Errorf("normalizeAngle(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestWrapPi(t *testing.T) {
	checks := map[float64]float64{
		0:                0,
		math.Pi / 2:      math.Pi / 2,
		-math.Pi / 2:     -math.Pi / 2,
		3 * math.Pi / 2:  -math.Pi / 2,
		-3 * math.Pi / 2: math.Pi / 2,
		4 * math.Pi:      0,
	}
	for in, want := range checks {
		if got := wrapPi(in); !scalar.EqualWithinAbs(got, want, 1e-12) {
			t.Errorf("wrapPi(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestClampFloat(t *testing.T) {
	if got := clampFloat(7, 0, 5); got != 5 {
		t.Errorf("clamp above = %v", got)
	}
	if got := clampFloat(-2, 0, 5); got != 0 {
		t.Errorf("clamp below = %v", got)
	}
	if got := clampFloat(3, 0, 5); got != 3 {
		t.Errorf("clamp inside = %v", got)
	}
}
