package core

import (
	"math"

	"github.com/BewareOfTheRocks/rockviz/model"
)

const (
	twoPi = 2 * math.Pi

	// keplerTolerance is the eccentric-anomaly correction below which the
	// Newton-Raphson iteration is considered converged.
	keplerTolerance = 1e-6

	// keplerMaxIterations caps the solver. When the cap is hit the best
	// estimate so far is used; for eccentricities in [0,1) this is still a
	// usable position, never NaN.
	keplerMaxIterations = 30
)

// SolveKepler solves Kepler's equation M = E - e·sin(E) for the eccentric
// anomaly E using Newton-Raphson, seeded with E₀ = M. It returns E together
// with the number of iterations spent, which the observability layer feeds
// into a histogram.
//
// The solver never fails for finite inputs and eccentricity in [0,1): the
// derivative 1 - e·cos(E) stays strictly positive there.
func SolveKepler(meanAnomaly, eccentricity float64) (float64, int) {
	e := eccentricity
	E := meanAnomaly
	for i := 1; i <= keplerMaxIterations; i++ {
		f := E - e*math.Sin(E) - meanAnomaly
		delta := f / (1 - e*math.Cos(E))
		E -= delta
		if math.Abs(delta) < keplerTolerance {
			return E, i
		}
	}
	return E, keplerMaxIterations
}

// PropagateElements returns the scene position of a body on the orbit
// described by el at simulation time t.
//
// t may be negative or many periods out; it is wrapped by the period before
// the mean anomaly is formed, so long-running scenes lose no precision.
// Element validation happens at construction (model.NewOrbitalElements), so
// the propagator assumes a positive axis and period.
func PropagateElements(el model.OrbitalElements, t float64) model.Vec3 {
	pos, _ := propagateElements(el, t)
	return pos
}

func propagateElements(el model.OrbitalElements, t float64) (model.Vec3, int) {
	frac := math.Mod(t, el.Period)
	if frac < 0 {
		frac += el.Period
	}
	meanAnomaly := twoPi * frac / el.Period

	E, iterations := SolveKepler(meanAnomaly, el.Eccentricity)

	e := el.Eccentricity
	sinHalf, cosHalf := math.Sincos(E / 2)
	trueAnomaly := 2 * math.Atan2(math.Sqrt(1+e)*sinHalf, math.Sqrt(1-e)*cosHalf)
	radius := el.SemiMajorAxis * (1 - e*math.Cos(E))

	sinNu, cosNu := math.Sincos(trueAnomaly)
	plane := model.Vec3{X: radius * cosNu, Y: 0, Z: radius * sinNu}

	// Orientation: periapsis rotation in the orbital plane, then the tilt
	// out of the reference plane, then the node rotation about the scene
	// normal. The scene's reference plane is X/Z with Y as its normal.
	world := plane.
		RotateY(el.Omega).
		RotateX(el.Inclination).
		RotateY(el.RAAN)
	return world, iterations
}
