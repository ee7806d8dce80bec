package core

import (
	"math"

	"github.com/BewareOfTheRocks/rockviz/model"
)

// Spherical convention used by the camera: phi is the polar angle measured
// from the +Y axis, theta the azimuth in the X/Z plane measured from +X
// toward +Z.
//
//	x = r·sin(phi)·cos(theta)
//	y = r·cos(phi)
//	z = r·sin(phi)·sin(theta)

func sphericalToCartesian(radius, theta, phi float64) model.Vec3 {
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	return model.Vec3{
		X: radius * sinPhi * cosTheta,
		Y: radius * cosPhi,
		Z: radius * sinPhi * sinTheta,
	}
}

func cartesianToSpherical(v model.Vec3) (radius, theta, phi float64) {
	radius = v.Norm()
	if radius == 0 {
		// Degenerate: direction is undefined, pick the equator looking
		// down +X so callers get finite angles.
		return 0, 0, math.Pi / 2
	}
	theta = math.Atan2(v.Z, v.X)
	phi = math.Acos(clampFloat(v.Y/radius, -1, 1))
	return radius, theta, phi
}

// easeInOutQuad is the camera transition easing curve: quadratic in, then
// quadratic out, continuous at the midpoint.
func easeInOutQuad(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	if p < 0.5 {
		return 2 * p * p
	}
	q := -2*p + 2
	return 1 - q*q/2
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// normalizeAngle wraps an angle into [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
