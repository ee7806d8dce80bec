package model

import (
	"math"
	"strings"
)

// BodyKind classifies a scene body. The kind selects display traits
// (axial tilt, spin) and decides whether the camera may lock onto it.
type BodyKind int

const (
	KindMeteor BodyKind = iota
	KindSun
	KindEarth
	KindComet
	KindSatellite
)

// String returns the lower-case kind name used in logs, metrics labels
// and scenario files.
func (k BodyKind) String() string {
	switch k {
	case KindSun:
		return "sun"
	case KindEarth:
		return "earth"
	case KindComet:
		return "comet"
	case KindSatellite:
		return "satellite"
	default:
		return "meteor"
	}
}

// KindTraits carries the per-kind display defaults applied when a body is
// created without explicit overrides.
type KindTraits struct {
	// AxialTilt is the tilt of the spin axis in radians.
	AxialTilt float64
	// SpinRate is the self-rotation rate in radians per simulation time
	// unit (days). Earth completes one turn per unit.
	SpinRate float64
	// Lockable reports whether the camera lock commands accept this kind.
	Lockable bool
}

var kindTraits = map[BodyKind]KindTraits{
	KindSun:       {AxialTilt: 0, SpinRate: 0.23, Lockable: true},
	KindEarth:     {AxialTilt: 23.44 * math.Pi / 180, SpinRate: 2 * math.Pi, Lockable: true},
	KindMeteor:    {AxialTilt: 0, SpinRate: 0.8, Lockable: true},
	KindComet:     {AxialTilt: 0, SpinRate: 0.5, Lockable: false},
	KindSatellite: {AxialTilt: 0, SpinRate: 0, Lockable: false},
}

// TraitsFor returns the display traits for k. Unknown kinds fall back to
// the meteor traits.
func TraitsFor(k BodyKind) KindTraits {
	if t, ok := kindTraits[k]; ok {
		return t
	}
	return kindTraits[KindMeteor]
}

// ParseKind maps a scenario-file kind string to a BodyKind.
//
// Kept tolerant: unknown or empty values default to KindMeteor, because
// rock fields are the bulk of every scenario we ship.
func ParseKind(s string) BodyKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "star":
		return KindSun
	case "earth", "planet":
		return KindEarth
	case "comet":
		return KindComet
	case "satellite", "sat":
		return KindSatellite
	default:
		return KindMeteor
	}
}
