package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidElements is returned when an orbital element set fails
// validation. Callers match it with errors.Is and typically skip the
// offending record rather than abort.
var ErrInvalidElements = errors.New("invalid orbital elements")

// OrbitalElements describes a closed two-body orbit in scene units.
// Angles are radians. Period uses simulation time units (days).
type OrbitalElements struct {
	SemiMajorAxis float64
	Eccentricity  float64
	Period        float64
	Inclination   float64
	Omega         float64 // argument of periapsis
	RAAN          float64 // right ascension of the ascending node
}

// NewOrbitalElements validates the element set and returns it. Invalid
// sets (non-positive axis or period, eccentricity outside [0,1), or any
// non-finite field) return an error wrapping ErrInvalidElements.
func NewOrbitalElements(a, e, period, inclination, omega, raan float64) (OrbitalElements, error) {
	el := OrbitalElements{
		SemiMajorAxis: a,
		Eccentricity:  e,
		Period:        period,
		Inclination:   inclination,
		Omega:         omega,
		RAAN:          raan,
	}
	if err := el.Validate(); err != nil {
		return OrbitalElements{}, err
	}
	return el, nil
}

// Validate reports whether the element set describes a propagatable
// closed orbit.
func (el OrbitalElements) Validate() error {
	for _, f := range []float64{el.SemiMajorAxis, el.Eccentricity, el.Period, el.Inclination, el.Omega, el.RAAN} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite field", ErrInvalidElements)
		}
	}
	if el.SemiMajorAxis <= 0 {
		return fmt.Errorf("%w: semi-major axis %v must be positive", ErrInvalidElements, el.SemiMajorAxis)
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return fmt.Errorf("%w: eccentricity %v outside [0,1)", ErrInvalidElements, el.Eccentricity)
	}
	if el.Period <= 0 {
		return fmt.Errorf("%w: period %v must be positive", ErrInvalidElements, el.Period)
	}
	return nil
}

// ElementRecord is one raw entry from a rock catalog, before validation.
// Records come from scenario files or an external dataset and may be
// malformed; Elements surfaces that per record so loaders can skip.
type ElementRecord struct {
	Name          string
	SemiMajorAxis float64
	Eccentricity  float64
	Period        float64
	Inclination   float64
	Omega         float64
	RAAN          float64

	// Radius is the body's display radius in scene units.
	Radius float64
	// Epoch offsets the body along its orbit so a batch of rocks sharing
	// similar elements does not bunch up at periapsis.
	Epoch float64
	// Seed drives the procedural mesh displacement for this rock.
	Seed int64
}

// Elements validates the record and returns its element set.
func (r ElementRecord) Elements() (OrbitalElements, error) {
	el, err := NewOrbitalElements(r.SemiMajorAxis, r.Eccentricity, r.Period, r.Inclination, r.Omega, r.RAAN)
	if err != nil {
		return OrbitalElements{}, fmt.Errorf("record %q: %w", r.Name, err)
	}
	return el, nil
}

// TLE is a two-line element set for SGP4 propagation.
type TLE struct {
	Line1 string
	Line2 string
}
