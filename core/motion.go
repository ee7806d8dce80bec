package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/BewareOfTheRocks/rockviz/model"
)

// MotionModel yields a body's scene position for a simulation time. Models
// are pure with respect to t: the same time always produces the same
// position, which is what makes body updates idempotent within a frame.
type MotionModel interface {
	Position(t float64) model.Vec3
}

// KeplerMetrics receives the solver iteration count per propagation.
type KeplerMetrics interface {
	ObserveKeplerIterations(n int)
}

// KeplerianMotion follows a closed two-body orbit around the scene origin.
type KeplerianMotion struct {
	Elements model.OrbitalElements
	// Epoch offsets the body along its orbit, so rocks sharing an element
	// set spread out instead of stacking at periapsis.
	Epoch float64
	// Metrics is optional; when set, each propagation reports its solver
	// iteration count.
	Metrics KeplerMetrics
}

// Position propagates the elements to t.
func (m *KeplerianMotion) Position(t float64) model.Vec3 {
	pos, iterations := propagateElements(m.Elements, t+m.Epoch)
	if m.Metrics != nil {
		m.Metrics.ObserveKeplerIterations(iterations)
	}
	return pos
}

// StaticMotion pins a body at a fixed position. The Sun sits at the origin
// this way.
type StaticMotion struct {
	At model.Vec3
}

// Position returns the pinned position regardless of time.
func (m StaticMotion) Position(float64) model.Vec3 { return m.At }

// SGP4Config maps TLE propagation into scene space.
type SGP4Config struct {
	// Anchor is the wall-clock instant corresponding to simulation time
	// zero. Zero value defaults to the J2000 epoch so runs stay
	// reproducible.
	Anchor time.Time
	// Unit is the wall duration of one simulation time unit. Defaults to
	// 24h: one unit is one day, matching the element catalogs.
	Unit time.Duration
	// Scale converts kilometres to scene units. Defaults to 0.001.
	Scale float64
	// Around optionally carries the satellite along another body's motion,
	// typically the Earth's.
	Around MotionModel
}

// SGP4Motion propagates a two-line element set with SGP4 and places the
// result in scene space. Positions follow the Earth-fixed frame, matching
// how ground-track displays expect satellites to move.
type SGP4Motion struct {
	sat    satellite.Satellite
	anchor time.Time
	unit   time.Duration
	scale  float64
	around MotionModel
}

// NewSGP4Motion parses the TLE and returns a motion model for it.
func NewSGP4Motion(tle model.TLE, cfg SGP4Config) *SGP4Motion {
	if cfg.Anchor.IsZero() {
		cfg.Anchor = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	}
	if cfg.Unit <= 0 {
		cfg.Unit = 24 * time.Hour
	}
	if cfg.Scale == 0 {
		cfg.Scale = 0.001
	}
	return &SGP4Motion{
		sat:    satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72),
		anchor: cfg.Anchor,
		unit:   cfg.Unit,
		scale:  cfg.Scale,
		around: cfg.Around,
	}
}

// Position propagates the satellite to the wall instant that t maps to.
// go-satellite works in kilometres and Z-up ECEF; the scene wants scaled
// units with Y up.
func (m *SGP4Motion) Position(t float64) model.Vec3 {
	at := m.anchor.Add(time.Duration(t * float64(m.unit)))
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	pos := model.Vec3{
		X: posECEF.X * m.scale,
		Y: posECEF.Z * m.scale,
		Z: posECEF.Y * m.scale,
	}
	if m.around != nil {
		pos = pos.Add(m.around.Position(t))
	}
	return pos
}

// MotionFor chooses a motion model for a loaded body description: TLE data
// selects SGP4, orbital elements select Keplerian propagation, and anything
// else stays put where the scenario placed it.
func MotionFor(tle model.TLE, el *model.OrbitalElements, epoch float64, at model.Vec3, cfg SGP4Config) MotionModel {
	if tle.Line1 != "" && tle.Line2 != "" {
		return NewSGP4Motion(tle, cfg)
	}
	if el != nil {
		return &KeplerianMotion{Elements: *el, Epoch: epoch}
	}
	return StaticMotion{At: at}
}
