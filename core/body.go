package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/BewareOfTheRocks/rockviz/model"
)

// ErrInvalidBody is returned when a body description fails validation.
var ErrInvalidBody = errors.New("invalid body")

// Body is one renderable scene entity: the sun, a planet, a rock, or a
// satellite. A body either follows a MotionModel or stays wherever the
// scenario placed it.
//
// Bodies are not safe for concurrent use; the scene layer serialises all
// access under its own lock.
type Body struct {
	name   string
	kind   model.BodyKind
	radius float64
	traits model.KindTraits

	motion MotionModel
	epoch  float64

	pos       model.Vec3
	spinAngle float64
	lastT     float64
	tracked   bool

	trail     []model.Vec3
	trailHead int
	trailLen  int

	mesh *Mesh
}

// BodyOption configures a Body at construction.
type BodyOption func(*Body)

// WithStartPosition places the body before any motion model runs. This is
// also the permanent position for bodies without motion.
func WithStartPosition(at model.Vec3) BodyOption {
	return func(b *Body) { b.pos = at }
}

// WithMotion binds a motion model at construction.
func WithMotion(m MotionModel) BodyOption {
	return func(b *Body) { b.motion = m }
}

// WithOrbit binds Keplerian motion with the given elements and epoch
// offset.
func WithOrbit(el model.OrbitalElements, epoch float64) BodyOption {
	return func(b *Body) {
		b.epoch = epoch
		b.motion = &KeplerianMotion{Elements: el, Epoch: epoch}
	}
}

// WithTrail enables a position trail holding up to capacity samples.
func WithTrail(capacity int) BodyOption {
	return func(b *Body) {
		if capacity > 0 {
			b.trail = make([]model.Vec3, capacity)
		}
	}
}

// WithMesh attaches a mesh handle at construction.
func WithMesh(m *Mesh) BodyOption {
	return func(b *Body) { b.mesh = m }
}

// NewBody validates the description and returns the body. Names must be
// non-empty and the radius positive and finite.
func NewBody(name string, kind model.BodyKind, radius float64, opts ...BodyOption) (*Body, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidBody)
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius %v must be positive and finite", ErrInvalidBody, radius)
	}
	b := &Body{
		name:   name,
		kind:   kind,
		radius: radius,
		traits: model.TraitsFor(kind),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the body's unique scene name.
func (b *Body) Name() string { return b.name }

// Kind returns the body's classification.
func (b *Body) Kind() model.BodyKind { return b.kind }

// Radius returns the display radius in scene units.
func (b *Body) Radius() float64 { return b.radius }

// Position returns the most recently computed scene position.
func (b *Body) Position() model.Vec3 { return b.pos }

// SpinAngle returns the body's current self-rotation angle in radians.
func (b *Body) SpinAngle() float64 { return b.spinAngle }

// Lockable reports whether camera lock commands accept this body.
func (b *Body) Lockable() bool { return b.traits.Lockable }

// Mesh returns the attached mesh handle, or nil.
func (b *Body) Mesh() *Mesh { return b.mesh }

// Motion returns the bound motion model, or nil for free-placed bodies.
func (b *Body) Motion() MotionModel { return b.motion }

// SetMesh attaches a mesh handle.
func (b *Body) SetMesh(m *Mesh) { b.mesh = m }

// SetOrbit replaces the body's motion with Keplerian propagation of el,
// keeping the body's epoch offset.
func (b *Body) SetOrbit(el model.OrbitalElements) {
	b.motion = &KeplerianMotion{Elements: el, Epoch: b.epoch}
}

// SetMotion replaces the body's motion model.
func (b *Body) SetMotion(m MotionModel) { b.motion = m }

// ClearMotion detaches the motion model. The body keeps its last position
// and SetPosition moves it from then on.
func (b *Body) ClearMotion() { b.motion = nil }

// SetPosition places the body directly. Bodies with a motion model will be
// snapped back on the next UpdateOrbit.
func (b *Body) SetPosition(at model.Vec3) { b.pos = at }

// UpdateOrbit advances the body to simulation time t. Bodies without a
// motion model are left alone. Calling it again with the same t is
// idempotent: position and spin are pure functions of t, and the trail
// records a sample only when t changes.
func (b *Body) UpdateOrbit(t float64) {
	if b.motion == nil {
		return
	}
	b.pos = b.motion.Position(t)
	b.spinAngle = normalizeAngle(b.traits.SpinRate * t)
	if len(b.trail) > 0 && (!b.tracked || t != b.lastT) {
		b.pushTrail(b.pos)
	}
	b.lastT = t
	b.tracked = true
}

// Trail returns the recorded positions, oldest first.
func (b *Body) Trail() []model.Vec3 {
	out := make([]model.Vec3, 0, b.trailLen)
	for i := 0; i < b.trailLen; i++ {
		out = append(out, b.trail[(b.trailHead+i)%len(b.trail)])
	}
	return out
}

func (b *Body) pushTrail(at model.Vec3) {
	if b.trailLen < len(b.trail) {
		b.trail[(b.trailHead+b.trailLen)%len(b.trail)] = at
		b.trailLen++
		return
	}
	b.trail[b.trailHead] = at
	b.trailHead = (b.trailHead + 1) % len(b.trail)
}
