package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/model"
)

// Scenario is the result of loading a scene description: the principal
// bodies ready to add, and the rock catalog handed to a Populator.
type Scenario struct {
	Bodies []*Body
	Rocks  []model.ElementRecord
}

// internal JSON shapes, kept unexported so the file format can evolve
// without touching the public surface.
type scenarioJSON struct {
	Bodies     []bodyJSON      `json:"bodies"`
	Rocks      []rockJSON      `json:"rocks"`
	Satellites []satelliteJSON `json:"satellites"`
}

type bodyJSON struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Radius   float64       `json:"radius"`
	Position *positionJSON `json:"position"`
	Orbit    *orbitJSON    `json:"orbit"`
	Epoch    float64       `json:"epoch"`
	Trail    int           `json:"trail"`
}

type orbitJSON struct {
	SemiMajorAxis float64 `json:"semi_major_axis"`
	Eccentricity  float64 `json:"eccentricity"`
	Period        float64 `json:"period"`
	Inclination   float64 `json:"inclination"`
	Omega         float64 `json:"omega"`
	RAAN          float64 `json:"raan"`
}

type rockJSON struct {
	Name          string  `json:"name"`
	SemiMajorAxis float64 `json:"semi_major_axis"`
	Eccentricity  float64 `json:"eccentricity"`
	Period        float64 `json:"period"`
	Inclination   float64 `json:"inclination"`
	Omega         float64 `json:"omega"`
	RAAN          float64 `json:"raan"`
	Radius        float64 `json:"radius"`
	Epoch         float64 `json:"epoch"`
	Seed          int64   `json:"seed"`
}

type satelliteJSON struct {
	Name   string  `json:"name"`
	TLE1   string  `json:"tle1"`
	TLE2   string  `json:"tle2"`
	Around string  `json:"around"`
	Scale  float64 `json:"scale"`
	Radius float64 `json:"radius"`
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LoadScenario reads a JSON scene description from r.
//
// It fails only on JSON and structural errors. Individual records that do
// not validate are skipped with a warning, because one bad row in a catalog
// must not take the presentation down.
func LoadScenario(r io.Reader, log logging.Logger) (*Scenario, error) {
	if log == nil {
		log = logging.Noop()
	}
	ctx := context.Background()

	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	sc := &Scenario{}
	for _, jb := range payload.Bodies {
		b, err := buildPrincipal(jb)
		if err != nil {
			log.Warn(ctx, "skipping invalid body",
				logging.String("body", jb.Name),
				logging.Err(err))
			continue
		}
		sc.Bodies = append(sc.Bodies, b)
	}

	for _, js := range payload.Satellites {
		b, err := buildSatellite(js, sc.Bodies)
		if err != nil {
			log.Warn(ctx, "skipping invalid satellite",
				logging.String("satellite", js.Name),
				logging.Err(err))
			continue
		}
		sc.Bodies = append(sc.Bodies, b)
	}

	sc.Rocks = make([]model.ElementRecord, 0, len(payload.Rocks))
	for _, jr := range payload.Rocks {
		// Rocks are validated per record by the populator as batches run;
		// the loader only carries them over.
		sc.Rocks = append(sc.Rocks, model.ElementRecord{
			Name:          jr.Name,
			SemiMajorAxis: jr.SemiMajorAxis,
			Eccentricity:  jr.Eccentricity,
			Period:        jr.Period,
			Inclination:   jr.Inclination,
			Omega:         jr.Omega,
			RAAN:          jr.RAAN,
			Radius:        jr.Radius,
			Epoch:         jr.Epoch,
			Seed:          jr.Seed,
		})
	}

	log.Info(ctx, "scenario loaded",
		logging.Int("bodies", len(sc.Bodies)),
		logging.Int("rocks", len(sc.Rocks)))
	return sc, nil
}

func buildPrincipal(jb bodyJSON) (*Body, error) {
	if jb.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidBody)
	}
	kind := model.ParseKind(jb.Kind)

	opts := []BodyOption{WithTrail(jb.Trail)}
	if jb.Position != nil {
		opts = append(opts, WithStartPosition(model.Vec3{X: jb.Position.X, Y: jb.Position.Y, Z: jb.Position.Z}))
	}
	if jb.Orbit != nil {
		el, err := model.NewOrbitalElements(
			jb.Orbit.SemiMajorAxis,
			jb.Orbit.Eccentricity,
			jb.Orbit.Period,
			jb.Orbit.Inclination,
			jb.Orbit.Omega,
			jb.Orbit.RAAN,
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOrbit(el, jb.Epoch))
	}
	return NewBody(jb.Name, kind, jb.Radius, opts...)
}

// buildSatellite resolves a TLE-driven body. "around" names a previously
// declared body whose motion the satellite rides along with, usually the
// Earth's.
func buildSatellite(js satelliteJSON, loaded []*Body) (*Body, error) {
	if js.TLE1 == "" || js.TLE2 == "" {
		return nil, fmt.Errorf("%w: satellite %q missing TLE lines", ErrInvalidBody, js.Name)
	}
	// The SGP4 parser slices fixed TLE columns and panics on short lines.
	if len(js.TLE1) < 69 || len(js.TLE2) < 69 {
		return nil, fmt.Errorf("%w: satellite %q TLE lines truncated", ErrInvalidBody, js.Name)
	}

	cfg := SGP4Config{Scale: js.Scale}
	if js.Around != "" {
		for _, b := range loaded {
			if b.Name() == js.Around {
				cfg.Around = b.Motion()
				break
			}
		}
		if cfg.Around == nil {
			return nil, fmt.Errorf("%w: satellite %q rides unknown body %q", ErrInvalidBody, js.Name, js.Around)
		}
	}

	radius := js.Radius
	if radius <= 0 {
		radius = 0.5
	}
	motion := NewSGP4Motion(model.TLE{Line1: js.TLE1, Line2: js.TLE2}, cfg)
	return NewBody(js.Name, model.KindSatellite, radius, WithMotion(motion))
}

// DefaultScenario builds the demo scene the binaries fall back to when no
// scenario file is given: the sun at the origin, the earth on a mildly
// eccentric year-long orbit, one comet, and a deterministic rock field.
func DefaultScenario(rocks int) *Scenario {
	if rocks <= 0 {
		rocks = 37
	}

	sun, _ := NewBody("Sun", model.KindSun, 30)
	earthOrbit, _ := model.NewOrbitalElements(150, 0.0167, 365.25, 0, 1.99, -0.196)
	earth, _ := NewBody("Earth", model.KindEarth, 10, WithOrbit(earthOrbit, 0), WithTrail(96))
	cometOrbit, _ := model.NewOrbitalElements(210, 0.65, 900, 0.28, 0.9, 2.1)
	comet, _ := NewBody("Encke", model.KindComet, 3, WithOrbit(cometOrbit, 140), WithTrail(128))

	sc := &Scenario{Bodies: []*Body{sun, earth, comet}}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < rocks; i++ {
		sc.Rocks = append(sc.Rocks, model.ElementRecord{
			Name:          fmt.Sprintf("rock-%03d", i),
			SemiMajorAxis: 160 + rng.Float64()*60,
			Eccentricity:  rng.Float64() * 0.35,
			Period:        380 + rng.Float64()*240,
			Inclination:   (rng.Float64() - 0.5) * 0.4,
			Omega:         rng.Float64() * twoPi,
			RAAN:          rng.Float64() * twoPi,
			Radius:        0.8 + rng.Float64()*2.2,
			Epoch:         rng.Float64() * 600,
			Seed:          rng.Int63(),
		})
	}
	return sc
}
