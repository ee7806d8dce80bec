package core

import (
	"context"

	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/model"
)

// PopulateMetrics receives population counters.
type PopulateMetrics interface {
	IncPopulatedRecord()
	IncSkippedRecord()
}

// PopulatorConfig bounds a population run.
type PopulatorConfig struct {
	// BatchSize is how many records one Step consumes. Defaults to 10,
	// which keeps a 60 fps frame comfortably under budget even with mesh
	// generation in the batch.
	BatchSize int
	// MaxBodies caps how many rocks a run may create. Defaults to 200.
	MaxBodies int
	// Segments is the mesh resolution for created rocks. Defaults to 24.
	Segments int
	// Trail is the trail capacity given to created rocks. Zero disables
	// trails.
	Trail int
	// Assets supplies meshes; nil generates straight from the catalog
	// parameters.
	Assets *Assets
	// Metrics is optional.
	Metrics PopulateMetrics
	// Kepler, when set, receives solver iteration counts from every rock
	// this run creates.
	Kepler KeplerMetrics
}

// Populator turns a rock catalog into scene bodies a batch at a time. One
// Step call per frame spreads the construction cost over the first seconds
// of a presentation instead of stalling the opening frame.
//
// Malformed records are skipped and logged, never fatal: a catalog with one
// bad row still fills the sky with the other rocks.
type Populator struct {
	records []model.ElementRecord
	cfg     PopulatorConfig

	next      int
	created   int
	cancelled bool
	capLogged bool

	log logging.Logger
}

// NewPopulator prepares a run over records. A nil logger is replaced with a
// no-op one.
func NewPopulator(records []model.ElementRecord, cfg PopulatorConfig, log logging.Logger) *Populator {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxBodies <= 0 {
		cfg.MaxBodies = 200
	}
	if cfg.Segments < 3 {
		cfg.Segments = 24
	}
	return &Populator{
		records: records,
		cfg:     cfg,
		log:     log,
	}
}

// Step consumes the next batch of records and returns the bodies it built,
// plus whether the run is finished. Callers add the bodies to the scene on
// the same frame, so a rock is never visible half-constructed.
func (p *Populator) Step(t float64) (created []*Body, done bool) {
	if p.cancelled {
		return nil, true
	}

	ctx := context.Background()
	for n := 0; n < p.cfg.BatchSize && p.next < len(p.records); n++ {
		rec := p.records[p.next]
		p.next++

		if p.created >= p.cfg.MaxBodies {
			if !p.capLogged {
				p.capLogged = true
				p.log.Warn(ctx, "rock cap reached, dropping remaining records",
					logging.Int("cap", p.cfg.MaxBodies),
					logging.Int("remaining", len(p.records)-p.next+1))
			}
			p.next = len(p.records)
			break
		}

		b, err := p.build(rec)
		if err != nil {
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.IncSkippedRecord()
			}
			p.log.Warn(ctx, "skipping malformed rock record",
				logging.String("record", rec.Name),
				logging.Err(err))
			continue
		}

		if p.cfg.Metrics != nil {
			p.cfg.Metrics.IncPopulatedRecord()
		}
		p.created++
		created = append(created, b)
	}

	return created, p.next >= len(p.records)
}

// build validates one record and constructs its body with orbit and mesh
// attached.
func (p *Populator) build(rec model.ElementRecord) (*Body, error) {
	el, err := rec.Elements()
	if err != nil {
		return nil, err
	}

	seed := rec.Seed
	if seed == 0 {
		seed = seedFromName(rec.Name)
	}

	var mesh *Mesh
	if p.cfg.Assets != nil {
		mesh, err = p.cfg.Assets.RockMesh(rec.Name, rec.Radius, p.cfg.Segments, seed)
	} else {
		mesh, err = GenerateRockMesh(rec.Radius, p.cfg.Segments, seed)
	}
	if err != nil {
		return nil, err
	}

	b, err := NewBody(rec.Name, model.KindMeteor, rec.Radius,
		WithOrbit(el, rec.Epoch),
		WithMesh(mesh),
		WithTrail(p.cfg.Trail),
	)
	if err != nil {
		return nil, err
	}
	if m, ok := b.Motion().(*KeplerianMotion); ok {
		m.Metrics = p.cfg.Kepler
	}
	return b, nil
}

// Progress reports how many records have been consumed out of the total.
func (p *Populator) Progress() (processed, total int) {
	return p.next, len(p.records)
}

// Created reports how many bodies the run has built so far.
func (p *Populator) Created() int { return p.created }

// Done reports whether the run has finished or been cancelled.
func (p *Populator) Done() bool {
	return p.cancelled || p.next >= len(p.records)
}

// Cancel abandons the rest of the run. Bodies already created stay in the
// scene.
func (p *Populator) Cancel() {
	if p.cancelled {
		return
	}
	p.cancelled = true
	if p.next < len(p.records) {
		p.log.Debug(context.Background(), "population cancelled",
			logging.Int("processed", p.next),
			logging.Int("total", len(p.records)))
	}
}

// seedFromName derives a deterministic mesh seed for catalogs that do not
// carry one, so reloading a scenario reshapes no rocks. FNV-1a over the
// name.
func seedFromName(name string) int64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= prime64
	}
	return int64(h)
}
