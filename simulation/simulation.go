// Package simulation places parts in a background medium and drives the
// impedance, mode and model computations over them.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/config"
	"github.com/notargets/gomodes/eig"
	"github.com/notargets/gomodes/element"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/logging"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/mesh"
	"github.com/notargets/gomodes/model"
	"github.com/notargets/gomodes/operator"
	"github.com/notargets/gomodes/parts"
)

type Simulation struct {
	cfg    config.Config
	log    *slog.Logger
	bg     material.Material
	op     operator.Operator
	bases  *basis.Container
	cache  *eig.Cache
	solver *eig.Solver

	mu    sync.RWMutex
	parts []*parts.Part
}

type Option func(*Simulation)

func WithLogger(l *slog.Logger) Option { return func(s *Simulation) { s.log = l } }

// WithBackground sets the medium surrounding every part; free space by
// default.
func WithBackground(m material.Material) Option { return func(s *Simulation) { s.bg = m } }

// WithCache shares a mode cache between simulations.
func WithCache(c *eig.Cache) Option { return func(s *Simulation) { s.cache = c } }

func New(cfg config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sim := &Simulation{cfg: cfg, bg: material.FreeSpace, bases: basis.NewContainer()}
	for _, opt := range opts {
		opt(sim)
	}
	if sim.log == nil {
		sim.log = logging.New(cfg.Logging)
	}
	if sim.cache == nil {
		sim.cache = eig.NewCache()
	}
	rule, err := element.NewTriangleRule(cfg.Operator.QuadratureOrder)
	if err != nil {
		return nil, err
	}
	sim.op, err = operator.New(cfg.Operator.Kind, operator.Config{
		Rule:                rule,
		SingularTerms:       cfg.Operator.SingularTerms,
		SingularityAccuracy: cfg.Operator.SingularityAccuracy,
		NearOrder:           cfg.Operator.NearOrder,
		Basis:               cfg.Operator.Basis,
		Background:          sim.bg,
		Bases:               sim.bases,
		Logger:              sim.log,
	})
	if err != nil {
		return nil, err
	}
	weight, err := eig.ParseWeight(cfg.Solver.Weight)
	if err != nil {
		return nil, err
	}
	sim.solver = eig.NewSolver(sim.op, sim.cache, eig.Options{
		Tolerance: cfg.Solver.LambdaTol,
		MaxIter:   cfg.Solver.MaxIter,
		Weight:    weight,
		StaticTol: cfg.Solver.StaticTol,
		Logger:    sim.log,
	})
	return sim, nil
}

func (sim *Simulation) Operator() operator.Operator { return sim.op }

func (sim *Simulation) Solver() *eig.Solver { return sim.solver }

// PlacePart adds a part made of mat (PEC when nil) translated to location.
func (sim *Simulation) PlacePart(m *mesh.Mesh, mat material.Material, location r3.Vec) *parts.Part {
	p := parts.New(m, mat)
	p.Translate(location)
	sim.mu.Lock()
	defer sim.mu.Unlock()
	p.Name = fmt.Sprintf("part%d", len(sim.parts))
	sim.parts = append(sim.parts, p)
	sim.log.Info("placed part", "part", p.Name, "material", p.Material.Name(),
		"triangles", len(m.Triangles), "location", location)
	return p
}

// Parts returns the placed parts in placement order.
func (sim *Simulation) Parts() []*parts.Part {
	sim.mu.RLock()
	defer sim.mu.RUnlock()
	return append([]*parts.Part(nil), sim.parts...)
}

// CalculateImpedance assembles every block at s.
func (sim *Simulation) CalculateImpedance(s complex128, opts ...impedance.Option) (*impedance.Parts, error) {
	return impedance.Assemble(sim.op, s, sim.Parts(), opts...)
}

// Layout maps each part to its unknowns.
func (sim *Simulation) Layout() (*parts.Layout, error) {
	ps := sim.Parts()
	sizes := make([]int, len(ps))
	for i, p := range ps {
		b, err := sim.op.Basis(p)
		if err != nil {
			return nil, err
		}
		sizes[i] = b.Len() * sim.op.Info().Unknowns
	}
	return parts.NewLayout(ps, sizes)
}

// SourcePlaneWave tests a plane wave against every part.
func (sim *Simulation) SourcePlaneWave(pw operator.PlaneWave, s complex128) (*parts.Vector, error) {
	layout, err := sim.Layout()
	if err != nil {
		return nil, err
	}
	v := parts.NewVector(layout)
	for _, p := range layout.Parts {
		vp, err := sim.op.SourceVector(pw, s, p)
		if err != nil {
			return nil, fmt.Errorf("source on %q: %w", p.Name, err)
		}
		if err := v.Set(p, vp); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// geometryKey groups parts whose self impedance is identical: one mesh and
// equal material values. A part whose material cannot be compared is its
// own group.
type geometryKey struct {
	mesh uuid.UUID
	mat  material.Material
	part *parts.Part
}

func keyOf(p *parts.Part) geometryKey {
	if eig.Cacheable(p.Material) {
		return geometryKey{mesh: p.Mesh.ID, mat: p.Material}
	}
	return geometryKey{part: p}
}

// PartSingularities finds n modes of every part starting from sStart, the
// configured solver.num_modes when n <= 0. Distinct geometries are solved
// concurrently; parts sharing a mesh and material share one result.
func (sim *Simulation) PartSingularities(ctx context.Context, sStart complex128, n int) (map[*parts.Part][]eig.Mode, error) {
	if n <= 0 {
		n = sim.cfg.Solver.NumModes
	}
	ps := sim.Parts()
	unique := make(map[geometryKey]*parts.Part)
	var order []*parts.Part
	for _, p := range ps {
		if _, ok := unique[keyOf(p)]; !ok {
			unique[keyOf(p)] = p
			order = append(order, p)
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(sim.cfg.Sweep.Workers))
	for _, p := range order {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := sim.solver.Modes(p, sStart, n)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[*parts.Part][]eig.Mode, len(ps))
	for _, p := range ps {
		modes, err := sim.solver.Modes(p, sStart, n) // cached
		if err != nil {
			return nil, err
		}
		out[p] = modes
	}
	return out, nil
}

// ConstructModels fits a scalar model to every mode. Parts with the same
// geometry share their models.
func (sim *Simulation) ConstructModels(modes map[*parts.Part][]eig.Mode) (map[*parts.Part][]*model.ScalarModel, error) {
	shared := make(map[geometryKey][]*model.ScalarModel)
	out := make(map[*parts.Part][]*model.ScalarModel, len(modes))
	for _, p := range sim.Parts() {
		pm, ok := modes[p]
		if !ok {
			continue
		}
		key := keyOf(p)
		if ms, ok := shared[key]; ok {
			out[p] = ms
			continue
		}
		z := sim.solver.Impedance(p)
		ms := make([]*model.ScalarModel, len(pm))
		for i, m := range pm {
			sm, err := model.NewScalarModel(m, z, model.WithLogger(sim.log.With("part", p.Name, "mode", i)))
			if err != nil {
				return nil, fmt.Errorf("model of %q mode %d: %w", p.Name, i, err)
			}
			ms[i] = sm
		}
		shared[key] = ms
		out[p] = ms
	}
	return out, nil
}
