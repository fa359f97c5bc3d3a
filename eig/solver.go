package eig

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/logging"
	"github.com/notargets/gomodes/parts"
)

// Options configure a Solver.
type Options struct {
	Tolerance float64 // Newton tolerance on |Δs/s|
	MaxIter   int
	Weight    Weight
	StaticTol float64 // relative size below which linearised roots are static
	Logger    *slog.Logger
}

// Solver finds the resonances of single parts.
type Solver struct {
	calc  impedance.Calculator
	cache *Cache
	opts  Options
	log   *slog.Logger
}

// NewSolver uses calc for self impedances. A nil cache disables memoising.
func NewSolver(calc impedance.Calculator, cache *Cache, opts Options) *Solver {
	if opts.StaticTol == 0 {
		opts.StaticTol = 1e-4
	}
	opts.Logger = logging.Discard(opts.Logger)
	return &Solver{calc: calc, cache: cache, opts: opts, log: opts.Logger}
}

// Impedance returns the self impedance function of p.
func (sv *Solver) Impedance(p *parts.Part) ImpedanceFunc {
	return func(s complex128) (*mat.CDense, error) {
		d, err := sv.calc.ImpedanceSingleParts(s, p, nil)
		if err != nil {
			return nil, err
		}
		return d.Value(), nil
	}
}

// Modes returns the n least damped resonances of p, linearised at sStart
// and refined one by one. They keep the linearised ordering.
func (sv *Solver) Modes(p *parts.Part, sStart complex128, n int) ([]Mode, error) {
	if sv.cache == nil || !Cacheable(p.Material) {
		return sv.solve(p, sStart, n)
	}
	key := Key{Mesh: p.Mesh.ID, Material: p.Material, NumModes: n}
	return sv.cache.Get(key, func() ([]Mode, error) {
		return sv.solve(p, sStart, n)
	})
}

func (sv *Solver) solve(p *parts.Part, sStart complex128, n int) ([]Mode, error) {
	d, err := sv.calc.ImpedanceSingleParts(sStart, p, nil)
	if err != nil {
		return nil, err
	}
	est, err := Linearised(d, n, sv.opts.StaticTol)
	if err != nil {
		return nil, fmt.Errorf("part %q: %w", p.Name, err)
	}
	z := sv.Impedance(p)
	nopts := NewtonOptions{
		Tolerance: sv.opts.Tolerance,
		MaxIter:   sv.opts.MaxIter,
		Weight:    sv.opts.Weight,
		Logger:    sv.log.With("part", p.Name),
	}
	modes := make([]Mode, len(est))
	for i, e := range est {
		m, err := Newton(z, e.S, e.J, nopts)
		if err != nil {
			return nil, fmt.Errorf("part %q mode %d: %w", p.Name, i, err)
		}
		sv.log.Info("found mode", "part", p.Name, "mode", i, "s", m.S,
			"estimate", e.S, "iterations", m.Iterations)
		modes[i] = m
	}
	return modes, nil
}
