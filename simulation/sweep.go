package simulation

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/eig"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/operator"
	"github.com/notargets/gomodes/parts"
)

func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Sweep evaluates fn at every frequency with at most n concurrent tasks
// (one per CPU when n <= 0). Results keep the order of freqs. The first
// error cancels the remaining tasks.
func Sweep[T any](ctx context.Context, n int, freqs []complex128, fn func(context.Context, complex128) (T, error)) ([]T, error) {
	out := make([]T, len(freqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(n))
	for i, s := range freqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := fn(ctx, s)
			if err != nil {
				return fmt.Errorf("frequency %v: %w", s, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Extinction solves the full coupled system at s.
func (sim *Simulation) Extinction(pw operator.PlaneWave, s complex128) (complex128, error) {
	z, err := sim.CalculateImpedance(s)
	if err != nil {
		return 0, err
	}
	v, err := sim.SourcePlaneWave(pw, s)
	if err != nil {
		return 0, err
	}
	x, err := z.Solve(v)
	if err != nil {
		return 0, err
	}
	return impedance.Extinction(v, x), nil
}

// ReducedExtinction solves the system projected onto the nModes eigenvectors
// of each part's self impedance at s (all when nModes <= 0).
func (sim *Simulation) ReducedExtinction(pw operator.PlaneWave, s complex128, nModes int) (complex128, error) {
	z, err := sim.CalculateImpedance(s)
	if err != nil {
		return 0, err
	}
	modes := make([]*mat.CDense, len(z.Parts))
	for i := range z.Parts {
		_, vecs, err := eig.ImpedanceModes(z.Blocks[i][i].Value(), nModes)
		if err != nil {
			return 0, fmt.Errorf("modes of %q: %w", z.Parts[i].Name, err)
		}
		modes[i] = vecs
	}
	return sim.reducedExtinction(pw, z, modes)
}

// ModalExtinction solves the system at s projected onto the resonance
// currents of each part, as returned by PartSingularities. The basis does
// not change with s.
func (sim *Simulation) ModalExtinction(pw operator.PlaneWave, s complex128, modes map[*parts.Part][]eig.Mode) (complex128, error) {
	z, err := sim.CalculateImpedance(s)
	if err != nil {
		return 0, err
	}
	bases, err := modalBases(z, modes)
	if err != nil {
		return 0, err
	}
	return sim.reducedExtinction(pw, z, bases)
}

// modalBases stacks the mode currents of every assembled part as columns.
func modalBases(z *impedance.Parts, modes map[*parts.Part][]eig.Mode) ([]*mat.CDense, error) {
	out := make([]*mat.CDense, len(z.Parts))
	for i, p := range z.Parts {
		pm := modes[p]
		if len(pm) == 0 {
			return nil, fmt.Errorf("no modes for part %q", p.Name)
		}
		start, end, err := z.Layout.Range(p)
		if err != nil {
			return nil, err
		}
		cols := make([][]complex128, len(pm))
		for j, m := range pm {
			if len(m.J) != end-start {
				return nil, fmt.Errorf("%w: mode %d of %q has %d entries, part has %d unknowns",
					linalg.ErrShape, j, p.Name, len(m.J), end-start)
			}
			cols[j] = m.J
		}
		out[i] = linalg.FromColumns(cols)
	}
	return out, nil
}

func (sim *Simulation) reducedExtinction(pw operator.PlaneWave, z *impedance.Parts, bases []*mat.CDense) (complex128, error) {
	red, err := z.Reduced(bases)
	if err != nil {
		return 0, err
	}
	v, err := sim.SourcePlaneWave(pw, z.S)
	if err != nil {
		return 0, err
	}
	x, err := red.Solve(v)
	if err != nil {
		return 0, err
	}
	return impedance.Extinction(v, x), nil
}

// ExtinctionSweep evaluates Extinction over freqs with the configured
// number of workers.
func (sim *Simulation) ExtinctionSweep(ctx context.Context, pw operator.PlaneWave, freqs []complex128) ([]complex128, error) {
	return Sweep(ctx, sim.cfg.Sweep.Workers, freqs, func(_ context.Context, s complex128) (complex128, error) {
		return sim.Extinction(pw, s)
	})
}

func (sim *Simulation) ReducedExtinctionSweep(ctx context.Context, pw operator.PlaneWave, freqs []complex128, nModes int) ([]complex128, error) {
	return Sweep(ctx, sim.cfg.Sweep.Workers, freqs, func(_ context.Context, s complex128) (complex128, error) {
		return sim.ReducedExtinction(pw, s, nModes)
	})
}

// ModalExtinctionSweep evaluates ModalExtinction over freqs with one fixed
// set of mode currents.
func (sim *Simulation) ModalExtinctionSweep(ctx context.Context, pw operator.PlaneWave, freqs []complex128, modes map[*parts.Part][]eig.Mode) ([]complex128, error) {
	return Sweep(ctx, sim.cfg.Sweep.Workers, freqs, func(_ context.Context, s complex128) (complex128, error) {
		return sim.ModalExtinction(pw, s, modes)
	})
}
