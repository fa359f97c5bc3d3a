package eig

import (
	"errors"
	"fmt"
	"log/slog"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/cmplxs"

	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/logging"
)

// Weight selects the normalisation functional u of the Newton update.
type Weight int

const (
	// MaxElement holds the largest component of the starting current fixed.
	MaxElement Weight = iota
	// RayleighSymmetric uses u = conj(x), giving x^T x / x^T x1 updates.
	RayleighSymmetric
)

func (w Weight) String() string {
	switch w {
	case MaxElement:
		return "max element"
	case RayleighSymmetric:
		return "rayleigh symmetric"
	}
	return fmt.Sprintf("Weight(%d)", int(w))
}

// ParseWeight accepts the String forms, with spaces or underscores.
func ParseWeight(s string) (Weight, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", " ") {
	case "max element", "":
		return MaxElement, nil
	case "rayleigh symmetric":
		return RayleighSymmetric, nil
	}
	return 0, fmt.Errorf("eig: unknown weight %q", s)
}

type NewtonOptions struct {
	Tolerance float64 // on |Δs/s|
	MaxIter   int
	Weight    Weight
	Logger    *slog.Logger
}

func (o NewtonOptions) withDefaults() NewtonOptions {
	if o.Tolerance == 0 {
		o.Tolerance = 1e-8
	}
	if o.MaxIter == 0 {
		o.MaxIter = 50
	}
	o.Logger = logging.Discard(o.Logger)
	return o
}

// Mode is a resonance: Z(S) J = 0 with Σ J_i^2 = 1.
type Mode struct {
	S          complex128
	J          []complex128
	Iterations int
}

// Newton refines the pole s0 with current x0 by nonlinear inverse
// iteration: x1 = Z(s)^-1 Z'(s) x and s <- s - u^H x / u^H x1.
func Newton(z ImpedanceFunc, s0 complex128, x0 []complex128, opts NewtonOptions) (Mode, error) {
	opts = opts.withDefaults()
	if len(x0) == 0 {
		return Mode{}, fmt.Errorf("eig: empty starting current")
	}
	k := cmplxs.MaxAbsIdx(x0)
	x := make([]complex128, len(x0))
	copy(x, x0)
	s := s0
	var delta complex128
	it := 0
	for it < opts.MaxIter {
		it++
		zs, err := z(s)
		if err != nil {
			return Mode{}, err
		}
		dz, err := CentralDifference(z, s)
		if err != nil {
			return Mode{}, err
		}
		x1, err := linalg.SolveVec(zs, linalg.MulVec(dz, x))
		if errors.Is(err, linalg.ErrSingular) {
			// s is an exact root
			return Mode{S: s, J: linalg.RealNormalise(x), Iterations: it}, nil
		}
		if err != nil {
			return Mode{}, fmt.Errorf("eig: newton step %d at s=%v: %w", it, s, err)
		}
		switch opts.Weight {
		case RayleighSymmetric:
			delta = linalg.Dotu(x, x) / linalg.Dotu(x, x1)
			x = linalg.RealNormalise(x1)
		default:
			delta = x[k] / x1[k]
			scale := 1 / x1[k]
			for i := range x1 {
				x[i] = x1[i] * scale
			}
		}
		s -= delta
		opts.Logger.Debug("newton iteration", "iteration", it, "s", s, "delta", delta)
		if cmplx.IsNaN(s) {
			break
		}
		if cmplx.Abs(delta) <= opts.Tolerance*cmplx.Abs(s) {
			return Mode{S: s, J: linalg.RealNormalise(x), Iterations: it}, nil
		}
	}
	return Mode{}, &ConvergenceError{Iterations: it, Last: s, Delta: delta}
}
