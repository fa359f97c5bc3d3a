package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/eig"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/logging"
)

// ErrNotImplemented reports an impedance the model cannot be fitted to.
var ErrNotImplemented = errors.New("model: not implemented")

// Model is a reduced description of one mode's scalar impedance.
type Model interface {
	ScalarImpedance(s complex128) complex128
	// Solve returns the approximate modal response j (j^T v) / Z(s).
	Solve(s complex128, v []complex128) []complex128
}

type settings struct {
	scale float64
	log   *slog.Logger
}

type Option func(*settings)

// WithScale sets the frequency normalisation; by default |Im s0|/10.
func WithScale(scale float64) Option {
	return func(o *settings) { o.scale = scale }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *settings) { o.log = l }
}

func apply(mode eig.Mode, opts []Option) settings {
	st := settings{scale: math.Abs(imag(mode.S)) / 10}
	for _, opt := range opts {
		opt(&st)
	}
	if st.scale == 0 {
		st.scale = 1
	}
	st.log = logging.Discard(st.log)
	return st
}

// ScalarModel approximates a mode by
//
//	Z(s) = C/s' + R + L s' - R2 s'^2,  s' = s/Scale
//
// with non-negative coefficients fitted so that Z(s0) = 0 and Z'(s0)
// matches the projected operator derivative.
type ScalarModel struct {
	Mode         eig.Mode
	Coefficients [4]float64 // C, R, L, R2
	Scale        float64
	degenerate   bool
}

// NewScalarModel fits a mode of the impedance function z.
func NewScalarModel(mode eig.Mode, z eig.ImpedanceFunc, opts ...Option) (*ScalarModel, error) {
	zder, err := eig.ProjectedDerivative(z, mode.S, mode.J)
	if err != nil {
		return nil, err
	}
	return FitScalarModel(mode, zder, opts...)
}

// FitScalarModel fits a mode given j^T Z'(s0) j.
func FitScalarModel(mode eig.Mode, zder complex128, opts ...Option) (*ScalarModel, error) {
	st := apply(mode, opts)
	s := mode.S / complex(st.scale, 0)
	zero := []complex128{1 / s, 1, s, -s * s}
	slope := []complex128{-1 / (s * s), 0, 1, -2 * s}
	target := zder * complex(st.scale, 0)

	a := mat.NewDense(4, 4, nil)
	for j := 0; j < 4; j++ {
		a.Set(0, j, real(zero[j]))
		a.Set(1, j, imag(zero[j]))
		a.Set(2, j, real(slope[j]))
		a.Set(3, j, imag(slope[j]))
	}
	x, rnorm, err := linalg.NNLS(a, []float64{0, 0, real(target), imag(target)})
	if err != nil {
		return nil, fmt.Errorf("model: fitting mode at %v: %w", mode.S, err)
	}
	m := &ScalarModel{Mode: mode, Scale: st.scale}
	copy(m.Coefficients[:], x)
	for _, c := range x {
		if c == 0 {
			m.degenerate = true
		}
	}
	st.log.Info("fitted scalar model", "s", mode.S, "coefficients", x, "residual", rnorm)
	if m.degenerate {
		st.log.Warn("degenerate scalar model", "s", mode.S, "coefficients", x)
	}
	return m, nil
}

// Degenerate reports a fit with at least one zero coefficient.
func (m *ScalarModel) Degenerate() bool { return m.degenerate }

func (m *ScalarModel) ScalarImpedance(s complex128) complex128 {
	c := m.Coefficients
	sp := s / complex(m.Scale, 0)
	return complex(c[0], 0)/sp + complex(c[1], 0) + complex(c[2], 0)*sp - complex(c[3], 0)*sp*sp
}

// Derivative is dZ/ds.
func (m *ScalarModel) Derivative(s complex128) complex128 {
	c := m.Coefficients
	sp := s / complex(m.Scale, 0)
	d := -complex(c[0], 0)/(sp*sp) + complex(c[2], 0) - 2*complex(c[3], 0)*sp
	return d / complex(m.Scale, 0)
}

func (m *ScalarModel) Solve(s complex128, v []complex128) []complex128 {
	return modalResponse(m.Mode.J, v, m.ScalarImpedance(s))
}

func modalResponse(j, v []complex128, z complex128) []complex128 {
	a := linalg.Dotu(j, v) / z
	out := make([]complex128, len(j))
	for i, x := range j {
		out[i] = a * x
	}
	return out
}
