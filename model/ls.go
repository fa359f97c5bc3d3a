package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/eig"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
)

const (
	inductanceScale = 1e10
	elastanceScale  = 1e-10
)

// ScalarModelLS fits the modal inductance and elastance separately:
//
//	L(s) = (L0 - L1 s') / 1e10,  S(s) = (S0 + S1 s') * 1e10
//	Z(s) = s L(s) + S(s) / s
type ScalarModelLS struct {
	Mode       eig.Mode
	L, S       [2]float64
	Scale      float64
	degenerate bool
}

// NewScalarModelLS fits the "L" and "S" terms of a single section
// decomposition evaluated at the mode frequency.
func NewScalarModelLS(mode eig.Mode, d *impedance.Decomposition, opts ...Option) (*ScalarModelLS, error) {
	if d.Sections != 1 {
		return nil, fmt.Errorf("%w: %d section impedance", ErrNotImplemented, d.Sections)
	}
	lt, okL := d.Term("L")
	stt, okS := d.Term("S")
	if !okL || !okS {
		return nil, fmt.Errorf("%w: impedance has no L and S terms", ErrNotImplemented)
	}
	st := apply(mode, opts)
	s := mode.S / complex(st.scale, 0)
	lv := lt.Weight * linalg.Bilinear(mode.J, lt.Block, mode.J) * inductanceScale
	sv := stt.Weight * linalg.Bilinear(mode.J, stt.Block, mode.J) * elastanceScale

	m := &ScalarModelLS{Mode: mode, Scale: st.scale}
	var err error
	if m.L, err = fitLine(1, -s, lv); err != nil {
		return nil, err
	}
	if m.S, err = fitLine(1, s, sv); err != nil {
		return nil, err
	}
	for _, c := range []float64{m.L[0], m.L[1], m.S[0], m.S[1]} {
		if c == 0 {
			m.degenerate = true
		}
	}
	st.log.Info("fitted L/S scalar model", "s", mode.S, "L", m.L, "S", m.S)
	if m.degenerate {
		st.log.Warn("degenerate L/S scalar model", "s", mode.S, "L", m.L, "S", m.S)
	}
	return m, nil
}

// fitLine solves a x0 + b x1 = v, split into real and imaginary rows, for
// non-negative x.
func fitLine(a, b, v complex128) ([2]float64, error) {
	m := mat.NewDense(2, 2, []float64{
		real(a), real(b),
		imag(a), imag(b),
	})
	x, _, err := linalg.NNLS(m, []float64{real(v), imag(v)})
	if err != nil {
		return [2]float64{}, fmt.Errorf("model: L/S fit: %w", err)
	}
	return [2]float64{x[0], x[1]}, nil
}

func (m *ScalarModelLS) Degenerate() bool { return m.degenerate }

// Inductance is the modal inductance L(s).
func (m *ScalarModelLS) Inductance(s complex128) complex128 {
	sp := s / complex(m.Scale, 0)
	return (complex(m.L[0], 0) - complex(m.L[1], 0)*sp) / inductanceScale
}

// Elastance is the modal elastance S(s).
func (m *ScalarModelLS) Elastance(s complex128) complex128 {
	sp := s / complex(m.Scale, 0)
	return (complex(m.S[0], 0) + complex(m.S[1], 0)*sp) / elastanceScale
}

func (m *ScalarModelLS) ScalarImpedance(s complex128) complex128 {
	return s*m.Inductance(s) + m.Elastance(s)/s
}

func (m *ScalarModelLS) Solve(s complex128, v []complex128) []complex128 {
	return modalResponse(m.Mode.J, v, m.ScalarImpedance(s))
}
