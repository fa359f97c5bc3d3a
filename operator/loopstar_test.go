package operator

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/mesh/meshtest"
	"github.com/notargets/gomodes/parts"
)

func loopStarMatrix(t *testing.T, p *parts.Part, sections int) (*basis.LoopStarBasis, *mat.CDense) {
	t.Helper()
	b, err := basis.New(p.Mesh)
	require.NoError(t, err)
	ls, err := basis.NewLoopStar(b)
	require.NoError(t, err)
	tc := ls.Complex()
	n := ls.Len()
	full := mat.NewCDense(sections*n, sections*n, nil)
	for k := 0; k < sections; k++ {
		linalg.AddScaled(full, k*n, k*n, 1, tc)
	}
	return ls, full
}

func TestLoopStarEFIE(t *testing.T) {
	m, err := meshtest.Plate(4e-3, 3)
	require.NoError(t, err)
	p := parts.New(m, material.PEC)
	s := jw(8e9)

	rwg, err := New("efie", Config{})
	require.NoError(t, err)
	op, err := New("efie", Config{Basis: "loop_star"})
	require.NoError(t, err)
	assert.Equal(t, basis.RWG, rwg.Info().Basis)
	assert.Equal(t, basis.LoopStar, op.Info().Basis)
	assert.True(t, op.Reciprocal())

	dr, err := rwg.ImpedanceSingleParts(s, p, nil, impedanceDerivative())
	require.NoError(t, err)
	dl, err := op.ImpedanceSingleParts(s, p, nil, impedanceDerivative())
	require.NoError(t, err)
	require.NoError(t, dl.Validate())

	ls, tc := loopStarMatrix(t, p, 1)
	want := linalg.Project(tc, dr.Value(), tc)
	scale := linalg.FrobeniusNorm(want)
	assert.Less(t, linalg.MaxAbsDiff(dl.Value(), want), 1e-12*scale)
	wantD := linalg.Project(tc, dr.Derivative, tc)
	assert.Less(t, linalg.MaxAbsDiff(dl.Derivative, wantD), 1e-12*linalg.FrobeniusNorm(wantD))

	// loops carry no charge, so the scalar potential does not see them
	st, ok := dl.Term("S")
	require.True(t, ok)
	sScale := linalg.FrobeniusNorm(st.Block)
	require.Greater(t, ls.Solenoidal(), 0)
	for i := 0; i < ls.Solenoidal(); i++ {
		for j := 0; j < dl.Cols; j++ {
			assert.Less(t, cmplx.Abs(st.Block.At(i, j)), 1e-9*sScale, "(%d,%d)", i, j)
		}
	}

	pw := PlaneWave{E: r3.Vec{X: 1}, K: r3.Vec{Z: 1}}
	vr, err := rwg.SourceVector(pw, s, p)
	require.NoError(t, err)
	vl, err := op.SourceVector(pw, s, p)
	require.NoError(t, err)
	wantV := linalg.MulVec(linalg.Transpose(tc), vr)
	require.Len(t, vl, len(wantV))
	vScale := cmplxs.Norm(wantV, 2)
	for i := range vl {
		assert.Less(t, cmplx.Abs(vl[i]-wantV[i]), 1e-12*vScale, "entry %d", i)
	}
}

func TestLoopStarPenetrable(t *testing.T) {
	m, err := meshtest.Sphere(5e-3, 1)
	require.NoError(t, err)
	p := parts.New(m, material.Constant{Label: "glass", Eps: 4, Mu: 1})
	s := jw(4e9)
	rwg, err := New("pmchwt", Config{})
	require.NoError(t, err)
	op, err := New("pmchwt", Config{Basis: "loop star"})
	require.NoError(t, err)

	dr, err := rwg.ImpedanceSingleParts(s, p, nil)
	require.NoError(t, err)
	dl, err := op.ImpedanceSingleParts(s, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, dl.Sections)
	_, tc := loopStarMatrix(t, p, 2)
	want := linalg.Project(tc, dr.Value(), tc)
	assert.Less(t, linalg.MaxAbsDiff(dl.Value(), want), 1e-12*linalg.FrobeniusNorm(want))

	v, err := op.SourceVector(PlaneWave{E: r3.Vec{X: 1}, K: r3.Vec{Z: 1}}, s, p)
	require.NoError(t, err)
	r, _ := dl.Dims()
	assert.Len(t, v, r)
}

func TestUnsupportedBasis(t *testing.T) {
	_, err := New("efie", Config{Basis: "rooftop"})
	assert.True(t, errors.Is(err, ErrNotImplemented))
}
