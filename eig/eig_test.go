package eig

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/mesh/meshtest"
	"github.com/notargets/gomodes/parts"
)

func diag(v ...complex128) *mat.CDense {
	d := mat.NewCDense(len(v), len(v), nil)
	for i, x := range v {
		d.Set(i, i, x)
	}
	return d
}

// quadraticRoot is the root of a s^2 + b s + c with positive imaginary part.
func quadraticRoot(a, b, c complex128) complex128 {
	disc := cmplx.Sqrt(b*b - 4*a*c)
	r := (-b + disc) / (2 * a)
	if imag(r) < 0 {
		r = (-b - disc) / (2 * a)
	}
	return r
}

var (
	rlc = struct{ r, c []complex128 }{
		r: []complex128{0.2, 0.1, 0.3, 0.2},
		c: []complex128{4, 1, 9, 0},
	}
	dispersion = complex(0.05, 0)
)

// dispersiveCalc has Z(s) = s I + diag(r) + w(s) diag(c) / s with the
// material like weight w(s) = 1 + 0.05 s.
type dispersiveCalc struct {
	calls atomic.Int32
}

func (dc *dispersiveCalc) Reciprocal() bool { return true }

func (dc *dispersiveCalc) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	dc.calls.Add(1)
	return &impedance.Decomposition{
		S: s, Sections: 1, Rows: 4, Cols: 4,
		Terms: []impedance.Term{
			{Name: "L", Power: 1, Weight: 1, Block: diag(1, 1, 1, 1)},
			{Name: "R", Power: 0, Weight: 1, Block: diag(rlc.r...)},
			{Name: "S", Power: -1, Weight: 1 + dispersion*s, Block: diag(rlc.c...)},
		},
	}, nil
}

// permittivityCalc scales the capacitive term of dispersiveCalc by the
// part's relative permittivity.
type permittivityCalc struct {
	calls atomic.Int32
}

func (pc *permittivityCalc) Reciprocal() bool { return true }

func (pc *permittivityCalc) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	pc.calls.Add(1)
	return &impedance.Decomposition{
		S: s, Sections: 1, Rows: 4, Cols: 4,
		Terms: []impedance.Term{
			{Name: "L", Power: 1, Weight: 1, Block: diag(1, 1, 1, 1)},
			{Name: "R", Power: 0, Weight: 1, Block: diag(rlc.r...)},
			{Name: "S", Power: -1, Weight: o.Material.EpsilonR(s), Block: diag(rlc.c...)},
		},
	}, nil
}

// tagged is a material whose type cannot be a map key.
type tagged struct {
	material.Constant
	tags []string
}

func TestStepSize(t *testing.T) {
	for _, s := range []complex128{complex(-1e8, 5e10), 1i, complex(3.7, -0.2)} {
		h := StepSize(s)
		assert.Equal(t, h, (s+h)-s)
		want := cmplx.Abs(s) * math.Cbrt(epsilon)
		assert.InDelta(t, want, real(h), 1e-8*want)
		assert.InDelta(t, want, imag(h), 1e-8*want)
	}
}

func TestCentralDifferenceStable(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	m := make([]*mat.CDense, 4)
	for k := range m {
		m[k] = mat.NewCDense(3, 3, nil)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[k].Set(i, j, complex(rnd.NormFloat64(), rnd.NormFloat64()))
			}
		}
	}
	z := func(s complex128) (*mat.CDense, error) {
		out := mat.NewCDense(3, 3, nil)
		linalg.AddScaled(out, 0, 0, 1/s, m[0])
		linalg.AddScaled(out, 0, 0, 1, m[1])
		linalg.AddScaled(out, 0, 0, s, m[2])
		linalg.AddScaled(out, 0, 0, s*s, m[3])
		return out, nil
	}
	s := complex(-0.3, 2.5)
	exact := mat.NewCDense(3, 3, nil)
	linalg.AddScaled(exact, 0, 0, -1/(s*s), m[0])
	linalg.AddScaled(exact, 0, 0, 1, m[2])
	linalg.AddScaled(exact, 0, 0, 2*s, m[3])
	scale := linalg.FrobeniusNorm(exact)

	h := StepSize(s)
	var estimates []*mat.CDense
	for _, f := range []complex128{0.5, 1, 2} {
		dz, err := differenceStep(z, s, roundStep(s, f*h))
		require.NoError(t, err)
		assert.Less(t, linalg.MaxAbsDiff(dz, exact), 1e-7*scale)
		estimates = append(estimates, dz)
	}
	assert.Less(t, linalg.MaxAbsDiff(estimates[0], estimates[1]), 1e-3*scale)
	assert.Less(t, linalg.MaxAbsDiff(estimates[1], estimates[2]), 1e-3*scale)

	j := []complex128{0.6, 0.8i, 0.1}
	pd, err := ProjectedDerivative(z, s, j)
	require.NoError(t, err)
	want := linalg.Bilinear(j, exact, j)
	assert.InDelta(t, 0, cmplx.Abs(pd-want), 1e-7*scale)
}

func TestLinearised(t *testing.T) {
	s0 := complex(0, 2)
	d := &impedance.Decomposition{
		S: s0, Sections: 1, Rows: 4, Cols: 4,
		Terms: []impedance.Term{
			{Name: "L", Power: 1, Weight: 1, Block: diag(1, 1, 1, 1)},
			{Name: "R", Power: 0, Weight: 1, Block: diag(rlc.r...)},
			{Name: "S", Power: -1, Weight: 1, Block: diag(rlc.c...)},
		},
	}
	est, err := Linearised(d, 3, 1e-4)
	require.NoError(t, err)
	require.Len(t, est, 3)
	for k, i := range []int{1, 0, 2} {
		want := quadraticRoot(1, rlc.r[i], rlc.c[i])
		assert.InDelta(t, 0, cmplx.Abs(est[k].S-want), 1e-9, "mode %d", k)
		assert.InDelta(t, 1, cmplx.Abs(est[k].J[i]), 1e-9)
		assert.InDelta(t, 1, real(linalg.Dotu(est[k].J, est[k].J)), 1e-12)
	}

	_, err = Linearised(d, 4, 1e-4)
	assert.True(t, errors.Is(err, ErrTooFewModes))

	mfie := &impedance.Decomposition{S: s0, Sections: 1, Rows: 4, Cols: 4,
		Terms: []impedance.Term{{Name: "Z", Weight: 1, Block: diag(1, 2, 3, 4)}}}
	_, err = Linearised(mfie, 1, 1e-4)
	assert.True(t, errors.Is(err, ErrNotImplemented))
}

// rotated has roots at poles[i] with eigenvector column i of a rotation.
func rotated(poles []complex128) (ImpedanceFunc, *mat.CDense) {
	c, sn := math.Cos(0.4), math.Sin(0.4)
	q := mat.NewCDense(3, 3, []complex128{
		complex(c, 0), complex(-sn, 0), 0,
		complex(sn, 0), complex(c, 0), 0,
		0, 0, 1,
	})
	z := func(s complex128) (*mat.CDense, error) {
		d := make([]complex128, len(poles))
		for i, p := range poles {
			d[i] = (s - p) * (3 + s*s/10)
		}
		return linalg.Project(linalg.Transpose(q), diag(d...), linalg.Transpose(q)), nil
	}
	return z, q
}

func TestNewton(t *testing.T) {
	poles := []complex128{complex(-0.1, 1), complex(-0.2, 2), complex(-0.05, 3)}
	z, q := rotated(poles)
	x0 := linalg.Column(q, 1)
	x0[0] += 0.05
	x0[2] -= 0.03i

	for _, w := range []Weight{MaxElement, RayleighSymmetric} {
		m, err := Newton(z, poles[1]+complex(0.1, 0.1), x0, NewtonOptions{Weight: w, MaxIter: 30})
		require.NoError(t, err, w.String())
		assert.InDelta(t, 0, cmplx.Abs(m.S-poles[1]), 1e-7, w.String())
		assert.LessOrEqual(t, m.Iterations, 30)
		assert.InDelta(t, 1, cmplx.Abs(linalg.Dotu(m.J, linalg.Column(q, 1))), 1e-6)

		zs, _ := z(m.S)
		zs0, _ := z(poles[1] + 0.5)
		assert.Less(t, cmplx.Abs(linalg.Bilinear(m.J, zs, m.J)), 1e-6*linalg.FrobeniusNorm(zs0))
	}

	_, err := Newton(z, poles[1]+0.5, x0, NewtonOptions{MaxIter: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverged))
	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Iterations)
	assert.NotZero(t, ce.Delta)
}

// Starting exactly on a root makes Z(s) singular; that is convergence.
func TestNewtonExactRoot(t *testing.T) {
	z := func(s complex128) (*mat.CDense, error) {
		return diag(s+4/s, s+9/s), nil
	}
	for _, w := range []Weight{MaxElement, RayleighSymmetric} {
		m, err := Newton(z, 2i, []complex128{1, 0}, NewtonOptions{Weight: w})
		require.NoError(t, err, w.String())
		assert.Equal(t, 2i, m.S)
		assert.Equal(t, 1, m.Iterations)
		assert.InDelta(t, 1, cmplx.Abs(m.J[0]), 1e-15)
		assert.Zero(t, m.J[1])
	}
}

func TestParseWeight(t *testing.T) {
	w, err := ParseWeight("max_element")
	require.NoError(t, err)
	assert.Equal(t, MaxElement, w)
	w, err = ParseWeight("Rayleigh Symmetric")
	require.NoError(t, err)
	assert.Equal(t, RayleighSymmetric, w)
	_, err = ParseWeight("galerkin")
	assert.Error(t, err)
}

func TestImpedanceModes(t *testing.T) {
	vals, vecs, err := ImpedanceModes(diag(complex(1, 3), complex(2, 0.5), complex(3, -1)), 2)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.InDelta(t, 0, cmplx.Abs(vals[0]-complex(2, 0.5)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(vals[1]-complex(3, -1)), 1e-12)
	r, c := vecs.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 1, cmplx.Abs(vecs.At(1, 0)), 1e-12)
	assert.InDelta(t, 1, cmplx.Abs(vecs.At(2, 1)), 1e-12)
}

func TestCacheSingleComputation(t *testing.T) {
	c := NewCache()
	key := Key{Material: material.PEC, NumModes: 2}
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			modes, err := c.Get(key, func() ([]Mode, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return []Mode{{S: 1i}, {S: 2i}}, nil
			})
			assert.NoError(t, err)
			assert.Len(t, modes, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())

	// failures are not stored
	other := Key{Material: material.PEC, NumModes: 3}
	_, err := c.Get(other, func() ([]Mode, error) { return nil, ErrNotConverged })
	assert.True(t, errors.Is(err, ErrNotConverged))
	modes, err := c.Get(other, func() ([]Mode, error) { return []Mode{{S: 1i}}, nil })
	require.NoError(t, err)
	assert.Len(t, modes, 1)

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestCacheKeysOnMaterialValue(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32
	compute := func() ([]Mode, error) {
		calls.Add(1)
		return []Mode{{S: 1i}}, nil
	}
	for _, m := range []material.Material{
		material.Constant{Eps: 2, Mu: 1},
		material.Constant{Eps: 8, Mu: 1},
		material.Constant{Eps: 2, Mu: 1},
	} {
		_, err := c.Get(Key{Material: m, NumModes: 1}, compute)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())

	a := Key{Material: material.Constant{Label: "glass", Eps: 2, Mu: 1}}
	b := Key{Material: material.Constant{Label: "glass", Eps: 3, Mu: 1}}
	assert.NotEqual(t, a.String(), b.String())

	assert.True(t, Cacheable(material.PEC))
	assert.False(t, Cacheable(nil))
	assert.False(t, Cacheable(tagged{Constant: material.Constant{Eps: 2, Mu: 1}}))
}

func TestSolverModes(t *testing.T) {
	m, err := meshtest.Plate(1, 2)
	require.NoError(t, err)
	a := parts.New(m, nil)
	b := parts.New(m, nil)

	calc := &dispersiveCalc{}
	sv := NewSolver(calc, NewCache(), Options{MaxIter: 40})
	modes, err := sv.Modes(a, 2i, 3)
	require.NoError(t, err)
	require.Len(t, modes, 3)
	for k, i := range []int{1, 0, 2} {
		c := rlc.c[i]
		want := quadraticRoot(1, rlc.r[i]+dispersion*c, c)
		assert.InDelta(t, 0, cmplx.Abs(modes[k].S-want), 1e-7, "mode %d", k)
		assert.Less(t, real(modes[k].S), 0.0)
		assert.InDelta(t, 1, cmplx.Abs(modes[k].J[i]), 1e-6)
	}

	calls := calc.calls.Load()
	again, err := sv.Modes(b, 2i, 3) // same mesh and material
	require.NoError(t, err)
	assert.Equal(t, calls, calc.calls.Load())
	assert.Equal(t, modes[0].S, again[0].S)
}

// Parts with one mesh and one material label but different permittivity
// have different modes.
func TestSolverModesDistinctMaterials(t *testing.T) {
	m, err := meshtest.Plate(1, 2)
	require.NoError(t, err)
	thin := parts.New(m, material.Constant{Label: "dielectric", Eps: 2, Mu: 1})
	dense := parts.New(m, material.Constant{Label: "dielectric", Eps: 3, Mu: 1})

	calc := &permittivityCalc{}
	cache := NewCache()
	sv := NewSolver(calc, cache, Options{MaxIter: 40})
	a, err := sv.Modes(thin, 2i, 3)
	require.NoError(t, err)
	b, err := sv.Modes(dense, 2i, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.InDelta(t, 0, cmplx.Abs(a[0].S-quadraticRoot(1, rlc.r[1], 2*rlc.c[1])), 1e-7)
	assert.InDelta(t, 0, cmplx.Abs(b[0].S-quadraticRoot(1, rlc.r[1], 3*rlc.c[1])), 1e-7)

	// a material that cannot be keyed is solved every time
	odd := parts.New(m, tagged{Constant: material.Constant{Eps: 2, Mu: 1}, tags: []string{"x"}})
	calls := calc.calls.Load()
	c, err := sv.Modes(odd, 2i, 3)
	require.NoError(t, err)
	assert.Greater(t, calc.calls.Load(), calls)
	assert.Equal(t, 2, cache.Len())
	assert.InDelta(t, 0, cmplx.Abs(c[0].S-a[0].S), 1e-9)
}
