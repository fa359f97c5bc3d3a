package linalg

import (
	"errors"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomCDense(rnd *rand.Rand, m, n int) *mat.CDense {
	a := mat.NewCDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, complex(rnd.NormFloat64(), rnd.NormFloat64()))
		}
	}
	return a
}

func TestGemmAndProject(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	a := randomCDense(rnd, 4, 3)
	b := randomCDense(rnd, 4, 3)

	c := Gemm(true, false, 2, a, b)
	r, k := c.Dims()
	require.Equal(t, []int{3, 3}, []int{r, k})
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var want complex128
			for l := 0; l < 4; l++ {
				want += 2 * a.At(l, i) * b.At(l, j)
			}
			assert.InDelta(t, 0, cmplx.Abs(want-c.At(i, j)), 1e-12)
		}
	}

	z := randomCDense(rnd, 4, 4)
	x, y := Column(a, 0), Column(b, 1)
	p := Project(a, z, b)
	assert.InDelta(t, 0, cmplx.Abs(p.At(0, 1)-Bilinear(x, z, y)), 1e-12)
	assert.InDelta(t, 0, MaxAbsDiff(Transpose(Transpose(z)), z), 0)
}

func TestSolve(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	a := randomCDense(rnd, 6, 6)
	b := make([]complex128, 6)
	for i := range b {
		b[i] = complex(rnd.NormFloat64(), rnd.NormFloat64())
	}
	x, err := SolveVec(a, b)
	require.NoError(t, err)
	ax := MulVec(a, x)
	for i := range b {
		assert.InDelta(t, 0, cmplx.Abs(ax[i]-b[i]), 1e-10)
	}

	rhs := randomCDense(rnd, 6, 2)
	xs, err := Solve(a, rhs)
	require.NoError(t, err)
	assert.Less(t, MaxAbsDiff(Mul(a, xs), rhs), 1e-10)

	_, err = Factorize(mat.NewCDense(3, 3, nil))
	assert.True(t, errors.Is(err, ErrSingular))
}

func checkEigenpairs(t *testing.T, a *mat.CDense, values []complex128, vecs *mat.CDense) {
	t.Helper()
	n, _ := a.Dims()
	require.Len(t, values, n)
	for j, l := range values {
		v := Column(vecs, j)
		av := MulVec(a, v)
		for i := range v {
			assert.InDeltaf(t, 0, cmplx.Abs(av[i]-l*v[i]), 1e-9, "pair %d", j)
		}
	}
	// the eigenvector matrix must be invertible
	_, err := Factorize(vecs)
	assert.NoError(t, err)
}

func TestEig(t *testing.T) {
	rnd := rand.New(rand.NewPCG(5, 6))
	t.Run("general", func(t *testing.T) {
		a := randomCDense(rnd, 7, 7)
		values, vecs, err := Eig(a)
		require.NoError(t, err)
		checkEigenpairs(t, a, values, vecs)
	})
	t.Run("real spectrum", func(t *testing.T) {
		a := mat.NewCDense(3, 3, []complex128{
			2, 1, 0,
			1, 3, 1,
			0, 1, 4,
		})
		values, vecs, err := Eig(a)
		require.NoError(t, err)
		checkEigenpairs(t, a, values, vecs)
	})
	t.Run("degenerate", func(t *testing.T) {
		a := mat.NewCDense(3, 3, []complex128{
			2 + 1i, 0, 0,
			0, 2 + 1i, 0,
			0, 0, -1i,
		})
		values, vecs, err := Eig(a)
		require.NoError(t, err)
		checkEigenpairs(t, a, values, vecs)
	})
}

func TestNNLS(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	x, res, err := NNLS(a, []float64{1, -1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, x, 1e-14)
	assert.InDelta(t, 1, res, 1e-14)

	rnd := rand.New(rand.NewPCG(7, 8))
	m := mat.NewDense(8, 4, nil)
	for i := 0; i < 8; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, rnd.NormFloat64())
		}
	}
	want := []float64{0.5, 0, 2, 1.25}
	var b mat.VecDense
	b.MulVec(m, mat.NewVecDense(4, want))
	x, res, err = NNLS(m, b.RawVector().Data)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-10)
	assert.InDelta(t, 0, res, 1e-10)
	for _, v := range x {
		assert.GreaterOrEqual(t, v, 0.)
	}
}
