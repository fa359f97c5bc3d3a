package linalg

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

func general(a *mat.CDense) cblas128.General {
	return a.RawCMatrix()
}

// Gemm returns alpha * op(a) * op(b) where op transposes (without
// conjugation) when the corresponding flag is set.
func Gemm(transA, transB bool, alpha complex128, a, b *mat.CDense) *mat.CDense {
	ta, tb := blas.NoTrans, blas.NoTrans
	m, k := a.Dims()
	if transA {
		ta = blas.Trans
		m, k = k, m
	}
	kb, n := b.Dims()
	if transB {
		tb = blas.Trans
		kb, n = n, kb
	}
	if k != kb {
		panic(ErrShape)
	}
	if m == 0 || n == 0 {
		return &mat.CDense{}
	}
	c := mat.NewCDense(m, n, nil)
	cblas128.Gemm(ta, tb, alpha, general(a), general(b), 0, general(c))
	return c
}

// Mul returns a b.
func Mul(a, b *mat.CDense) *mat.CDense { return Gemm(false, false, 1, a, b) }

// Project returns jo^T b js, the bilinear (unconjugated) projection used by
// reduced impedance blocks.
func Project(jo, b, js *mat.CDense) *mat.CDense {
	return Gemm(true, false, 1, jo, Mul(b, js))
}

// MulVec returns a x.
func MulVec(a *mat.CDense, x []complex128) []complex128 {
	m, n := a.Dims()
	if n != len(x) {
		panic(ErrShape)
	}
	y := make([]complex128, m)
	if m == 0 || n == 0 {
		return y
	}
	cblas128.Gemv(blas.NoTrans, 1, general(a),
		cblas128.Vector{N: n, Inc: 1, Data: x}, 0,
		cblas128.Vector{N: m, Inc: 1, Data: y})
	return y
}

// Dotu is the unconjugated product x^T y.
func Dotu(x, y []complex128) complex128 {
	if len(x) != len(y) {
		panic(ErrShape)
	}
	var s complex128
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

// Bilinear returns x^T a y.
func Bilinear(x []complex128, a *mat.CDense, y []complex128) complex128 {
	return Dotu(x, MulVec(a, y))
}

// Transpose returns a copy of a^T.
func Transpose(a *mat.CDense) *mat.CDense {
	m, n := a.Dims()
	t := mat.NewCDense(n, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			t.Set(j, i, a.At(i, j))
		}
	}
	return t
}

// AddScaled performs dst[r0+i, c0+j] += alpha * a[i, j].
func AddScaled(dst *mat.CDense, r0, c0 int, alpha complex128, a *mat.CDense) {
	m, n := a.Dims()
	dr, dc := dst.Dims()
	if r0+m > dr || c0+n > dc {
		panic(ErrShape)
	}
	da, rd := a.RawCMatrix(), dst.RawCMatrix()
	for i := 0; i < m; i++ {
		row := rd.Data[(r0+i)*rd.Stride+c0 : (r0+i)*rd.Stride+c0+n]
		cmplxs.AddScaled(row, alpha, da.Data[i*da.Stride:i*da.Stride+n])
	}
}

// Scale returns alpha * a.
func Scale(alpha complex128, a *mat.CDense) *mat.CDense {
	m, n := a.Dims()
	out := mat.NewCDense(m, n, nil)
	AddScaled(out, 0, 0, alpha, a)
	return out
}

// HasNaN reports whether any element of a has a NaN component.
func HasNaN(a *mat.CDense) bool {
	raw := a.RawCMatrix()
	m, n := a.Dims()
	for i := 0; i < m; i++ {
		if cmplxs.HasNaN(raw.Data[i*raw.Stride : i*raw.Stride+n]) {
			return true
		}
	}
	return false
}

// FrobeniusNorm returns sqrt(Σ |a_ij|^2).
func FrobeniusNorm(a *mat.CDense) float64 {
	raw := a.RawCMatrix()
	m, n := a.Dims()
	var s float64
	for i := 0; i < m; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+n] {
			s += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(s)
}

// MaxAbsDiff returns the largest elementwise |a - b|.
func MaxAbsDiff(a, b *mat.CDense) float64 {
	m, n := a.Dims()
	if bm, bn := b.Dims(); bm != m || bn != n {
		panic(ErrShape)
	}
	var d float64
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			d = math.Max(d, cmplx.Abs(a.At(i, j)-b.At(i, j)))
		}
	}
	return d
}

// Column copies column j of a.
func Column(a *mat.CDense, j int) []complex128 {
	m, _ := a.Dims()
	out := make([]complex128, m)
	for i := range out {
		out[i] = a.At(i, j)
	}
	return out
}

// FromColumns stacks equal length vectors as matrix columns.
func FromColumns(cols [][]complex128) *mat.CDense {
	if len(cols) == 0 {
		return &mat.CDense{}
	}
	out := mat.NewCDense(len(cols[0]), len(cols), nil)
	for j, c := range cols {
		for i, v := range c {
			out.Set(i, j, v)
		}
	}
	return out
}

// RealNormalise scales x so that Σ x_i^2 = 1 (no conjugation).
func RealNormalise(x []complex128) []complex128 {
	out := make([]complex128, len(x))
	copy(out, x)
	norm := cmplx.Sqrt(Dotu(x, x))
	if norm == 0 {
		return out
	}
	cmplxs.Scale(1/norm, out)
	return out
}
