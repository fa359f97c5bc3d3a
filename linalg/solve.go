package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Embed returns the real 2n x 2n representation [[Re A, -Im A], [Im A, Re A]]
// of a complex matrix. gonum's LAPACK surface is real only, so complex
// factorisations are carried out on this embedding.
func Embed(a *mat.CDense) *mat.Dense {
	m, n := a.Dims()
	e := mat.NewDense(2*m, 2*n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			e.Set(i, j, real(v))
			e.Set(i, j+n, -imag(v))
			e.Set(i+m, j, imag(v))
			e.Set(i+m, j+n, real(v))
		}
	}
	return e
}

// LU is a reusable factorisation of a complex square matrix.
type LU struct {
	n  int
	lu mat.LU
}

// Factorize computes the LU decomposition of a. An exactly singular matrix
// returns ErrSingular; an ill-conditioned one is accepted.
func Factorize(a *mat.CDense) (*LU, error) {
	n, c := a.Dims()
	if n != c {
		return nil, fmt.Errorf("%w: LU of %dx%d matrix", ErrShape, n, c)
	}
	f := &LU{n: n}
	f.lu.Factorize(Embed(a))
	if math.IsInf(f.lu.Cond(), 1) {
		return nil, ErrSingular
	}
	return f, nil
}

// Cond is the condition number estimate of the embedded matrix.
func (f *LU) Cond() float64 { return f.lu.Cond() }

// Solve returns x with a x = b for every column of b.
func (f *LU) Solve(b *mat.CDense) (*mat.CDense, error) {
	br, bc := b.Dims()
	if br != f.n {
		return nil, fmt.Errorf("%w: rhs has %d rows, want %d", ErrShape, br, f.n)
	}
	rhs := mat.NewDense(2*f.n, bc, nil)
	for i := 0; i < f.n; i++ {
		for j := 0; j < bc; j++ {
			v := b.At(i, j)
			rhs.Set(i, j, real(v))
			rhs.Set(i+f.n, j, imag(v))
		}
	}
	var x mat.Dense
	if err := acceptCondition(f.lu.SolveTo(&x, false, rhs)); err != nil {
		return nil, err
	}
	out := mat.NewCDense(f.n, bc, nil)
	for i := 0; i < f.n; i++ {
		for j := 0; j < bc; j++ {
			out.Set(i, j, complex(x.At(i, j), x.At(i+f.n, j)))
		}
	}
	return out, nil
}

// SolveVec returns x with a x = b.
func (f *LU) SolveVec(b []complex128) ([]complex128, error) {
	if len(b) != f.n {
		return nil, fmt.Errorf("%w: rhs has %d entries, want %d", ErrShape, len(b), f.n)
	}
	rhs := mat.NewVecDense(2*f.n, nil)
	for i, v := range b {
		rhs.SetVec(i, real(v))
		rhs.SetVec(i+f.n, imag(v))
	}
	var x mat.VecDense
	if err := acceptCondition(f.lu.SolveVecTo(&x, false, rhs)); err != nil {
		return nil, err
	}
	out := make([]complex128, f.n)
	for i := range out {
		out[i] = complex(x.AtVec(i), x.AtVec(i+f.n))
	}
	return out, nil
}

// SolveVec solves a x = b in one call.
func SolveVec(a *mat.CDense, b []complex128) ([]complex128, error) {
	f, err := Factorize(a)
	if err != nil {
		return nil, err
	}
	return f.SolveVec(b)
}

// Solve solves a x = b in one call.
func Solve(a, b *mat.CDense) (*mat.CDense, error) {
	f, err := Factorize(a)
	if err != nil {
		return nil, err
	}
	return f.Solve(b)
}

func acceptCondition(err error) error {
	if err == nil {
		return nil
	}
	var c mat.Condition
	if errors.As(err, &c) && !math.IsInf(float64(c), 1) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSingular, err)
}
